/*
Package console provides the terminal collaborators of the chat client: navigation, the
member list view, notifications and the line-oriented REPL that feeds the Command
Interpreter and the Channel Session.
*/
package console

import (
	"html"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Accent      = lipgloss.Color("#8BC34A")
	Destructive = lipgloss.Color("#e53935")
	Info        = lipgloss.Color("#2196F3")
	Muted       = lipgloss.Color("#7a8699")
)

// Styles holds the terminal styles. They are bound to one renderer so output written to a
// non-terminal carries no escape codes.
type Styles struct {
	Bold    lipgloss.Style
	Author  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Notice  lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles returns the default styles for output written to w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Bold:    r.NewStyle().Bold(true),
		Author:  r.NewStyle().Bold(true).Foreground(Info),
		Success: r.NewStyle().Foreground(Accent),
		Error:   r.NewStyle().Foreground(Destructive),
		Notice:  r.NewStyle().Italic(true).Foreground(Info),
		Muted:   r.NewStyle().Foreground(Muted),
	}
}

// Markup renders text carrying <strong> emphasis for the terminal. Entities are unescaped
// and control characters they encode are dropped.
func (s Styles) Markup(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "<strong>")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], "</strong>")
		if end < 0 {
			break
		}
		end += start

		b.WriteString(unescape(text[:start]))
		b.WriteString(s.Bold.Render(unescape(text[start+len("<strong>") : end])))
		text = text[end+len("</strong>"):]
	}
	b.WriteString(unescape(text))
	return b.String()
}

func unescape(s string) string {
	return clean(html.UnescapeString(s))
}
