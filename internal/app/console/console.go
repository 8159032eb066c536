package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/charmbracelet/x/ansi"

	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
)

// Console writes the chat UI to a terminal. It implements command.Navigator,
// command.MemberView and chat.Notifier.
type Console struct {
	// mu serialises writes to out and protects location.
	mu       sync.Mutex
	out      io.Writer
	location string

	styles Styles

	// notify is whether desktop-style notifications are allowed at all.
	notify bool

	// hidden is set while the user is away from the conversation.
	hidden atomic.Bool
}

// New creates a Console writing to out.
func New(out io.Writer, notify bool) *Console {
	return &Console{
		out:      out,
		location: "/",
		styles:   NewStyles(out),
		notify:   notify,
	}
}

// Styles returns the console's styles.
func (c *Console) Styles() Styles { return c.styles }

// clean removes escape sequences and control characters other than newline from text that
// may come from other users.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r != '\n' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, ansi.Strip(s))
}

// inline is clean for text printed on a single line.
func inline(s string) string {
	return strings.ReplaceAll(clean(s), "\n", " ")
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Navigate records the UI location.
func (c *Console) Navigate(path string) {
	c.mu.Lock()
	c.location = path
	c.mu.Unlock()
	c.println(c.styles.Muted.Render("-> " + path))
}

// Location returns the last path passed to Navigate.
func (c *Console) Location() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// ShowMembers prints a channel's member list with presence.
func (c *Console) ShowMembers(channel string, members []user.User) {
	var b strings.Builder
	b.WriteString(c.styles.Markup("Members of " + errs.Bold(inline(channel))))
	for _, m := range members {
		state := m.State
		if state == "" {
			state = user.StateOffline
		}
		fmt.Fprintf(&b, "\n  %s %s", c.styles.Author.Render(inline(m.Nickname)), c.styles.Muted.Render("("+string(state)+")"))
	}
	c.println(b.String())
}

// Permitted implements chat.Notifier.
func (c *Console) Permitted() bool { return c.notify }

// Hidden implements chat.Notifier.
func (c *Console) Hidden() bool { return c.hidden.Load() }

// SetHidden marks the user as away from (true) or back at (false) the conversation.
func (c *Console) SetHidden(hidden bool) { c.hidden.Store(hidden) }

// Notify implements chat.Notifier by ringing the terminal bell and printing the message.
func (c *Console) Notify(title, body string) {
	c.println("\a" + c.styles.Notice.Render("* "+inline(title)+": "+inline(body)))
}

// Success prints an outcome message that may carry <strong> markup.
func (c *Console) Success(msg string) {
	if msg == "" {
		return
	}
	c.println(c.styles.Success.Render(c.styles.Markup(inline(msg))))
}

// Error prints the user-displayable message of err.
func (c *Console) Error(err error) {
	c.println(c.styles.Error.Render(c.styles.Markup(inline(errs.Message(err)))))
}

// Info prints a plain informational line.
func (c *Console) Info(msg string) {
	c.println(c.styles.Markup(clean(msg)))
}

// Message prints a chat message.
func (c *Console) Message(author, text string, pending bool) {
	line := c.styles.Author.Render(inline(author)) + ": " + inline(text)
	if pending {
		line += " " + c.styles.Muted.Render("(sending)")
	}
	c.println(line)
}
