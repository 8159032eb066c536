package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"chatline/internal/app/chat"
	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/logx"
)

// Commands is the slash-command interpreter.
type Commands interface {
	IsCommand(text string) bool
	Parse(ctx context.Context, text string) (string, error)
}

// Composer sends messages in, and switches, the focused channel.
type Composer interface {
	SendMessage(text string) (*chat.Message, error)
	UpdateTyping(text string) error
	Load(ctx context.Context, id int64) (*chat.Channel, error)
}

// Channels looks up cached channels.
type Channels interface {
	Channels() []*chat.Channel
	ChannelByName(name string) (*chat.Channel, bool)
	ViewChannel(id int64, fn func(ch *chat.Channel)) bool
}

// Profile changes the signed-in user's presence and settings.
type Profile interface {
	SetState(ctx context.Context, state user.State) error
	UpdateSettings(ctx context.Context, s user.Settings) error
	Logout()
}

const helpText = `Slash commands: /join <name> [private], /list, /invite <nick>, /kick <nick>,
/revoke <nick>, /cancel, /quit
Console: :channels, :open <name|id>, :state online|offline|dnd,
:notify all|mentioned|off, :away, :back, :logout, :exit`

// REPL reads lines and routes them to the interpreter, the session or a console action.
type REPL struct {
	console  *Console
	commands Commands
	composer Composer
	channels Channels
	profile  Profile

	logger zerolog.Logger
}

// NewREPL creates a REPL.
func NewREPL(console *Console, commands Commands, composer Composer, channels Channels, profile Profile) *REPL {
	return &REPL{
		console:  console,
		commands: commands,
		composer: composer,
		channels: channels,
		profile:  profile,
		logger:   logx.Component("repl"),
	}
}

// Run processes lines from r until EOF, ":exit", ":logout" or ctx is done.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case text, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if done := r.handle(ctx, strings.TrimSpace(text)); done {
				return nil
			}
		}
	}
}

// handle processes one line and reports whether the REPL should stop.
func (r *REPL) handle(ctx context.Context, text string) bool {
	switch {
	case text == "":
		return false

	case strings.HasPrefix(text, ":"):
		return r.meta(ctx, text)

	case r.commands.IsCommand(text):
		msg, err := r.commands.Parse(ctx, text)
		if err != nil {
			r.console.Error(err)
			return false
		}
		r.console.Success(msg)
		return false

	default:
		if _, err := r.composer.SendMessage(text); err != nil {
			r.console.Error(err)
			return false
		}
		if err := r.composer.UpdateTyping(""); err != nil {
			r.logger.Debug().Err(err).Msg("Failed to clear typing indicator")
		}
		return false
	}
}

func (r *REPL) meta(ctx context.Context, text string) bool {
	fields := strings.Fields(strings.TrimPrefix(text, ":"))
	if len(fields) == 0 {
		r.console.Info(helpText)
		return false
	}
	name, args := fields[0], fields[1:]

	var err error
	switch name {
	case "exit":
		return true

	case "logout":
		r.profile.Logout()
		r.console.Info("Signed out.")
		return true

	case "help":
		r.console.Info(helpText)

	case "channels":
		r.listChannels()

	case "open":
		err = r.open(ctx, strings.Join(args, " "))

	case "away", "back":
		r.console.SetHidden(name == "away")

	case "state":
		if len(args) != 1 {
			err = errs.NewError(errs.ErrInvalidCommand)
			break
		}
		if err = r.profile.SetState(ctx, user.State(args[0])); err == nil {
			r.console.Info("State set to " + errs.Bold(args[0]))
		}

	case "notify":
		pref := user.NotificationPreference(strings.Join(args, ""))
		switch pref {
		case user.NotifyAll, user.NotifyMentioned, user.NotifyOff:
		default:
			err = errs.NewError(errs.ErrInvalidCommand)
		}
		if err == nil {
			if err = r.profile.UpdateSettings(ctx, user.Settings{Notifications: pref}); err == nil {
				r.console.Info("Notifications set to " + errs.Bold(string(pref)))
			}
		}

	default:
		err = errs.NewError(errs.ErrInvalidCommand)
	}

	if err != nil {
		r.console.Error(err)
	}
	return false
}

func (r *REPL) listChannels() {
	list := r.channels.Channels()
	if len(list) == 0 {
		r.console.Info("No channels.")
		return
	}

	var b strings.Builder
	for i, c := range list {
		r.channels.ViewChannel(c.ID, func(ch *chat.Channel) {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d  %s (%s)", ch.ID, errs.Bold(ch.Name), ch.Kind)
		})
	}
	r.console.Info(b.String())
}

// open focuses a channel by name, falling back to a numeric id.
func (r *REPL) open(ctx context.Context, ref string) error {
	if ref == "" {
		return errs.NewError(errs.ErrInvalidCommand)
	}

	var id int64
	if ch, ok := r.channels.ChannelByName(ref); ok {
		id = ch.ID
	} else if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		id = n
	} else {
		return errs.NewError(errs.ErrChannelNotFound)
	}

	_, err := r.composer.Load(ctx, id)
	return err
}
