/*
Package command implements the slash-command grammar of the chat client.

The Interpreter turns a line such as "/kick bob" into a call on the Channel Store or the
Channel Session. Each command validates its exact arity and its preconditions; every
failure is returned as a single *errs.CustomError whose message is safe to display.
*/
package command

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"chatline/internal/app/chat"
	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/logx"
)

// privateSuffix switches /join to create a private channel.
const privateSuffix = "private"

// RootPath is where the UI goes after leaving a channel.
const RootPath = "/"

// ChannelPath is the location of a channel's view.
func ChannelPath(id int64) string {
	return fmt.Sprintf("/channel/%d", id)
}

// Navigator moves the UI to another location.
type Navigator interface {
	Navigate(path string)
}

// MemberView shows a channel's member list.
type MemberView interface {
	ShowMembers(channel string, members []user.User)
}

// Identity resolves the user issuing commands.
type Identity interface {
	CurrentUser() (*user.User, error)
}

// handler executes one command with validated arguments.
type handler func(ctx context.Context, args []string) (string, error)

type command struct {
	// arity is the exact number of arguments, or -1 for one or more.
	arity int
	run   handler
}

// Interpreter parses and dispatches slash commands.
type Interpreter struct {
	store    *chat.Store
	session  *chat.Session
	identity Identity
	nav      Navigator
	members  MemberView

	commands map[string]command

	// mu protects last.
	mu   sync.Mutex
	last string

	logger zerolog.Logger
}

// New creates an Interpreter.
func New(store *chat.Store, session *chat.Session, identity Identity, nav Navigator, members MemberView) *Interpreter {
	in := &Interpreter{
		store:    store,
		session:  session,
		identity: identity,
		nav:      nav,
		members:  members,
		logger:   logx.Component("command"),
	}

	in.commands = map[string]command{
		"list":   {arity: 0, run: in.list},
		"cancel": {arity: 0, run: in.cancel},
		"quit":   {arity: 0, run: in.quit},
		"invite": {arity: 1, run: in.invite},
		"join":   {arity: -1, run: in.join},
		"revoke": {arity: 1, run: in.revoke},
		"kick":   {arity: 1, run: in.kick},
	}
	return in
}

// IsCommand reports whether text is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// IsCommand reports whether text is a slash command.
func (in *Interpreter) IsCommand(text string) bool {
	return IsCommand(text)
}

// LastInput returns the most recent text passed to Parse.
func (in *Interpreter) LastInput() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.last
}

// Parse runs the command in text and returns its outcome message.
func (in *Interpreter) Parse(ctx context.Context, text string) (string, error) {
	in.mu.Lock()
	in.last = text
	in.mu.Unlock()

	if !IsCommand(text) {
		return "", errs.NewError(errs.ErrInvalidCommand)
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", errs.NewError(errs.ErrInvalidCommand)
	}
	name, args := strings.TrimPrefix(fields[0], "/"), fields[1:]

	cmd, ok := in.commands[name]
	if !ok || !cmd.accepts(len(args)) {
		in.logger.Debug().Str("command", name).Int("args", len(args)).Msg("Invalid command")
		return "", errs.NewError(errs.ErrInvalidCommand)
	}

	msg, err := cmd.run(ctx, args)
	if err != nil {
		if _, ok := errs.As(err); !ok {
			in.logger.Error().Err(err).Str("command", name).Msg("Command failed unexpectedly")
			return "", errs.Wrap(errs.ErrUnknown, err)
		}
		in.logger.Debug().Err(err).Str("command", name).Msg("Command rejected")
		return "", err
	}
	return msg, nil
}

func (c command) accepts(n int) bool {
	if c.arity < 0 {
		return n >= 1
	}
	return n == c.arity
}

// selected returns the focused channel's id and name.
func (in *Interpreter) selected() (int64, string, error) {
	id, ok := in.session.SelectedID()
	if !ok {
		return 0, "", errs.NewError(errs.ErrNoChannelSelected)
	}

	var name string
	if !in.store.ViewChannel(id, func(ch *chat.Channel) { name = ch.Name }) {
		return 0, "", errs.NewError(errs.ErrNoChannelSelected)
	}
	return id, name, nil
}

func (in *Interpreter) list(ctx context.Context, _ []string) (string, error) {
	id, name, err := in.selected()
	if err != nil {
		return "", err
	}

	var members []user.User
	in.store.ViewChannel(id, func(ch *chat.Channel) {
		members = make([]user.User, 0, len(ch.Members))
		for _, m := range ch.Members {
			members = append(members, *m)
		}
	})

	in.members.ShowMembers(name, members)
	return "", nil
}

func (in *Interpreter) cancel(ctx context.Context, _ []string) (string, error) {
	id, name, err := in.selected()
	if err != nil {
		return "", err
	}
	me, err := in.identity.CurrentUser()
	if err != nil {
		return "", err
	}

	var msg string
	if in.session.IsMemberAdmin(me.Nickname) {
		msg, err = in.store.QuitChannel(ctx, id)
		if err != nil {
			return "", err
		}
		if msg == "" {
			msg = "Removing channel " + errs.Bold(name)
		}
	} else {
		msg, err = in.session.Leave(ctx, me)
		if err != nil {
			return "", err
		}
	}

	in.session.Clear()
	in.nav.Navigate(RootPath)
	return msg, nil
}

func (in *Interpreter) quit(ctx context.Context, _ []string) (string, error) {
	id, name, err := in.selected()
	if err != nil {
		return "", err
	}

	msg, err := in.store.QuitChannel(ctx, id)
	if err != nil {
		return "", err
	}
	if msg == "" {
		msg = "Removing channel " + errs.Bold(name)
	}

	in.session.Clear()
	in.nav.Navigate(RootPath)
	return msg, nil
}

func (in *Interpreter) invite(ctx context.Context, args []string) (string, error) {
	me, err := in.identity.CurrentUser()
	if err != nil {
		return "", err
	}
	return in.session.InviteMember(ctx, me, args[0])
}

// join treats a trailing "private" as the kind selector when a name precedes it.
func (in *Interpreter) join(ctx context.Context, args []string) (string, error) {
	kind := chat.KindPublic
	if len(args) > 1 && args[len(args)-1] == privateSuffix {
		kind = chat.KindPrivate
		args = args[:len(args)-1]
	}
	name := strings.Join(args, " ")

	res, err := in.store.JoinChannel(ctx, name, kind)
	if err != nil {
		return "", err
	}

	msg := res.Message
	if msg == "" {
		msg = "Joining channel " + errs.Bold(name)
	}

	var id int64
	if res.Channel != nil {
		id = res.Channel.ID
	} else if ch, ok := in.store.ChannelByName(name); ok {
		id = ch.ID
	}
	if id == 0 {
		return msg, nil
	}

	if _, err := in.session.Load(ctx, id); err != nil {
		in.logger.Warn().Err(err).Int64("channel_id", id).Msg("Joined channel could not be loaded")
		return msg, nil
	}
	in.nav.Navigate(ChannelPath(id))
	return msg, nil
}

func (in *Interpreter) revoke(ctx context.Context, args []string) (string, error) {
	if _, _, err := in.selected(); err != nil {
		return "", err
	}
	me, err := in.identity.CurrentUser()
	if err != nil {
		return "", err
	}

	if in.session.IsPublic() {
		return "", errs.NewError(errs.ErrPrivateChannelOnly)
	}
	if !in.session.IsMemberAdmin(me.Nickname) {
		return "", errs.NewError(errs.ErrRevokeRequiresAdmin)
	}

	return in.session.RevokeMember(ctx, args[0])
}

func (in *Interpreter) kick(ctx context.Context, args []string) (string, error) {
	if _, _, err := in.selected(); err != nil {
		return "", err
	}
	me, err := in.identity.CurrentUser()
	if err != nil {
		return "", err
	}
	return in.session.BanMember(ctx, me, args[0])
}
