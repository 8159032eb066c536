package main

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"chatline/internal/app/api"
	"chatline/internal/app/chat"
	"chatline/internal/app/command"
	"chatline/internal/app/console"
	"chatline/internal/app/transport"
	"chatline/internal/app/user"
	"chatline/internal/configs"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/logx"
)

// app wires the client components together.
type app struct {
	cfg     *configs.AppConfig
	console *console.Console
	api     *api.Client
	dir     *user.Directory
	conn    *transport.Conn
	store   *chat.Store
	session *chat.Session
	interp  *command.Interpreter

	logger zerolog.Logger
}

func newApp(cfg *configs.AppConfig, out io.Writer) *app {
	a := &app{
		cfg:     cfg,
		console: console.New(out, true),
		logger:  logx.Component("app"),
	}

	a.api = api.New(cfg.ServerURL, cfg.RequestTimeout, nil)
	a.dir = user.NewDirectory(a.api, user.NewFileCredentials(cfg.CredentialFile))
	a.api.SetTokenSource(a.dir)
	a.api.OnUnauthorized(a.dir.Invalidate)

	a.conn = transport.NewConn(cfg.SocketURL(), 0)
	a.conn.OnDrop(func(err error) {
		a.console.Error(errs.Wrap(errs.ErrNotConnected, err))
	})

	a.store = chat.NewStore(a.api, a.dir, a.console, chat.Options{
		TypingTTL:  cfg.TypingTTL,
		TypingTick: cfg.TypingTick,
	})
	a.session = chat.NewSession(a.store, a.api, a.conn, a.dir, rate.Limit(cfg.TypingRate), cfg.TypingBurst)
	a.interp = command.New(a.store, a.session, a.dir, a.console, a.console)
	return a
}

// onSessionChange opens the event stream and seeds the channel list on sign-in, and tears
// both down on sign-out.
func (a *app) onSessionChange(ctx context.Context) user.SessionListener {
	return func(c user.SessionChange) {
		if !c.LoggedIn {
			a.conn.Close()
			a.session.Clear()
			a.store.Reset()
			a.console.Navigate(command.RootPath)
			return
		}

		if err := a.conn.Open(ctx, c.Token); err != nil {
			a.logger.Error().Err(err).Msg("Failed to open event stream")
			a.console.Error(err)
		}

		list, err := a.api.MyChannels(ctx)
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to load channel list")
			a.console.Error(err)
			return
		}
		a.store.Load(list)
		a.console.Info("Signed in as " + errs.Bold(c.User.DisplayName()))
	}
}

// run restores the saved session and serves the console on in until the user leaves.
func (a *app) run(ctx context.Context, in io.Reader) error {
	a.dir.OnSessionChange(a.onSessionChange(ctx))
	defer a.session.Close()
	defer a.conn.Close()

	if err := a.dir.Init(ctx); err != nil {
		return err
	}
	if !a.dir.LoggedIn() {
		return errs.NewError(errs.ErrUnauthorized)
	}

	stopWatch := a.console.Watch(a.store, a.session)
	defer stopWatch()

	repl := console.NewREPL(a.console, a.interp, a.session, a.store, profile{Directory: a.dir, store: a.store})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.store.Run(gctx, a.conn.Events())
	})
	g.Go(func() error {
		defer a.store.Stop()
		return repl.Run(gctx, in)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logx.Info("Client stopped.", "channels", len(a.store.Channels()))
	return nil
}

// profile applies an accepted presence change to the store's shared user right away instead
// of waiting for the server's user_state echo.
type profile struct {
	*user.Directory
	store *chat.Store
}

func (p profile) SetState(ctx context.Context, state user.State) error {
	if err := p.Directory.SetState(ctx, state); err != nil {
		return err
	}
	if me := p.Directory.Current(); me != nil {
		p.store.Apply(chat.UserState{User: me.ID, State: state})
	}
	return nil
}
