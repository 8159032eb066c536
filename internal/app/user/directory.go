package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatline/internal/pkg/auth/jwt"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/logx"
)

// AuthAPI is the request capability the Directory needs from the server.
type AuthAPI interface {
	Login(ctx context.Context, nickname, password string) (string, error)
	Register(ctx context.Context, u *User) (string, error)
	Me(ctx context.Context) (*User, error)
	SetState(ctx context.Context, state State) error
	UpdateSettings(ctx context.Context, s Settings) (*User, error)
}

// Settings are the profile fields a user may change.
type Settings struct {
	Name          string                 `json:"name,omitempty"`
	Surname       string                 `json:"surname,omitempty"`
	Email         string                 `json:"email,omitempty"`
	Notifications NotificationPreference `json:"notifications,omitempty"`
}

// SessionChange is delivered to listeners whenever the authenticated session starts or ends.
type SessionChange struct {
	LoggedIn bool
	Token    string
	User     *User
}

// SessionListener reacts to session changes, e.g. by opening or closing the event stream.
type SessionListener func(SessionChange)

// Directory holds the authenticated identity and the session credential.
type Directory struct {
	mu    sync.RWMutex
	user  *User
	token string

	creds     CredentialStore
	api       AuthAPI
	listeners []SessionListener
	now       func() time.Time

	logger zerolog.Logger
}

// NewDirectory constructs a Directory and restores the saved credential, if any.
// A credential that cannot be read is treated as absent.
func NewDirectory(api AuthAPI, creds CredentialStore) *Directory {
	d := &Directory{
		creds:  creds,
		api:    api,
		now:    time.Now,
		logger: logx.Component("user-directory"),
	}

	token, err := creds.Load()
	if err != nil {
		d.logger.Warn().Err(err).Msg("Saved credential unreadable, starting logged out.")
		token = ""
	}
	d.token = token

	return d
}

// OnSessionChange registers l. Listeners run synchronously, in registration order.
func (d *Directory) OnSessionChange(l SessionListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *Directory) emit(change SessionChange) {
	d.mu.RLock()
	listeners := append([]SessionListener(nil), d.listeners...)
	d.mu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}

// Token returns the current bearer credential, or "" when logged out.
func (d *Directory) Token() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token
}

// Current returns the authenticated user or nil.
func (d *Directory) Current() *User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.user
}

// CurrentUser returns the authenticated user or an ErrUnauthorized error.
func (d *Directory) CurrentUser() (*User, error) {
	if u := d.Current(); u != nil {
		return u, nil
	}
	return nil, errs.NewError(errs.ErrUnauthorized)
}

// LoggedIn reports whether a user is authenticated.
func (d *Directory) LoggedIn() bool {
	return d.Current() != nil
}

// Init resolves the saved credential into the current user.
// An expired token, or one the server rejects, is cleared and ErrSessionExpired is returned.
// Without a saved credential Init is a no-op.
func (d *Directory) Init(ctx context.Context) error {
	token := d.Token()
	if token == "" {
		return nil
	}

	// Opaque (non-JWT) tokens cannot be inspected and are left to the server to judge.
	if payload, err := jwt.Inspect(token); err == nil && jwt.Expired(payload, d.now()) {
		d.logger.Info().Msg("Saved credential has expired.")
		d.Invalidate()
		return errs.NewError(errs.ErrSessionExpired)
	}

	u, err := d.api.Me(ctx)
	if err != nil {
		if errs.KindOf(err) == errs.KindAuth {
			d.Invalidate()
			return errs.Wrap(errs.ErrSessionExpired, err)
		}
		return err
	}

	d.mu.Lock()
	d.user = u
	d.mu.Unlock()

	d.logger.Info().Int64("user_id", u.ID).Str("nickname", u.Nickname).Msg("Session established.")
	d.emit(SessionChange{LoggedIn: true, Token: token, User: u})

	return nil
}

// Login exchanges credentials for a session token and loads the user.
func (d *Directory) Login(ctx context.Context, nickname, password string) error {
	token, err := d.api.Login(ctx, nickname, password)
	if err != nil {
		if errs.KindOf(err) == errs.KindTransport {
			return err
		}
		d.logger.Debug().Err(err).Str("nickname", nickname).Msg("Login rejected.")
		return errs.Wrap(errs.ErrInvalidCredentials, err)
	}

	if err := d.setToken(token); err != nil {
		return err
	}
	return d.Init(ctx)
}

// Register creates an account and loads the user.
func (d *Directory) Register(ctx context.Context, u *User) error {
	token, err := d.api.Register(ctx, u)
	if err != nil {
		switch errs.KindOf(err) {
		case errs.KindForm, errs.KindTransport:
			return err
		}
		d.logger.Warn().Err(err).Msg("Registration failed.")
		return errs.Wrap(errs.ErrRegistrationFailed, err)
	}

	if err := d.setToken(token); err != nil {
		return err
	}
	return d.Init(ctx)
}

func (d *Directory) setToken(token string) error {
	d.mu.Lock()
	d.token = token
	d.mu.Unlock()

	if err := d.creds.Save(token); err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	return nil
}

// Logout forgets the user and the credential.
func (d *Directory) Logout() {
	d.clear()
	d.logger.Info().Msg("Logged out.")
}

// Invalidate is Logout triggered by the server rejecting the credential.
func (d *Directory) Invalidate() {
	d.clear()
	d.logger.Warn().Msg("Session credential invalidated.")
}

func (d *Directory) clear() {
	d.mu.Lock()
	hadSession := d.user != nil || d.token != ""
	d.user = nil
	d.token = ""
	d.mu.Unlock()

	if err := d.creds.Clear(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to clear saved credential.")
	}

	if hadSession {
		d.emit(SessionChange{LoggedIn: false})
	}
}

// SetState requests a presence change and applies it locally.
func (d *Directory) SetState(ctx context.Context, state State) error {
	u, err := d.CurrentUser()
	if err != nil {
		return err
	}
	if !state.Valid() {
		return errs.NewError(errs.ErrInvalidCommand)
	}

	if err := d.api.SetState(ctx, state); err != nil {
		return err
	}

	d.mu.Lock()
	u.State = state
	d.mu.Unlock()

	return nil
}

// UpdateSettings saves profile settings, applies the submitted fields and then any non-empty
// fields of the server's reply.
func (d *Directory) UpdateSettings(ctx context.Context, s Settings) error {
	u, err := d.CurrentUser()
	if err != nil {
		return err
	}

	updated, err := d.api.UpdateSettings(ctx, s)
	if err != nil {
		switch errs.KindOf(err) {
		case errs.KindForm, errs.KindAuth, errs.KindTransport:
			return err
		}
		return errs.Wrap(errs.ErrSettingsFailed, err)
	}

	d.mu.Lock()
	u.apply(s)
	if updated != nil {
		u.Overwrite(updated)
	}
	d.mu.Unlock()

	return nil
}

// Preference returns the current user's notification preference (NotifyOff when logged out).
func (d *Directory) Preference() NotificationPreference {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.user == nil {
		return NotifyOff
	}
	if d.user.Notifications == "" {
		return NotifyAll
	}
	return d.user.Notifications
}

// CheckMention reports whether text mentions the current user as "@nickname".
func (d *Directory) CheckMention(text string) bool {
	d.mu.RLock()
	var nick string
	if d.user != nil {
		nick = d.user.Nickname
	}
	d.mu.RUnlock()

	if nick == "" {
		return false
	}
	return strings.Contains(text, "@"+nick)
}
