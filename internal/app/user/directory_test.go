package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/internal/pkg/auth/jwt"
	"chatline/internal/pkg/errs"
)

type fakeAuth struct {
	token    string
	loginErr error
	regErr   error
	me       *User
	meErr    error
	stateErr error
	states   []State
	settings *User
}

func (f *fakeAuth) Login(ctx context.Context, nickname, password string) (string, error) {
	return f.token, f.loginErr
}

func (f *fakeAuth) Register(ctx context.Context, u *User) (string, error) {
	return f.token, f.regErr
}

func (f *fakeAuth) Me(ctx context.Context) (*User, error) { return f.me, f.meErr }

func (f *fakeAuth) SetState(ctx context.Context, state State) error {
	f.states = append(f.states, state)
	return f.stateErr
}

func (f *fakeAuth) UpdateSettings(ctx context.Context, s Settings) (*User, error) {
	if f.settings == nil {
		return nil, errors.New("boom")
	}
	return f.settings, nil
}

func recordSessions(d *Directory) *[]SessionChange {
	var got []SessionChange
	d.OnSessionChange(func(c SessionChange) { got = append(got, c) })
	return &got
}

func TestDirectoryStartsLoggedOutWithoutCredential(t *testing.T) {
	d := NewDirectory(&fakeAuth{}, &MemoryCredentials{})

	require.NoError(t, d.Init(context.Background()))
	assert.False(t, d.LoggedIn())

	_, err := d.CurrentUser()
	assert.True(t, errs.Is(err, errs.ErrUnauthorized))
}

func TestDirectoryLogin(t *testing.T) {
	creds := &MemoryCredentials{}
	api := &fakeAuth{token: "tok", me: &User{ID: 1, Nickname: "alice"}}
	d := NewDirectory(api, creds)
	sessions := recordSessions(d)

	require.NoError(t, d.Login(context.Background(), "alice", "secret"))

	saved, _ := creds.Load()
	assert.Equal(t, "tok", saved)
	assert.Equal(t, "tok", d.Token())
	assert.Equal(t, "alice", d.Current().Nickname)
	require.Len(t, *sessions, 1)
	assert.True(t, (*sessions)[0].LoggedIn)
	assert.Equal(t, "tok", (*sessions)[0].Token)
}

func TestDirectoryLoginRejected(t *testing.T) {
	d := NewDirectory(&fakeAuth{loginErr: errs.NewError(errs.ErrCommandFailed, "nope")}, &MemoryCredentials{})

	err := d.Login(context.Background(), "alice", "bad")
	require.Error(t, err)
	assert.Equal(t, errs.KindForm, errs.KindOf(err))
	assert.Equal(t, "Nickname or password incorrect", errs.Message(err))
}

func TestDirectoryRegisterKeepsFormErrors(t *testing.T) {
	d := NewDirectory(&fakeAuth{regErr: errs.NewError(errs.ErrFieldInUse, "email")}, &MemoryCredentials{})

	err := d.Register(context.Background(), &User{Nickname: "bob"})
	assert.Equal(t, "This <strong>email</strong> is already in use", errs.Message(err))

	d = NewDirectory(&fakeAuth{regErr: errors.New("500")}, &MemoryCredentials{})
	err = d.Register(context.Background(), &User{Nickname: "bob"})
	assert.True(t, errs.Is(err, errs.ErrRegistrationFailed))
}

func TestDirectoryInitClearsExpiredToken(t *testing.T) {
	token, err := jwt.GenerateToken(&jwt.Payload{ID: 1}, "secret", -time.Hour)
	require.NoError(t, err)

	creds := &MemoryCredentials{}
	require.NoError(t, creds.Save(token))
	api := &fakeAuth{me: &User{ID: 1}}
	d := NewDirectory(api, creds)
	sessions := recordSessions(d)

	err = d.Init(context.Background())
	assert.True(t, errs.Is(err, errs.ErrSessionExpired))
	assert.Empty(t, d.Token())
	saved, _ := creds.Load()
	assert.Empty(t, saved)
	require.Len(t, *sessions, 1)
	assert.False(t, (*sessions)[0].LoggedIn)
}

func TestDirectoryInitClearsRejectedToken(t *testing.T) {
	creds := &MemoryCredentials{}
	require.NoError(t, creds.Save("opaque"))
	d := NewDirectory(&fakeAuth{meErr: errs.NewError(errs.ErrUnauthorized)}, creds)

	err := d.Init(context.Background())
	assert.Equal(t, errs.KindAuth, errs.KindOf(err))
	assert.Empty(t, d.Token())
}

func TestDirectoryInitKeepsTokenOnTransportFailure(t *testing.T) {
	creds := &MemoryCredentials{}
	require.NoError(t, creds.Save("opaque"))
	d := NewDirectory(&fakeAuth{meErr: errs.NewError(errs.ErrTransport)}, creds)

	err := d.Init(context.Background())
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
	assert.Equal(t, "opaque", d.Token())
}

func TestDirectorySetState(t *testing.T) {
	api := &fakeAuth{token: "tok", me: &User{ID: 1, Nickname: "alice", State: StateOnline}}
	d := NewDirectory(api, &MemoryCredentials{})
	require.NoError(t, d.Login(context.Background(), "alice", "pw"))

	require.NoError(t, d.SetState(context.Background(), StateDND))
	assert.Equal(t, StateDND, d.Current().State)
	assert.Equal(t, []State{StateDND}, api.states)

	assert.Error(t, d.SetState(context.Background(), State("away")))
}

func TestDirectoryUpdateSettings(t *testing.T) {
	api := &fakeAuth{token: "tok", me: &User{ID: 1, Nickname: "alice"}}
	d := NewDirectory(api, &MemoryCredentials{})
	require.NoError(t, d.Login(context.Background(), "alice", "pw"))
	assert.Equal(t, NotifyAll, d.Preference())

	err := d.UpdateSettings(context.Background(), Settings{Notifications: NotifyMentioned})
	assert.True(t, errs.Is(err, errs.ErrSettingsFailed))

	api.settings = &User{ID: 1, Nickname: "alice", Notifications: NotifyMentioned}
	require.NoError(t, d.UpdateSettings(context.Background(), Settings{Notifications: NotifyMentioned}))
	assert.Equal(t, NotifyMentioned, d.Preference())
}

func TestDirectoryUpdateSettingsPartialReply(t *testing.T) {
	api := &fakeAuth{token: "tok", me: &User{ID: 1, Name: "Alice", Surname: "Liddell", Nickname: "alice", Email: "alice@example.com"}}
	d := NewDirectory(api, &MemoryCredentials{})
	require.NoError(t, d.Login(context.Background(), "alice", "pw"))

	api.settings = &User{ID: 1, Notifications: NotifyOff}
	require.NoError(t, d.UpdateSettings(context.Background(), Settings{Notifications: NotifyOff}))

	me := d.Current()
	assert.Equal(t, "Alice", me.Name)
	assert.Equal(t, "Liddell", me.Surname)
	assert.Equal(t, "alice", me.Nickname)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, NotifyOff, d.Preference())
	assert.True(t, d.CheckMention("hi @alice"))

	api.settings = &User{}
	require.NoError(t, d.UpdateSettings(context.Background(), Settings{Email: "a@example.org"}))
	assert.Equal(t, "a@example.org", d.Current().Email)
	assert.Equal(t, "alice", d.Current().Nickname)
}

func TestDirectoryCheckMentionDuringSettingsUpdate(t *testing.T) {
	api := &fakeAuth{token: "tok", me: &User{ID: 1, Nickname: "alice"}}
	d := NewDirectory(api, &MemoryCredentials{})
	require.NoError(t, d.Login(context.Background(), "alice", "pw"))
	api.settings = &User{ID: 1, Nickname: "alice", Notifications: NotifyMentioned}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 100 {
			assert.NoError(t, d.UpdateSettings(context.Background(), Settings{Notifications: NotifyMentioned}))
		}
	}()
	go func() {
		defer wg.Done()
		for range 100 {
			assert.True(t, d.CheckMention("hi @alice"))
		}
	}()
	wg.Wait()
}

func TestDirectoryCheckMention(t *testing.T) {
	d := NewDirectory(&fakeAuth{token: "t", me: &User{ID: 1, Nickname: "alice"}}, &MemoryCredentials{})
	assert.False(t, d.CheckMention("hi @alice"))

	require.NoError(t, d.Login(context.Background(), "alice", "pw"))
	assert.True(t, d.CheckMention("hi @alice"))
	assert.False(t, d.CheckMention("hi alice"))
}

func TestDirectoryLogout(t *testing.T) {
	creds := &MemoryCredentials{}
	d := NewDirectory(&fakeAuth{token: "t", me: &User{ID: 1}}, creds)
	require.NoError(t, d.Login(context.Background(), "a", "b"))
	sessions := recordSessions(d)

	d.Logout()
	assert.False(t, d.LoggedIn())
	assert.Equal(t, NotifyOff, d.Preference())
	require.Len(t, *sessions, 1)
	assert.False(t, (*sessions)[0].LoggedIn)

	d.Logout()
	assert.Len(t, *sessions, 1)
}
