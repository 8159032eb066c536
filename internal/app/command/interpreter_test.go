package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"chatline/internal/app/chat"
	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = user.User{ID: 1, Nickname: "alice"}
	bob   = user.User{ID: 2, Nickname: "bob"}
	carol = user.User{ID: 3, Nickname: "carol"}
)

type identity struct{ me *user.User }

func (i *identity) Current() *user.User                     { return i.me }
func (i *identity) Preference() user.NotificationPreference { return user.NotifyOff }
func (i *identity) CheckMention(string) bool                { return false }
func (i *identity) CurrentUser() (*user.User, error) {
	if i.me == nil {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}
	return i.me, nil
}

type remote struct {
	calls   []string
	joinRes chat.JoinResult
	kickErr error
}

func (r *remote) FetchChannel(ctx context.Context, id int64) (*chat.ChannelData, error) {
	r.calls = append(r.calls, "fetch")
	if r.joinRes.Channel != nil && r.joinRes.Channel.ID == id {
		return r.joinRes.Channel, nil
	}
	return nil, errs.NewError(errs.ErrChannelNotFound)
}

func (r *remote) JoinChannel(ctx context.Context, name string, kind chat.Kind) (chat.JoinResult, error) {
	r.calls = append(r.calls, "join "+name+" "+string(kind))
	return r.joinRes, nil
}

func (r *remote) QuitChannel(ctx context.Context, id int64) (string, error) {
	r.calls = append(r.calls, "quit")
	return "", nil
}

func (r *remote) CancelMembership(ctx context.Context, id int64) (string, error) {
	r.calls = append(r.calls, "cancel")
	return "", nil
}

func (r *remote) Invite(ctx context.Context, channelID int64, nickname string) (chat.InviteResult, error) {
	r.calls = append(r.calls, "invite "+nickname)
	return chat.InviteResult{}, nil
}

func (r *remote) Revoke(ctx context.Context, channelID int64, nickname string) (string, error) {
	r.calls = append(r.calls, "revoke "+nickname)
	return "", nil
}

func (r *remote) Kick(ctx context.Context, channelID int64, nickname string) (string, error) {
	r.calls = append(r.calls, "kick "+nickname)
	return "", r.kickErr
}

type sender struct{}

func (sender) SendMessage(int64, string, string) error { return nil }
func (sender) SendTyping(int64, string) error          { return nil }

type navigator struct{ paths []string }

func (n *navigator) Navigate(path string) { n.paths = append(n.paths, path) }

type memberView struct {
	channel string
	members []string
}

func (v *memberView) ShowMembers(channel string, members []user.User) {
	v.channel = channel
	v.members = nil
	for _, m := range members {
		v.members = append(v.members, m.Nickname)
	}
}

type fixture struct {
	in      *Interpreter
	store   *chat.Store
	session *chat.Session
	remote  *remote
	nav     *navigator
	view    *memberView
}

const (
	publicID  = int64(10)
	privateID = int64(20)
)

func channelData(id int64, name string, kind chat.Kind, members ...user.User) chat.ChannelData {
	admin := alice
	return chat.ChannelData{
		ID:    id,
		Name:  name,
		Kind:  kind,
		Admin: chat.AdminRef{ID: admin.ID, User: &admin},
		Users: members,
	}
}

// newFixture logs in as me with the public channel focused.
func newFixture(t *testing.T, me user.User) *fixture {
	t.Helper()

	id := &identity{me: &me}
	f := &fixture{remote: &remote{}, nav: &navigator{}, view: &memberView{}}
	f.store = chat.NewStore(f.remote, id, nil, chat.Options{})
	f.store.Apply(chat.ChannelAdd{ChannelData: channelData(publicID, "general", chat.KindPublic, alice, bob, carol)})
	f.store.Apply(chat.ChannelAdd{ChannelData: channelData(privateID, "secret", chat.KindPrivate, alice, bob)})

	f.session = chat.NewSession(f.store, f.remote, sender{}, id, 0, 0)
	t.Cleanup(f.session.Close)
	f.session.Select(publicID)

	f.in = New(f.store, f.session, id, f.nav, f.view)
	return f
}

func TestIsCommand(t *testing.T) {
	assert.False(t, IsCommand(""))
	assert.False(t, IsCommand("hello /list"))
	assert.True(t, IsCommand("/list"))
	assert.True(t, IsCommand("/"))
}

func TestInvalidCommands(t *testing.T) {
	f := newFixture(t, alice)

	for _, text := range []string{
		"hello",
		"/",
		"/unknown",
		"/list extra",
		"/cancel now",
		"/quit now",
		"/invite",
		"/invite bob carol",
		"/join",
		"/revoke",
		"/kick",
		"/kick bob carol",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := f.in.Parse(context.Background(), text)
			require.True(t, errs.Is(err, errs.ErrInvalidCommand), "got %v", err)
			assert.Equal(t, "Invalid command", errs.Message(err))
			assert.Equal(t, text, f.in.LastInput())
		})
	}
	assert.Empty(t, f.remote.calls)
}

func TestListShowsMembers(t *testing.T) {
	f := newFixture(t, bob)

	_, err := f.in.Parse(context.Background(), "/list")
	require.NoError(t, err)
	assert.Equal(t, "general", f.view.channel)
	assert.Equal(t, []string{"alice", "bob", "carol"}, f.view.members)

	f.session.Clear()
	_, err = f.in.Parse(context.Background(), "/list")
	assert.True(t, errs.Is(err, errs.ErrNoChannelSelected))
}

func TestJoinParsesKind(t *testing.T) {
	t.Run("private suffix", func(t *testing.T) {
		f := newFixture(t, alice)
		created := channelData(30, "a b", chat.KindPrivate, alice)
		f.remote.joinRes = chat.JoinResult{Channel: &created}

		msg, err := f.in.Parse(context.Background(), "/join a b private")
		require.NoError(t, err)
		assert.Equal(t, "Joining channel <strong>a b</strong>", msg)
		assert.Equal(t, "join a b private", f.remote.calls[0])

		id, ok := f.session.SelectedID()
		require.True(t, ok)
		assert.Equal(t, int64(30), id)
		assert.Equal(t, []string{"/channel/30"}, f.nav.paths)
	})

	t.Run("lone private is a name", func(t *testing.T) {
		f := newFixture(t, alice)

		_, err := f.in.Parse(context.Background(), "/join private")
		require.NoError(t, err)
		assert.Equal(t, []string{"join private public"}, f.remote.calls)
	})

	t.Run("existing channel by name", func(t *testing.T) {
		f := newFixture(t, bob)
		f.remote.joinRes = chat.JoinResult{Message: "Welcome"}

		msg, err := f.in.Parse(context.Background(), "/join secret")
		require.NoError(t, err)
		assert.Equal(t, "Welcome", msg)

		id, _ := f.session.SelectedID()
		assert.Equal(t, privateID, id)
	})
}

func TestQuit(t *testing.T) {
	t.Run("admin", func(t *testing.T) {
		f := newFixture(t, alice)

		msg, err := f.in.Parse(context.Background(), "/quit")
		require.NoError(t, err)
		assert.Equal(t, "Removing channel <strong>general</strong>", msg)
		assert.Equal(t, []string{"/"}, f.nav.paths)

		_, ok := f.store.Channel(publicID)
		assert.False(t, ok)
		_, ok = f.session.SelectedID()
		assert.False(t, ok)
	})

	t.Run("not admin", func(t *testing.T) {
		f := newFixture(t, bob)

		_, err := f.in.Parse(context.Background(), "/quit")
		require.True(t, errs.Is(err, errs.ErrNotChannelAdmin))
		assert.Equal(t, errs.KindPermission, errs.KindOf(err))
		assert.Empty(t, f.nav.paths)
	})
}

func TestCancel(t *testing.T) {
	t.Run("admin deletes channel", func(t *testing.T) {
		f := newFixture(t, alice)

		_, err := f.in.Parse(context.Background(), "/cancel")
		require.NoError(t, err)
		assert.Equal(t, []string{"quit"}, f.remote.calls)
		_, ok := f.store.Channel(publicID)
		assert.False(t, ok)
	})

	t.Run("member leaves", func(t *testing.T) {
		f := newFixture(t, bob)

		_, err := f.in.Parse(context.Background(), "/cancel")
		require.NoError(t, err)
		assert.Equal(t, []string{"cancel"}, f.remote.calls)
		assert.Equal(t, []string{"/"}, f.nav.paths)

		ch, ok := f.store.Channel(publicID)
		require.True(t, ok)
		assert.False(t, ch.IsMember("bob"))
		_, focused := f.session.SelectedID()
		assert.False(t, focused)
	})
}

func TestRevoke(t *testing.T) {
	f := newFixture(t, alice)

	_, err := f.in.Parse(context.Background(), "/revoke bob")
	require.True(t, errs.Is(err, errs.ErrPrivateChannelOnly))

	f.session.Select(privateID)
	_, err = f.in.Parse(context.Background(), "/revoke bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"revoke bob"}, f.remote.calls)

	ch, _ := f.store.Channel(privateID)
	assert.False(t, ch.IsMember("bob"))
}

func TestRevokeRequiresAdmin(t *testing.T) {
	f := newFixture(t, bob)
	f.session.Select(privateID)

	_, err := f.in.Parse(context.Background(), "/revoke alice")
	require.True(t, errs.Is(err, errs.ErrRevokeRequiresAdmin))
	assert.Equal(t, errs.KindPermission, errs.KindOf(err))
}

func TestKick(t *testing.T) {
	f := newFixture(t, bob)

	_, err := f.in.Parse(context.Background(), "/kick bob")
	require.True(t, errs.Is(err, errs.ErrSelfBan))

	_, err = f.in.Parse(context.Background(), "/kick carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"kick carol"}, f.remote.calls)

	ch, _ := f.store.Channel(publicID)
	assert.Equal(t, []string{"bob"}, ch.Restricted["carol"])
}

func TestInvitePrivateRequiresAdmin(t *testing.T) {
	f := newFixture(t, bob)
	f.session.Select(privateID)

	_, err := f.in.Parse(context.Background(), "/invite carol")
	require.True(t, errs.Is(err, errs.ErrInviteRequiresAdmin))
	assert.Empty(t, f.remote.calls)
}

func TestUnexpectedErrorsAreWrapped(t *testing.T) {
	f := newFixture(t, bob)
	f.remote.kickErr = errors.New("socket closed")

	_, err := f.in.Parse(context.Background(), "/kick carol")
	require.True(t, errs.Is(err, errs.ErrUnknown))
	assert.Equal(t, "Something went wrong. Please try again.", errs.Message(err))
}

func TestCommandsRequireLogin(t *testing.T) {
	f := newFixture(t, bob)
	f.in.identity = &identity{}

	_, err := f.in.Parse(context.Background(), "/kick carol")
	require.True(t, errs.Is(err, errs.ErrUnauthorized))
}
