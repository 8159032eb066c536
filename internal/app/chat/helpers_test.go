package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = user.User{ID: 1, Name: "Alice", Nickname: "alice", State: user.StateOnline}
	bob   = user.User{ID: 2, Name: "Bob", Nickname: "bob", State: user.StateOnline}
	carol = user.User{ID: 3, Name: "Carol", Nickname: "carol", State: user.StateOnline}
	dave  = user.User{ID: 4, Name: "Dave", Nickname: "dave", State: user.StateOnline}
	erin  = user.User{ID: 5, Name: "Erin", Nickname: "erin", State: user.StateOnline}
)

const (
	generalID = int64(10)
	secretID  = int64(20)
)

func general() ChannelData {
	a := alice
	return ChannelData{
		ID:    generalID,
		Name:  "general",
		Kind:  KindPublic,
		Admin: AdminRef{ID: a.ID, User: &a},
		Users: []user.User{alice, bob, carol, dave},
	}
}

func secret() ChannelData {
	a := alice
	return ChannelData{
		ID:    secretID,
		Name:  "secret",
		Kind:  KindPrivate,
		Admin: AdminRef{ID: a.ID, User: &a},
		Users: []user.User{alice, bob},
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeIdentity struct {
	me   *user.User
	pref user.NotificationPreference
}

func (f *fakeIdentity) Current() *user.User                     { return f.me }
func (f *fakeIdentity) Preference() user.NotificationPreference { return f.pref }
func (f *fakeIdentity) CheckMention(text string) bool {
	return f.me != nil && strings.Contains(text, "@"+f.me.Nickname)
}

type notification struct{ title, body string }

type fakeNotifier struct {
	permitted bool
	hidden    bool
	sent      []notification
}

func (f *fakeNotifier) Permitted() bool { return f.permitted }
func (f *fakeNotifier) Hidden() bool    { return f.hidden }
func (f *fakeNotifier) Notify(title, body string) {
	f.sent = append(f.sent, notification{title, body})
}

type sentMessage struct {
	channel      int64
	text, tempID string
}

type sentTyping struct {
	channel int64
	text    string
}

type fakeSender struct {
	err      error
	messages []sentMessage
	typing   []sentTyping
}

func (f *fakeSender) SendMessage(channelID int64, text, tempID string) error {
	f.messages = append(f.messages, sentMessage{channelID, text, tempID})
	return f.err
}

func (f *fakeSender) SendTyping(channelID int64, text string) error {
	f.typing = append(f.typing, sentTyping{channelID, text})
	return f.err
}

// fakeRemote accepts every request unless a hook says otherwise.
type fakeRemote struct {
	channels map[int64]ChannelData
	calls    []string

	onFetch  func(id int64)
	onKick   func()
	onInvite func()
	onRevoke func()

	kickErr   error
	inviteErr error
	joinRes   JoinResult
	joinErr   error
	invited   *user.User
}

func (f *fakeRemote) FetchChannel(ctx context.Context, id int64) (*ChannelData, error) {
	f.calls = append(f.calls, "fetch")
	if f.onFetch != nil {
		f.onFetch(id)
	}
	data, ok := f.channels[id]
	if !ok {
		return nil, errs.NewError(errs.ErrChannelNotFound)
	}
	return &data, nil
}

func (f *fakeRemote) JoinChannel(ctx context.Context, name string, kind Kind) (JoinResult, error) {
	f.calls = append(f.calls, "join "+name+" "+string(kind))
	return f.joinRes, f.joinErr
}

func (f *fakeRemote) QuitChannel(ctx context.Context, id int64) (string, error) {
	f.calls = append(f.calls, "quit")
	return "", nil
}

func (f *fakeRemote) CancelMembership(ctx context.Context, id int64) (string, error) {
	f.calls = append(f.calls, "cancel")
	return "", nil
}

func (f *fakeRemote) Invite(ctx context.Context, channelID int64, nickname string) (InviteResult, error) {
	f.calls = append(f.calls, "invite "+nickname)
	if f.onInvite != nil {
		f.onInvite()
	}
	return InviteResult{User: f.invited}, f.inviteErr
}

func (f *fakeRemote) Revoke(ctx context.Context, channelID int64, nickname string) (string, error) {
	f.calls = append(f.calls, "revoke "+nickname)
	if f.onRevoke != nil {
		f.onRevoke()
	}
	return "", nil
}

func (f *fakeRemote) Kick(ctx context.Context, channelID int64, nickname string) (string, error) {
	f.calls = append(f.calls, "kick "+nickname)
	if f.onKick != nil {
		f.onKick()
	}
	return "", f.kickErr
}

type fixture struct {
	store    *Store
	session  *Session
	remote   *fakeRemote
	sender   *fakeSender
	identity *fakeIdentity
	notifier *fakeNotifier
	clock    *fakeClock
	changes  *[]Change
}

// newFixture builds a store holding general and secret, logged in as me, with general focused.
func newFixture(t *testing.T, me user.User) *fixture {
	t.Helper()

	f := &fixture{
		remote:   &fakeRemote{channels: map[int64]ChannelData{generalID: general(), secretID: secret()}},
		sender:   &fakeSender{},
		identity: &fakeIdentity{me: &me, pref: user.NotifyAll},
		notifier: &fakeNotifier{permitted: true},
		clock:    newFakeClock(),
	}

	f.store = NewStore(f.remote, f.identity, f.notifier, Options{Now: f.clock.Now})
	f.store.Apply(ChannelAdd{general()})
	f.store.Apply(ChannelAdd{secret()})

	f.session = NewSession(f.store, f.remote, f.sender, f.identity, 0, 0)
	t.Cleanup(f.session.Close)
	f.session.Select(generalID)

	var changes []Change
	f.changes = &changes
	unsubscribe := f.store.Subscribe(func(batch []Change) { changes = append(changes, batch...) })
	t.Cleanup(unsubscribe)

	f.remote.calls = nil
	return f
}

func (f *fixture) channel(t *testing.T, id int64) *Channel {
	t.Helper()
	ch, ok := f.store.Channel(id)
	if !ok {
		t.Fatalf("channel %d not cached", id)
	}
	return ch
}

func nicknames(members []*user.User) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Nickname)
	}
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	if !errs.Is(err, code) {
		t.Fatalf("expected error code %d, got %v", code, err)
	}
}
