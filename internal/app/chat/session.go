package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/limiter"
	"chatline/internal/pkg/logx"
	"chatline/internal/pkg/randx"
)

const (
	// DefaultTypingRate is the number of outbound typing updates allowed per second per channel.
	DefaultTypingRate = rate.Limit(4)

	// DefaultTypingBurst is the burst size of the outbound typing limiter.
	DefaultTypingBurst = 2
)

// Session is the Channel Session: it tracks the focused channel and applies moderation
// rules to it. The focus is held as a channel id and re-resolved on every use, so a channel
// replaced or removed by an event is never acted on through a stale reference.
type Session struct {
	store    *Store
	remote   Remote
	sender   Sender
	identity Identity

	// typing throttles outbound typing updates per channel.
	typing *limiter.Keyed[int64]

	// mu protects focus, focused and epoch.
	mu      sync.Mutex
	focus   int64
	focused bool

	// epoch increments on every focus change.
	epoch uint64

	unsubscribe func()

	logger zerolog.Logger
}

// NewSession creates a Session over store. A zero typingRate selects the defaults.
func NewSession(store *Store, remote Remote, sender Sender, identity Identity, typingRate rate.Limit, typingBurst int) *Session {
	if typingRate <= 0 {
		typingRate = DefaultTypingRate
	}
	if typingBurst <= 0 {
		typingBurst = DefaultTypingBurst
	}

	s := &Session{
		store:    store,
		remote:   remote,
		sender:   sender,
		identity: identity,
		typing:   limiter.NewKeyed[int64](typingRate, typingBurst),
		logger:   logx.Component("session"),
	}
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// Close releases the session's resources.
func (s *Session) Close() {
	s.unsubscribe()
	s.typing.Stop()
}

// onChange clears the focus when the focused channel is removed.
func (s *Session) onChange(batch []Change) {
	for _, c := range batch {
		if c.Kind != ChannelRemoved {
			continue
		}

		s.mu.Lock()
		cleared := s.focused && s.focus == c.ChannelID
		if cleared {
			s.focused = false
			s.epoch++
		}
		s.mu.Unlock()

		if cleared {
			s.logger.Info().Int64("channel_id", c.ChannelID).Msg("Focused channel removed, focus cleared")
			s.store.observers.emit([]Change{{Kind: FocusChanged}})
		}
	}
}

// Select focuses channel id.
func (s *Session) Select(id int64) {
	s.mu.Lock()
	s.focus, s.focused = id, true
	s.epoch++
	s.mu.Unlock()

	s.store.observers.emit([]Change{{Kind: FocusChanged, ChannelID: id}})
}

// Clear removes the focus.
func (s *Session) Clear() {
	s.mu.Lock()
	changed := s.focused
	s.focused = false
	s.epoch++
	s.mu.Unlock()

	if changed {
		s.store.observers.emit([]Change{{Kind: FocusChanged}})
	}
}

// SelectedID returns the focused channel id.
func (s *Session) SelectedID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus, s.focused
}

// Selected returns the focused channel, or nil when nothing is focused or the focused
// channel is no longer cached.
func (s *Session) Selected() *Channel {
	id, ok := s.SelectedID()
	if !ok {
		return nil
	}
	ch, ok := s.store.Channel(id)
	if !ok {
		return nil
	}
	return ch
}

func (s *Session) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Load clears the focus, resolves channel id and focuses it unless another selection was
// made while it was loading.
func (s *Session) Load(ctx context.Context, id int64) (*Channel, error) {
	s.Clear()
	epoch := s.currentEpoch()

	ch, err := s.store.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	stale := s.epoch != epoch
	if !stale {
		s.focus, s.focused = id, true
		s.epoch++
	}
	s.mu.Unlock()

	if stale {
		s.logger.Debug().Int64("channel_id", id).Msg("Selection changed while loading, not focusing")
		return ch, nil
	}

	s.store.observers.emit([]Change{{Kind: FocusChanged, ChannelID: id}})
	return ch, nil
}

// selected returns the focused channel id or ErrNoChannelSelected.
func (s *Session) selected() (int64, error) {
	id, ok := s.SelectedID()
	if !ok {
		return 0, errs.NewError(errs.ErrNoChannelSelected)
	}
	return id, nil
}

// IsMember reports whether nickname is a member of the focused channel.
func (s *Session) IsMember(nickname string) bool {
	return s.query(func(ch *Channel) bool { return ch.IsMember(nickname) })
}

// IsMemberBanned reports whether nickname is banned from the focused channel.
func (s *Session) IsMemberBanned(nickname string) bool {
	return s.query(func(ch *Channel) bool { return ch.IsBanned(nickname) })
}

// IsMemberAdmin reports whether nickname is the focused channel's admin.
func (s *Session) IsMemberAdmin(nickname string) bool {
	return s.query(func(ch *Channel) bool { return ch.IsAdmin(nickname) })
}

// IsPublic reports whether the focused channel is public.
func (s *Session) IsPublic() bool {
	return s.query(func(ch *Channel) bool { return ch.Kind == KindPublic })
}

func (s *Session) query(fn func(ch *Channel) bool) bool {
	id, ok := s.SelectedID()
	if !ok {
		return false
	}
	var result bool
	_ = s.store.read(id, func(ch *Channel) error {
		result = fn(ch)
		return nil
	})
	return result
}

// BanMember records initiator's ban vote against target in the focused channel, asking the
// server first. The target is removed once the vote threshold is reached.
func (s *Session) BanMember(ctx context.Context, initiator *user.User, target string) (string, error) {
	id, err := s.selected()
	if err != nil {
		return "", err
	}

	var name string
	err = s.store.read(id, func(ch *Channel) error {
		name = ch.Name
		return ch.checkBan(initiator, target)
	})
	if err != nil {
		return "", err
	}

	msg, err := s.remote.Kick(ctx, id, target)
	if err != nil {
		return "", err
	}

	var banned bool
	err = s.store.write(id, MembersChanged, func(ch *Channel) error {
		var err error
		banned, err = ch.applyBan(initiator, target)
		return err
	})
	if err != nil {
		return "", err
	}

	s.logger.Info().Int64("channel_id", id).Str("target", target).Bool("banned", banned).
		Msg("Ban vote recorded")

	if msg != "" {
		return msg, nil
	}
	if banned {
		return "User " + errs.Bold(target) + " was banned from channel " + errs.Bold(name), nil
	}
	return "Vote to ban " + errs.Bold(target) + " recorded", nil
}

// InviteMember invites target to the focused channel. Inviting clears target's ban ledger.
func (s *Session) InviteMember(ctx context.Context, initiator *user.User, target string) (string, error) {
	id, err := s.selected()
	if err != nil {
		return "", err
	}

	var name string
	err = s.store.read(id, func(ch *Channel) error {
		name = ch.Name
		return ch.checkInvite(initiator, target)
	})
	if err != nil {
		return "", err
	}

	res, err := s.remote.Invite(ctx, id, target)
	if err != nil {
		return "", err
	}

	err = s.store.write(id, MembersChanged, func(ch *Channel) error {
		ch.Restricted[target] = []string{}
		// without a user object the server's user_add event adds the member
		if res.User != nil && res.User.ID != 0 {
			ch.addMember(s.store.adoptLocked(res.User))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if res.Message != "" {
		return res.Message, nil
	}
	return "Inviting user " + errs.Bold(target) + " to channel " + errs.Bold(name), nil
}

// RevokeMember removes target from the focused channel after the server accepts it.
func (s *Session) RevokeMember(ctx context.Context, target string) (string, error) {
	id, err := s.selected()
	if err != nil {
		return "", err
	}

	var name string
	err = s.store.read(id, func(ch *Channel) error {
		name = ch.Name
		if !ch.IsMember(target) {
			return errs.NewError(errs.ErrTargetNotMember, target)
		}
		if ch.IsAdmin(target) {
			return errs.NewError(errs.ErrCannotRemoveAdmin)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	msg, err := s.remote.Revoke(ctx, id, target)
	if err != nil {
		return "", err
	}

	err = s.store.write(id, MembersChanged, func(ch *Channel) error {
		ch.removeMember(target)
		return nil
	})
	if err != nil {
		return "", err
	}

	if msg != "" {
		return msg, nil
	}
	return "Removing user " + errs.Bold(target) + " from channel " + errs.Bold(name), nil
}

// RemoveUser removes every member called nickname from the focused channel.
func (s *Session) RemoveUser(nickname string) bool {
	id, ok := s.SelectedID()
	if !ok {
		return false
	}
	var removed bool
	_ = s.store.write(id, MembersChanged, func(ch *Channel) error {
		removed = ch.removeMember(nickname)
		return nil
	})
	return removed
}

// Leave cancels the current user's membership of the focused channel and clears the focus.
func (s *Session) Leave(ctx context.Context, self *user.User) (string, error) {
	id, err := s.selected()
	if err != nil {
		return "", err
	}

	var name string
	if err := s.store.read(id, func(ch *Channel) error {
		name = ch.Name
		return nil
	}); err != nil {
		return "", err
	}

	msg, err := s.remote.CancelMembership(ctx, id)
	if err != nil {
		return "", err
	}

	err = s.store.write(id, MembersChanged, func(ch *Channel) error {
		ch.removeMember(self.Nickname)
		return nil
	})
	if err != nil && !errs.Is(err, errs.ErrChannelNotFound) {
		return "", err
	}

	s.Clear()

	if msg != "" {
		return msg, nil
	}
	return "Leaving channel " + errs.Bold(name), nil
}

// SendMessage appends an optimistic message to the focused channel and transmits it with a
// correlation id. A failed send leaves the message pending.
func (s *Session) SendMessage(text string) (*Message, error) {
	id, err := s.selected()
	if err != nil {
		return nil, err
	}

	var me *user.User
	if s.identity != nil {
		me = s.identity.Current()
	}
	if me == nil {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	correlationID := randx.CorrelationID()
	msg, err := s.store.appendPending(id, me, text, correlationID)
	if err != nil {
		return nil, err
	}

	if err := s.sender.SendMessage(id, text, correlationID); err != nil {
		s.logger.Warn().Err(err).Int64("channel_id", id).Msg("Failed to send message")
		return msg, err
	}
	return msg, nil
}

// UpdateTyping sends the composer text of the focused channel. Non-empty updates are
// throttled per channel; an empty text stops the indicator and is always sent.
func (s *Session) UpdateTyping(text string) error {
	id, err := s.selected()
	if err != nil {
		return err
	}

	if text != "" && !s.typing.Allow(id) {
		return nil
	}
	return s.sender.SendTyping(id, text)
}
