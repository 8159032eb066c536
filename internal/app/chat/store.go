package chat

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/logx"
)

const (
	// DefaultTypingTTL is how long a typing indicator survives without a refresh.
	DefaultTypingTTL = 2 * time.Second

	// DefaultTypingTick is the period of the typing eviction sweep.
	DefaultTypingTick = 100 * time.Millisecond
)

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	TypingTTL  time.Duration
	TypingTick time.Duration

	// Now is the store's clock.
	Now func() time.Time
}

// Store is the Channel Store: it owns every channel known to the client and reconciles
// them against server events. Events are applied one at a time in delivery order.
type Store struct {
	// mu protects channels, users and seq, and every Channel reachable from them.
	mu sync.RWMutex

	channels map[int64]*Channel

	// users is the identity map: exactly one *user.User per id across all channels.
	users map[int64]*user.User

	seq uint64

	remote   Remote
	identity Identity
	notifier Notifier

	typingTTL  time.Duration
	typingTick time.Duration
	now        func() time.Time

	observers observers

	// used to signal Run to stop.
	stopChan chan struct{}
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewStore creates an empty Store. notifier may be nil.
func NewStore(remote Remote, identity Identity, notifier Notifier, opts Options) *Store {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}
	if opts.TypingTick <= 0 {
		opts.TypingTick = DefaultTypingTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		channels:   make(map[int64]*Channel),
		users:      make(map[int64]*user.User),
		remote:     remote,
		identity:   identity,
		notifier:   notifier,
		typingTTL:  opts.TypingTTL,
		typingTick: opts.TypingTick,
		now:        opts.Now,
		stopChan:   make(chan struct{}),
		logger:     logx.Component("store"),
	}
}

// Subscribe registers fn for change batches and returns a function that unregisters it.
// fn runs on the goroutine that made the change and must not block.
func (s *Store) Subscribe(fn Observer) func() {
	return s.observers.subscribe(fn)
}

// Stop terminates Run. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Debug().Msg("Received stop signal.")
		close(s.stopChan)
	})
}

// Run applies events in delivery order and evicts stale typing indicators on every tick,
// until ctx is cancelled or Stop is called. A closed events channel stops event delivery
// but not the eviction tick.
func (s *Store) Run(ctx context.Context, events <-chan Event) error {
	ticker := time.NewTicker(s.typingTick)

	defer func() {
		ticker.Stop()
		s.logger.Debug().Msg("Store Run loop finished.")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopChan:
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.Apply(ev)

		case <-ticker.C:
			s.EvictTyping()
		}
	}
}

// Channel returns the cached channel with the given id. The returned value is live; read it
// from another goroutine only inside View.
func (s *Store) Channel(id int64) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	return ch, ok
}

// ChannelByName returns the first cached channel with the given name.
func (s *Store) ChannelByName(name string) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return nil, false
}

// Channels returns the cached channels ordered by id.
func (s *Store) Channels() []*Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		list = append(list, ch)
	}
	slices.SortFunc(list, func(a, b *Channel) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return list
}

// View runs fn with a read lock held on the store.
func (s *Store) View(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// ViewChannel runs fn against channel id with a read lock held and reports whether the
// channel exists.
func (s *Store) ViewChannel(id int64, fn func(ch *Channel)) bool {
	return s.read(id, func(ch *Channel) error {
		fn(ch)
		return nil
	}) == nil
}

// read runs fn against channel id under the read lock.
func (s *Store) read(id int64, fn func(ch *Channel) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return errs.NewError(errs.ErrChannelNotFound)
	}
	return fn(ch)
}

// write runs fn against channel id under the write lock and emits kind on success.
func (s *Store) write(id int64, kind ChangeKind, fn func(ch *Channel) error) error {
	s.mu.Lock()
	ch, ok := s.channels[id]
	if !ok {
		s.mu.Unlock()
		return errs.NewError(errs.ErrChannelNotFound)
	}
	err := fn(ch)
	s.mu.Unlock()

	if err == nil {
		s.observers.emit([]Change{{Kind: kind, ChannelID: id}})
	}
	return err
}

// Load seeds the store with partial channel entries, replacing anything cached.
func (s *Store) Load(list []ChannelData) {
	batch := make([]Change, 0, len(s.channels)+len(list))

	s.mu.Lock()
	for id := range s.channels {
		batch = append(batch, Change{Kind: ChannelRemoved, ChannelID: id})
	}
	s.channels = make(map[int64]*Channel, len(list))
	s.users = make(map[int64]*user.User)
	for i := range list {
		ch := s.buildLocked(&list[i])
		s.channels[ch.ID] = ch
		batch = append(batch, Change{Kind: ChannelAdded, ChannelID: ch.ID})
	}
	s.mu.Unlock()

	s.logger.Info().Int("channels", len(list)).Msg("Channel list loaded")
	s.observers.emit(batch)
}

// Reset drops every channel.
func (s *Store) Reset() {
	s.Load(nil)
}

// GetChannel resolves a channel, fetching members and messages when only a partial entry
// is cached or the id is unknown. A partial entry removed while the fetch was in flight is
// reported as not found.
func (s *Store) GetChannel(ctx context.Context, id int64) (*Channel, error) {
	s.mu.RLock()
	ch, cached := s.channels[id]
	hydrated := cached && ch.hydrated
	s.mu.RUnlock()

	if hydrated {
		return ch, nil
	}

	data, err := s.remote.FetchChannel(ctx, id)
	if err != nil {
		return nil, err
	}

	var kind ChangeKind

	s.mu.Lock()
	cur, present := s.channels[id]
	switch {
	case cached && !present:
		s.mu.Unlock()
		s.logger.Debug().Int64("channel_id", id).Msg("Channel removed while fetching, discarding result")
		return nil, errs.NewError(errs.ErrChannelNotFound)

	case !present:
		cur = s.buildLocked(data)
		cur.hydrated = true
		s.channels[id] = cur
		kind = ChannelAdded

	default:
		s.hydrateLocked(cur, data)
		kind = ChannelUpdated
	}
	s.mu.Unlock()

	s.observers.emit([]Change{{Kind: kind, ChannelID: id}})
	return cur, nil
}

// JoinChannel relays a join-or-create request. The server decides the outcome; a channel
// returned with the response is inserted.
func (s *Store) JoinChannel(ctx context.Context, name string, kind Kind) (JoinResult, error) {
	res, err := s.remote.JoinChannel(ctx, name, kind)
	if err != nil {
		return JoinResult{}, err
	}
	if res.Channel != nil {
		s.upsert(res.Channel)
	}
	return res, nil
}

// QuitChannel asks the server to delete channel id and drops it locally on success.
// A known channel whose admin is not the current user is rejected without a request.
func (s *Store) QuitChannel(ctx context.Context, id int64) (string, error) {
	var me *user.User
	if s.identity != nil {
		me = s.identity.Current()
	}

	s.mu.RLock()
	ch, ok := s.channels[id]
	notAdmin := ok && (me == nil || !ch.isAdminID(me.ID))
	s.mu.RUnlock()

	if notAdmin {
		return "", errs.NewError(errs.ErrNotChannelAdmin)
	}

	msg, err := s.remote.QuitChannel(ctx, id)
	if err != nil {
		return "", err
	}

	s.remove(id)
	return msg, nil
}

// Apply reconciles a single server event with the local model.
func (s *Store) Apply(ev Event) {
	switch e := ev.(type) {
	case ChannelMessage:
		s.applyMessage(e)
	case UserTyping:
		s.applyTyping(e)
	case ChannelAdd:
		s.upsert(&e.ChannelData)
	case ChannelRemove:
		s.remove(e.ChannelID)
	case UserAdd:
		s.applyUserAdd(e)
	case UserRemove:
		s.applyUserRemove(e)
	case UserState:
		s.applyUserState(e)
	default:
		s.logger.Warn().Str("event_type", string(ev.Type())).Msg("Dropping unsupported event")
	}
}

func (s *Store) applyMessage(e ChannelMessage) {
	s.mu.Lock()
	ch, ok := s.channels[e.Channel]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn().Int64("channel_id", e.Channel).Int64("author_id", e.Author).
			Msg("Received message on unknown channel")
		return
	}

	author := ch.MemberByID(e.Author)
	if author == nil {
		s.mu.Unlock()
		s.logger.Warn().Int64("channel_id", e.Channel).Int64("author_id", e.Author).
			Msg("Received message from unknown user")
		return
	}

	if m := ch.pending(e.TempID); m != nil {
		m.ID = e.ID
		m.Content = e.Text
		m.Pending = false
		s.mu.Unlock()
		s.observers.emit([]Change{{Kind: MessageConfirmed, ChannelID: e.Channel}})
		return
	}

	if ch.hasMessage(e.ID) {
		s.mu.Unlock()
		s.logger.Debug().Int64("channel_id", e.Channel).Int64("message_id", e.ID).
			Msg("Dropping duplicate message")
		return
	}

	ch.Messages = append(ch.Messages, &Message{
		ID:      e.ID,
		LocalID: s.nextSeqLocked(),
		Author:  author,
		Content: e.Text,
	})
	title := author.DisplayName()
	s.mu.Unlock()

	s.observers.emit([]Change{{Kind: MessageAdded, ChannelID: e.Channel}})
	s.notify(title, e.Text)
}

// notify raises a notification when the host is hidden, notifications are permitted and the
// user's preference matches the text.
func (s *Store) notify(title, body string) {
	if s.notifier == nil || s.identity == nil {
		return
	}
	if !s.notifier.Permitted() || !s.notifier.Hidden() {
		return
	}

	switch s.identity.Preference() {
	case user.NotifyAll:
	case user.NotifyMentioned:
		if !s.identity.CheckMention(body) {
			return
		}
	default:
		return
	}

	s.notifier.Notify(title, body)
}

func (s *Store) applyTyping(e UserTyping) {
	if s.identity != nil {
		if me := s.identity.Current(); me != nil && me.ID == e.Author {
			return
		}
	}

	s.mu.Lock()
	ch, ok := s.channels[e.Channel]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn().Int64("channel_id", e.Channel).Int64("author_id", e.Author).
			Msg("Received typing update on unknown channel")
		return
	}

	author := ch.MemberByID(e.Author)
	if author == nil {
		s.mu.Unlock()
		s.logger.Warn().Int64("channel_id", e.Channel).Int64("author_id", e.Author).
			Msg("Received typing update from unknown user")
		return
	}

	if e.Text == "" {
		delete(ch.Typing, author.ID)
	} else {
		ch.Typing[author.ID] = &Typing{User: author, Text: e.Text, UpdatedAt: s.now()}
	}
	s.mu.Unlock()

	s.observers.emit([]Change{{Kind: TypingChanged, ChannelID: e.Channel}})
}

// EvictTyping removes typing indicators older than the TTL and returns how many it removed.
func (s *Store) EvictTyping() int {
	now := s.now()
	removed := 0
	var batch []Change

	s.mu.Lock()
	for id, ch := range s.channels {
		n := len(ch.Typing)
		for uid, t := range ch.Typing {
			if now.Sub(t.UpdatedAt) > s.typingTTL {
				delete(ch.Typing, uid)
			}
		}
		if d := n - len(ch.Typing); d > 0 {
			removed += d
			batch = append(batch, Change{Kind: TypingChanged, ChannelID: id})
		}
	}
	s.mu.Unlock()

	s.observers.emit(batch)
	return removed
}

func (s *Store) applyUserAdd(e UserAdd) {
	s.mu.Lock()
	ch, ok := s.channels[e.Channel]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn().Int64("channel_id", e.Channel).Int64("user_id", e.User.ID).
			Msg("Received user add on unknown channel")
		return
	}
	added := ch.addMember(s.adoptLocked(&e.User))
	s.mu.Unlock()

	if added {
		s.observers.emit([]Change{{Kind: MembersChanged, ChannelID: e.Channel}})
	}
}

func (s *Store) applyUserRemove(e UserRemove) {
	s.mu.Lock()
	ch, ok := s.channels[e.Channel]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn().Int64("channel_id", e.Channel).Int64("user_id", e.User).
			Msg("Received user remove on unknown channel")
		return
	}
	removed := ch.removeMemberByID(e.User)
	s.mu.Unlock()

	if removed {
		s.observers.emit([]Change{{Kind: MembersChanged, ChannelID: e.Channel}})
	}
}

func (s *Store) applyUserState(e UserState) {
	var batch []Change

	s.mu.Lock()
	if u, ok := s.users[e.User]; ok {
		u.State = e.State
	}
	for id, ch := range s.channels {
		if m := ch.MemberByID(e.User); m != nil {
			m.State = e.State
			batch = append(batch, Change{Kind: PresenceChanged, ChannelID: id})
		}
	}
	s.mu.Unlock()

	s.observers.emit(batch)
}

// upsert replaces or inserts a whole channel (last write wins).
func (s *Store) upsert(data *ChannelData) {
	s.mu.Lock()
	_, existed := s.channels[data.ID]
	ch := s.buildLocked(data)
	ch.hydrated = data.Users != nil
	s.channels[ch.ID] = ch
	s.mu.Unlock()

	kind := ChannelAdded
	if existed {
		kind = ChannelUpdated
	}
	s.observers.emit([]Change{{Kind: kind, ChannelID: data.ID}})
}

// remove drops a channel and everything it holds.
func (s *Store) remove(id int64) {
	s.mu.Lock()
	_, ok := s.channels[id]
	delete(s.channels, id)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug().Int64("channel_id", id).Msg("Remove for unknown channel ignored")
		return
	}
	s.observers.emit([]Change{{Kind: ChannelRemoved, ChannelID: id}})
}

// appendPending appends an optimistic message by author to channel id.
func (s *Store) appendPending(id int64, author *user.User, text, correlationID string) (*Message, error) {
	var msg *Message
	err := s.write(id, MessageAdded, func(ch *Channel) error {
		a := ch.MemberByID(author.ID)
		if a == nil {
			a = s.adoptLocked(author)
		}
		msg = &Message{
			LocalID:       s.nextSeqLocked(),
			CorrelationID: correlationID,
			Author:        a,
			Content:       text,
			Pending:       true,
		}
		ch.Messages = append(ch.Messages, msg)
		return nil
	})
	return msg, err
}

// buildLocked creates a channel from server data, sharing user objects through the identity map.
func (s *Store) buildLocked(data *ChannelData) *Channel {
	ch := newChannel(data.ID, data.Name, data.Kind)
	if data.Admin.User != nil {
		ch.Admin = s.adoptLocked(data.Admin.User)
	} else if u, ok := s.users[data.Admin.ID]; ok {
		ch.Admin = u
	} else if data.Admin.ID != 0 {
		ch.Admin = s.adoptLocked(&user.User{ID: data.Admin.ID})
	}
	s.fillLocked(ch, data)
	return ch
}

// hydrateLocked replaces members and messages of a cached channel with fetched data.
func (s *Store) hydrateLocked(ch *Channel, data *ChannelData) {
	if data.Name != "" {
		ch.Name = data.Name
	}
	if data.Kind != "" {
		ch.Kind = data.Kind
	}
	if data.Admin.User != nil {
		ch.Admin = s.adoptLocked(data.Admin.User)
	}
	ch.Members = nil
	ch.Messages = nil
	ch.Restricted = make(map[string][]string)
	s.fillLocked(ch, data)
	ch.hydrated = true
}

func (s *Store) fillLocked(ch *Channel, data *ChannelData) {
	for i := range data.Users {
		ch.addMember(s.adoptLocked(&data.Users[i]))
	}
	ch.ensureAdminMember()

	for _, md := range data.Messages {
		author := ch.MemberByID(md.User.ID)
		if author == nil {
			s.logger.Warn().Int64("channel_id", ch.ID).Int64("message_id", md.ID).
				Msg("Fetched message from unknown user, skipping")
			continue
		}
		if ch.hasMessage(md.ID) {
			continue
		}
		ch.Messages = append(ch.Messages, &Message{
			ID:      md.ID,
			LocalID: s.nextSeqLocked(),
			Author:  author,
			Content: md.Content,
		})
	}

	for nick, voters := range data.Restricted {
		ch.Restricted[nick] = slices.Clone(voters)
	}
}

// adoptLocked returns the shared user object for u.ID, refreshing its profile from u.
func (s *Store) adoptLocked(u *user.User) *user.User {
	if cur, ok := s.users[u.ID]; ok {
		if u.Nickname != "" {
			cur.Overwrite(u)
		}
		return cur
	}
	cp := *u
	cp.Password = ""
	s.users[u.ID] = &cp
	return &cp
}

func (s *Store) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}
