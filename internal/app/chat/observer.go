package chat

import (
	"sync"
)

// ChangeKind identifies what part of the model a Change touched.
type ChangeKind int

const (
	ChannelAdded ChangeKind = iota
	ChannelUpdated
	ChannelRemoved
	MessageAdded
	MessageConfirmed
	TypingChanged
	MembersChanged
	PresenceChanged
	FocusChanged
)

var changeKindNames = map[ChangeKind]string{
	ChannelAdded:     "channel_added",
	ChannelUpdated:   "channel_updated",
	ChannelRemoved:   "channel_removed",
	MessageAdded:     "message_added",
	MessageConfirmed: "message_confirmed",
	TypingChanged:    "typing_changed",
	MembersChanged:   "members_changed",
	PresenceChanged:  "presence_changed",
	FocusChanged:     "focus_changed",
}

func (k ChangeKind) String() string {
	if name, ok := changeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Change is a single model mutation. ChannelID is 0 for changes that are not channel-scoped.
type Change struct {
	Kind      ChangeKind
	ChannelID int64
}

// Observer receives one batch of changes per applied event or tick.
type Observer func(batch []Change)

// observers is a registry of change subscribers.
type observers struct {
	mu   sync.RWMutex
	next int
	subs map[int]Observer
}

func (o *observers) subscribe(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subs == nil {
		o.subs = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.subs[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// emit delivers batch to every subscriber. It must not be called with the store lock held.
func (o *observers) emit(batch []Change) {
	if len(batch) == 0 {
		return
	}

	o.mu.RLock()
	subs := make([]Observer, 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.RUnlock()

	for _, fn := range subs {
		fn(batch)
	}
}
