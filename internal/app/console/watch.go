package console

import (
	"sync"

	"chatline/internal/app/chat"
	"chatline/internal/pkg/errs"
)

// backlogSize is how many earlier messages are shown when a channel gains focus.
const backlogSize = 20

type line struct {
	author  string
	text    string
	pending bool
}

// watcher prints the focused channel's messages as they arrive.
type watcher struct {
	console *Console
	store   *chat.Store
	session *chat.Session

	// mu protects printed: the highest LocalID printed per channel.
	mu      sync.Mutex
	printed map[int64]uint64
}

// Watch prints messages of the focused channel as they arrive. It returns a function that
// stops watching.
func (c *Console) Watch(store *chat.Store, session *chat.Session) func() {
	w := &watcher{
		console: c,
		store:   store,
		session: session,
		printed: make(map[int64]uint64),
	}
	return store.Subscribe(w.onChange)
}

func (w *watcher) onChange(batch []chat.Change) {
	id, ok := w.session.SelectedID()
	if !ok {
		return
	}

	for _, c := range batch {
		if c.ChannelID != id {
			continue
		}
		switch c.Kind {
		case chat.FocusChanged, chat.ChannelAdded, chat.ChannelUpdated:
			w.show(id, true)
		case chat.MessageAdded:
			w.show(id, false)
		}
	}
}

// show prints unseen messages of channel id. With header set it prints the channel name
// and up to backlogSize earlier messages.
func (w *watcher) show(id int64, header bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		name  string
		lines []line
		last  = w.printed[id]
		max   = last
	)

	ok := w.store.ViewChannel(id, func(ch *chat.Channel) {
		name = ch.Name
		msgs := ch.Messages
		if header && len(msgs) > backlogSize {
			msgs = msgs[len(msgs)-backlogSize:]
		}
		for _, m := range msgs {
			if !header && m.LocalID <= last {
				continue
			}
			if m.LocalID > max {
				max = m.LocalID
			}
			author := "?"
			if m.Author != nil {
				author = m.Author.Nickname
			}
			lines = append(lines, line{author: author, text: m.Content, pending: m.Pending})
		}
	})
	if !ok {
		return
	}
	w.printed[id] = max

	if header {
		w.console.Info("--- " + errs.Bold(name) + " ---")
	}
	for _, l := range lines {
		w.console.Message(l.author, l.text, l.pending)
	}
}
