/*
Package transport implements the Event Transport: a persistent WebSocket connection to the
chat server that delivers pushed events in order and carries fire-and-forget outbound
messages and typing updates.

This file defines the Conn struct. A Conn outlives individual connections: Open dials a new
connection for the given credential (closing any previous one) and Close tears it down, while
the Events channel stays the same for the life of the Conn.
*/
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatline/internal/app/chat"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed to wait for a Pong message from the server.
	pongWait = 60 * time.Second

	// frequency at which the client sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the server.
	maxMessageSize = 1 << 20

	// capacity of the outbound queue.
	sendBuffer = 256
)

// Conn is the client side of the event stream.
type Conn struct {
	// url is the WebSocket endpoint, e.g. ws://host/socket.
	url string

	dialer *websocket.Dialer

	// events is delivered to in frame order and never closed.
	events chan chat.Event

	// mu protects link.
	mu   sync.Mutex
	link *link

	// onDrop is called when a connection ends without Close being called.
	onDrop func(error)

	logger zerolog.Logger
}

// link is one dialed connection and its pumps.
type link struct {
	ws   *websocket.Conn
	send chan []byte

	// done is closed to ask the pumps to stop.
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (l *link) stop() {
	l.closeOnce.Do(func() { close(l.done) })
}

// NewConn creates a Conn for url. buffer is the capacity of the events channel.
func NewConn(url string, buffer int) *Conn {
	return &Conn{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		events: make(chan chat.Event, buffer),
		logger: logx.Component("transport"),
	}
}

// OnDrop registers fn to be called when the server ends a connection.
func (c *Conn) OnDrop(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDrop = fn
}

// Events returns the inbound event channel.
func (c *Conn) Events() <-chan chat.Event {
	return c.events
}

// Connected reports whether a connection is open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// Open dials the server with token as bearer credential, replacing any open connection.
func (c *Conn) Open(ctx context.Context, token string) error {
	c.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, res, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if res != nil && res.StatusCode == http.StatusUnauthorized {
			return errs.Wrap(errs.ErrUnauthorized, err)
		}
		c.logger.Warn().Err(err).Str("url", c.url).Msg("Failed to open event stream")
		return errs.Wrap(errs.ErrTransport, err)
	}

	l := &link{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	c.link = l
	c.mu.Unlock()

	l.wg.Add(2)
	go c.readPump(l)
	go c.writePump(l)

	c.logger.Info().Str("url", c.url).Msg("Event stream connected")
	return nil
}

// Close closes the open connection, if any, and waits for its pumps to exit.
func (c *Conn) Close() {
	c.mu.Lock()
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l == nil {
		return
	}

	l.stop()
	l.wg.Wait()
	c.logger.Info().Msg("Event stream closed")
}

// detach forgets l if it is still the current link and reports whether it was.
func (c *Conn) detach(l *link) (bool, func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link != l {
		return false, nil
	}
	c.link = nil
	return true, c.onDrop
}

// readPump decodes frames and delivers events in order. Delivery blocks so that a slow
// consumer applies back-pressure instead of reordering or dropping events.
func (c *Conn) readPump(l *link) {
	var readErr error

	defer func() {
		l.stop()
		l.wg.Done()

		if dropped, onDrop := c.detach(l); dropped {
			c.logger.Warn().Err(readErr).Msg("Event stream dropped by server")
			if onDrop != nil {
				onDrop(readErr)
			}
		}
	}()

	l.ws.SetReadLimit(maxMessageSize)

	if err := l.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		readErr = err
		return
	}

	l.ws.SetPongHandler(func(string) error {
		return l.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (server close/going away)")
			}
			readErr = err
			return
		}

		ev, ok := c.decode(data)
		if !ok {
			continue
		}

		select {
		case c.events <- ev:
		case <-l.done:
			return
		}
	}
}

func (c *Conn) decode(data []byte) (chat.Event, bool) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Bytes("frame", data).Msg("Server sent invalid JSON")
		return nil, false
	}

	if frame.Type == "debug" {
		c.logger.Debug().RawJSON("payload", frame.Payload).Msg("Server debug frame")
		return nil, false
	}

	ev, err := chat.DecodeEvent(frame.Type, frame.Payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("msg_type", string(frame.Type)).Msg("Dropping undecodable frame")
		return nil, false
	}
	return ev, true
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *Conn) writePump(l *link) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit; this also unblocks readPump
		if err := l.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in writePump")
		}
		l.wg.Done()
	}()

	for {
		select {
		case frame := <-l.send:
			if !c.write(l, websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.write(l, websocket.PingMessage, nil) {
				return
			}

		case <-l.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.write(l, websocket.CloseMessage, msg)
			return
		}
	}
}

// write sends one message with a deadline. It returns false if the pump should terminate.
func (c *Conn) write(l *link, messageType int, data []byte) bool {
	if err := l.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := l.ws.WriteMessage(messageType, data); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Warn().Err(err).Int("message_type", messageType).Msg("Error writing frame")
		}
		return false
	}

	return true
}

// SendMessage transmits a channel message tagged with the sender's correlation id.
func (c *Conn) SendMessage(channelID int64, text, tempID string) error {
	return c.enqueue(chat.TypeChannelMessage, MessagePayload{Channel: channelID, Text: text, TempID: tempID})
}

// SendTyping transmits the composer text of a channel.
func (c *Conn) SendTyping(channelID int64, text string) error {
	return c.enqueue(chat.TypeUserTyping, TypingPayload{Channel: channelID, Text: text})
}

func (c *Conn) enqueue(t chat.EventType, payload any) error {
	frame, err := encodeFrame(t, payload)
	if err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}

	c.mu.Lock()
	l := c.link
	c.mu.Unlock()

	if l == nil {
		return errs.NewError(errs.ErrNotConnected)
	}

	select {
	case <-l.done:
		return errs.NewError(errs.ErrNotConnected)
	default:
	}

	select {
	case l.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(l.send)).Msg("Send queue full, dropping frame")
		return errs.NewError(errs.ErrTransport)
	}
}
