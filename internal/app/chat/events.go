package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"chatline/internal/app/user"
)

// EventType names a pushed server event on the wire.
type EventType string

const (
	TypeChannelMessage EventType = "channel_message"
	TypeUserTyping     EventType = "user_typing"
	TypeChannelAdd     EventType = "channel_add"
	TypeChannelRemove  EventType = "channel_remove"
	TypeUserAdd        EventType = "user_add"
	TypeUserRemove     EventType = "user_remove"
	TypeUserState      EventType = "user_state"
)

// Event is a decoded server event. The concrete types are listed in DecodeEvent.
type Event interface {
	Type() EventType
}

// ChannelMessage is a new message in a channel. TempID echoes the sender's correlation id.
type ChannelMessage struct {
	ID      int64  `json:"id"`
	Channel int64  `json:"channel"`
	Text    string `json:"text"`
	Author  int64  `json:"author"`
	TempID  string `json:"tempId,omitempty"`
}

// UserTyping is a typing update. An empty Text means the author stopped typing.
type UserTyping struct {
	Channel int64  `json:"channel"`
	Author  int64  `json:"author"`
	Text    string `json:"text"`
}

// ChannelAdd replaces or inserts a full channel.
type ChannelAdd struct {
	ChannelData
}

// ChannelRemove drops a channel from the local model.
type ChannelRemove struct {
	ChannelID int64
}

// UserAdd appends a user to a channel's member list.
type UserAdd struct {
	Channel int64     `json:"channel"`
	User    user.User `json:"user"`
}

// UserRemove removes a user, by id, from a channel's member list.
type UserRemove struct {
	Channel int64 `json:"channel"`
	User    int64 `json:"user"`
}

// UserState is a presence change for a user in every channel.
type UserState struct {
	User  int64      `json:"user"`
	State user.State `json:"state"`
}

func (ChannelMessage) Type() EventType { return TypeChannelMessage }
func (UserTyping) Type() EventType     { return TypeUserTyping }
func (ChannelAdd) Type() EventType     { return TypeChannelAdd }
func (ChannelRemove) Type() EventType  { return TypeChannelRemove }
func (UserAdd) Type() EventType        { return TypeUserAdd }
func (UserRemove) Type() EventType     { return TypeUserRemove }
func (UserState) Type() EventType      { return TypeUserState }

// ChannelData is a channel as the server sends it, either partially (list entries carry no
// members or messages) or fully (fetch results and channel_add).
type ChannelData struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	Kind       Kind                `json:"type"`
	Admin      AdminRef            `json:"admin"`
	Users      []user.User         `json:"users,omitempty"`
	Messages   []MessageData       `json:"messages,omitempty"`
	Restricted map[string][]string `json:"restrictedList,omitempty"`
}

// MessageData is a stored message as the server sends it.
type MessageData struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	User    struct {
		ID int64 `json:"id"`
	} `json:"user"`
}

// AdminRef is a channel admin sent either as a bare user id or as a user object.
type AdminRef struct {
	ID   int64
	User *user.User
}

// UnmarshalJSON accepts a number or an object.
func (a *AdminRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = AdminRef{}
		return nil
	}
	if b[0] == '{' {
		var u user.User
		if err := json.Unmarshal(b, &u); err != nil {
			return err
		}
		*a = AdminRef{ID: u.ID, User: &u}
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*a = AdminRef{ID: id}
	return nil
}

// MarshalJSON writes the object form when known and the id otherwise.
func (a AdminRef) MarshalJSON() ([]byte, error) {
	if a.User != nil {
		return json.Marshal(a.User)
	}
	return json.Marshal(a.ID)
}

// DecodeEvent decodes the payload of a pushed event of the given type.
func DecodeEvent(t EventType, payload json.RawMessage) (Event, error) {
	var (
		ev  Event
		err error
	)

	switch t {
	case TypeChannelMessage:
		var e ChannelMessage
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypeUserTyping:
		var e UserTyping
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypeChannelAdd:
		var e ChannelAdd
		err = json.Unmarshal(payload, &e.ChannelData)
		ev = e
	case TypeChannelRemove:
		var e ChannelRemove
		err = json.Unmarshal(payload, &e.ChannelID)
		ev = e
	case TypeUserAdd:
		var e UserAdd
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypeUserRemove:
		var e UserRemove
		err = json.Unmarshal(payload, &e)
		ev = e
	case TypeUserState:
		var e UserState
		err = json.Unmarshal(payload, &e)
		ev = e
	default:
		return nil, fmt.Errorf("unsupported event type %q", t)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return ev, nil
}

// JoinResult is the outcome of a join request.
type JoinResult struct {
	Message string
	Channel *ChannelData
}

// InviteResult is the outcome of an invite request.
type InviteResult struct {
	Message string
	User    *user.User
}

// Remote is the request/response half of the server API used by the Store and Session.
// Non-2xx responses come back as *errs.CustomError values.
type Remote interface {
	FetchChannel(ctx context.Context, id int64) (*ChannelData, error)
	JoinChannel(ctx context.Context, name string, kind Kind) (JoinResult, error)
	QuitChannel(ctx context.Context, id int64) (string, error)
	CancelMembership(ctx context.Context, id int64) (string, error)
	Invite(ctx context.Context, channelID int64, nickname string) (InviteResult, error)
	Revoke(ctx context.Context, channelID int64, nickname string) (string, error)
	Kick(ctx context.Context, channelID int64, nickname string) (string, error)
}

// Sender is the push half of the event transport. Sends are fire-and-forget.
type Sender interface {
	SendMessage(channelID int64, text, tempID string) error
	SendTyping(channelID int64, text string) error
}

// Identity answers questions about the authenticated user.
type Identity interface {
	Current() *user.User
	Preference() user.NotificationPreference
	CheckMention(text string) bool
}

// Notifier raises user-visible notifications for incoming messages.
type Notifier interface {
	// Permitted reports whether the user allowed notifications.
	Permitted() bool

	// Hidden reports whether the application is not in the foreground.
	Hidden() bool

	Notify(title, body string)
}
