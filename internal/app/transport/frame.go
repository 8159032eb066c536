package transport

import (
	"encoding/json"

	"chatline/internal/app/chat"
)

// Frame is the envelope of every message on the event stream.
type Frame struct {
	Type    chat.EventType  `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessagePayload is the outbound channel_message payload.
type MessagePayload struct {
	Channel int64  `json:"channel"`
	Text    string `json:"text"`
	TempID  string `json:"tempId,omitempty"`
}

// TypingPayload is the outbound user_typing payload. An empty Text stops the indicator.
type TypingPayload struct {
	Channel int64  `json:"channel"`
	Text    string `json:"text"`
}

// encodeFrame marshals payload into a frame of type t.
func encodeFrame(t chat.EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: t, Payload: raw})
}
