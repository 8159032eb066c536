/*
Package resp provides helpers for decoding the server's standardized JSON responses.

Every API response is wrapped in the same envelope: a business code, a message and an
optional data payload. Failures carry a human-readable message supplied by the server.
*/
package resp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// JSONResponse is the standardized response envelope.
type JSONResponse struct {
	// Code is the business status code (0 for success).
	Code int `json:"code"`

	// Message is the server's status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// StatusError is returned by Decode for non-2xx responses.
type StatusError struct {
	Status  int
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Decode reads the envelope from res and unmarshals Data into dst (when dst is non-nil).
// It returns the envelope message. Non-2xx responses yield a *StatusError.
// The body is always closed.
func Decode(res *http.Response, dst any) (string, error) {
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	var envelope JSONResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			if res.StatusCode < 200 || res.StatusCode > 299 {
				return "", &StatusError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
			}
			return "", fmt.Errorf("decode response envelope: %w", err)
		}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return "", &StatusError{Status: res.StatusCode, Code: envelope.Code, Message: msg, Data: envelope.Data}
	}

	if dst != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, dst); err != nil {
			return "", fmt.Errorf("decode response data: %w", err)
		}
	}

	return envelope.Message, nil
}

// AsStatus extracts a *StatusError from err.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
