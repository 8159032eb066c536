package api

import (
	"context"
	"encoding/json"
	"net/http"

	"chatline/internal/app/chat"
	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/resp"
)

// tokenData is the data of a successful login or registration.
type tokenData struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// meData is the data of /api/auth/me.
type meData struct {
	User     user.User          `json:"user"`
	Channels []chat.ChannelData `json:"channels,omitempty"`
}

// formErrors is the data of a rejected form submission.
type formErrors struct {
	Errors []struct {
		Rule    string `json:"rule"`
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Login exchanges a nickname and password for a bearer credential.
func (c *Client) Login(ctx context.Context, nickname, password string) (string, error) {
	var data tokenData
	_, err := c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/api/auth/login",
		body:      map[string]string{"nickname": nickname, "password": password},
		dst:       &data,
		fallback:  errs.ErrInvalidCredentials,
		anonymous: true,
	})
	if err != nil {
		return "", err
	}
	return data.Token, nil
}

// Register creates an account and returns its bearer credential. A uniqueness violation is
// reported as ErrFieldInUse naming the field.
func (c *Client) Register(ctx context.Context, u *user.User) (string, error) {
	var data tokenData
	_, err := c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/api/auth/register",
		body:      u,
		dst:       &data,
		fallback:  errs.ErrRegistrationFailed,
		anonymous: true,
	})
	if err == nil {
		return data.Token, nil
	}

	if se, ok := resp.AsStatus(err); ok && len(se.Data) > 0 {
		var fe formErrors
		if json.Unmarshal(se.Data, &fe) == nil && len(fe.Errors) > 0 && fe.Errors[0].Rule == "unique" {
			return "", errs.Wrap(errs.ErrFieldInUse, se, fe.Errors[0].Field)
		}
	}
	return "", err
}

// Me returns the user the current credential belongs to.
func (c *Client) Me(ctx context.Context) (*user.User, error) {
	var data meData
	if _, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/api/auth/me",
		dst:      &data,
		fallback: errs.ErrCommandFailed,
	}); err != nil {
		return nil, err
	}
	return &data.User, nil
}

// SetState publishes the current user's presence.
func (c *Client) SetState(ctx context.Context, state user.State) error {
	_, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/api/user/state",
		body:     map[string]user.State{"state": state},
		fallback: errs.ErrCommandFailed,
	})
	return err
}

// UpdateSettings saves profile settings and returns the updated user.
func (c *Client) UpdateSettings(ctx context.Context, s user.Settings) (*user.User, error) {
	var u user.User
	if _, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/api/user/settings",
		body:     s,
		dst:      &u,
		fallback: errs.ErrSettingsFailed,
	}); err != nil {
		return nil, err
	}
	return &u, nil
}
