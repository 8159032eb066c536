package api

import (
	"context"
	"fmt"
	"net/http"

	"chatline/internal/app/chat"
	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
	"chatline/internal/pkg/resp"
)

// moderation is the body of kick and revoke requests.
type moderation struct {
	TargetUser string `json:"targetUser"`
	ChannelID  int64  `json:"channelId"`
}

// MyChannels returns the current user's channels as partial entries.
func (c *Client) MyChannels(ctx context.Context) ([]chat.ChannelData, error) {
	var list []chat.ChannelData
	if _, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/api/channel",
		dst:      &list,
		fallback: errs.ErrCommandFailed,
	}); err != nil {
		return nil, err
	}
	return list, nil
}

// FetchChannel returns a channel with its members and messages.
func (c *Client) FetchChannel(ctx context.Context, id int64) (*chat.ChannelData, error) {
	var data chat.ChannelData
	_, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     fmt.Sprintf("/api/channel/%d", id),
		dst:      &data,
		fallback: errs.ErrCommandFailed,
	})
	if err != nil {
		if se, ok := resp.AsStatus(err); ok && se.Status == http.StatusNotFound {
			return nil, errs.Wrap(errs.ErrChannelNotFound, se)
		}
		return nil, err
	}
	return &data, nil
}

// JoinChannel joins the channel called name, creating it with the given kind if needed.
func (c *Client) JoinChannel(ctx context.Context, name string, kind chat.Kind) (chat.JoinResult, error) {
	var data *chat.ChannelData
	msg, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/channel/join",
		body: map[string]any{
			"channelName": name,
			"isPublic":    kind != chat.KindPrivate,
		},
		dst:      &data,
		fallback: errs.ErrChannelRejected,
	})
	if err != nil {
		return chat.JoinResult{}, err
	}
	if data != nil && data.ID == 0 {
		data = nil
	}
	return chat.JoinResult{Message: msg, Channel: data}, nil
}

// QuitChannel deletes channel id. Only its admin may do this.
func (c *Client) QuitChannel(ctx context.Context, id int64) (string, error) {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/api/channel/%d/quit", id),
		fallback: errs.ErrCommandFailed,
	})
}

// CancelMembership removes the current user from channel id.
func (c *Client) CancelMembership(ctx context.Context, id int64) (string, error) {
	return c.do(ctx, call{
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/api/channel/%d/cancel", id),
		fallback: errs.ErrCommandFailed,
	})
}

// Invite invites nickname to channel channelID.
func (c *Client) Invite(ctx context.Context, channelID int64, nickname string) (chat.InviteResult, error) {
	var invited *user.User
	msg, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/channel/invite",
		body: map[string]any{
			"channelId":    channelID,
			"userNickname": nickname,
		},
		dst:      &invited,
		fallback: errs.ErrCommandFailed,
	})
	if err != nil {
		return chat.InviteResult{}, err
	}
	return chat.InviteResult{Message: msg, User: invited}, nil
}

// Revoke removes nickname from private channel channelID.
func (c *Client) Revoke(ctx context.Context, channelID int64, nickname string) (string, error) {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/api/channel/revoke",
		body:     moderation{TargetUser: nickname, ChannelID: channelID},
		fallback: errs.ErrCommandFailed,
	})
}

// Kick records a ban vote against nickname in channel channelID.
func (c *Client) Kick(ctx context.Context, channelID int64, nickname string) (string, error) {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/api/channel/kick",
		body:     moderation{TargetUser: nickname, ChannelID: channelID},
		fallback: errs.ErrCommandFailed,
	})
}

var (
	_ chat.Remote  = (*Client)(nil)
	_ user.AuthAPI = (*Client)(nil)
)
