/*
Package chat contains the client-side state layer: the Channel Store that reconciles the
local model of channels, members and messages against pushed server events, and the
Channel Session that tracks the focused channel and applies moderation rules to it.

This file defines the Channel and Message model and the membership and ban-ledger rules
that operate on a single channel. None of these methods lock; the Store's lock guards them.
*/
package chat

import (
	"slices"
	"time"

	"chatline/internal/app/user"
	"chatline/internal/pkg/errs"
)

// Kind is a channel's visibility.
type Kind string

const (
	KindPublic  Kind = "public"
	KindPrivate Kind = "private"
)

// BanThreshold is the number of ledger entries that bans a member.
const BanThreshold = 3

// Message is one entry in a channel's append-only log.
type Message struct {
	// ID is the server-assigned id, 0 while the message is pending.
	ID int64

	// LocalID is a store-local sequence number. It orders messages that have no server id yet
	// and is a placeholder until every message carries a server id on arrival.
	LocalID uint64

	// CorrelationID is set on locally authored messages and echoed back by the server.
	CorrelationID string

	// Author is the live member object, shared with the channel's member list.
	Author *user.User

	Content string

	// Pending is true for an optimistic message the server has not confirmed yet.
	Pending bool
}

// Typing is a soft-state typing indicator.
type Typing struct {
	User      *user.User
	Text      string
	UpdatedAt time.Time
}

// Channel is a conversation scope. It is owned by the Store.
type Channel struct {
	ID   int64
	Name string
	Kind Kind

	// Admin is always one of Members.
	Admin *user.User

	// Members is an ordered set, unique by user id.
	Members []*user.User

	Messages []*Message

	// Typing is keyed by user id.
	Typing map[int64]*Typing

	// Restricted is the ban-vote ledger: target nickname -> voter nicknames.
	// A target is banned when its entry holds exactly BanThreshold entries.
	Restricted map[string][]string

	// hydrated is false for partial entries (id, name, kind, admin) that still need a fetch.
	hydrated bool
}

func newChannel(id int64, name string, kind Kind) *Channel {
	if kind == "" {
		kind = KindPublic
	}
	return &Channel{
		ID:         id,
		Name:       name,
		Kind:       kind,
		Typing:     make(map[int64]*Typing),
		Restricted: make(map[string][]string),
	}
}

// Hydrated reports whether members and messages have been fetched.
func (ch *Channel) Hydrated() bool { return ch.hydrated }

// Member returns the member with the given nickname.
func (ch *Channel) Member(nickname string) *user.User {
	for _, m := range ch.Members {
		if m.Nickname == nickname {
			return m
		}
	}
	return nil
}

// MemberByID returns the member with the given id.
func (ch *Channel) MemberByID(id int64) *user.User {
	for _, m := range ch.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// IsMember reports whether nickname is a member.
func (ch *Channel) IsMember(nickname string) bool {
	return ch.Member(nickname) != nil
}

// IsBanned reports whether the ledger entry for nickname has reached BanThreshold.
func (ch *Channel) IsBanned(nickname string) bool {
	return len(ch.Restricted[nickname]) == BanThreshold
}

// IsAdmin reports whether nickname is the channel admin.
func (ch *Channel) IsAdmin(nickname string) bool {
	return ch.Admin != nil && ch.Admin.Nickname == nickname
}

func (ch *Channel) isAdminID(id int64) bool {
	return ch.Admin != nil && ch.Admin.ID == id
}

// addMember appends u unless a member with the same id exists.
func (ch *Channel) addMember(u *user.User) bool {
	if ch.MemberByID(u.ID) != nil {
		return false
	}
	ch.Members = append(ch.Members, u)
	return true
}

// removeMember filters out every member with the given nickname.
func (ch *Channel) removeMember(nickname string) bool {
	n := len(ch.Members)
	ch.Members = slices.DeleteFunc(ch.Members, func(m *user.User) bool {
		if m.Nickname != nickname {
			return false
		}
		delete(ch.Typing, m.ID)
		return true
	})
	return len(ch.Members) != n
}

func (ch *Channel) removeMemberByID(id int64) bool {
	n := len(ch.Members)
	ch.Members = slices.DeleteFunc(ch.Members, func(m *user.User) bool { return m.ID == id })
	delete(ch.Typing, id)
	return len(ch.Members) != n
}

// ensureAdminMember keeps the admin-is-a-member invariant for data coming from the server.
func (ch *Channel) ensureAdminMember() {
	if ch.Admin == nil {
		return
	}
	if m := ch.MemberByID(ch.Admin.ID); m != nil {
		ch.Admin = m
		return
	}
	ch.Members = append([]*user.User{ch.Admin}, ch.Members...)
}

func (ch *Channel) hasMessage(id int64) bool {
	if id == 0 {
		return false
	}
	for _, m := range ch.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (ch *Channel) pending(correlationID string) *Message {
	if correlationID == "" {
		return nil
	}
	for _, m := range ch.Messages {
		if m.Pending && m.CorrelationID == correlationID {
			return m
		}
	}
	return nil
}

// checkBan validates a ban vote by initiator against target without changing anything.
func (ch *Channel) checkBan(initiator *user.User, target string) error {
	if ch.Kind == KindPrivate {
		return errs.NewError(errs.ErrPublicChannelOnly)
	}
	if !ch.IsMember(initiator.Nickname) {
		return errs.NewError(errs.ErrInitiatorNotMember, ch.Name)
	}
	if !ch.IsMember(target) {
		return errs.NewError(errs.ErrTargetNotMember, target)
	}
	if initiator.Nickname == target {
		return errs.NewError(errs.ErrSelfBan)
	}
	if ch.IsAdmin(target) {
		return errs.NewError(errs.ErrCannotRemoveAdmin)
	}
	if !ch.isAdminID(initiator.ID) && slices.Contains(ch.Restricted[target], initiator.Nickname) {
		return errs.NewError(errs.ErrAlreadyBanned, target)
	}
	return nil
}

// applyBan records initiator's vote against target and removes target once banned.
// An admin vote fills the ledger at once.
func (ch *Channel) applyBan(initiator *user.User, target string) (bool, error) {
	if ch.isAdminID(initiator.ID) {
		ch.Restricted[target] = []string{initiator.Nickname, initiator.Nickname, initiator.Nickname}
		ch.removeMember(target)
		return true, nil
	}

	voters, ok := ch.Restricted[target]
	switch {
	case slices.Contains(voters, initiator.Nickname):
		return false, errs.NewError(errs.ErrAlreadyBanned, target)
	case len(voters) >= BanThreshold:
		// already banned but re-added without an invite; the ledger is left as is
	case !ok:
		ch.Restricted[target] = []string{initiator.Nickname}
	default:
		ch.Restricted[target] = append(voters, initiator.Nickname)
	}

	if len(ch.Restricted[target]) >= BanThreshold {
		ch.removeMember(target)
		return true, nil
	}
	return false, nil
}

// checkInvite validates an invitation of target by initiator.
func (ch *Channel) checkInvite(initiator *user.User, target string) error {
	admin := ch.isAdminID(initiator.ID)
	if ch.Kind == KindPrivate && !admin {
		return errs.NewError(errs.ErrInviteRequiresAdmin)
	}
	if ch.IsMember(target) {
		return errs.NewError(errs.ErrAlreadyMember, target, ch.Name)
	}
	if ch.IsBanned(target) && !admin {
		return errs.NewError(errs.ErrBannedInviteRequiresAdmin, target)
	}
	return nil
}
