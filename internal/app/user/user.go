/*
Package user contains core data structures and logic related to user identity and session.

It defines the basic representation of a chat participant (the User struct), presence
states and notification preferences, and the Directory that owns the authenticated
identity and the session credential.
*/
package user

// State is a user's presence state.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
	StateDND     State = "dnd"
)

// Valid reports whether s is a known presence state.
func (s State) Valid() bool {
	switch s {
	case StateOnline, StateOffline, StateDND:
		return true
	}
	return false
}

// NotificationPreference controls which inbound messages raise a notification.
type NotificationPreference string

const (
	NotifyAll       NotificationPreference = "all"
	NotifyMentioned NotificationPreference = "mentioned"
	NotifyOff       NotificationPreference = "off"
)

// User represents a chat participant.
// A single *User is shared by every channel the user appears in; presence updates mutate
// it in place.
type User struct {
	// ID is the unique, server-assigned identifier.
	ID int64 `json:"id"`

	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`

	// Nickname is the human-facing key used by commands.
	Nickname string `json:"nickname"`

	// Password is write-only: it is sent on registration and never decoded.
	Password string `json:"password,omitempty"`

	Email string `json:"email,omitempty"`

	State State `json:"state,omitempty"`

	Notifications NotificationPreference `json:"notifications,omitempty"`
}

// DisplayName is the name shown in notifications.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Nickname
}

// Overwrite copies the non-empty profile fields of other into u, keeping u's identity.
// Password is never copied.
func (u *User) Overwrite(other *User) {
	if other.Name != "" {
		u.Name = other.Name
	}
	if other.Surname != "" {
		u.Surname = other.Surname
	}
	if other.Nickname != "" {
		u.Nickname = other.Nickname
	}
	if other.Email != "" {
		u.Email = other.Email
	}
	if other.State != "" {
		u.State = other.State
	}
	if other.Notifications != "" {
		u.Notifications = other.Notifications
	}
}

// apply copies the fields set in s into u.
func (u *User) apply(s Settings) {
	u.Overwrite(&User{Name: s.Name, Surname: s.Surname, Email: s.Email, Notifications: s.Notifications})
}
