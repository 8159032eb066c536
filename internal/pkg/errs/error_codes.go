/*
Package errs provides custom error types and application-level error code constants.

These error codes identify every user-facing failure the client can surface: malformed
commands, moderation rule violations, missing roles, credential form problems, session
invalidation and transport faults.
*/
package errs

// 1xxx: Command and Channel Errors
const (
	// ErrInvalidCommand indicates an unknown command name or a wrong number of arguments.
	ErrInvalidCommand = 1001

	// ErrNoChannelSelected indicates the command needs a focused channel but none is selected.
	ErrNoChannelSelected = 1002

	// ErrChannelNotFound indicates the referenced channel is not (or no longer) in the store.
	ErrChannelNotFound = 1003

	// ErrPublicChannelOnly indicates the command may only be used in a public channel.
	ErrPublicChannelOnly = 1101

	// ErrPrivateChannelOnly indicates the command may only be used in a private channel.
	ErrPrivateChannelOnly = 1102

	// ErrInitiatorNotMember indicates the caller is not a member of the focused channel.
	ErrInitiatorNotMember = 1103

	// ErrTargetNotMember indicates the targeted nickname is not a member of the focused channel.
	ErrTargetNotMember = 1104

	// ErrSelfBan indicates the caller tried to ban themselves.
	ErrSelfBan = 1105

	// ErrAlreadyBanned indicates the caller has already voted to ban the target.
	ErrAlreadyBanned = 1106

	// ErrAlreadyMember indicates the invited nickname is already a channel member.
	ErrAlreadyMember = 1107

	// ErrCannotRemoveAdmin indicates an attempt to ban or revoke the channel admin.
	ErrCannotRemoveAdmin = 1108

	// ErrChannelRejected is a ChannelError: the server refused to let the caller join a channel.
	ErrChannelRejected = 1201

	// ErrCommandFailed carries a server-supplied message for a failed channel operation.
	ErrCommandFailed = 1202
)

// 2xxx: Permission Errors
const (
	// ErrNotChannelAdmin indicates that only the channel admin may remove the channel.
	ErrNotChannelAdmin = 2001

	// ErrInviteRequiresAdmin indicates that only the admin may invite into a private channel.
	ErrInviteRequiresAdmin = 2002

	// ErrBannedInviteRequiresAdmin indicates that only the admin may invite a banned user.
	ErrBannedInviteRequiresAdmin = 2003

	// ErrRevokeRequiresAdmin indicates that only the admin may revoke a membership.
	ErrRevokeRequiresAdmin = 2004

	// ErrPermissionDenied carries a server-supplied permission failure.
	ErrPermissionDenied = 2005
)

// 3xxx: Credential and Profile Form Errors
const (
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = 3001

	// ErrFieldInUse indicates a unique profile field is already taken.
	ErrFieldInUse = 3002

	// ErrRegistrationFailed indicates an unexpected registration failure.
	ErrRegistrationFailed = 3003

	// ErrSettingsFailed indicates that profile settings could not be saved.
	ErrSettingsFailed = 3004
)

// 4xxx: Session Errors
const (
	// ErrUnauthorized indicates that there is no authenticated user.
	ErrUnauthorized = 4001

	// ErrSessionExpired indicates the stored credential was rejected or has expired.
	ErrSessionExpired = 4002
)

// 5xxx: Transport and Internal Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrTransport indicates a network failure talking to the server.
	ErrTransport = 5001

	// ErrNotConnected indicates the event stream is not open.
	ErrNotConnected = 5002
)
