/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to their message templates. Templates that take
details use %s verbs; details are HTML-escaped and emphasised before substitution.
*/
package errs

// errorMap stores the CustomError template corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: Command and Channel Errors
	ErrInvalidCommand:     {Code: ErrInvalidCommand, Message: "Invalid command"},
	ErrNoChannelSelected:  {Code: ErrNoChannelSelected, Message: "No channel selected."},
	ErrChannelNotFound:    {Code: ErrChannelNotFound, Message: "Channel not found."},
	ErrPublicChannelOnly:  {Code: ErrPublicChannelOnly, Message: "This command can be invoked only in public channel."},
	ErrPrivateChannelOnly: {Code: ErrPrivateChannelOnly, Message: "This command can be invoked only in private channel."},
	ErrInitiatorNotMember: {Code: ErrInitiatorNotMember, Message: "You are not a member of the channel %s."},
	ErrTargetNotMember:    {Code: ErrTargetNotMember, Message: "%s is not a valid member of the current channel."},
	ErrSelfBan:            {Code: ErrSelfBan, Message: "You are not allowed to ban yourself."},
	ErrAlreadyBanned:      {Code: ErrAlreadyBanned, Message: "You had already banned %s."},
	ErrAlreadyMember:      {Code: ErrAlreadyMember, Message: "%s is already a member of channel %s."},
	ErrCannotRemoveAdmin:  {Code: ErrCannotRemoveAdmin, Message: "The channel admin cannot be removed."},
	ErrChannelRejected:    {Code: ErrChannelRejected, Message: "%s"},
	ErrCommandFailed:      {Code: ErrCommandFailed, Message: "%s"},

	// 2xxx: Permission Errors
	ErrNotChannelAdmin:           {Code: ErrNotChannelAdmin, Message: "You do not have a permission to remove channel."},
	ErrInviteRequiresAdmin:       {Code: ErrInviteRequiresAdmin, Message: "Only the channel admin may invite users to a private channel."},
	ErrBannedInviteRequiresAdmin: {Code: ErrBannedInviteRequiresAdmin, Message: "Only the channel admin may invite the banned user %s."},
	ErrRevokeRequiresAdmin:       {Code: ErrRevokeRequiresAdmin, Message: "You are not allowed to remove users from this channel."},
	ErrPermissionDenied:          {Code: ErrPermissionDenied, Message: "%s"},

	// 3xxx: Credential and Profile Form Errors
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Nickname or password incorrect"},
	ErrFieldInUse:         {Code: ErrFieldInUse, Message: "This %s is already in use"},
	ErrRegistrationFailed: {Code: ErrRegistrationFailed, Message: "Cannot create account"},
	ErrSettingsFailed:     {Code: ErrSettingsFailed, Message: "Cannot save settings"},

	// 4xxx: Session Errors
	ErrUnauthorized:   {Code: ErrUnauthorized, Message: "Please sign in to continue."},
	ErrSessionExpired: {Code: ErrSessionExpired, Message: "Your session has expired. Please sign in again."},

	// 5xxx: Transport and Internal Errors
	ErrUnknown:      {Code: ErrUnknown, Message: "Something went wrong. Please try again."},
	ErrTransport:    {Code: ErrTransport, Message: "Connection problem. Please try again."},
	ErrNotConnected: {Code: ErrNotConnected, Message: "Not connected to the chat server."},
}
