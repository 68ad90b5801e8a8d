package service

import "errors"

// Sentinel errors returned by UserService. Store errors such as
// store.ErrUserNotFound and store.ErrEmailExists are passed through wrapped.
var (
	// ErrIncorrectCredentials means the email is unknown or the password is wrong.
	ErrIncorrectCredentials = errors.New("incorrect email or password")

	// ErrInactiveUser is returned when an inactive account tries to log in
	// or reset its password.
	ErrInactiveUser = errors.New("inactive user")

	// ErrRegistrationClosed is returned by Register when open registration is off.
	ErrRegistrationClosed = errors.New("open user registration is forbidden on this server")

	// ErrIncorrectPassword means the current password given for a change is wrong.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrSamePassword means the new password equals the current one.
	ErrSamePassword = errors.New("new password cannot be the same as the current one")

	// ErrSuperuserSelfDelete is returned when a superuser deletes their own account.
	ErrSuperuserSelfDelete = errors.New("super users are not allowed to delete themselves")

	// ErrInvalidToken means a verification token is malformed, forged or,
	// for password resets, expired.
	ErrInvalidToken = errors.New("invalid token")

	// ErrActivationExpired means the activation token expired; a new one
	// has been mailed.
	ErrActivationExpired = errors.New("activation token expired, a new one has been sent")
)
