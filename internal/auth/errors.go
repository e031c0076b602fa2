package auth

import "errors"

// Domain errors for the auth package.
var (
	// ErrUserNotFound is returned when a user id or email does not exist.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrEmailExists is returned when registering with a taken email.
	ErrEmailExists = errors.New("auth: email already registered")

	// ErrInvalidCredentials is returned when authentication fails.
	// Deliberately indistinct between unknown email and wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for malformed, expired, or forged tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidEmail is returned when an email fails validation.
	ErrInvalidEmail = errors.New("auth: invalid email")

	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername = errors.New("auth: invalid username")

	// ErrWeakPassword is returned when a password is too short.
	ErrWeakPassword = errors.New("auth: password too short")
)
