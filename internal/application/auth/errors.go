package auth

import "errors"

// Login and session lookup failures. Handlers answer ErrUnknownEmail and ErrWrongPassword
// with the same message.
var (
	ErrCredentialsRequired = errors.New("email and password are required")
	ErrUnknownEmail        = errors.New("no account for this email")
	ErrWrongPassword       = errors.New("password does not match")
	ErrNotAuthenticated    = errors.New("no user in session")
)

// BadCredentialsMessage is what a client sees for either credential failure.
const BadCredentialsMessage = "Invalid email or password"
