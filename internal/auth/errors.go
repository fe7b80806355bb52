package auth

import "errors"

// Authentication failures. The HTTP layer surfaces every one of them as the
// same generic 401 so token state cannot be enumerated from outside.
var (
	ErrMissingToken     = errors.New("auth: missing token")
	ErrMalformedToken   = errors.New("auth: malformed token")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpiredToken     = errors.New("auth: token expired")
	ErrWrongTokenType   = errors.New("auth: wrong token type")
	ErrRevokedToken     = errors.New("auth: token revoked")

	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// General store and input failures.
var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrSystemRole    = errors.New("auth: system role is immutable")
)

// IsAuthenticationError reports whether err belongs to the authentication
// taxonomy. Callers must not branch on the specific member when building a
// response body.
func IsAuthenticationError(err error) bool {
	for _, target := range []error{
		ErrMissingToken,
		ErrMalformedToken,
		ErrInvalidSignature,
		ErrExpiredToken,
		ErrWrongTokenType,
		ErrRevokedToken,
		ErrInvalidCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
