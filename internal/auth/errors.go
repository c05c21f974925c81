package auth

import "errors"

// Token errors.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrSecretEmpty  = errors.New("auth: signing secret is empty")
)
