// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Authentication protocol errors. Each one has a stable wire code and
	// message assigned by the HTTP layer.
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenAlreadyAssigned = errors.New("token already has a profile assigned")
	ErrAccessDenied         = errors.New("access denied")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrInvalidProfile       = errors.New("invalid profile")
	ErrRateLimited          = errors.New("rate limited")
	ErrWrongVerifyCode      = errors.New("wrong verify code")

	// Character and texture errors.
	ErrTooManyCharacters = errors.New("too many characters")
	ErrNameAlreadyTaken  = errors.New("name already taken")
	ErrUploadFailed      = errors.New("upload failed")
	ErrMalformedImage    = errors.New("malformed image")

	// Caller misuse, e.g. selecting a character the user does not own.
	ErrInvalidArgument = errors.New("invalid argument")
)
