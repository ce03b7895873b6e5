package models

import "errors"

var (
	// ErrUnreachable is returned by a Messenger when the recipient cannot receive direct messages.
	ErrUnreachable    = errors.New("recipient unreachable")
	ErrInvalidPollKey = errors.New("invalid poll key")
	ErrEmptyResponse  = errors.New("empty response")
)
