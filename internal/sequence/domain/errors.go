package domain

import "errors"

var (
	ErrInvalidKey    = errors.New("invalid_sequence_key")
	ErrInvalidPrefix = errors.New("invalid_sequence_prefix")
	ErrNotFound      = errors.New("sequence_not_found")
)
