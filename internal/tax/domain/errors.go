package domain

import "errors"

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidRate          = errors.New("invalid_tax_rate")
	ErrInvalidEffectiveDate = errors.New("invalid_effective_from")
	ErrNotFound             = errors.New("tax_profile_not_found")
	ErrNoActiveProfile      = errors.New("no_active_tax_profile")
)
