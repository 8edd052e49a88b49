package model

import "errors"

// Error kinds shared by every component. Wrap with %w and test with errors.Is.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrInsufficientData = errors.New("not enough entities")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUpstreamSeed     = errors.New("seed source unavailable")
	ErrDuplicateVote    = errors.New("duplicate vote")
)
