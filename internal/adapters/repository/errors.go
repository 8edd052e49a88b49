package repository

import "errors"

// Sentinel kinds for storage errors. Lookups that miss wrap model.ErrNotFound.
var (
	ErrLedgerNotEmpty = errors.New("ledger is not empty")
	ErrUnknownDriver  = errors.New("unknown storage driver")
)
