package store

import "errors"

// Error variables for store operations.
var (
	ErrNotOpen            = errors.New("store is not open")
	ErrTxClosed           = errors.New("transaction closed")
	ErrCardNotFound       = errors.New("card not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrStageNotFound      = errors.New("stage not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCommandNotFound    = errors.New("command not found")
	ErrAmbiguousCommand   = errors.New("command id prefix is ambiguous")
	ErrSchemaTooNew       = errors.New("database schema is newer than this binary")
	ErrSeedInvalid        = errors.New("invalid seed data")
)
