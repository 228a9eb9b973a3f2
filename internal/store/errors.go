package store

import "errors"

var (
	// ErrLocked indicates another process holds the store lock.
	ErrLocked = errors.New("store is locked by another process")
	// ErrClosed indicates an operation on a closed store handle.
	ErrClosed = errors.New("store is closed")
	// ErrSchemaMismatch indicates the database schema version doesn't match
	// the version this binary expects.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
