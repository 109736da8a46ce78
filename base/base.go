package base

import "context"

// DB is a common interface implemented by all storage backends.
type DB interface {
	// Close closes the database.
	Close() error
}

// Iterator is a common interface implemented by all iterators.
type Iterator interface {
	// Next advances an iterator.
	Next(ctx context.Context) bool
	// Err returns a last encountered error.
	Err() error
	// Close frees resources.
	Close() error
}
