package kvcol

import (
	"context"
	"errors"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs"
)

// ErrNotFound is returned by Engine.Get for a missing key.
var ErrNotFound = errors.New("kvcol: not found")

// Engine is a flat ordered key-value store backing a local wide-column
// client. Implementations are not required to be safe for concurrent use.
type Engine interface {
	// Close releases the engine. Closing a closed engine is a no-op.
	base.DB
	// Open prepares the engine for use. Opening an open engine is a no-op.
	Open() error
	// Get fetches a single value. It returns ErrNotFound for a missing key.
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(ctx context.Context, key, val []byte) error
	Del(ctx context.Context, key []byte) error
	// Scan iterates keys with the given prefix in lexicographic order.
	Scan(ctx context.Context, pref []byte) (Iterator, error)
}

// Iterator is an iterator over flat engine records.
type Iterator interface {
	base.Iterator
	Key() []byte
	Val() []byte
}

// OpenPathFunc is a function for opening an engine given a path.
type OpenPathFunc func(path string) (Engine, error)

// RegisterEngine registers a wide-column driver backed by a local engine.
// The path becomes the driver address; the cluster is named after the
// registration.
func RegisterEngine(reg base.Registration, open OpenPathFunc) {
	wcs.Register(wcs.Registration{
		Registration: reg,
		Open: func(addr string, opt wcs.Options) (wcs.Client, error) {
			eng, err := open(addr)
			if err != nil {
				return nil, err
			}
			cli := New(reg.Name, eng)
			if opt.Admin {
				cli.MarkAdmin()
			}
			return cli, nil
		},
	})
}
