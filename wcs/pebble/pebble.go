package pebble

import (
	"bytes"
	"context"

	"github.com/cockroachdb/pebble"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs/kvcol"
)

const (
	Name = "pebble"
)

func init() {
	kvcol.RegisterEngine(base.Registration{
		Name: Name, Title: "Pebble",
		Local: true,
	}, func(path string) (kvcol.Engine, error) {
		return NewPath(path), nil
	})
}

var _ kvcol.Engine = (*Engine)(nil)

// NewPath returns an engine that opens a Pebble database at path on Open.
func NewPath(path string) *Engine {
	return &Engine{path: path}
}

type Engine struct {
	path string
	db   *pebble.DB
}

func (e *Engine) Open() error {
	if e.db != nil {
		return nil
	}
	db, err := pebble.Open(e.path, &pebble.Options{})
	if err != nil {
		return err
	}
	e.db = db
	return nil
}

func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

func (e *Engine) Get(ctx context.Context, key []byte) ([]byte, error) {
	found, closer, err := e.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, kvcol.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	val := make([]byte, len(found))
	copy(val, found)
	closer.Close()
	return val, nil
}

func (e *Engine) Put(ctx context.Context, key, val []byte) error {
	return e.db.Set(key, val, pebble.Sync)
}

func (e *Engine) Del(ctx context.Context, key []byte) error {
	return e.db.Delete(key, pebble.Sync)
}

func (e *Engine) Scan(ctx context.Context, pref []byte) (kvcol.Iterator, error) {
	it := e.db.NewIter(nil)
	return &Iterator{it: it, pref: pref, first: true}, nil
}

type Iterator struct {
	it    *pebble.Iterator
	pref  []byte
	first bool
}

func (it *Iterator) Next(ctx context.Context) bool {
	if it.first {
		it.first = false
		it.it.SeekGE(it.pref)
	} else {
		it.it.Next()
	}
	if !it.it.Valid() {
		return false
	}
	return len(it.pref) == 0 || bytes.HasPrefix(it.it.Key(), it.pref)
}

func (it *Iterator) Key() []byte { return it.it.Key() }
func (it *Iterator) Val() []byte { return it.it.Value() }
func (it *Iterator) Err() error  { return it.it.Error() }

func (it *Iterator) Close() error {
	return it.it.Close()
}
