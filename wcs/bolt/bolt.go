package bolt

import (
	"bytes"
	"context"

	"github.com/boltdb/bolt"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs/kvcol"
)

const (
	Name = "bolt"
)

func init() {
	kvcol.RegisterEngine(base.Registration{
		Name: Name, Title: "BoltDB",
		Local: true,
	}, func(path string) (kvcol.Engine, error) {
		return NewPath(path), nil
	})
}

var _ kvcol.Engine = (*Engine)(nil)

var root = []byte("cells")

// NewPath returns an engine that opens a Bolt database at path on Open.
func NewPath(path string) *Engine {
	return &Engine{path: path}
}

type Engine struct {
	path string
	db   *bolt.DB
}

func (e *Engine) Open() error {
	if e.db != nil {
		return nil
	}
	db, err := bolt.Open(e.path, 0644, nil)
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(root)
		return err
	})
	if err != nil {
		db.Close()
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
	var val []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(root).Get(key)
		if v == nil {
			return kvcol.ErrNotFound
		}
		val = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (e *Engine) Put(ctx context.Context, key, val []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(root).Put(key, val)
	})
}

func (e *Engine) Del(ctx context.Context, key []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(root).Delete(key)
	})
}

func (e *Engine) Scan(ctx context.Context, pref []byte) (kvcol.Iterator, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &Iterator{tx: tx, b: tx.Bucket(root), pref: pref}, nil
}

type Iterator struct {
	tx   *bolt.Tx
	b    *bolt.Bucket
	c    *bolt.Cursor
	pref []byte
	k, v []byte
}

func (it *Iterator) Next(ctx context.Context) bool {
	if it.b == nil {
		return false
	}
	if it.c == nil {
		it.c = it.b.Cursor()
		it.k, it.v = it.c.Seek(it.pref)
	} else {
		it.k, it.v = it.c.Next()
	}
	ok := it.k != nil && bytes.HasPrefix(it.k, it.pref)
	if !ok {
		it.b = nil
	}
	return ok
}

func (it *Iterator) Key() []byte { return it.k }
func (it *Iterator) Val() []byte { return it.v }
func (it *Iterator) Err() error  { return nil }

func (it *Iterator) Close() error {
	if it.tx == nil {
		return nil
	}
	err := it.tx.Rollback()
	it.tx, it.b, it.c = nil, nil, nil
	return err
}
