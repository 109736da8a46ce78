package leveldb

import (
	"context"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs/kvcol"
)

const (
	Name = "leveldb"
)

func init() {
	kvcol.RegisterEngine(base.Registration{
		Name: Name, Title: "LevelDB",
		Local: true,
	}, func(path string) (kvcol.Engine, error) {
		return NewPath(path), nil
	})
}

var _ kvcol.Engine = (*Engine)(nil)

// NewPath returns an engine that opens a LevelDB database at path on Open.
func NewPath(path string) *Engine {
	return &Engine{path: path}
}

type Engine struct {
	path string
	db   *leveldb.DB
}

func (e *Engine) Open() error {
	if e.db != nil {
		return nil
	}
	db, err := leveldb.OpenFile(e.path, nil)
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
	val, err := e.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvcol.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return val, nil
}

func (e *Engine) Put(ctx context.Context, key, val []byte) error {
	return e.db.Put(key, val, nil)
}

func (e *Engine) Del(ctx context.Context, key []byte) error {
	return e.db.Delete(key, nil)
}

func (e *Engine) Scan(ctx context.Context, pref []byte) (kvcol.Iterator, error) {
	it := e.db.NewIterator(util.BytesPrefix(pref), nil)
	return &Iterator{it: it, first: true}, nil
}

type Iterator struct {
	it    iterator.Iterator
	first bool
}

func (it *Iterator) Next(ctx context.Context) bool {
	if it.first {
		it.first = false
		return it.it.First()
	}
	return it.it.Next()
}

func (it *Iterator) Key() []byte { return it.it.Key() }
func (it *Iterator) Val() []byte { return it.it.Value() }
func (it *Iterator) Err() error  { return it.it.Error() }

func (it *Iterator) Close() error {
	it.it.Release()
	return it.Err()
}
