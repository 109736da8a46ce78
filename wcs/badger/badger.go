package badger

import (
	"context"

	"github.com/dgraph-io/badger/v2"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs/kvcol"
)

const (
	Name = "badger"
)

func init() {
	kvcol.RegisterEngine(base.Registration{
		Name: Name, Title: "Badger",
		Local: true,
	}, func(path string) (kvcol.Engine, error) {
		return NewPath(path), nil
	})
}

var _ kvcol.Engine = (*Engine)(nil)

// NewPath returns an engine that opens a Badger database at path on Open.
func NewPath(path string) *Engine {
	opt := badger.DefaultOptions(path)
	opt.Logger = nil
	return &Engine{opt: opt}
}

type Engine struct {
	opt badger.Options
	db  *badger.DB
}

func (e *Engine) Open() error {
	if e.db != nil {
		return nil
	}
	opt := e.opt
	if opt.ValueDir == "" {
		opt.ValueDir = opt.Dir
	}
	db, err := badger.Open(opt)
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
	var val []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return kvcol.ErrNotFound
		} else if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (e *Engine) Put(ctx context.Context, key, val []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (e *Engine) Del(ctx context.Context, key []byte) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (e *Engine) Scan(ctx context.Context, pref []byte) (kvcol.Iterator, error) {
	txn := e.db.NewTransaction(false)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	return &Iterator{txn: txn, it: it, pref: pref, first: true}, nil
}

type Iterator struct {
	txn   *badger.Txn
	it    *badger.Iterator
	pref  []byte
	first bool
	err   error
}

func (it *Iterator) Next(ctx context.Context) bool {
	if it.first {
		it.first = false
		it.it.Seek(it.pref)
	} else {
		it.it.Next()
	}
	if len(it.pref) != 0 {
		return it.it.ValidForPrefix(it.pref)
	}
	return it.it.Valid()
}

func (it *Iterator) Key() []byte {
	return it.it.Item().Key()
}

func (it *Iterator) Val() []byte {
	v, err := it.it.Item().ValueCopy(nil)
	if err != nil {
		it.err = err
	}
	return v
}

func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) Close() error {
	it.it.Close()
	it.txn.Discard()
	return it.Err()
}
