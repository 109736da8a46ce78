package btree

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs/kvcol"
)

const (
	Name = "btree"
)

func init() {
	kvcol.RegisterEngine(base.Registration{
		Name: Name, Title: "B-Tree",
		Local: true, Volatile: true,
	}, func(path string) (kvcol.Engine, error) {
		if path != "" {
			return nil, base.ErrVolatile
		}
		return New(), nil
	})
}

var _ kvcol.Engine = (*Engine)(nil)

// New creates a flat in-memory engine. Data survives Close, so a client
// can be stopped and started again without losing state.
func New() *Engine {
	return &Engine{t: btree.New(32)}
}

type Engine struct {
	mu sync.RWMutex
	t  *btree.BTree
}

type item struct {
	k, v []byte
}

func (p *item) Less(than btree.Item) bool {
	return bytes.Compare(p.k, than.(*item).k) < 0
}

func (e *Engine) Open() error  { return nil }
func (e *Engine) Close() error { return nil }

func (e *Engine) Get(ctx context.Context, key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	it := e.t.Get(&item{k: key})
	if it == nil {
		return nil, kvcol.ErrNotFound
	}
	return append([]byte{}, it.(*item).v...), nil
}

func (e *Engine) Put(ctx context.Context, key, val []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.t.ReplaceOrInsert(&item{
		k: append([]byte{}, key...),
		v: append([]byte{}, val...),
	})
	return nil
}

func (e *Engine) Del(ctx context.Context, key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.t.Delete(&item{k: key})
	return nil
}

func (e *Engine) Scan(ctx context.Context, pref []byte) (kvcol.Iterator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	// Snapshot matching pairs so mutations don't invalidate the iterator.
	var pairs []item
	e.t.AscendGreaterOrEqual(&item{k: pref}, func(i btree.Item) bool {
		p := i.(*item)
		if !bytes.HasPrefix(p.k, pref) {
			return false
		}
		pairs = append(pairs, item{
			k: append([]byte{}, p.k...),
			v: append([]byte{}, p.v...),
		})
		return true
	})
	return &Iterator{pairs: pairs, i: -1}, nil
}

type Iterator struct {
	pairs []item
	i     int
}

func (it *Iterator) Next(ctx context.Context) bool {
	if it.i+1 >= len(it.pairs) {
		return false
	}
	it.i++
	return true
}

func (it *Iterator) Key() []byte { return it.pairs[it.i].k }
func (it *Iterator) Val() []byte { return it.pairs[it.i].v }
func (it *Iterator) Err() error  { return nil }
func (it *Iterator) Close() error {
	it.pairs = nil
	return nil
}
