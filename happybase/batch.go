package happybase

import (
	"context"
	"sync"

	"github.com/happy-go/happykv/wcs"
)

// Batch buffers mutations for a table and applies them in one pass.
// Mutations are applied in the order they were queued; there is no
// atomicity across them.
type Batch struct {
	tbl  *Table
	size int

	mu  sync.Mutex
	mut []mutation
}

type mutation struct {
	key     []byte
	put     wcs.Row
	del     bool
	columns []string
}

// Batch creates a mutation buffer for the table. A positive batchSize
// sends the buffer automatically once it holds that many mutations; zero
// leaves sending to explicit Send calls.
func (t *Table) Batch(batchSize int) *Batch {
	return &Batch{tbl: t, size: batchSize}
}

// Put queues a row write.
func (b *Batch) Put(ctx context.Context, key []byte, data wcs.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mut = append(b.mut, mutation{key: key, put: data.Clone()})
	return b.maybeSend(ctx)
}

// Delete queues a column or row removal.
func (b *Batch) Delete(ctx context.Context, key []byte, columns ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mut = append(b.mut, mutation{key: key, del: true, columns: columns})
	return b.maybeSend(ctx)
}

func (b *Batch) maybeSend(ctx context.Context) error {
	if b.size > 0 && len(b.mut) >= b.size {
		return b.send(ctx)
	}
	return nil
}

// Send applies all queued mutations. The buffer is cleared even when a
// mutation fails; the first error is returned.
func (b *Batch) Send(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.send(ctx)
}

func (b *Batch) send(ctx context.Context) error {
	mut := b.mut
	b.mut = nil
	for _, m := range mut {
		var err error
		if m.del {
			err = b.tbl.Delete(ctx, m.key, m.columns...)
		} else {
			err = b.tbl.Put(ctx, m.key, m.put)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
