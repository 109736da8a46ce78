package kvcol

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/happy-go/happykv/wcs"
)

var (
	_ wcs.Client  = (*Client)(nil)
	_ wcs.Cluster = (*cluster)(nil)
	_ wcs.Table   = (*table)(nil)
)

// New creates a wide-column client over a flat engine. The client owns a
// single cluster with the given name.
func New(cluster string, eng Engine) *Client {
	return &Client{cluster: cluster, eng: eng}
}

type Client struct {
	cluster string
	eng     Engine

	mu      sync.Mutex
	started bool
	admin   bool
}

func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.eng.Open(); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	return c.eng.Close()
}

func (c *Client) Admin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin
}

func (c *Client) MarkAdmin() {
	c.mu.Lock()
	c.admin = true
	c.mu.Unlock()
}

// ready verifies that the client can serve a call.
func (c *Client) ready(admin bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return wcs.ErrNotStarted
	}
	if admin && !c.admin {
		return wcs.ErrNotAdmin
	}
	return nil
}

func (c *Client) ListClusters(ctx context.Context) ([]wcs.Cluster, []string, error) {
	if err := c.ready(true); err != nil {
		return nil, nil, err
	}
	return []wcs.Cluster{&cluster{c: c}}, nil, nil
}

type cluster struct {
	c *Client
}

func (cl *cluster) Name() string       { return cl.c.cluster }
func (cl *cluster) Client() wcs.Client { return cl.c }
func (cl *cluster) Copy() wcs.Cluster  { return &cluster{c: cl.c} }

func (cl *cluster) ListTables(ctx context.Context) ([]string, error) {
	if err := cl.c.ready(true); err != nil {
		return nil, err
	}
	it, err := cl.c.eng.Scan(ctx, tablePrefix())
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []string
	for it.Next(ctx) {
		parts := splitKey(it.Key()[len(tablePrefix()):])
		if len(parts) != 1 {
			return nil, fmt.Errorf("kvcol: malformed table key")
		}
		out = append(out, string(parts[0]))
	}
	return out, it.Err()
}

func (cl *cluster) CreateTable(ctx context.Context, name string, families []string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	_, err := cl.c.eng.Get(ctx, tableKey(name))
	if err == nil {
		return wcs.ErrTableExists
	} else if err != ErrNotFound {
		return err
	}
	data, err := marshalSchema(families)
	if err != nil {
		return err
	}
	return cl.c.eng.Put(ctx, tableKey(name), data)
}

func (cl *cluster) DeleteTable(ctx context.Context, name string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	if _, err := cl.c.eng.Get(ctx, tableKey(name)); err == ErrNotFound {
		return wcs.ErrTableNotFound
	} else if err != nil {
		return err
	}
	keys, err := collectKeys(ctx, cl.c.eng, cellPrefix(name))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := cl.c.eng.Del(ctx, k); err != nil {
			return err
		}
	}
	return cl.c.eng.Del(ctx, tableKey(name))
}

func (cl *cluster) Table(name string) wcs.Table {
	return &table{c: cl.c, name: name}
}

// collectKeys materializes all engine keys with the given prefix, so the
// caller can delete while not holding an iterator.
func collectKeys(ctx context.Context, eng Engine, pref []byte) ([][]byte, error) {
	it, err := eng.Scan(ctx, pref)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var keys [][]byte
	for it.Next(ctx) {
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	return keys, it.Err()
}

type table struct {
	c    *Client
	name string
}

func (t *table) Name() string { return t.name }

func (t *table) Families(ctx context.Context) ([]string, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	return t.families(ctx)
}

func (t *table) families(ctx context.Context) ([]string, error) {
	data, err := t.c.eng.Get(ctx, tableKey(t.name))
	if err == ErrNotFound {
		return nil, wcs.ErrTableNotFound
	} else if err != nil {
		return nil, err
	}
	return unmarshalSchema(data)
}

func (t *table) Row(ctx context.Context, key []byte, columns ...string) (wcs.Row, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	if _, err := t.families(ctx); err != nil {
		return nil, err
	}
	it, err := t.c.eng.Scan(ctx, rowPrefix(t.name, key, false))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	row := make(wcs.Row)
	for it.Next(ctx) {
		_, col, err := parseCell(it.Key(), t.name)
		if err != nil {
			return nil, err
		}
		row[col] = append([]byte{}, it.Val()...)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, wcs.ErrRowNotFound
	}
	return wcs.FilterColumns(row, columns), nil
}

func (t *table) Put(ctx context.Context, key []byte, data wcs.Row) error {
	if err := t.c.ready(false); err != nil {
		return err
	}
	fams, err := t.families(ctx)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(fams))
	for _, f := range fams {
		set[f] = struct{}{}
	}
	for col := range data {
		fam, _ := wcs.SplitColumn(col)
		if _, ok := set[fam]; !ok {
			return fmt.Errorf("%w: %q", wcs.ErrFamilyNotFound, fam)
		}
	}
	for col, val := range data {
		if err := t.c.eng.Put(ctx, cellKey(t.name, key, col), val); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) Delete(ctx context.Context, key []byte, columns ...string) error {
	if err := t.c.ready(false); err != nil {
		return err
	}
	if _, err := t.families(ctx); err != nil {
		return err
	}
	keys, err := collectKeys(ctx, t.c.eng, rowPrefix(t.name, key, false))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if len(columns) != 0 {
			_, col, err := parseCell(k, t.name)
			if err != nil {
				return err
			}
			if !colSelected(col, columns) {
				continue
			}
		}
		if err := t.c.eng.Del(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// colSelected reports whether a cell column matches one of the selectors.
// A selector without a qualifier matches the whole family.
func colSelected(col string, sel []string) bool {
	fam, _ := wcs.SplitColumn(col)
	for _, s := range sel {
		if s == col {
			return true
		}
		if f, q := wcs.SplitColumn(s); q == "" && f == fam {
			return true
		}
	}
	return false
}

func (t *table) Scan(ctx context.Context, opt wcs.ScanOptions) (wcs.Iterator, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	if _, err := t.families(ctx); err != nil {
		return nil, err
	}
	pref := cellPrefix(t.name)
	if len(opt.Prefix) != 0 {
		pref = rowPrefix(t.name, opt.Prefix, true)
	}
	it, err := t.c.eng.Scan(ctx, pref)
	if err != nil {
		return nil, err
	}
	ri := &rowIterator{tbl: t, it: it, opt: opt}
	if len(opt.Prefix) == 0 {
		ri.start, ri.stop = opt.Start, opt.Stop
	}
	return ri, nil
}

// rowIterator groups consecutive engine cells into rows.
type rowIterator struct {
	tbl *table
	it  Iterator
	opt wcs.ScanOptions

	start, stop []byte

	n    int
	key  []byte
	row  wcs.Row
	err  error
	done bool

	// lookahead cell that belongs to the next row
	pkey    []byte
	pcol    string
	pval    []byte
	pending bool
}

func (it *rowIterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	for {
		if it.opt.Limit > 0 && it.n >= it.opt.Limit {
			it.done = true
			return false
		}
		key, row, ok := it.nextRow(ctx)
		if !ok {
			it.done = true
			return false
		}
		if it.start != nil && bytes.Compare(key, it.start) < 0 {
			continue
		}
		if it.stop != nil && bytes.Compare(key, it.stop) >= 0 {
			it.done = true
			return false
		}
		if len(it.opt.Columns) != 0 {
			row = wcs.FilterColumns(row, it.opt.Columns)
			if len(row) == 0 {
				continue
			}
		}
		it.key, it.row = key, row
		it.n++
		return true
	}
}

// nextRow reads engine cells until the row key changes, stashing the first
// cell of the following row.
func (it *rowIterator) nextRow(ctx context.Context) ([]byte, wcs.Row, bool) {
	var key []byte
	row := make(wcs.Row)
	if it.pending {
		key = it.pkey
		row[it.pcol] = it.pval
		it.pending = false
	}
	for it.it.Next(ctx) {
		rk, col, err := parseCell(it.it.Key(), it.tbl.name)
		if err != nil {
			it.err = err
			return nil, nil, false
		}
		val := append([]byte{}, it.it.Val()...)
		if key == nil {
			key = append([]byte{}, rk...)
			row[col] = val
			continue
		}
		if !bytes.Equal(rk, key) {
			it.pkey = append([]byte{}, rk...)
			it.pcol, it.pval = col, val
			it.pending = true
			return key, row, true
		}
		row[col] = val
	}
	if err := it.it.Err(); err != nil {
		it.err = err
		return nil, nil, false
	}
	if key == nil {
		return nil, nil, false
	}
	return key, row, true
}

func (it *rowIterator) Key() []byte  { return it.key }
func (it *rowIterator) Row() wcs.Row { return it.row }
func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.it.Err()
}

func (it *rowIterator) Close() error {
	return it.it.Close()
}
