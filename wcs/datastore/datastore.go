// Package datastore provides a wide-column backend on Google Cloud Datastore.
package datastore

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs"
)

const Name = "datastore"

func init() {
	wcs.Register(wcs.Registration{
		Registration: base.Registration{
			Name: Name, Title: "Datastore",
			Local: false, Volatile: false,
		},
		Open: func(addr string, opt wcs.Options) (wcs.Client, error) {
			return New(addr, opt), nil
		},
	})
}

var (
	_ wcs.Client  = (*Client)(nil)
	_ wcs.Cluster = (*cluster)(nil)
	_ wcs.Table   = (*table)(nil)
)

const (
	kindMeta  = "_happykv"
	idMeta    = "wcs"
	kindTable = "table"
)

// New creates a client for the Datastore backend. The address is the
// project ID. The connection is established on Start.
func New(project string, opt wcs.Options) *Client {
	return &Client{project: project, opt: opt}
}

type Client struct {
	project string
	opt     wcs.Options

	mu      sync.Mutex
	cli     *datastore.Client
	started bool
}

func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	ctx := context.TODO()
	if c.opt.TimeoutSeconds != nil {
		var cancel context.CancelFunc
		d := time.Duration(*c.opt.TimeoutSeconds * float64(time.Second))
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	cli, err := datastore.NewClient(ctx, c.project)
	if err != nil {
		return err
	}
	c.cli = cli
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
	err := c.cli.Close()
	c.cli = nil
	return err
}

func (c *Client) Admin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opt.Admin
}

func (c *Client) MarkAdmin() {
	c.mu.Lock()
	c.opt.Admin = true
	c.mu.Unlock()
}

func (c *Client) ready(admin bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return wcs.ErrNotStarted
	}
	if admin && !c.opt.Admin {
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

func (c *Client) metaRoot() *datastore.Key {
	return datastore.NameKey(kindMeta, idMeta, nil)
}

func (c *Client) tableKey(name string) *datastore.Key {
	return datastore.NameKey(kindTable, name, c.metaRoot())
}

// dataKind returns the entity kind holding rows of a table. The name is
// hex-encoded to stay clear of Datastore kind naming restrictions.
func dataKind(table string) string {
	return "t_" + hex.EncodeToString([]byte(table))
}

// rowKey builds the entity key of a row. The key name is the hex-encoded
// row key, which preserves the bytewise order under Datastore key ordering.
func rowKey(table string, key []byte) *datastore.Key {
	return datastore.NameKey(dataKind(table), hex.EncodeToString(key), nil)
}

type tableObject struct {
	Families []string `datastore:",noindex"`
}

var _ datastore.PropertyLoadSaver = (*payload)(nil)

// payload maps a row to entity properties, one property per cell, with
// hex-encoded column names.
type payload struct {
	row wcs.Row
}

func (p *payload) Load(props []datastore.Property) error {
	p.row = make(wcs.Row, len(props))
	for _, f := range props {
		name, err := hex.DecodeString(f.Name)
		if err != nil {
			return err
		}
		val, _ := f.Value.([]byte)
		p.row[string(name)] = val
	}
	return nil
}

func (p *payload) Save() ([]datastore.Property, error) {
	out := make([]datastore.Property, 0, len(p.row))
	for col, val := range p.row {
		out = append(out, datastore.Property{
			Name:    hex.EncodeToString([]byte(col)),
			NoIndex: true,
			Value:   val,
		})
	}
	return out, nil
}

type cluster struct {
	c *Client
}

func (cl *cluster) Name() string       { return cl.c.project }
func (cl *cluster) Client() wcs.Client { return cl.c }
func (cl *cluster) Copy() wcs.Cluster  { return &cluster{c: cl.c} }

func (cl *cluster) ListTables(ctx context.Context) ([]string, error) {
	if err := cl.c.ready(true); err != nil {
		return nil, err
	}
	q := datastore.NewQuery(kindTable).Ancestor(cl.c.metaRoot()).
		Order("__key__").KeysOnly()
	keys, err := cl.c.cli.GetAll(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Name)
	}
	return out, nil
}

func (cl *cluster) CreateTable(ctx context.Context, name string, families []string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	k := cl.c.tableKey(name)
	_, err := cl.c.cli.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var t tableObject
		err := tx.Get(k, &t)
		if err == nil {
			return wcs.ErrTableExists
		} else if err != datastore.ErrNoSuchEntity {
			return err
		}
		t = tableObject{Families: families}
		_, err = tx.Put(k, &t)
		return err
	})
	return err
}

func (cl *cluster) DeleteTable(ctx context.Context, name string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	var t tableObject
	err := cl.c.cli.Get(ctx, cl.c.tableKey(name), &t)
	if err == datastore.ErrNoSuchEntity {
		return wcs.ErrTableNotFound
	} else if err != nil {
		return err
	}
	for {
		q := datastore.NewQuery(dataKind(name)).KeysOnly().Limit(100)
		keys, err := cl.c.cli.GetAll(ctx, q, nil)
		if err != nil {
			return err
		} else if len(keys) == 0 {
			break
		}
		if err = cl.c.cli.DeleteMulti(ctx, keys); err != nil {
			return err
		}
	}
	return cl.c.cli.Delete(ctx, cl.c.tableKey(name))
}

func (cl *cluster) Table(name string) wcs.Table {
	return &table{c: cl.c, name: name}
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
	var d tableObject
	err := t.c.cli.Get(ctx, t.c.tableKey(t.name), &d)
	if err == datastore.ErrNoSuchEntity {
		return nil, wcs.ErrTableNotFound
	} else if err != nil {
		return nil, err
	}
	return d.Families, nil
}

func (t *table) Row(ctx context.Context, key []byte, columns ...string) (wcs.Row, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	if _, err := t.families(ctx); err != nil {
		return nil, err
	}
	var p payload
	err := t.c.cli.Get(ctx, rowKey(t.name, key), &p)
	if err == datastore.ErrNoSuchEntity {
		return nil, wcs.ErrRowNotFound
	} else if err != nil {
		return nil, err
	}
	if len(p.row) == 0 {
		return nil, wcs.ErrRowNotFound
	}
	return wcs.FilterColumns(p.row, columns), nil
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
			return wcs.ErrFamilyNotFound
		}
	}
	if len(data) == 0 {
		return nil
	}
	k := rowKey(t.name, key)
	_, err = t.c.cli.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var p payload
		err := tx.Get(k, &p)
		if err == datastore.ErrNoSuchEntity {
			p.row = make(wcs.Row)
		} else if err != nil {
			return err
		}
		for col, val := range data {
			p.row[col] = val
		}
		_, err = tx.Put(k, &p)
		return err
	})
	return err
}

func (t *table) Delete(ctx context.Context, key []byte, columns ...string) error {
	if err := t.c.ready(false); err != nil {
		return err
	}
	if _, err := t.families(ctx); err != nil {
		return err
	}
	k := rowKey(t.name, key)
	if len(columns) == 0 {
		return t.c.cli.Delete(ctx, k)
	}
	_, err := t.c.cli.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var p payload
		err := tx.Get(k, &p)
		if err == datastore.ErrNoSuchEntity {
			return nil
		} else if err != nil {
			return err
		}
		for col := range p.row {
			if colSelected(col, columns) {
				delete(p.row, col)
			}
		}
		if len(p.row) == 0 {
			return tx.Delete(k)
		}
		_, err = tx.Put(k, &p)
		return err
	})
	return err
}

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
	q := datastore.NewQuery(dataKind(t.name)).Order("__key__")
	start, stop := opt.KeyRange()
	if len(start) != 0 {
		q = q.Filter("__key__ >=", rowKey(t.name, start))
	}
	if len(stop) != 0 {
		q = q.Filter("__key__ <", rowKey(t.name, stop))
	}
	return &rowIterator{it: t.c.cli.Run(ctx, q), opt: opt}, nil
}

type rowIterator struct {
	it  *datastore.Iterator
	opt wcs.ScanOptions

	n   int
	key []byte
	row wcs.Row
	err error
}

func (it *rowIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for {
		if it.opt.Limit > 0 && it.n >= it.opt.Limit {
			return false
		}
		var p payload
		k, err := it.it.Next(&p)
		if err != nil {
			it.err = err
			return false
		}
		row := p.row
		if len(it.opt.Columns) != 0 {
			row = wcs.FilterColumns(row, it.opt.Columns)
			if len(row) == 0 {
				continue
			}
		}
		key, err := hex.DecodeString(k.Name)
		if err != nil {
			it.err = err
			return false
		}
		it.key, it.row = key, row
		it.n++
		return true
	}
}

func (it *rowIterator) Key() []byte  { return it.key }
func (it *rowIterator) Row() wcs.Row { return it.row }

func (it *rowIterator) Err() error {
	if it.err == iterator.Done {
		return nil
	}
	return it.err
}

func (it *rowIterator) Close() error {
	return it.Err()
}
