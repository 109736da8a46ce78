package sqlwcs

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/happy-go/happykv/wcs"
)

const (
	defaultDatabase = "happykv"

	metaTable  = "happykv_tables"
	cellsTable = "happykv_cells"
)

// OpenSQL opens a raw connection to a database of a registered driver.
func OpenSQL(name, addr, db string) (*sql.DB, error) {
	r := ByName(name)
	if r == nil {
		return nil, fmt.Errorf("not registered: %q", name)
	}
	dsn, err := r.DSN(addr, db)
	if err != nil {
		return nil, err
	}
	return sql.Open(r.Driver, dsn)
}

var (
	_ wcs.Client  = (*Client)(nil)
	_ wcs.Cluster = (*cluster)(nil)
	_ wcs.Table   = (*table)(nil)
)

// New creates a client for the SQL backend described by the registration.
// The connection is established on Start. Tables are stored in two shared
// relations: one for table schemas and one for individual cells.
func New(reg Registration, addr, ns string, opt wcs.Options) *Client {
	dia := reg.Dialect
	dia.SetDefaults()
	return &Client{reg: reg, dia: dia, addr: addr, ns: ns, opt: opt}
}

type Client struct {
	reg  Registration
	dia  Dialect
	addr string
	ns   string
	opt  wcs.Options

	mu      sync.Mutex
	db      *sql.DB
	started bool
}

func (c *Client) err(err error) error {
	if err == nil {
		return nil
	}
	if f := c.dia.Errors; f != nil {
		return f(err)
	}
	return err
}

func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	dsn, err := c.reg.DSN(c.addr, c.ns)
	if err != nil {
		return err
	}
	db, err := sql.Open(c.reg.Driver, dsn)
	if err != nil {
		return err
	}
	ctx := context.TODO()
	if c.opt.TimeoutSeconds != nil {
		var cancel context.CancelFunc
		d := time.Duration(*c.opt.TimeoutSeconds * float64(time.Second))
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return c.err(err)
	}
	if err = c.ensureSchema(ctx, db); err != nil {
		db.Close()
		return err
	}
	c.db = db
	c.started = true
	return nil
}

func (c *Client) ensureSchema(ctx context.Context, db *sql.DB) error {
	d := &c.dia
	_, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
	name %s NOT NULL,
	families %s NOT NULL,
	PRIMARY KEY (name)
)`,
		d.QuoteIdentifier(metaTable), d.StringKeyType, d.BytesType))
	if err != nil {
		return c.err(err)
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
	tbl %s NOT NULL,
	rkey %s NOT NULL,
	col %s NOT NULL,
	val %s NOT NULL,
	PRIMARY KEY (tbl, rkey, col)
)`,
		d.QuoteIdentifier(cellsTable), d.StringKeyType, d.BytesKeyType, d.StringKeyType, d.BytesType))
	return c.err(err)
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	err := c.db.Close()
	c.db = nil
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

func encodeFamilies(families []string) []byte {
	return []byte(strings.Join(families, "\n"))
}

func decodeFamilies(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "\n")
}

type cluster struct {
	c *Client
}

func (cl *cluster) Name() string       { return cl.c.ns }
func (cl *cluster) Client() wcs.Client { return cl.c }
func (cl *cluster) Copy() wcs.Cluster  { return &cluster{c: cl.c} }

func (cl *cluster) ListTables(ctx context.Context) ([]string, error) {
	if err := cl.c.ready(true); err != nil {
		return nil, err
	}
	d := &cl.c.dia
	rows, err := cl.c.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT name FROM %s ORDER BY name`, d.QuoteIdentifier(metaTable)))
	if err != nil {
		return nil, cl.c.err(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, cl.c.err(rows.Err())
}

func (cl *cluster) CreateTable(ctx context.Context, name string, families []string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	d := &cl.c.dia
	var one int
	err := cl.c.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT 1 FROM %s WHERE name = %s`,
		d.QuoteIdentifier(metaTable), d.Placeholder(0)), name).Scan(&one)
	if err == nil {
		return wcs.ErrTableExists
	} else if err != sql.ErrNoRows {
		return cl.c.err(err)
	}
	_, err = cl.c.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, families) VALUES (%s, %s)`,
		d.QuoteIdentifier(metaTable), d.Placeholder(0), d.Placeholder(1)),
		name, encodeFamilies(families))
	return cl.c.err(err)
}

func (cl *cluster) DeleteTable(ctx context.Context, name string) error {
	if err := cl.c.ready(true); err != nil {
		return err
	}
	d := &cl.c.dia
	res, err := cl.c.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE name = %s`,
		d.QuoteIdentifier(metaTable), d.Placeholder(0)), name)
	if err != nil {
		return cl.c.err(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wcs.ErrTableNotFound
	}
	_, err = cl.c.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE tbl = %s`,
		d.QuoteIdentifier(cellsTable), d.Placeholder(0)), name)
	return cl.c.err(err)
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
	d := &t.c.dia
	var data []byte
	err := t.c.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT families FROM %s WHERE name = %s`,
		d.QuoteIdentifier(metaTable), d.Placeholder(0)), t.name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, wcs.ErrTableNotFound
	} else if err != nil {
		return nil, t.c.err(err)
	}
	return decodeFamilies(data), nil
}

func (t *table) Row(ctx context.Context, key []byte, columns ...string) (wcs.Row, error) {
	if err := t.c.ready(false); err != nil {
		return nil, err
	}
	if _, err := t.families(ctx); err != nil {
		return nil, err
	}
	d := &t.c.dia
	rows, err := t.c.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT col, val FROM %s WHERE tbl = %s AND rkey = %s`,
		d.QuoteIdentifier(cellsTable), d.Placeholder(0), d.Placeholder(1)),
		t.name, key)
	if err != nil {
		return nil, t.c.err(err)
	}
	defer rows.Close()
	row := make(wcs.Row)
	for rows.Next() {
		var (
			col string
			val []byte
		)
		if err := rows.Scan(&col, &val); err != nil {
			return nil, err
		}
		row[col] = val
	}
	if err := rows.Err(); err != nil {
		return nil, t.c.err(err)
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
	d := &t.c.dia
	var upsert string
	switch {
	case d.ReplaceStmt:
		upsert = fmt.Sprintf(
			`REPLACE INTO %s (tbl, rkey, col, val) VALUES (%s, %s, %s, %s)`,
			d.QuoteIdentifier(cellsTable),
			d.Placeholder(0), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3))
	case d.OnConflict:
		upsert = fmt.Sprintf(
			`INSERT INTO %s (tbl, rkey, col, val) VALUES (%s, %s, %s, %s)
ON CONFLICT (tbl, rkey, col) DO UPDATE SET val = EXCLUDED.val`,
			d.QuoteIdentifier(cellsTable),
			d.Placeholder(0), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3))
	default:
		return fmt.Errorf("dialect does not support upserts")
	}
	for col, val := range data {
		if _, err := t.c.db.ExecContext(ctx, upsert, t.name, key, col, val); err != nil {
			return t.c.err(err)
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
	d := &t.c.dia
	if len(columns) == 0 {
		_, err := t.c.db.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE tbl = %s AND rkey = %s`,
			d.QuoteIdentifier(cellsTable), d.Placeholder(0), d.Placeholder(1)),
			t.name, key)
		return t.c.err(err)
	}
	rows, err := t.c.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT col FROM %s WHERE tbl = %s AND rkey = %s`,
		d.QuoteIdentifier(cellsTable), d.Placeholder(0), d.Placeholder(1)),
		t.name, key)
	if err != nil {
		return t.c.err(err)
	}
	var drop []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			rows.Close()
			return err
		}
		if colSelected(col, columns) {
			drop = append(drop, col)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return t.c.err(err)
	}
	rows.Close()
	for _, col := range drop {
		_, err := t.c.db.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE tbl = %s AND rkey = %s AND col = %s`,
			d.QuoteIdentifier(cellsTable), d.Placeholder(0), d.Placeholder(1), d.Placeholder(2)),
			t.name, key, col)
		if err != nil {
			return t.c.err(err)
		}
	}
	return nil
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
	d := &t.c.dia
	qu := fmt.Sprintf(
		`SELECT rkey, col, val FROM %s WHERE tbl = %s`,
		d.QuoteIdentifier(cellsTable), d.Placeholder(0))
	args := []interface{}{t.name}
	start, stop := opt.KeyRange()
	if len(start) != 0 {
		qu += fmt.Sprintf(` AND rkey >= %s`, d.Placeholder(len(args)))
		args = append(args, start)
	}
	if len(stop) != 0 {
		qu += fmt.Sprintf(` AND rkey < %s`, d.Placeholder(len(args)))
		args = append(args, stop)
	}
	qu += ` ORDER BY rkey, col`
	rows, err := t.c.db.QueryContext(ctx, qu, args...)
	if err != nil {
		return nil, t.c.err(err)
	}
	return &iterator{c: t.c, rows: rows, opt: opt}, nil
}

// iterator groups the cells of the ordered query result into rows. A cell
// that belongs to the next row stays pending until the next call.
type iterator struct {
	c    *Client
	rows *sql.Rows
	opt  wcs.ScanOptions

	n   int
	key []byte
	row wcs.Row

	pkey    []byte
	pcol    string
	pval    []byte
	pending bool

	done bool
	err  error
}

func (it *iterator) scan() bool {
	if it.done {
		return false
	}
	if !it.rows.Next() {
		it.done = true
		return false
	}
	var (
		key, val []byte
		col      string
	)
	if err := it.rows.Scan(&key, &col, &val); err != nil {
		it.err = err
		it.done = true
		return false
	}
	it.pkey, it.pcol, it.pval = key, col, val
	it.pending = true
	return true
}

func (it *iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for {
		if it.opt.Limit > 0 && it.n >= it.opt.Limit {
			return false
		}
		if !it.pending && !it.scan() {
			return false
		}
		key := it.pkey
		row := wcs.Row{it.pcol: it.pval}
		it.pending = false
		for it.scan() && bytes.Equal(it.pkey, key) {
			row[it.pcol] = it.pval
			it.pending = false
		}
		if it.err != nil {
			return false
		}
		if len(it.opt.Columns) != 0 {
			row = wcs.FilterColumns(row, it.opt.Columns)
			if len(row) == 0 {
				if it.done {
					return false
				}
				continue
			}
		}
		it.key, it.row = key, row
		it.n++
		return true
	}
}

func (it *iterator) Key() []byte  { return it.key }
func (it *iterator) Row() wcs.Row { return it.row }

func (it *iterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.c.err(it.rows.Err())
}

func (it *iterator) Close() error {
	return it.rows.Close()
}
