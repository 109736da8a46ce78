package happybase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/happy-go/happykv/wcs"
)

// tableName composes the full table name from the configured prefix.
func (c *Connection) tableName(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + c.sep + name
}

// Table returns a handle to the named table, with the connection's prefix
// applied. The table is not checked for existence.
func (c *Connection) Table(name string) (*Table, error) {
	cl, err := c.clusterHandle()
	if err != nil {
		return nil, err
	}
	return &Table{name: name, tbl: cl.Table(c.tableName(name))}, nil
}

// Tables lists table names visible through the connection. When a prefix
// is configured, only tables under it are returned, with the prefix
// stripped.
func (c *Connection) Tables(ctx context.Context) ([]string, error) {
	cl, err := c.clusterHandle()
	if err != nil {
		return nil, err
	}
	names, err := cl.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if c.prefix == "" {
		return names, nil
	}
	full := c.prefix + c.sep
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, full) {
			out = append(out, strings.TrimPrefix(name, full))
		}
	}
	return out, nil
}

// CreateTable creates a table with the given column families. At least
// one family is required.
func (c *Connection) CreateTable(ctx context.Context, name string, families []string) error {
	if len(families) == 0 {
		return fmt.Errorf("happybase: table %q needs at least one column family", name)
	}
	cl, err := c.clusterHandle()
	if err != nil {
		return err
	}
	return cl.CreateTable(ctx, c.tableName(name), families)
}

// DeleteTable removes the table and all its rows.
func (c *Connection) DeleteTable(ctx context.Context, name string) error {
	cl, err := c.clusterHandle()
	if err != nil {
		return err
	}
	return cl.DeleteTable(ctx, c.tableName(name))
}

// The wrapped service keeps every table enabled and compacts on its own,
// so the legacy administration surface below is accepted but not
// implemented.

func (c *Connection) EnableTable(name string) error  { return ErrUnsupported }
func (c *Connection) DisableTable(name string) error { return ErrUnsupported }

func (c *Connection) IsTableEnabled(name string) (bool, error) {
	return false, ErrUnsupported
}

func (c *Connection) CompactTable(name string, major bool) error {
	return ErrUnsupported
}

// Table is a per-table view over a connection.
type Table struct {
	name string
	tbl  wcs.Table
}

// Name returns the table name without the connection prefix.
func (t *Table) Name() string { return t.name }

// Families returns the column families of the table.
func (t *Table) Families(ctx context.Context) ([]string, error) {
	return t.tbl.Families(ctx)
}

// Row fetches a single row. A missing row yields an empty result, not an
// error.
func (t *Table) Row(ctx context.Context, key []byte, columns ...string) (wcs.Row, error) {
	row, err := t.tbl.Row(ctx, key, columns...)
	if errors.Is(err, wcs.ErrRowNotFound) {
		return wcs.Row{}, nil
	} else if err != nil {
		return nil, err
	}
	return row, nil
}

// Put writes the given cells into a row.
func (t *Table) Put(ctx context.Context, key []byte, data wcs.Row) error {
	return t.tbl.Put(ctx, key, data)
}

// Delete removes the given columns from a row, or the whole row if no
// columns are given.
func (t *Table) Delete(ctx context.Context, key []byte, columns ...string) error {
	return t.tbl.Delete(ctx, key, columns...)
}

// Scan iterates rows in key order.
func (t *Table) Scan(ctx context.Context, opt wcs.ScanOptions) (wcs.Iterator, error) {
	return t.tbl.Scan(ctx, opt)
}
