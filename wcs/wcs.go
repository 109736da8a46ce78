package wcs

import (
	"context"
	"errors"

	"github.com/happy-go/happykv/base"
)

var (
	ErrNotStarted     = errors.New("wcs: client is not started")
	ErrNotAdmin       = errors.New("wcs: administrative client required")
	ErrTableNotFound  = errors.New("wcs: table not found")
	ErrTableExists    = errors.New("wcs: table already exists")
	ErrRowNotFound    = errors.New("wcs: row not found")
	ErrFamilyNotFound = errors.New("wcs: column family not found")
)

// Options are passed to a driver when constructing a client.
type Options struct {
	// Admin marks the client for administrative use. Only administrative
	// clients may list clusters and create or delete tables.
	Admin bool
	// TimeoutSeconds overrides the driver's default timeout for
	// establishing a connection. Nil means the driver default.
	TimeoutSeconds *float64
}

// Client is a handle to a wide-column storage service.
//
// A client is constructed in a stopped state. Start establishes the
// underlying connection and Stop terminates it. Both are safe to call
// multiple times; repeated calls in the same state are no-ops.
type Client interface {
	Start() error
	Stop() error
	// Admin reports whether the client was marked for administrative use.
	Admin() bool
	// MarkAdmin marks the client for administrative use.
	MarkAdmin()
	// ListClusters enumerates clusters reachable by the client, together
	// with the names of zones that could not be queried.
	ListClusters(ctx context.Context) (clusters []Cluster, failedZones []string, err error)
}

// Cluster is a handle to a single provisioned cluster of the service.
// Tables hang off the cluster.
type Cluster interface {
	// Name returns the cluster name, unique within its client.
	Name() string
	// Client returns the client that owns the handle.
	Client() Client
	// Copy returns an equivalent handle that can be retained and mutated
	// without affecting the original.
	Copy() Cluster
	ListTables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, table string, families []string) error
	DeleteTable(ctx context.Context, table string) error
	// Table returns a handle to the named table. The table is not checked
	// for existence; operations on a missing table fail with ErrTableNotFound.
	Table(name string) Table
}

// Row maps a fully qualified column ("family:qualifier") to a cell value.
type Row map[string][]byte

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for c, v := range r {
		v2 := make([]byte, len(v))
		copy(v2, v)
		out[c] = v2
	}
	return out
}

// Table is a handle to a single table of a cluster.
type Table interface {
	Name() string
	// Families returns the column families of the table.
	Families(ctx context.Context) ([]string, error)
	// Row fetches a single row. If columns are given, only those columns
	// are returned. It returns ErrRowNotFound for a missing row.
	Row(ctx context.Context, key []byte, columns ...string) (Row, error)
	// Put writes the given cells into a row, keeping cells that are not
	// mentioned in data.
	Put(ctx context.Context, key []byte, data Row) error
	// Delete removes the given columns from a row, or the whole row if no
	// columns are given. Deleting a missing row is not an error.
	Delete(ctx context.Context, key []byte, columns ...string) error
	// Scan iterates rows in lexicographic key order.
	Scan(ctx context.Context, opt ScanOptions) (Iterator, error)
}

// ScanOptions limit a table scan.
type ScanOptions struct {
	// Prefix limits the scan to rows with the given key prefix.
	Prefix []byte
	// Start and Stop limit the scan to the [Start, Stop) key range.
	// Ignored when Prefix is set.
	Start, Stop []byte
	// Columns limits returned cells to the given columns.
	Columns []string
	// Limit stops the scan after the given number of rows, if positive.
	Limit int
}

// Iterator iterates rows of a table scan.
type Iterator interface {
	base.Iterator
	// Key returns the key of the current row.
	Key() []byte
	// Row returns the cells of the current row.
	Row() Row
}
