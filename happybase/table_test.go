package happybase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
	_ "github.com/happy-go/happykv/wcs/btree"
)

// btreeFactory builds clients over the in-memory engine. The counter, if
// given, tracks how many clients were constructed.
func btreeFactory(count *int) ClientFactory {
	return func(opt wcs.Options) (wcs.Client, error) {
		if count != nil {
			*count++
		}
		return wcs.ByName("btree").Open("", opt)
	}
}

func newTestConnection(t testing.TB, params Params) *Connection {
	conn, err := NewConnectionFactory(btreeFactory(nil), params)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestConnectionCreateTable(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{"table_prefix": "pfx"})

	require.Error(t, conn.CreateTable(ctx, "users", nil))

	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf1", "cf2"}))
	require.ErrorIs(t, conn.CreateTable(ctx, "users", []string{"cf1"}), wcs.ErrTableExists)

	tbl, err := conn.Table("users")
	require.NoError(t, err)
	fams, err := tbl.Families(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"cf1", "cf2"}, fams)

	// The stored name carries the prefix.
	names, err := conn.Cluster().ListTables(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"pfx_users"}, names)
}

func TestConnectionTables(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{"table_prefix": "pfx"})

	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	require.NoError(t, conn.CreateTable(ctx, "orders", []string{"cf"}))
	// A table outside the prefix must not show up.
	require.NoError(t, conn.Cluster().CreateTable(ctx, "other", []string{"cf"}))

	names, err := conn.Tables(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "users"}, names)

	require.NoError(t, conn.DeleteTable(ctx, "orders"))
	names, err = conn.Tables(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, names)
}

func TestConnectionTablesNoPrefix(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})

	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	names, err := conn.Tables(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, names)
}

func TestConnectionUnsupportedAdmin(t *testing.T) {
	conn := newTestConnection(t, Params{})

	require.ErrorIs(t, conn.EnableTable("users"), ErrUnsupported)
	require.ErrorIs(t, conn.DisableTable("users"), ErrUnsupported)
	require.ErrorIs(t, conn.CompactTable("users", false), ErrUnsupported)
	_, err := conn.IsTableEnabled("users")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestTableRowPutDelete(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})
	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	tbl, err := conn.Table("users")
	require.NoError(t, err)
	require.Equal(t, "users", tbl.Name())

	// Missing rows yield an empty result, not an error.
	row, err := tbl.Row(ctx, []byte("alice"))
	require.NoError(t, err)
	require.Empty(t, row)

	require.NoError(t, tbl.Put(ctx, []byte("alice"), wcs.Row{
		"cf:name": []byte("Alice"),
		"cf:age":  []byte("30"),
	}))
	row, err = tbl.Row(ctx, []byte("alice"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{
		"cf:name": []byte("Alice"),
		"cf:age":  []byte("30"),
	}, row)

	row, err = tbl.Row(ctx, []byte("alice"), "cf:name")
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:name": []byte("Alice")}, row)

	require.NoError(t, tbl.Delete(ctx, []byte("alice"), "cf:age"))
	row, err = tbl.Row(ctx, []byte("alice"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:name": []byte("Alice")}, row)

	require.NoError(t, tbl.Delete(ctx, []byte("alice")))
	row, err = tbl.Row(ctx, []byte("alice"))
	require.NoError(t, err)
	require.Empty(t, row)
}

func TestTableScan(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})
	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	tbl, err := conn.Table("users")
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, tbl.Put(ctx, []byte(key), wcs.Row{"cf:v": []byte(key)}))
	}

	it, err := tbl.Scan(ctx, wcs.ScanOptions{Start: []byte("b")})
	require.NoError(t, err)
	defer it.Close()
	var keys []string
	for it.Next(ctx) {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"b", "c"}, keys)
}
