package wcstest

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/pborman/uuid"
	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
)

// Func is a constructor for client implementations.
// It returns a stopped client marked for administrative use.
type Func func(t testing.TB) wcs.Client

type Options struct {
	// NoRestart indicates that data does not survive a client stop/start cycle.
	NoRestart bool
}

// RunTest runs all tests for wide-column client implementations.
func RunTest(t *testing.T, fnc Func, opts *Options) {
	if opts == nil {
		opts = &Options{}
	}

	for _, c := range testList {
		t.Run(c.name, func(t *testing.T) {
			if c.restart && opts.NoRestart {
				t.Skip("implementation doesn't persist data across restarts")
			}

			cli := fnc(t)
			t.Cleanup(func() {
				cli.Stop()
				cli.Stop() // test double stop
			})
			c.test(t, cli)
		})
	}
}

// RunTestLocal is a wrapper for RunTest that automatically creates a temporary directory and opens a client over it.
func RunTestLocal(t *testing.T, open func(path string) (wcs.Client, error), opts *Options) {
	RunTest(t, func(t testing.TB) wcs.Client {
		dir, err := ioutil.TempDir("", "happykv-wcs-")
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = os.RemoveAll(dir)
		})

		cli, err := open(dir)
		require.NoError(t, err)
		return cli
	}, opts)
}

// TableName generates a unique table name.
func TableName() string {
	return "tbl_" + uuid.New()
}

var testList = []struct {
	name    string
	test    func(t testing.TB, cli wcs.Client)
	restart bool // requires persistence across stop/start
}{
	{name: "lifecycle", test: lifecycle},
	{name: "tables", test: tables},
	{name: "rows", test: rows},
	{name: "scan", test: scan},
	{name: "restart", test: restart, restart: true},
}

// cluster starts the client and returns its single cluster.
func cluster(t testing.TB, cli wcs.Client) wcs.Cluster {
	ctx := context.TODO()
	require.NoError(t, cli.Start())
	clusters, failed, err := cli.ListClusters(ctx)
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Len(t, clusters, 1)
	return clusters[0]
}

func lifecycle(t testing.TB, cli wcs.Client) {
	ctx := context.TODO()

	_, _, err := cli.ListClusters(ctx)
	require.Equal(t, wcs.ErrNotStarted, err)

	cl := cluster(t, cli)
	require.NotEmpty(t, cl.Name())
	require.Same(t, cli, cl.Client())

	// starting a started client is a no-op
	require.NoError(t, cli.Start())

	cp := cl.Copy()
	require.Equal(t, cl.Name(), cp.Name())
	require.Same(t, cl.Client(), cp.Client())

	require.NoError(t, cli.Stop())
	require.NoError(t, cli.Stop())

	_, _, err = cli.ListClusters(ctx)
	require.Equal(t, wcs.ErrNotStarted, err)
}

func tables(t testing.TB, cli wcs.Client) {
	ctx := context.TODO()
	cl := cluster(t, cli)
	td := NewTest(t, cl)

	name := TableName()
	td.CreateTable(name, "cf1", "cf2")
	require.Contains(t, td.Tables(), name)

	err := cl.CreateTable(ctx, name, []string{"cf1"})
	require.ErrorIs(t, err, wcs.ErrTableExists)

	fams, err := cl.Table(name).Families(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"cf1", "cf2"}, fams)

	_, err = cl.Table("missing").Families(ctx)
	require.ErrorIs(t, err, wcs.ErrTableNotFound)

	err = cl.DeleteTable(ctx, "missing")
	require.ErrorIs(t, err, wcs.ErrTableNotFound)

	require.NoError(t, cl.DeleteTable(ctx, name))
	require.NotContains(t, td.Tables(), name)
}

func rows(t testing.TB, cli wcs.Client) {
	ctx := context.TODO()
	cl := cluster(t, cli)
	td := NewTest(t, cl)

	name := TableName()
	td.CreateTable(name, "cf1", "cf2")
	tbl := cl.Table(name)

	key := []byte("row1")
	td.NotExists(name, key)

	td.Put(name, key, wcs.Row{
		"cf1:a": []byte("1"),
		"cf2:b": []byte("2"),
	})
	td.ExpectRow(name, key, wcs.Row{
		"cf1:a": []byte("1"),
		"cf2:b": []byte("2"),
	})

	// column filters: exact cell and whole family
	td.ExpectRow(name, key, wcs.Row{"cf1:a": []byte("1")}, "cf1:a")
	td.ExpectRow(name, key, wcs.Row{"cf2:b": []byte("2")}, "cf2")

	err := tbl.Put(ctx, key, wcs.Row{"nope:a": []byte("x")})
	require.ErrorIs(t, err, wcs.ErrFamilyNotFound)

	// puts merge with existing cells
	td.Put(name, key, wcs.Row{"cf1:c": []byte("3")})
	td.ExpectRow(name, key, wcs.Row{
		"cf1:a": []byte("1"),
		"cf1:c": []byte("3"),
		"cf2:b": []byte("2"),
	})

	// overwrite a single cell
	td.Put(name, key, wcs.Row{"cf1:a": []byte("10")})
	td.ExpectRow(name, key, wcs.Row{"cf1:a": []byte("10")}, "cf1:a")

	require.NoError(t, tbl.Delete(ctx, key, "cf1:a"))
	td.ExpectRow(name, key, wcs.Row{
		"cf1:c": []byte("3"),
		"cf2:b": []byte("2"),
	})

	require.NoError(t, tbl.Delete(ctx, key, "cf1"))
	td.ExpectRow(name, key, wcs.Row{"cf2:b": []byte("2")})

	require.NoError(t, tbl.Delete(ctx, key))
	td.NotExists(name, key)

	// deleting a missing row is not an error
	require.NoError(t, tbl.Delete(ctx, []byte("missing")))
}

func scan(t testing.TB, cli wcs.Client) {
	cl := cluster(t, cli)
	td := NewTest(t, cl)

	name := TableName()
	td.CreateTable(name, "cf")

	rows := []ScanRow{
		{Key: []byte("aa"), Row: wcs.Row{"cf:x": []byte("1")}},
		{Key: []byte("ab"), Row: wcs.Row{"cf:x": []byte("2"), "cf:y": []byte("2b")}},
		{Key: []byte("b"), Row: wcs.Row{"cf:y": []byte("3")}},
		{Key: []byte("c"), Row: wcs.Row{"cf:x": []byte("4")}},
	}
	for _, r := range rows {
		td.Put(name, r.Key, r.Row)
	}

	td.ExpectScan(name, wcs.ScanOptions{}, rows)
	td.ExpectScan(name, wcs.ScanOptions{Prefix: []byte("a")}, rows[:2])
	td.ExpectScan(name, wcs.ScanOptions{Prefix: []byte("ab")}, rows[1:2])
	td.ExpectScan(name, wcs.ScanOptions{Start: []byte("ab"), Stop: []byte("c")}, rows[1:3])
	td.ExpectScan(name, wcs.ScanOptions{Start: []byte("b")}, rows[2:])
	td.ExpectScan(name, wcs.ScanOptions{Stop: []byte("b")}, rows[:2])
	td.ExpectScan(name, wcs.ScanOptions{Limit: 2}, rows[:2])
	td.ExpectScan(name, wcs.ScanOptions{Prefix: []byte("z")}, nil)

	// column selection drops rows without matching cells
	td.ExpectScan(name, wcs.ScanOptions{Columns: []string{"cf:y"}}, []ScanRow{
		{Key: []byte("ab"), Row: wcs.Row{"cf:y": []byte("2b")}},
		{Key: []byte("b"), Row: wcs.Row{"cf:y": []byte("3")}},
	})
}

func restart(t testing.TB, cli wcs.Client) {
	cl := cluster(t, cli)
	td := NewTest(t, cl)

	name := TableName()
	td.CreateTable(name, "cf")
	td.Put(name, []byte("k"), wcs.Row{"cf:v": []byte("1")})

	require.NoError(t, cli.Stop())
	require.NoError(t, cli.Start())

	require.Contains(t, td.Tables(), name)
	td.ExpectRow(name, []byte("k"), wcs.Row{"cf:v": []byte("1")})
}
