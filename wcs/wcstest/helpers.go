package wcstest

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
)

func NewTest(t testing.TB, cl wcs.Cluster) *Test {
	return &Test{t: t, cl: cl}
}

type Test struct {
	t  testing.TB
	cl wcs.Cluster
}

func (t Test) CreateTable(name string, families ...string) {
	err := t.cl.CreateTable(context.TODO(), name, families)
	require.NoError(t.t, err)
}

func (t Test) Tables() []string {
	names, err := t.cl.ListTables(context.TODO())
	require.NoError(t.t, err)
	require.True(t.t, sort.StringsAreSorted(names))
	return names
}

func (t Test) Put(table string, key []byte, data wcs.Row) {
	err := t.cl.Table(table).Put(context.TODO(), key, data)
	require.NoError(t.t, err)
}

func (t Test) ExpectRow(table string, key []byte, exp wcs.Row, columns ...string) {
	row, err := t.cl.Table(table).Row(context.TODO(), key, columns...)
	require.NoError(t.t, err)
	require.Equal(t.t, exp, row)
}

func (t Test) NotExists(table string, key []byte) {
	row, err := t.cl.Table(table).Row(context.TODO(), key)
	require.Equal(t.t, wcs.ErrRowNotFound, err)
	require.Equal(t.t, wcs.Row(nil), row)
}

// ScanRow is a single expected result of a table scan.
type ScanRow struct {
	Key []byte
	Row wcs.Row
}

func (t Test) ExpectScan(table string, opt wcs.ScanOptions, exp []ScanRow) {
	ctx := context.TODO()
	it, err := t.cl.Table(table).Scan(ctx, opt)
	require.NoError(t.t, err)
	defer it.Close()

	var got []ScanRow
	for it.Next(ctx) {
		got = append(got, ScanRow{
			Key: append([]byte{}, it.Key()...),
			Row: it.Row().Clone(),
		})
	}
	require.NoError(t.t, it.Err())
	if len(exp) == 0 {
		exp = nil
	}
	require.Equal(t.t, exp, got)
	require.True(t.t, sort.SliceIsSorted(got, func(i, j int) bool {
		return bytes.Compare(got[i].Key, got[j].Key) < 0
	}))
}
