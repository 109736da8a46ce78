package happybase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
)

func TestBatchSend(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})
	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	tbl, err := conn.Table("users")
	require.NoError(t, err)

	b := tbl.Batch(0)
	require.NoError(t, b.Put(ctx, []byte("a"), wcs.Row{"cf:v": []byte("1")}))
	require.NoError(t, b.Put(ctx, []byte("b"), wcs.Row{"cf:v": []byte("2")}))

	// Nothing reaches the table before Send.
	row, err := tbl.Row(ctx, []byte("a"))
	require.NoError(t, err)
	require.Empty(t, row)

	require.NoError(t, b.Send(ctx))
	row, err = tbl.Row(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:v": []byte("1")}, row)

	// The buffer is cleared; an empty Send is a no-op.
	require.NoError(t, b.Send(ctx))
}

func TestBatchAutoFlush(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})
	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	tbl, err := conn.Table("users")
	require.NoError(t, err)

	b := tbl.Batch(2)
	require.NoError(t, b.Put(ctx, []byte("a"), wcs.Row{"cf:v": []byte("1")}))
	row, err := tbl.Row(ctx, []byte("a"))
	require.NoError(t, err)
	require.Empty(t, row)

	// The second mutation reaches the threshold and flushes both.
	require.NoError(t, b.Put(ctx, []byte("b"), wcs.Row{"cf:v": []byte("2")}))
	row, err = tbl.Row(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:v": []byte("1")}, row)
	row, err = tbl.Row(ctx, []byte("b"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:v": []byte("2")}, row)
}

func TestBatchDelete(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})
	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	tbl, err := conn.Table("users")
	require.NoError(t, err)

	require.NoError(t, tbl.Put(ctx, []byte("a"), wcs.Row{
		"cf:x": []byte("1"),
		"cf:y": []byte("2"),
	}))

	b := tbl.Batch(0)
	require.NoError(t, b.Delete(ctx, []byte("a"), "cf:x"))
	require.NoError(t, b.Send(ctx))

	row, err := tbl.Row(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:y": []byte("2")}, row)
}

func TestBatchNilPut(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})
	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	tbl, err := conn.Table("users")
	require.NoError(t, err)

	require.NoError(t, tbl.Put(ctx, []byte("a"), wcs.Row{"cf:v": []byte("1")}))

	// A nil put writes no cells; it must not turn into a row delete.
	b := tbl.Batch(0)
	require.NoError(t, b.Put(ctx, []byte("a"), nil))
	require.NoError(t, b.Send(ctx))

	row, err := tbl.Row(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:v": []byte("1")}, row)
}

func TestBatchMutationIsolation(t *testing.T) {
	ctx := context.Background()
	conn := newTestConnection(t, Params{})
	require.NoError(t, conn.CreateTable(ctx, "users", []string{"cf"}))
	tbl, err := conn.Table("users")
	require.NoError(t, err)

	data := wcs.Row{"cf:v": []byte("1")}
	b := tbl.Batch(0)
	require.NoError(t, b.Put(ctx, []byte("a"), data))
	// Mutating the caller's row after queueing must not leak into the batch.
	data["cf:v"] = []byte("changed")
	require.NoError(t, b.Send(ctx))

	row, err := tbl.Row(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, wcs.Row{"cf:v": []byte("1")}, row)
}
