package happybase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
)

func TestPoolSharedCluster(t *testing.T) {
	var made int
	pool, err := NewPoolFactory(btreeFactory(&made), 3, Params{})
	require.NoError(t, err)
	defer pool.Close()

	// The cluster is resolved once for the whole pool.
	require.Equal(t, 1, made)

	ctx := context.Background()
	conns := make([]*Connection, 3)
	for i := range conns {
		conn, err := pool.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, conn.Cluster())
		conns[i] = conn
	}
	seen := make(map[*Connection]bool)
	for _, conn := range conns {
		require.False(t, seen[conn])
		seen[conn] = true
	}
	for _, conn := range conns {
		pool.Put(conn)
	}
}

func TestPoolSharedData(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPoolFactory(btreeFactory(nil), 2, Params{})
	require.NoError(t, err)
	defer pool.Close()

	err = pool.With(ctx, func(conn *Connection) error {
		return conn.CreateTable(ctx, "users", []string{"cf"})
	})
	require.NoError(t, err)

	// A different connection of the pool sees the same cluster.
	err = pool.With(ctx, func(conn *Connection) error {
		tbl, err := conn.Table("users")
		if err != nil {
			return err
		}
		return tbl.Put(ctx, []byte("a"), wcs.Row{"cf:v": []byte("1")})
	})
	require.NoError(t, err)

	err = pool.With(ctx, func(conn *Connection) error {
		tbl, err := conn.Table("users")
		if err != nil {
			return err
		}
		row, err := tbl.Row(ctx, []byte("a"))
		if err != nil {
			return err
		}
		require.Equal(t, wcs.Row{"cf:v": []byte("1")}, row)
		return nil
	})
	require.NoError(t, err)
}

func TestPoolGetBlocks(t *testing.T) {
	pool, err := NewPoolFactory(btreeFactory(nil), 1, Params{})
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Get(ctx)
	require.NoError(t, err)

	// The pool is drained; Get must respect the context deadline.
	dctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = pool.Get(dctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Put(conn)
	conn2, err := pool.Get(ctx)
	require.NoError(t, err)
	require.Same(t, conn, conn2)
	pool.Put(conn2)
}

func TestPoolInvalidSize(t *testing.T) {
	_, err := NewPoolFactory(btreeFactory(nil), 0, Params{})
	require.Error(t, err)
}

func TestPoolExplicitCluster(t *testing.T) {
	cl := newFakeCluster()
	pool, err := NewPoolFactory(noFactory(t), 2, Params{
		"autoconnect": false,
		"cluster":     cl,
	})
	require.NoError(t, err)
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Get(ctx)
	require.NoError(t, err)
	require.Same(t, wcs.Cluster(cl), conn.Cluster())
	pool.Put(conn)
}
