package happybase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Pool is a fixed-size pool of open connections sharing one cluster.
type Pool struct {
	conns chan *Connection
}

// NewPool creates a pool of open connections, resolving the cluster
// through DefaultClientFactory when the parameters carry none.
func NewPool(size int, params Params) (*Pool, error) {
	return NewPoolFactory(DefaultClientFactory, size, params)
}

// NewPoolFactory is like NewPool with an explicit client factory. The
// cluster is resolved once; every connection gets its own copy of the
// handle.
func NewPoolFactory(factory ClientFactory, size int, params Params) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("happybase: pool size must be positive, got %d", size)
	}
	p := make(Params, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	if _, ok := p["cluster"]; !ok {
		timeout := 0
		if v, ok := p["timeout"]; ok {
			n, ok := v.(int)
			if !ok {
				return nil, &ParamTypeError{Name: "timeout", Want: "int", Value: v}
			}
			timeout = n
		}
		cluster, err := DefaultCluster(factory, timeout)
		if err != nil {
			return nil, err
		}
		p["cluster"] = cluster
		// The cluster is resolved; a leftover timeout would be rejected.
		delete(p, "timeout")
	}

	pool := &Pool{conns: make(chan *Connection, size)}
	for i := 0; i < size; i++ {
		conn, err := NewConnectionFactory(factory, p)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.conns <- conn
	}
	return pool, nil
}

// Get borrows an open connection, blocking until one is available or the
// context is done.
func (p *Pool) Get(ctx context.Context) (*Connection, error) {
	select {
	case conn := <-p.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a borrowed connection to the pool.
func (p *Pool) Put(conn *Connection) {
	p.conns <- conn
}

// With borrows a connection for the duration of fn.
func (p *Pool) With(ctx context.Context, fn func(conn *Connection) error) error {
	conn, err := p.Get(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Close stops every connection currently in the pool. Borrowed
// connections are not waited for.
func (p *Pool) Close() error {
	var last error
	for {
		select {
		case conn := <-p.conns:
			if err := conn.Close(); err != nil {
				logrus.WithError(err).Warn("happybase: closing pooled connection")
				last = err
			}
		default:
			return last
		}
	}
}
