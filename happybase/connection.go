// Package happybase adapts a wide-column cluster handle into a
// session-like connection object with a legacy-compatible construction
// surface: table name prefixing, cluster auto-discovery and
// open-on-construction semantics.
package happybase

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/happy-go/happykv/wcs"
)

// ClientFactory constructs a storage client. The cluster resolver uses it
// to build the administrative client for discovery, so tests and callers
// can substitute their own implementation.
type ClientFactory func(opt wcs.Options) (wcs.Client, error)

// DefaultClientFactory builds a client from environment configuration:
// HAPPYKV_DRIVER selects a registered storage driver and HAPPYKV_ADDR is
// passed to it as the address.
func DefaultClientFactory(opt wcs.Options) (wcs.Client, error) {
	name := os.Getenv("HAPPYKV_DRIVER")
	r := wcs.ByName(name)
	if r == nil {
		return nil, fmt.Errorf("happybase: unknown storage driver %q", name)
	}
	return r.Open(os.Getenv("HAPPYKV_ADDR"), opt)
}

// warn reports deprecation warnings. Tests substitute it.
var warn = func(msg string) {
	logrus.Warn(msg)
}

// DefaultCluster locates the single cluster reachable by a fresh
// administrative client built by the factory. The timeout is in
// milliseconds; zero keeps the driver default. The client is started and
// stopped around the listing call regardless of its outcome.
func DefaultCluster(factory ClientFactory, timeout int) (wcs.Cluster, error) {
	opt := wcs.Options{Admin: true}
	if timeout != 0 {
		sec := float64(timeout) / 1000.0
		opt.TimeoutSeconds = &sec
	}
	cli, err := factory(opt)
	if err != nil {
		return nil, err
	}
	if err = cli.Start(); err != nil {
		return nil, err
	}
	defer cli.Stop()
	clusters, failed, err := cli.ListClusters(context.TODO())
	if err != nil {
		return nil, err
	}
	if len(failed) != 0 || len(clusters) != 1 {
		return nil, &ClusterSearchError{Found: len(clusters), FailedZones: failed}
	}
	return clusters[0], nil
}

// Params is the construction surface of a Connection. Recognized keys:
//
//	autoconnect            bool        start the client on construction (default true)
//	table_prefix           string      prefix composed into table names
//	table_prefix_separator string      separator after the prefix (default "_")
//	cluster                wcs.Cluster explicit cluster handle
//	timeout                int         discovery timeout in milliseconds
//
// The legacy keys host, port, compat, transport and protocol are accepted
// with no effect beyond a single deprecation warning naming all of them.
// Any other key is rejected.
type Params map[string]interface{}

// legacyParams are accepted for backward compatibility with the thrift
// based client signature.
var legacyParams = []string{"host", "port", "compat", "transport", "protocol"}

const defaultSeparator = "_"

// Connection wraps a cluster handle and manages the open/close lifecycle
// of its client.
type Connection struct {
	prefix string
	sep    string

	mu      sync.Mutex
	cluster wcs.Cluster
}

// NewConnection creates a connection from the given parameters, resolving
// the cluster through DefaultClientFactory when none is supplied.
func NewConnection(params Params) (*Connection, error) {
	return NewConnectionFactory(DefaultClientFactory, params)
}

// NewConnectionFactory is like NewConnection with an explicit client
// factory for cluster auto-discovery.
func NewConnectionFactory(factory ClientFactory, params Params) (*Connection, error) {
	p := make(Params, len(params))
	for k, v := range params {
		p[k] = v
	}

	var used []string
	for _, name := range legacyParams {
		if _, ok := p[name]; ok {
			used = append(used, name)
			delete(p, name)
		}
	}
	if len(used) != 0 {
		warn("The following arguments have been deprecated and have no effect: " +
			strings.Join(used, ", "))
	}

	autoconnectV, hasAutoconnect := pop(p, "autoconnect")
	prefixV, hasPrefix := pop(p, "table_prefix")
	sepV, hasSep := pop(p, "table_prefix_separator")
	clusterV, hasCluster := pop(p, "cluster")
	timeoutV, hasTimeout := pop(p, "timeout")

	if len(p) != 0 {
		names := make([]string, 0, len(p))
		for name := range p {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &UnknownParamError{Names: names}
	}

	conn := &Connection{sep: defaultSeparator}
	autoconnect := true
	if hasAutoconnect {
		b, ok := autoconnectV.(bool)
		if !ok {
			return nil, &ParamTypeError{Name: "autoconnect", Want: "bool", Value: autoconnectV}
		}
		autoconnect = b
	}
	if hasPrefix {
		s, ok := prefixV.(string)
		if !ok {
			return nil, &ParamTypeError{Name: "table_prefix", Want: "string", Value: prefixV}
		}
		conn.prefix = s
	}
	if hasSep {
		s, ok := sepV.(string)
		if !ok {
			return nil, &ParamTypeError{Name: "table_prefix_separator", Want: "string", Value: sepV}
		}
		conn.sep = s
	}
	timeout := 0
	if hasTimeout {
		n, ok := timeoutV.(int)
		if !ok {
			return nil, &ParamTypeError{Name: "timeout", Want: "int", Value: timeoutV}
		}
		timeout = n
	}

	if !hasCluster || clusterV == nil {
		cluster, err := DefaultCluster(factory, timeout)
		if err != nil {
			return nil, err
		}
		conn.cluster = cluster
	} else {
		cluster, ok := clusterV.(wcs.Cluster)
		if !ok {
			return nil, &ParamTypeError{Name: "cluster", Want: "wcs.Cluster", Value: clusterV}
		}
		if hasTimeout {
			return nil, ErrClusterTimeout
		}
		// Keep the caller's handle untouched.
		conn.cluster = cluster.Copy()
		conn.cluster.Client().MarkAdmin()
	}

	runtime.SetFinalizer(conn, (*Connection).finalize)
	if autoconnect {
		if err := conn.Open(); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

func pop(p Params, name string) (interface{}, bool) {
	v, ok := p[name]
	if ok {
		delete(p, name)
	}
	return v, ok
}

// TablePrefix returns the configured table name prefix, empty if none.
func (c *Connection) TablePrefix() string { return c.prefix }

// TablePrefixSeparator returns the separator placed after the prefix.
func (c *Connection) TablePrefixSeparator() string { return c.sep }

// Cluster returns the connection's cluster handle, nil after Release.
func (c *Connection) Cluster() wcs.Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cluster
}

func (c *Connection) clusterHandle() (wcs.Cluster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cluster == nil {
		return nil, ErrReleased
	}
	return c.cluster, nil
}

// Open starts the client of the connection's cluster. Calls are passed to
// the client as-is, without deduplication.
func (c *Connection) Open() error {
	cl, err := c.clusterHandle()
	if err != nil {
		return err
	}
	return cl.Client().Start()
}

// Close stops the client of the connection's cluster. Like Open, calls
// are not deduplicated. The cluster handle stays attached, so the
// connection can be reopened.
func (c *Connection) Close() error {
	cl, err := c.clusterHandle()
	if err != nil {
		return err
	}
	return cl.Client().Stop()
}

// Release detaches and returns the cluster handle without stopping its
// client. The connection is unusable afterwards and its finalizer becomes
// a no-op.
func (c *Connection) Release() wcs.Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl := c.cluster
	c.cluster = nil
	return cl
}

// finalize stops the client if the cluster handle is still attached. It
// runs at most once and never after Release.
func (c *Connection) finalize() {
	c.mu.Lock()
	cl := c.cluster
	c.cluster = nil
	c.mu.Unlock()
	if cl != nil {
		_ = cl.Client().Stop()
	}
}
