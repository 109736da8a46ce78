package happybase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
)

type fakeClient struct {
	clusters    []wcs.Cluster
	failedZones []string
	opt         wcs.Options

	startCalls int
	stopCalls  int
}

func (c *fakeClient) Start() error { c.startCalls++; return nil }
func (c *fakeClient) Stop() error  { c.stopCalls++; return nil }
func (c *fakeClient) Admin() bool  { return c.opt.Admin }
func (c *fakeClient) MarkAdmin()   { c.opt.Admin = true }

func (c *fakeClient) ListClusters(ctx context.Context) ([]wcs.Cluster, []string, error) {
	return c.clusters, c.failedZones, nil
}

type fakeCluster struct {
	client *fakeClient
	copies []*fakeCluster
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{client: &fakeClient{}}
}

func (cl *fakeCluster) Name() string       { return "fake" }
func (cl *fakeCluster) Client() wcs.Client { return cl.client }

// Copy hands out queued copies first and falls back to the handle itself.
func (cl *fakeCluster) Copy() wcs.Cluster {
	if len(cl.copies) != 0 {
		c := cl.copies[0]
		cl.copies = cl.copies[1:]
		return c
	}
	return cl
}

func (cl *fakeCluster) ListTables(ctx context.Context) ([]string, error) { return nil, nil }
func (cl *fakeCluster) CreateTable(ctx context.Context, table string, families []string) error {
	return nil
}
func (cl *fakeCluster) DeleteTable(ctx context.Context, table string) error { return nil }
func (cl *fakeCluster) Table(name string) wcs.Table                         { return nil }

// fakeFactory builds clients that discover the given clusters and records
// every constructed client.
func fakeFactory(clusters []wcs.Cluster, failedZones []string, made *[]*fakeClient) ClientFactory {
	return func(opt wcs.Options) (wcs.Client, error) {
		cli := &fakeClient{clusters: clusters, failedZones: failedZones, opt: opt}
		for _, cl := range clusters {
			if f, ok := cl.(*fakeCluster); ok {
				f.client = cli
			}
		}
		*made = append(*made, cli)
		return cli, nil
	}
}

// noFactory fails the test when the connection tries to build a client.
func noFactory(t testing.TB) ClientFactory {
	return func(opt wcs.Options) (wcs.Client, error) {
		t.Error("unexpected client construction")
		return nil, errors.New("unexpected client construction")
	}
}

func resolveCluster(t testing.TB, timeout int, clusters []wcs.Cluster, failedZones []string) (wcs.Cluster, *fakeClient, error) {
	var made []*fakeClient
	cluster, err := DefaultCluster(fakeFactory(clusters, failedZones, &made), timeout)
	if err != nil {
		return nil, nil, err
	}
	require.Len(t, made, 1)
	return cluster, made[0], nil
}

func TestDefaultCluster(t *testing.T) {
	cl := newFakeCluster()
	cluster, cli, err := resolveCluster(t, 0, []wcs.Cluster{cl}, nil)
	require.NoError(t, err)
	require.Same(t, wcs.Cluster(cl), cluster)
	require.True(t, cli.opt.Admin)
	require.Nil(t, cli.opt.TimeoutSeconds)
	require.Equal(t, 1, cli.startCalls)
	require.Equal(t, 1, cli.stopCalls)
}

func TestDefaultClusterTimeout(t *testing.T) {
	cl := newFakeCluster()
	cluster, cli, err := resolveCluster(t, 2103, []wcs.Cluster{cl}, nil)
	require.NoError(t, err)
	require.Same(t, wcs.Cluster(cl), cluster)
	require.True(t, cli.opt.Admin)
	require.NotNil(t, cli.opt.TimeoutSeconds)
	require.Equal(t, 2.103, *cli.opt.TimeoutSeconds)
	require.Equal(t, 1, cli.startCalls)
	require.Equal(t, 1, cli.stopCalls)
}

func TestDefaultClusterNoClusters(t *testing.T) {
	_, _, err := resolveCluster(t, 0, nil, nil)
	var serr *ClusterSearchError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 0, serr.Found)
}

func TestDefaultClusterTooManyClusters(t *testing.T) {
	clusters := []wcs.Cluster{newFakeCluster(), newFakeCluster()}
	_, _, err := resolveCluster(t, 0, clusters, nil)
	var serr *ClusterSearchError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 2, serr.Found)
}

func TestDefaultClusterFailedZones(t *testing.T) {
	cl := newFakeCluster()
	_, _, err := resolveCluster(t, 0, []wcs.Cluster{cl}, []string{"us-central1-c"})
	var serr *ClusterSearchError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, []string{"us-central1-c"}, serr.FailedZones)
}

func TestConnectionDefaults(t *testing.T) {
	cl := newFakeCluster()
	require.Equal(t, 0, cl.client.startCalls)
	conn, err := NewConnectionFactory(noFactory(t), Params{"cluster": cl})
	require.NoError(t, err)
	require.Equal(t, 1, cl.client.startCalls)
	require.Equal(t, 0, cl.client.stopCalls)

	require.Same(t, wcs.Cluster(cl), conn.Cluster())
	require.Equal(t, "", conn.TablePrefix())
	require.Equal(t, "_", conn.TablePrefixSeparator())
}

func TestConnectionNoAutoconnect(t *testing.T) {
	cl := newFakeCluster()
	conn, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect": false,
		"cluster":     cl,
	})
	require.NoError(t, err)
	require.Equal(t, 0, cl.client.startCalls)
	require.Equal(t, 0, cl.client.stopCalls)
	require.Equal(t, "", conn.TablePrefix())
	require.Equal(t, "_", conn.TablePrefixSeparator())
}

func TestConnectionMissingCluster(t *testing.T) {
	cl := newFakeCluster()
	var made []*fakeClient
	conn, err := NewConnectionFactory(fakeFactory([]wcs.Cluster{cl}, nil, &made), Params{
		"autoconnect": false,
		"timeout":     125,
	})
	require.NoError(t, err)
	require.Same(t, wcs.Cluster(cl), conn.Cluster())
	require.Equal(t, "", conn.TablePrefix())
	require.Equal(t, "_", conn.TablePrefixSeparator())
	require.Len(t, made, 1)
	require.NotNil(t, made[0].opt.TimeoutSeconds)
	require.Equal(t, 0.125, *made[0].opt.TimeoutSeconds)
}

func TestConnectionExplicit(t *testing.T) {
	clusterCopy := newFakeCluster()
	cl := newFakeCluster()
	cl.copies = []*fakeCluster{clusterCopy}

	conn, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect":            false,
		"table_prefix":           "table-prefix",
		"table_prefix_separator": "sep",
		"cluster":                cl,
	})
	require.NoError(t, err)
	require.Equal(t, "table-prefix", conn.TablePrefix())
	require.Equal(t, "sep", conn.TablePrefixSeparator())
	require.Same(t, wcs.Cluster(clusterCopy), conn.Cluster())
	require.True(t, clusterCopy.client.Admin())
}

func TestConnectionUnknownParam(t *testing.T) {
	cl := newFakeCluster()
	_, err := NewConnectionFactory(noFactory(t), Params{
		"cluster": cl,
		"unknown": "foo",
	})
	var uerr *UnknownParamError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, []string{"unknown"}, uerr.Names)
}

func TestConnectionLegacyParams(t *testing.T) {
	var warned []string
	old := warn
	warn = func(msg string) { warned = append(warned, msg) }
	defer func() { warn = old }()

	cl := newFakeCluster()
	_, err := NewConnectionFactory(noFactory(t), Params{
		"cluster":   cl,
		"host":      struct{}{},
		"port":      struct{}{},
		"compat":    struct{}{},
		"transport": struct{}{},
		"protocol":  struct{}{},
	})
	require.NoError(t, err)
	require.Len(t, warned, 1)
	for _, name := range []string{"host", "port", "compat", "transport", "protocol"} {
		require.Contains(t, warned[0], name)
	}
}

func TestConnectionTimeoutAndCluster(t *testing.T) {
	cl := newFakeCluster()
	_, err := NewConnectionFactory(noFactory(t), Params{
		"cluster": cl,
		"timeout": 100,
	})
	require.ErrorIs(t, err, ErrClusterTimeout)
}

func TestConnectionNonStringPrefix(t *testing.T) {
	_, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect":  false,
		"cluster":      newFakeCluster(),
		"table_prefix": 42,
	})
	var terr *ParamTypeError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "table_prefix", terr.Name)
}

func TestConnectionNonStringSeparator(t *testing.T) {
	_, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect":            false,
		"cluster":                newFakeCluster(),
		"table_prefix_separator": 42,
	})
	var terr *ParamTypeError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "table_prefix_separator", terr.Name)
}

func TestConnectionOpen(t *testing.T) {
	cl := newFakeCluster()
	conn, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect": false,
		"cluster":     cl,
	})
	require.NoError(t, err)
	require.Equal(t, 0, cl.client.startCalls)
	require.NoError(t, conn.Open())
	require.Equal(t, 1, cl.client.startCalls)
	require.Equal(t, 0, cl.client.stopCalls)
	// Calls are not deduplicated.
	require.NoError(t, conn.Open())
	require.Equal(t, 2, cl.client.startCalls)
}

func TestConnectionClose(t *testing.T) {
	cl := newFakeCluster()
	conn, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect": false,
		"cluster":     cl,
	})
	require.NoError(t, err)
	require.Equal(t, 0, cl.client.stopCalls)
	require.NoError(t, conn.Close())
	require.Equal(t, 1, cl.client.stopCalls)
	require.Equal(t, 0, cl.client.startCalls)
	require.NoError(t, conn.Close())
	require.Equal(t, 2, cl.client.stopCalls)
}

func TestConnectionFinalize(t *testing.T) {
	cl := newFakeCluster()
	conn, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect": false,
		"cluster":     cl,
	})
	require.NoError(t, err)
	require.Equal(t, 0, cl.client.stopCalls)
	conn.finalize()
	require.Equal(t, 1, cl.client.stopCalls)
	// A second run must not double-stop.
	conn.finalize()
	require.Equal(t, 1, cl.client.stopCalls)
}

func TestConnectionFinalizeReleased(t *testing.T) {
	cl := newFakeCluster()
	conn, err := NewConnectionFactory(noFactory(t), Params{
		"autoconnect": false,
		"cluster":     cl,
	})
	require.NoError(t, err)
	released := conn.Release()
	require.Same(t, wcs.Cluster(cl), released)
	require.Nil(t, conn.Cluster())

	conn.finalize()
	require.Equal(t, 0, cl.client.stopCalls)

	require.ErrorIs(t, conn.Open(), ErrReleased)
	require.ErrorIs(t, conn.Close(), ErrReleased)
}
