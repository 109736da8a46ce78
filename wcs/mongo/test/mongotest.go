package mongotest

import (
	"context"
	"testing"

	"github.com/ory/dockertest"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const vers = "4.4"

// Run starts a MongoDB container and returns its address. The test is
// skipped when Docker is not available.
func Run(t testing.TB) string {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skip("docker is not available:", err)
	}
	cont, err := pool.Run("mongo", vers, nil)
	if err != nil {
		t.Skip("cannot start mongo container:", err)
	}
	t.Cleanup(func() {
		_ = cont.Close()
	})

	addr := cont.GetHostPort("27017/tcp")
	err = pool.Retry(func() error {
		ctx := context.Background()
		cli, err := mongo.NewClient(options.Client().ApplyURI("mongodb://" + addr))
		if err != nil {
			return err
		}
		if err = cli.Connect(ctx); err != nil {
			return err
		}
		defer cli.Disconnect(ctx)
		return cli.Ping(ctx, nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	return addr
}
