package postgrestest

import (
	"testing"

	"github.com/ory/dockertest"

	sqlwcs "github.com/happy-go/happykv/wcs/sql"
	"github.com/happy-go/happykv/wcs/sql/postgres"
	"github.com/happy-go/happykv/wcs/sql/sqltest"
)

var versions = []string{
	"13",
}

func init() {
	var vers []sqltest.Version
	for _, v := range versions {
		vers = append(vers, sqltest.Version{
			Name: v, Factory: PostgresVersion(v),
		})
	}
	sqltest.Register(postgres.Name, vers...)
}

func PostgresVersion(vers string) sqltest.Database {
	const image = "postgres"
	return sqltest.Database{
		Recreate: false,
		Run: func(tb testing.TB) string {
			pool, err := dockertest.NewPool("")
			if err != nil {
				tb.Skip("docker is not available:", err)
			}

			cont, err := pool.Run(image, vers, []string{
				"POSTGRES_PASSWORD=postgres",
			})
			if err != nil {
				tb.Skip("cannot start postgres container:", err)
			}
			tb.Cleanup(func() {
				_ = cont.Close()
			})

			const port = "5432/tcp"
			addr := `postgres://postgres:postgres@` + cont.GetHostPort(port)

			err = pool.Retry(func() error {
				cli, err := sqlwcs.OpenSQL(postgres.Name, addr, "")
				if err != nil {
					return err
				}
				defer cli.Close()
				return cli.Ping()
			})
			if err != nil {
				tb.Fatal(err)
			}
			return addr
		},
	}
}
