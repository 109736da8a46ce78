package mysqltest

import (
	"testing"

	"github.com/ory/dockertest"

	sqlwcs "github.com/happy-go/happykv/wcs/sql"
	"github.com/happy-go/happykv/wcs/sql/mysql"
	"github.com/happy-go/happykv/wcs/sql/sqltest"
)

var versions = []string{
	"5.7",
}

func init() {
	var vers []sqltest.Version
	for _, v := range versions {
		vers = append(vers, sqltest.Version{
			Name: v, Factory: MySQLVersion(v),
		})
	}
	sqltest.Register(mysql.Name, vers...)
}

func MySQLVersion(vers string) sqltest.Database {
	const image = "mysql"
	return sqltest.Database{
		Recreate: false,
		Run: func(tb testing.TB) string {
			pool, err := dockertest.NewPool("")
			if err != nil {
				tb.Skip("docker is not available:", err)
			}

			cont, err := pool.Run(image, vers, []string{
				"MYSQL_ROOT_PASSWORD=root",
			})
			if err != nil {
				tb.Skip("cannot start mysql container:", err)
			}
			tb.Cleanup(func() {
				_ = cont.Close()
			})

			const port = "3306/tcp"
			addr := "root:root@(" + cont.GetHostPort(port) + ")"

			err = pool.Retry(func() error {
				cli, err := sqlwcs.OpenSQL(mysql.Name, addr, "")
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
