package sqltest

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
	sqlwcs "github.com/happy-go/happykv/wcs/sql"
	"github.com/happy-go/happykv/wcs/wcstest"
)

type Database struct {
	Run      func(tb testing.TB) string
	Recreate bool
}

func TestSQL(t *testing.T, name string, gen Database) {
	var addr string
	recreate := gen.Recreate
	if !recreate {
		addr = gen.Run(t)
	}
	wcstest.RunTest(t, func(tb testing.TB) wcs.Client {
		db := fmt.Sprintf("db_%x", rand.Int())
		addr := addr
		if recreate {
			addr = gen.Run(tb)
		}
		conn, err := sqlwcs.OpenSQL(name, addr, "")
		require.NoError(tb, err)
		_, err = conn.Exec(`CREATE DATABASE ` + db)
		conn.Close()
		require.NoError(tb, err)
		tb.Cleanup(func() {
			if recreate {
				return
			}
			conn, err := sqlwcs.OpenSQL(name, addr, "")
			if err == nil {
				_, err = conn.Exec(`DROP DATABASE ` + db)
				conn.Close()
			}
			if err != nil {
				tb.Errorf("cannot remove test database: %v", err)
			}
		})
		cli, err := wcs.ByName(name).Open(addr+"/"+db, wcs.Options{Admin: true})
		require.NoError(tb, err)
		return cli
	}, nil)
}

func init() {
	rand.Seed(time.Now().UnixNano())
}
