package postgres

import (
	"strconv"

	_ "github.com/lib/pq"

	"github.com/happy-go/happykv/base"
	"github.com/lib/pq"

	sqlwcs "github.com/happy-go/happykv/wcs/sql"
)

const Name = "postgres"

func init() {
	sqlwcs.Register(sqlwcs.Registration{
		Registration: base.Registration{
			Name: Name, Title: "PostgreSQL",
			Local: false, Volatile: false,
		},
		Driver: "postgres",
		DSN: func(addr string, ns string) (string, error) {
			return addr + "/" + ns + "?sslmode=disable", nil
		},
		Dialect: sqlwcs.Dialect{
			BytesType:           "BYTEA",
			BytesKeyType:        "BYTEA",
			StringKeyType:       "TEXT",
			QuoteIdentifierFunc: pq.QuoteIdentifier,
			OnConflict:          true,
			Placeholder: func(i int) string {
				return "$" + strconv.Itoa(i+1)
			},
		},
	})
}
