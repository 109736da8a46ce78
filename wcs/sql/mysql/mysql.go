package mysql

import (
	"strings"

	"github.com/go-sql-driver/mysql"   // This import will be dropped if mysql.MySQLError is removed.
	_ "github.com/go-sql-driver/mysql" // This side-effect import must be kept.

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs"
	sqlwcs "github.com/happy-go/happykv/wcs/sql"
)

const Name = "mysql"

func init() {
	sqlwcs.Register(sqlwcs.Registration{
		Registration: base.Registration{
			Name: Name, Title: "MySQL",
			Local: false, Volatile: false,
		},
		Driver: "mysql",
		DSN: func(addr, ns string) (string, error) {
			return addr + "/" + ns + "?parseTime=true", nil
		},
		Dialect: sqlwcs.Dialect{
			BytesType: "LONGBLOB",
			// TODO: pick size based on the row key limit (max 3k)
			BytesKeyType:  "VARBINARY(256)",
			StringKeyType: "VARCHAR(256)",
			ReplaceStmt:   true,
			QuoteIdentifierFunc: func(s string) string {
				return "`" + strings.Replace(s, "`", "", -1) + "`"
			},
			Errors: func(err error) error {
				if e, ok := err.(*mysql.MySQLError); ok {
					switch e.Number {
					case 1146:
						return wcs.ErrTableNotFound
					}
				}
				return err
			},
		},
	})
}
