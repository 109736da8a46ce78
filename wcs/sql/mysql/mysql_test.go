package mysql_test

import (
	"testing"

	_ "github.com/happy-go/happykv/wcs/sql/mysql/test"

	"github.com/happy-go/happykv/wcs/sql/mysql"
	"github.com/happy-go/happykv/wcs/sql/sqltest"
)

func TestMySQL(t *testing.T) {
	sqltest.Test(t, mysql.Name)
}
