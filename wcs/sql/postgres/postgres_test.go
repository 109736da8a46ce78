package postgres_test

import (
	"testing"

	_ "github.com/happy-go/happykv/wcs/sql/postgres/test"

	"github.com/happy-go/happykv/wcs/sql/postgres"
	"github.com/happy-go/happykv/wcs/sql/sqltest"
)

func TestPostgres(t *testing.T) {
	sqltest.Test(t, postgres.Name)
}
