package mongo

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
	mongotest "github.com/happy-go/happykv/wcs/mongo/test"
	"github.com/happy-go/happykv/wcs/wcstest"
)

func TestMongo(t *testing.T) {
	addr := mongotest.Run(t)
	wcstest.RunTest(t, func(t testing.TB) wcs.Client {
		db := fmt.Sprintf("db_%x", rand.Int())
		cli, err := wcs.ByName(Name).Open(addr+"/"+db, wcs.Options{Admin: true})
		require.NoError(t, err)
		return cli
	}, nil)
}
