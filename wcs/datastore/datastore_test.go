package datastore

import (
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/happy-go/happykv/wcs"
	"github.com/happy-go/happykv/wcs/wcstest"
)

func TestDatastore(t *testing.T) {
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST is not set")
	}
	wcstest.RunTest(t, func(t testing.TB) wcs.Client {
		project := fmt.Sprintf("happykv-test-%x", rand.Int())
		cli, err := wcs.ByName(Name).Open(project, wcs.Options{Admin: true})
		require.NoError(t, err)
		return cli
	}, nil)
}
