package bolt

import (
	"path/filepath"
	"testing"

	"github.com/happy-go/happykv/wcs"
	"github.com/happy-go/happykv/wcs/wcstest"
)

func TestBolt(t *testing.T) {
	wcstest.RunTestLocal(t, func(path string) (wcs.Client, error) {
		path = filepath.Join(path, "bolt.db")
		return wcs.ByName(Name).Open(path, wcs.Options{Admin: true})
	}, nil)
}
