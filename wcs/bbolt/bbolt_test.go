package bbolt

import (
	"path/filepath"
	"testing"

	"github.com/happy-go/happykv/wcs"
	"github.com/happy-go/happykv/wcs/wcstest"
)

func TestBBolt(t *testing.T) {
	wcstest.RunTestLocal(t, func(path string) (wcs.Client, error) {
		path = filepath.Join(path, "bbolt.db")
		return wcs.ByName(Name).Open(path, wcs.Options{Admin: true})
	}, nil)
}
