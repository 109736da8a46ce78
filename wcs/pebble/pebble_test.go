package pebble

import (
	"testing"

	"github.com/happy-go/happykv/wcs"
	"github.com/happy-go/happykv/wcs/wcstest"
)

func TestPebble(t *testing.T) {
	wcstest.RunTestLocal(t, func(path string) (wcs.Client, error) {
		return wcs.ByName(Name).Open(path, wcs.Options{Admin: true})
	}, nil)
}
