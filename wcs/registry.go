package wcs

import (
	"sort"

	"github.com/happy-go/happykv/base"
)

// OpenFunc is a function for constructing a client given a driver-specific
// address. The client is returned stopped; the caller starts it.
type OpenFunc func(addr string, opt Options) (Client, error)

// Registration is an information about the storage driver.
type Registration struct {
	base.Registration
	Open OpenFunc
}

var registry = make(map[string]Registration)

// Register globally registers a storage driver.
func Register(reg Registration) {
	if reg.Name == "" {
		panic("name cannot be empty")
	} else if _, ok := registry[reg.Name]; ok {
		panic(base.ErrRegistered{Name: reg.Name})
	}
	registry[reg.Name] = reg
}

// List enumerates all globally registered storage drivers.
func List() []Registration {
	out := make([]Registration, 0, len(registry))
	for _, r := range registry {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// ByName returns a registered storage driver by it's name.
func ByName(name string) *Registration {
	r, ok := registry[name]
	if !ok {
		return nil
	}
	return &r
}
