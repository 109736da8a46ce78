package sqlwcs

import (
	"sort"
	"strings"

	"github.com/happy-go/happykv/base"
	"github.com/happy-go/happykv/wcs"
)

// DSNFunc is a function for building a Data Source Name for SQL driver, given a address and the database name.
type DSNFunc func(addr, ns string) (string, error)

// Registration is an information about the database driver.
type Registration struct {
	base.Registration
	Driver  string
	DSN     DSNFunc
	Dialect Dialect
}

var registry = make(map[string]Registration)

// Register globally registers a database driver.
func Register(reg Registration) {
	if reg.Name == "" {
		panic("name cannot be empty")
	} else if _, ok := registry[reg.Name]; ok {
		panic(base.ErrRegistered{Name: reg.Name})
	}
	registry[reg.Name] = reg
	wcs.Register(wcs.Registration{
		Registration: reg.Registration,
		Open: func(addr string, opt wcs.Options) (wcs.Client, error) {
			addr, ns := SplitAddr(addr)
			return New(reg, addr, ns, opt), nil
		},
	})
}

// List enumerates all globally registered database drivers.
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

// ByName returns a registered database driver by it's name.
func ByName(name string) *Registration {
	r, ok := registry[name]
	if !ok {
		return nil
	}
	return &r
}

// SplitAddr splits a "server/database" address into the server part and
// the database name. The database defaults when the address has none.
func SplitAddr(addr string) (string, string) {
	ns := defaultDatabase
	i := strings.LastIndex(addr, "/")
	if i > 0 && i > strings.LastIndex(addr, "@") && addr[i-1] != '/' {
		if name := addr[i+1:]; name != "" {
			ns = name
		}
		addr = addr[:i]
	}
	return addr, ns
}
