package sqlwcs

import (
	"strings"
)

type ErrorFunc func(err error) error

type Dialect struct {
	Errors ErrorFunc
	// BytesType is a column type for cell values.
	BytesType string
	// BytesKeyType is a column type for row keys. It must preserve the
	// bytewise order of keys under ORDER BY.
	BytesKeyType string
	// StringKeyType is a column type for table and column names.
	StringKeyType       string
	QuoteIdentifierFunc func(s string) string
	Placeholder         func(i int) string
	// ReplaceStmt indicates that backend supports REPLACE statement.
	ReplaceStmt bool
	// OnConflict indicates that backend supports ON CONFLICT in INSERT statement.
	OnConflict bool
}

func (d *Dialect) SetDefaults() {
	if d.BytesType == "" {
		d.BytesType = "BLOB"
	}
	if d.BytesKeyType == "" {
		d.BytesKeyType = d.BytesType
	}
	if d.StringKeyType == "" {
		d.StringKeyType = "TEXT"
	}
	if d.Placeholder == nil {
		d.Placeholder = func(_ int) string {
			return "?"
		}
	}
}

func (d *Dialect) QuoteIdentifier(s string) string {
	if q := d.QuoteIdentifierFunc; q != nil {
		return q(s)
	}
	return "`" + strings.Replace(s, "`", "", -1) + "`"
}
