package wcs

import "strings"

// SplitColumn splits a fully qualified column into a family and a qualifier.
// A bare family name yields an empty qualifier.
func SplitColumn(col string) (family, qual string) {
	if i := strings.Index(col, ":"); i >= 0 {
		return col[:i], col[i+1:]
	}
	return col, ""
}

// JoinColumn builds a fully qualified column name.
func JoinColumn(family, qual string) string {
	return family + ":" + qual
}

// FilterColumns returns the cells of r limited to the given columns.
// A column that names only a family selects every cell of that family.
// Empty columns return r unchanged.
func FilterColumns(r Row, columns []string) Row {
	if len(columns) == 0 || r == nil {
		return r
	}
	out := make(Row)
	for _, col := range columns {
		if strings.Contains(col, ":") {
			if v, ok := r[col]; ok {
				out[col] = v
			}
			continue
		}
		for c, v := range r {
			if fam, _ := SplitColumn(c); fam == col {
				out[c] = v
			}
		}
	}
	return out
}

// KeyRange returns the [start, stop) row key bounds for the scan options.
// A nil stop means an unbounded scan.
func (o ScanOptions) KeyRange() (start, stop []byte) {
	if len(o.Prefix) != 0 {
		return o.Prefix, PrefixSuccessor(o.Prefix)
	}
	return o.Start, o.Stop
}

// PrefixSuccessor returns the shortest key k such that all keys with the
// given prefix are less than k, or nil if no such key exists.
func PrefixSuccessor(pref []byte) []byte {
	for i := len(pref) - 1; i >= 0; i-- {
		if pref[i] != 0xff {
			out := make([]byte, i+1)
			copy(out, pref)
			out[i]++
			return out
		}
	}
	return nil
}
