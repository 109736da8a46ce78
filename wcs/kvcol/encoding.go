package kvcol

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// Cell and metadata records share one flat keyspace:
//
//	't' 0x00 esc(table)                          -> schema
//	'c' 0x00 esc(table) 0x00 esc(row) 0x00 esc(column) -> cell value
//
// Escaping is byte-wise and prefix-preserving, so a row key prefix scan
// maps directly to an engine prefix scan.
const (
	sep = 0x00
	esc = 0x01

	kindTable = 't'
	kindCell  = 'c'
)

func escape(dst, s []byte) []byte {
	for _, b := range s {
		if b == sep || b == esc {
			dst = append(dst, esc)
		}
		dst = append(dst, b)
	}
	return dst
}

// splitKey splits an escaped key into its unescaped segments.
func splitKey(k []byte) [][]byte {
	var (
		out [][]byte
		cur = []byte{}
	)
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case esc:
			if i+1 < len(k) {
				cur = append(cur, k[i+1])
				i++
			}
		case sep:
			out = append(out, cur)
			cur = []byte{}
		default:
			cur = append(cur, k[i])
		}
	}
	return append(out, cur)
}

func tableKey(table string) []byte {
	k := []byte{kindTable, sep}
	return escape(k, []byte(table))
}

func tablePrefix() []byte {
	return []byte{kindTable, sep}
}

// cellPrefix returns the key prefix shared by all cells of a table.
func cellPrefix(table string) []byte {
	k := []byte{kindCell, sep}
	k = escape(k, []byte(table))
	return append(k, sep)
}

// rowPrefix returns the key prefix shared by all cells of a row. With
// part set, the row key is treated as a prefix and the trailing
// separator is omitted, which makes the result usable for row prefix scans.
func rowPrefix(table string, row []byte, part bool) []byte {
	k := cellPrefix(table)
	k = escape(k, row)
	if !part {
		k = append(k, sep)
	}
	return k
}

func cellKey(table string, row []byte, col string) []byte {
	k := rowPrefix(table, row, false)
	return escape(k, []byte(col))
}

// parseCell extracts the row key and column from a cell key of the table.
func parseCell(k []byte, table string) (row []byte, col string, err error) {
	pref := cellPrefix(table)
	if len(k) < len(pref) {
		return nil, "", fmt.Errorf("kvcol: short cell key")
	}
	parts := splitKey(k[len(pref):])
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("kvcol: malformed cell key")
	}
	return parts[0], string(parts[1]), nil
}

// marshalSchema encodes the column family list as a varint-framed record.
func marshalSchema(families []string) ([]byte, error) {
	buf := proto.NewBuffer(nil)
	if err := buf.EncodeVarint(uint64(len(families))); err != nil {
		return nil, err
	}
	for _, f := range families {
		if err := buf.EncodeRawBytes([]byte(f)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func unmarshalSchema(data []byte) ([]string, error) {
	buf := proto.NewBuffer(data)
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, fmt.Errorf("kvcol: broken schema record: %w", err)
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		f, err := buf.DecodeRawBytes(false)
		if err != nil {
			return nil, fmt.Errorf("kvcol: broken schema record: %w", err)
		}
		out = append(out, string(f))
	}
	return out, nil
}
