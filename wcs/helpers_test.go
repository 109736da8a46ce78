package wcs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitColumn(t *testing.T) {
	fam, qual := SplitColumn("cf:q")
	require.Equal(t, "cf", fam)
	require.Equal(t, "q", qual)

	fam, qual = SplitColumn("cf")
	require.Equal(t, "cf", fam)
	require.Equal(t, "", qual)

	fam, qual = SplitColumn("cf:q:r")
	require.Equal(t, "cf", fam)
	require.Equal(t, "q:r", qual)
}

func TestFilterColumns(t *testing.T) {
	row := Row{
		"cf1:a": []byte("1"),
		"cf1:b": []byte("2"),
		"cf2:a": []byte("3"),
	}
	require.Equal(t, row, FilterColumns(row, nil))
	require.Equal(t, Row{"cf1:a": []byte("1")}, FilterColumns(row, []string{"cf1:a"}))
	require.Equal(t, Row{
		"cf1:a": []byte("1"),
		"cf1:b": []byte("2"),
	}, FilterColumns(row, []string{"cf1"}))
	require.Equal(t, Row{}, FilterColumns(row, []string{"cf3"}))
}

func TestPrefixSuccessor(t *testing.T) {
	require.Equal(t, []byte("b"), PrefixSuccessor([]byte("a")))
	require.Equal(t, []byte("ab"), PrefixSuccessor([]byte("aa")))
	require.Equal(t, []byte("b"), PrefixSuccessor([]byte{'a', 0xff}))
	require.Nil(t, PrefixSuccessor([]byte{0xff, 0xff}))
	require.Nil(t, PrefixSuccessor(nil))
}
