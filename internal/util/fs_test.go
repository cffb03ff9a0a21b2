package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteJSONAtomicCreatesDirAndLeavesNoTemp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "summary.json")

	require.NoError(t, WriteJSONAtomic(path, map[string]int{"chunks_indexed": 4}))
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"chunks_indexed": 7}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, 7, got["chunks_indexed"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSHA256HexIsStable(t *testing.T) {
	require.Equal(t, SHA256Hex([]byte("a1c")), SHA256Hex([]byte("a1c")))
	require.Len(t, SHA256Hex(nil), 64)
}
