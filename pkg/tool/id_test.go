package tool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePixTxid_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		txid := GeneratePixTxid()
		require.Len(t, txid, 32)
		require.NotContains(t, txid, "-")
		require.Regexp(t, "^[0-9a-f]{32}$", txid)
		require.False(t, seen[txid])
		seen[txid] = true
	}
}
