package tool

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GeneratePixTxid produces a provider-acceptable Pix txid: 32 hex chars,
// alphanumeric only (the bank API rejects hyphens and ids shorter than 26).
func GeneratePixTxid() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}
