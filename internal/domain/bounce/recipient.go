package bounce

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashRecipient returns the sha256 hex of the trimmed, lower-cased address.
// Raw addresses are never stored.
func HashRecipient(address string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address))))
	return hex.EncodeToString(sum[:])
}
