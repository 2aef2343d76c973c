package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests b and returns the lowercase hex encoding. Used to turn
// unbounded inputs (webhook bodies, idempotency keys) into fixed-size
// cache keys.
func Sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
