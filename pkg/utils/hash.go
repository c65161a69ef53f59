package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short stable hash of s, used to correlate buyers in
// logs without writing their tax id or phone in clear text
func Fingerprint(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:6])
}
