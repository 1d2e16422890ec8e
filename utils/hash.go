package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the first n hex characters of the BLAKE2b-256 digest of s.
// n <= 0 or n > 64 returns the full digest.
func Fingerprint(s string, n int) string {
	sum := blake2b.Sum256([]byte(s))
	full := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}
