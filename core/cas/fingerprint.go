package cas

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint returns the hex BLAKE3-256 digest of data. It identifies a
// paragraph fragment exactly as the host last reported it.
func Fingerprint(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data still has the given fingerprint.
func Matches(data []byte, fingerprint string) bool {
	got := Fingerprint(data)
	return subtle.ConstantTimeCompare([]byte(got), []byte(fingerprint)) == 1
}
