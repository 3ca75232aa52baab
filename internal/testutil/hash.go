// Package testutil holds shared helpers for tests.
package testutil

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
)

// SHA1Hex returns the SHA-1 checksum of data as a lowercase hex string.
// Matches the filesystem-naming checksum used by the vault.
func SHA1Hex(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex
// string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
