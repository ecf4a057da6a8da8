package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeSHA256FromBytes hashes an in-memory buffer.
func ComputeSHA256FromBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChecksumEqual compares two hex digests case-insensitively, ignoring
// surrounding whitespace.
func ChecksumEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
