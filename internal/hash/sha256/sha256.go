// Package sha256 derives content digests used as HTTP entity tags for preview documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for data. Identical bodies always yield identical tags.
func (h *Hasher) ETag(data []byte) string {
	return `"` + h.Hash(data)[:32] + `"`
}
