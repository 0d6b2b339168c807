// Package ids centralizes identifier synthesis shared across components:
// random path suffixes, content-hash document ids, and catalog ids.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Rand12 returns 12 lowercase hex characters from a crypto/rand source,
// the collision-resistant suffix spec.md §4.2 requires for synthesized
// paths.
func Rand12() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on the standard reader does not fail in
		// practice; fall back to a uuid-derived suffix rather than panic.
		return uuid.NewString()[:12]
	}
	return hex.EncodeToString(buf)
}

// DocumentID synthesizes a document id from an ingest timestamp (unix
// seconds) and the first 12 hex characters of a content hash, matching
// spec.md §4.5's `doc_<ts>_<hash12>` scheme.
func DocumentID(unixSeconds int64, contentHashHex string) string {
	hash12 := contentHashHex
	if len(hash12) > 12 {
		hash12 = hash12[:12]
	}
	return fmt.Sprintf("doc_%d_%s", unixSeconds, hash12)
}

// New returns a fresh random identifier for entities with no content-derived
// naming requirement (tenant ids, token ids).
func New() string {
	return uuid.NewString()
}
