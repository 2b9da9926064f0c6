package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/statekit/internal/value"
)

// DomainSnapshot prefixes snapshot hashes.
// Version suffix enables future algorithm migration.
const DomainSnapshot = "statekit/snapshot/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// encode returns the canonical JSON of state and its snapshot hash.
func encode(state any) (canonical []byte, hash string, err error) {
	canonical, err = value.MarshalCanonical(state)
	if err != nil {
		return nil, "", fmt.Errorf("encode snapshot: %w", err)
	}
	return canonical, hashWithDomain(DomainSnapshot, canonical), nil
}

// Hash returns the snapshot hash of state.
func Hash(state any) (string, error) {
	_, h, err := encode(state)
	return h, err
}
