package prop

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "canon/graph/v1"
	DomainEntry = "canon/entry/v1"
	DomainPrefs = "canon/prefs/v1"
)

// HashWithDomain computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashCanonical canonically marshals v and hashes it under the given domain.
// Same logical value always produces the same hash, which is the basis for
// graph hashes, ledger entry IDs, and route cache keys.
func HashCanonical(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, canonical), nil
}

// MustHashCanonical is like HashCanonical but panics on error.
// Use only when inputs are known to be valid.
func MustHashCanonical(domain string, v any) string {
	h, err := HashCanonical(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
