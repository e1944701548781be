package bank

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBank     = "facet/bank/v1"
	DomainSnapshot = "facet/snapshot/v1"
	DomainStream   = "facet/rng/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashDocument computes the content-addressed hash of a canonical bank
// document. The hash is stable across hosts and restarts given the same
// authored content. Returns an error if the document cannot be canonically
// marshaled.
func HashDocument(doc Object) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("HashDocument: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBank, canonical), nil
}

// HashSnapshot computes the content-addressed hash of a final snapshot
// document. The document must NOT already contain its own hash field.
func HashSnapshot(doc Object) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("HashSnapshot: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// StreamSeed derives the 32-byte key for a session's deterministic random
// stream. Null separators keep the three inputs unambiguous: ("ab", "c")
// and ("a", "bc") produce different keys.
func StreamSeed(sessionSeed, bankHash, profile string) [32]byte {
	h := sha256.New()
	h.Write([]byte(DomainStream))
	h.Write([]byte{0x00})
	h.Write([]byte(sessionSeed))
	h.Write([]byte{0x00})
	h.Write([]byte(bankHash))
	h.Write([]byte{0x00})
	h.Write([]byte(profile))

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// MustHashDocument is like HashDocument but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashDocument(doc Object) string {
	hash, err := HashDocument(doc)
	if err != nil {
		panic(err)
	}
	return hash
}

// MustHashSnapshot is like HashSnapshot but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashSnapshot(doc Object) string {
	hash, err := HashSnapshot(doc)
	if err != nil {
		panic(err)
	}
	return hash
}
