package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainProcess  = "txflow/process/v1"
	DomainSnapshot = "txflow/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProcessHash computes the content hash of a compiled process definition.
// Two definitions with the same hash behave identically.
func ProcessHash(spec *ProcessSpec) (string, error) {
	generic, err := Canonicalize(spec)
	if err != nil {
		return "", fmt.Errorf("ProcessHash: %w", err)
	}
	canonical, err := MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("ProcessHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProcess, canonical), nil
}

// SnapshotHash hashes canonical snapshot bytes produced by MarshalCanonical.
func SnapshotHash(canonical []byte) string {
	return hashWithDomain(DomainSnapshot, canonical)
}

// MustProcessHash is like ProcessHash but panics on error.
// Use only with definitions that came out of the compiler.
func MustProcessHash(spec *ProcessSpec) string {
	h, err := ProcessHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
