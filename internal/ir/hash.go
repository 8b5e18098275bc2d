package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for layout fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainTrace   = "tracelayout/trace/v1"
	DomainScope   = "tracelayout/scope/v1"
	DomainProgram = "tracelayout/program/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the domain-separated hash of the canonical JSON of v.
// The same logical value always produces the same fingerprint.
func Fingerprint(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// TraceFingerprint identifies a resolved trace description. Two traces with
// the same fingerprint compile to the same operation trees.
func TraceFingerprint(tt *TraceType) (string, error) {
	return Fingerprint(DomainTrace, DescribeTrace(tt))
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(domain string, v any) string {
	fp, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return fp
}
