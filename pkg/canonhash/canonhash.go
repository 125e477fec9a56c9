package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SumObject hashes the canonical JSON serialization of v and returns the
// prefixed form used in stored hash columns ("sha256:<hex>") plus the exact
// bytes that were hashed.
func SumObject(v any) (string, []byte, error) {
	hexHash, b, err := CanonicalSHA256(v)
	if err != nil {
		return "", nil, err
	}
	return "sha256:" + hexHash, b, nil
}

// CanonicalSHA256 hashes json.Marshal(v) with SHA256 and returns lowercase hex.
// json.Marshal sorts map keys, so equal object state yields equal hashes.
func CanonicalSHA256(v any) (hexHash string, bytes []byte, err error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), b, nil
}

func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func SumString(s string) string {
	return SumBytes([]byte(s))
}

// StripPrefix removes an optional "sha256:" prefix so stored and computed
// forms compare equal.
func StripPrefix(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "sha256:")
}
