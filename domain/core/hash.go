package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ConfigHash  Hash
	TableHash   Hash
	Fingerprint Hash
)

func (h ConfigHash) String() string  { return Hash(h).String() }
func (h TableHash) String() string   { return Hash(h).String() }
func (h Fingerprint) String() string { return Hash(h).String() }

// HashJSON hashes the JSON encoding of v. encoding/json sorts map keys,
// so equal values always produce equal hashes.
func HashJSON(v interface{}) (Hash, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value for hashing: %w", err)
	}
	return NewHash(data), nil
}

// ComputeConfigHash hashes a flat parameter map independent of key order
func ComputeConfigHash(params map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
		data.WriteString(";")
	}
	return ConfigHash(NewHash([]byte(data.String())))
}

// CombineFingerprint folds several table hashes into one run fingerprint
func CombineFingerprint(parts ...TableHash) Fingerprint {
	var data strings.Builder
	for _, p := range parts {
		data.WriteString(p.String())
		data.WriteString("|")
	}
	return Fingerprint(NewHash([]byte(data.String())))
}
