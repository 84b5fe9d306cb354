package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Keyer derives cache keys from domain keys such as station names.
//
// Contract:
// - Determinism: the same namespace and key always produce the same result.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(namespace, key string) (string, error)
}

// DefaultKeyer keeps station keys readable. Runs of whitespace collapse to a
// single space so "Budapest  Keleti" and " Budapest Keleti" share an entry.
// Keys that would exceed MaxKeyLength are replaced by a digest.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// digestPrefix marks hashed keys so they cannot collide with readable ones.
const digestPrefix = "#"

// Key returns <namespace>:<normalized key>, or <namespace>:#<digest> when
// the readable form is too long.
func (k *DefaultKeyer) Key(namespace, key string) (string, error) {
	norm := strings.Join(strings.Fields(key), " ")
	if norm == "" {
		return "", fmt.Errorf("cache: key %q: %w", key, ErrInvalidKey)
	}

	full := namespace + ":" + norm
	if len(full) > MaxKeyLength || strings.HasPrefix(norm, digestPrefix) {
		sum := sha256.Sum256([]byte(norm))
		full = namespace + ":" + digestPrefix + hex.EncodeToString(sum[:8])
	}
	if err := ValidateKey(full); err != nil {
		return "", fmt.Errorf("cache: key %q: %w", key, err)
	}
	return full, nil
}

var _ Keyer = (*DefaultKeyer)(nil)
