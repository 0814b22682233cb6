package store

import (
	"fmt"
	"strings"
)

// RefScheme is the prefix that distinguishes a storage reference from a
// plain network URL. Consumers must resolve a reference before treating it
// as fetchable.
const RefScheme = "blob://"

// MakeRef wraps a storage key into an opaque storage reference.
func MakeRef(key string) string {
	return RefScheme + key
}

// ParseRef extracts the storage key from a reference. Returns
// ErrInvalidStorageRef when the scheme prefix is missing or the key is
// empty.
func ParseRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, RefScheme) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStorageRef, ref)
	}

	key := strings.TrimPrefix(ref, RefScheme)
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidStorageRef)
	}

	return key, nil
}

// IsRef reports whether s looks like a storage reference rather than a
// plain URL.
func IsRef(s string) bool {
	return strings.HasPrefix(s, RefScheme)
}
