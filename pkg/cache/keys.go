// Package cache provides the bounded decision cache that sits in front
// of rule evaluation.
//
// CRITICAL INVARIANT: SORTED ORDER REQUIREMENT
// Cache keys MUST be generated with metadata keys sorted alphabetically
// before hashing. This ensures identical requests produce identical
// cache keys regardless of map iteration order.
//
// Cache Key Format Version: v1
// Format: {path}:{user}:{action}:{generation}:{metadataDigest}
//
// The generation component makes invalidation free: bumping the engine
// generation shadows every existing entry without touching the cache.
// Stale entries age out through LRU pressure or TTL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one cached decision.
type Key struct {
	Path       string
	User       string
	Action     string
	Generation uint64

	// MetadataDigest is a stable digest of the request metadata.
	// Conditions can read metadata, so two requests that differ only
	// in metadata must not share a cache slot.
	MetadataDigest string
}

// NewKey builds a key for a request against the given rule generation.
func NewKey(path, user, action string, generation uint64, metadata map[string]string) Key {
	return Key{
		Path:           path,
		User:           user,
		Action:         action,
		Generation:     generation,
		MetadataDigest: digestMetadata(metadata),
	}
}

// String formats the key for storage.
//
// Format: {path}:{user}:{action}:{generation}:{metadataDigest}
// This is the single source of truth for the key string format.
func (k Key) String() string {
	parts := []string{
		k.Path,
		k.User,
		k.Action,
		strconv.FormatUint(k.Generation, 10),
		k.MetadataDigest,
	}
	return strings.Join(parts, ":")
}

// Validate checks that the key has every required component.
func (k Key) Validate() error {
	if k.Path == "" {
		return fmt.Errorf("path is required")
	}
	if k.User == "" {
		return fmt.Errorf("user is required")
	}
	if k.Action == "" {
		return fmt.Errorf("action is required")
	}
	return nil
}

// digestMetadata generates a stable digest of a metadata map.
//
// CRITICAL INVARIANT: Map keys are sorted alphabetically before
// hashing so identical metadata produces identical digests regardless
// of iteration order.
//
// Algorithm:
// 1. Extract and sort all keys alphabetically
// 2. For each key in sorted order: hash key + \0 + value + \0
// 3. Return first 16 hex characters of the SHA256 hash
func digestMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hasher := sha256.New()
	for _, k := range keys {
		hasher.Write([]byte(k))
		hasher.Write([]byte{0})
		hasher.Write([]byte(metadata[k]))
		hasher.Write([]byte{0})
	}

	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
