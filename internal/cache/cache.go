package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache is the advisory key-value store shared across pipeline components.
// Both operations are fire-and-forget-safe: a caller proceeds identically on
// miss or on cache failure, so unavailability only removes a speed/cost
// optimization, never a result.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

// Key builds a namespaced cache key from the given parts. Parts are hashed so
// arbitrary query text never leaks into filenames.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "evisearch:v1:" + hex.EncodeToString(hash[:])
}

// Nop is a cache that stores nothing, for runs with caching disabled
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)            { return nil, false }
func (Nop) Set(string, []byte, time.Duration)    {}
