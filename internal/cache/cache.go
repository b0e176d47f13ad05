package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a stable cache key from arbitrary text (e.g. a market
// price query)
func Key(text string) string {
	hash := sha256.Sum256([]byte(text))
	return "claimwarden:v1:" + hex.EncodeToString(hash[:])
}
