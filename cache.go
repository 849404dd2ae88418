package molajo

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Cache is the interface for caching rendered statements.
// Implementations must be safe for concurrent use. An in-memory
// implementation lives in contrib/memcache.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a statement rendered from a registry document.
type CacheKey struct {
	Registry      string
	QueryObject   string
	Dialect       string
	ApplicationID int64
	SiteID        int64
	Keys          string // Primary/name key values, already joined.
	Offset        int
	Limit         int
	Revision      uint64 // Revision of the document the statement was rendered from.
}

// Prefix returns the key prefix shared by every statement of a registry.
func (k CacheKey) Prefix() string {
	return k.Registry + ":"
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Prefix() + strings.Join([]string{
		k.QueryObject,
		k.Dialect,
		strconv.FormatInt(k.ApplicationID, 10),
		strconv.FormatInt(k.SiteID, 10),
		k.Keys,
		strconv.Itoa(k.Offset),
		strconv.Itoa(k.Limit),
		strconv.FormatUint(k.Revision, 10),
	}, ":")
}
