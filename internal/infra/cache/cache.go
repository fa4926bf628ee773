// Package cache provides a bounded in-memory cache for quick reads of live games.
// It is not the source of truth: evicted entries are handed to a callback so the
// owner can persist them.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache holds at most size games, each entry expiring ttl after its
// last write. Reads do not extend the lifetime; call Touch for that.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// EvictFunc is called with the game id and value of every entry that leaves
// the cache, whether by size, expiry, Delete or Purge. It runs while the
// cache is locked and must not call back into it.
type EvictFunc[V any] func(gameID string, value V)

// New creates a cache. A zero ttl disables expiry.
func New[V any](size int, ttl time.Duration, onEvict EvictFunc[V]) *Cache[V] {
	var cb expirable.EvictCallback[string, V]
	if onEvict != nil {
		cb = func(key string, value V) {
			onEvict(gameIDFromKey(key), value)
		}
	}
	return &Cache[V]{
		lru: expirable.NewLRU[string, V](size, cb, ttl),
	}
}

// Set stores value for a game. It reports whether an older entry was evicted
// to make room.
func (c *Cache[V]) Set(gameID string, value V) (evicted bool) {
	return c.lru.Add(gameKey(gameID), value)
}

// Get retrieves the value of a game if present and not expired.
func (c *Cache[V]) Get(gameID string) (V, bool) {
	return c.lru.Get(gameKey(gameID))
}

// Touch renews the lifetime of a game's entry.
func (c *Cache[V]) Touch(gameID string) bool {
	key := gameKey(gameID)
	v, ok := c.lru.Get(key)
	if !ok {
		return false
	}
	c.lru.Add(key, v)
	return true
}

// Delete removes a game from the cache.
func (c *Cache[V]) Delete(gameID string) bool {
	return c.lru.Remove(gameKey(gameID))
}

// Len returns the number of cached games, including expired entries not yet swept.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// GameIDs returns the cached game ids from oldest to newest.
func (c *Cache[V]) GameIDs() []string {
	keys := c.lru.Keys()
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = gameIDFromKey(k)
	}
	return ids
}

// Purge evicts every entry.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// gameKey generates the cache key for a game.
func gameKey(gameID string) string {
	return fmt.Sprintf("game:%s", gameID)
}

func gameIDFromKey(key string) string {
	return strings.TrimPrefix(key, "game:")
}
