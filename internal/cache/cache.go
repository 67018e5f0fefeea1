package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"housingsearch/server/internal/models"
)

// DefaultTTL is how long a search result stays servable
const DefaultTTL = 1800 * time.Second

type entry struct {
	listings  []models.Listing
	createdAt time.Time
}

// Cache maps search filter fingerprints to previously computed results.
// Expired entries are never served and are removed by Sweep or overwritten by Put.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL; a non-positive TTL means DefaultTTL
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source, used by tests
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// fingerprintFields is the canonical form hashed by Key. Field order is fixed
// by the struct and rooms are normalized, so equal filters hash equally.
type fingerprintFields struct {
	Lon          float64  `json:"lon"`
	Lat          float64  `json:"lat"`
	RadiusKm     float64  `json:"radius_km"`
	MinPrice     *float64 `json:"min_price"`
	MaxPrice     *float64 `json:"max_price"`
	Rooms        []int    `json:"rooms"`
	PropertyType *string  `json:"property_type"`
}

// Key derives the fingerprint of a search filter
func Key(filter models.SearchFilter) string {
	data, _ := json.Marshal(fingerprintFields{
		Lon:          zeroSign(filter.Center.Longitude),
		Lat:          zeroSign(filter.Center.Latitude),
		RadiusKm:     zeroSign(filter.RadiusKm),
		MinPrice:     zeroSignPtr(filter.MinPrice),
		MaxPrice:     zeroSignPtr(filter.MaxPrice),
		Rooms:        filter.NormalizedRooms(),
		PropertyType: filter.PropertyType,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// zeroSign folds -0 into 0 so equal values marshal identically
func zeroSign(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

func zeroSignPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := zeroSign(*v)
	return &n
}

// Get returns a copy of the cached listings if the entry is younger than the TTL
func (c *Cache) Get(key string) ([]models.Listing, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok || now.Sub(e.createdAt) >= c.ttl {
		return nil, false
	}
	return copyListings(e.listings), true
}

// Put stores listings under key, replacing any previous entry
func (c *Cache) Put(key string, listings []models.Listing) {
	stored := copyListings(listings)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{listings: stored, createdAt: c.now()}
}

// Sweep removes expired entries and returns how many were removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyListings(listings []models.Listing) []models.Listing {
	if listings == nil {
		return nil
	}
	out := make([]models.Listing, len(listings))
	copy(out, listings)
	return out
}
