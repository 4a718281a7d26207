package forecast

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache memoizes forecast results by request fingerprint with a fixed TTL.
// It belongs to the engine's caller: the physics chain itself holds no
// mutable state. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	points   []Point
	storedAt time.Time
}

// NewCache creates a cache whose entries expire ttl after being stored.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached sequence for key if present and not expired.
func (c *Cache) Get(key string) ([]Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		return nil, false
	}
	return entry.points, true
}

// Set stores a sequence under key, resetting its TTL.
func (c *Cache) Set(key string, points []Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{points: points, storedAt: time.Now()}
}

// Purge drops expired entries. Callers with long-lived caches run this
// periodically; Get never returns expired data either way.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if time.Since(entry.storedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

// Fingerprint derives a cache key from every request parameter that affects
// the output sequence.
func Fingerprint(cfg Config, start time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%.5f,%.5f|%d|%dm|%dh|%.3f|%.5f|%.3f|%.0f|%d|%d",
		cfg.Latitude, cfg.Longitude, start.Unix(),
		cfg.StepMinutes, cfg.HorizonHours,
		cfg.Albedo, cfg.TempCoeff, cfg.InverterEfficiency, cfg.InverterCapW,
		cfg.OnUpstreamError, len(cfg.HorizonElevations))
	for _, p := range cfg.Planes {
		fmt.Fprintf(&b, "|%.1f,%.1f,%.2f,%.3f", p.TiltDeg, p.AzimuthDeg, p.CapacityKWp, p.Calibration)
	}
	for _, h := range cfg.HorizonElevations {
		fmt.Fprintf(&b, "|%.1f", h)
	}
	if cfg.SVFOverride != nil {
		fmt.Fprintf(&b, "|svf=%.3f", *cfg.SVFOverride)
	}
	return b.String()
}
