package travel

import (
	"fmt"
	"sync"
)

// cacheKey builds the memoization key for a route request.
func cacheKey(fromID, toID string, prefs Preferences) (string, error) {
	ph, err := prefs.hash()
	if err != nil {
		return "", fmt.Errorf("prefs hash: %w", err)
	}
	return fromID + "\x00" + toID + "\x00" + ph, nil
}

// routeCache memoizes successful routes with FIFO eviction: when full, the
// oldest entry goes first, regardless of how recently it was read. The
// mutex keeps a shared engine safe; the reference deployment is one engine
// per session, so contention is nil in practice.
type routeCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]RouteResult
	order    []string // insertion order, oldest first
}

func newRouteCache(capacity int) *routeCache {
	return &routeCache{
		capacity: capacity,
		entries:  make(map[string]RouteResult, capacity),
	}
}

// get returns a copy of the cached result. Reads do not refresh position
// (FIFO, not LRU).
func (c *routeCache) get(key string) (RouteResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	if !ok {
		return RouteResult{}, false
	}
	res.Segments = copySegments(res.Segments)
	return res, true
}

// put stores a result, evicting the oldest entry when at capacity.
// Re-putting an existing key refreshes the value but keeps its position.
func (c *routeCache) put(key string, res RouteResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res.Segments = copySegments(res.Segments)
	if _, exists := c.entries[key]; exists {
		c.entries[key] = res
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = res
	c.order = append(c.order, key)
}

// len reports the number of cached routes.
func (c *routeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func copySegments(segs []Segment) []Segment {
	if segs == nil {
		return nil
	}
	out := make([]Segment, len(segs))
	copy(out, segs)
	return out
}
