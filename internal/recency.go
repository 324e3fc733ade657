package internal

import "sync"

const (
	// DefaultRecencyCapacity is the number of ids remembered per kind.
	DefaultRecencyCapacity = 1000
	// MinRecencyCapacity is one full listing page. A smaller cache would forget
	// ids still visible on the page and re-emit them.
	MinRecencyCapacity = 100
)

// RecencyCache remembers recently observed ids for one item kind, together with
// how many polls of that kind have completed.
type RecencyCache struct {
	mu        sync.Mutex
	capacity  int
	order     []string
	next      int
	seen      map[string]struct{}
	pollCount int
	// generation changes on every ResetPriming.
	generation uint64
}

// NewRecencyCache creates a cache bounded to capacity ids. Zero selects the
// default; values below one listing page are raised to MinRecencyCapacity.
func NewRecencyCache(capacity int) *RecencyCache {
	if capacity == 0 {
		capacity = DefaultRecencyCapacity
	}
	if capacity < MinRecencyCapacity {
		capacity = MinRecencyCapacity
	}
	return &RecencyCache{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Capacity returns the maximum number of remembered ids.
func (c *RecencyCache) Capacity() int {
	return c.capacity
}

// Seen reports whether id is remembered.
func (c *RecencyCache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// Add remembers id, evicting the oldest id once the cache is full.
func (c *RecencyCache) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[id]; ok {
		return
	}

	if len(c.order) < c.capacity {
		c.order = append(c.order, id)
	} else {
		delete(c.seen, c.order[c.next])
		c.order[c.next] = id
		c.next = (c.next + 1) % c.capacity
	}
	c.seen[id] = struct{}{}
}

// Len returns the number of remembered ids.
func (c *RecencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Primed reports whether at least one poll completed since the last reset.
func (c *RecencyCache) Primed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCount > 0
}

// CompletePoll increments the poll count.
func (c *RecencyCache) CompletePoll() {
	c.mu.Lock()
	c.pollCount++
	c.mu.Unlock()
}

// BeginPoll reports whether the cache is primed together with the current priming
// generation, to be handed back to CompletePollOf.
func (c *RecencyCache) BeginPoll() (primed bool, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCount > 0, c.generation
}

// CompletePollOf increments the poll count unless ResetPriming ran since BeginPoll
// returned generation. It reports whether the count was incremented.
func (c *RecencyCache) CompletePollOf(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.pollCount++
	return true
}

// PollCount returns the number of completed polls since the last reset.
func (c *RecencyCache) PollCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCount
}

// ResetPriming makes the next poll silent again. Remembered ids are kept.
func (c *RecencyCache) ResetPriming() {
	c.mu.Lock()
	c.pollCount = 0
	c.generation++
	c.mu.Unlock()
}
