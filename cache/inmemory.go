package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type cacheItem struct {
	fingerprint string
	value       []byte
	tenantID    string
	projectID   string
	expiresAt   time.Time
}

// InMemoryCache is an LRU, TTL-bounded ContextCache, the default backing
// store when no Redis endpoint is configured. Expired entries are evicted
// lazily on access; capacity overflow evicts the least-recently-used entry.
// A background sweeper additionally reclaims expired entries that are
// never read again, started via Start.
type InMemoryCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	stats    Stats
	now      func() time.Time

	sweepInterval time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
}

// DefaultSweepInterval is how often Start's background sweeper scans for
// expired entries that lazy on-Get eviction would otherwise leave resident
// until (if ever) looked up again.
const DefaultSweepInterval = 30 * time.Second

// NewInMemoryCache returns a cache bounded to capacity entries (0 means
// unbounded).
func NewInMemoryCache(capacity int) *InMemoryCache {
	return &InMemoryCache{
		capacity:      capacity,
		items:         make(map[string]*list.Element),
		order:         list.New(),
		now:           func() time.Time { return time.Now().UTC() },
		sweepInterval: DefaultSweepInterval,
	}
}

// Start launches the proactive expiry sweeper in the background.
func (c *InMemoryCache) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				c.sweepExpired()
			}
		}
	}()
	return nil
}

// Stop halts the background sweeper.
func (c *InMemoryCache) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *InMemoryCache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []*list.Element
	for _, el := range c.items {
		if now.After(el.Value.(*cacheItem).expiresAt) {
			expired = append(expired, el)
		}
	}
	for _, el := range expired {
		c.removeElement(el)
	}
}

var _ ContextCache = (*InMemoryCache)(nil)

func (c *InMemoryCache) Get(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[fingerprint]
	if !ok {
		c.stats.Misses++
		return nil, false, nil
	}

	item := el.Value.(*cacheItem)
	if c.now().After(item.expiresAt) {
		c.removeElement(el)
		c.stats.Misses++
		return nil, false, nil
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return item.value, true, nil
}

func (c *InMemoryCache) Put(ctx context.Context, fingerprint string, value []byte, tenantID, projectID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[fingerprint]; ok {
		c.removeElement(el)
	}

	item := &cacheItem{
		fingerprint: fingerprint,
		value:       value,
		tenantID:    tenantID,
		projectID:   projectID,
		expiresAt:   c.now().Add(ttl),
	}
	el := c.order.PushFront(item)
	c.items[fingerprint] = el

	if c.capacity > 0 {
		for c.order.Len() > c.capacity {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}
	return nil
}

func (c *InMemoryCache) Invalidate(ctx context.Context, tenantID, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, el := range c.items {
		item := el.Value.(*cacheItem)
		if item.tenantID != tenantID {
			continue
		}
		if projectID != "" && item.projectID != projectID {
			continue
		}
		toRemove = append(toRemove, el)
	}
	for _, el := range toRemove {
		c.removeElement(el)
	}
	return nil
}

func (c *InMemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = int64(c.order.Len())
	return s
}

// removeElement deletes an element from both the map and list; caller must
// hold c.mu.
func (c *InMemoryCache) removeElement(el *list.Element) {
	item := el.Value.(*cacheItem)
	delete(c.items, item.fingerprint)
	c.order.Remove(el)
}
