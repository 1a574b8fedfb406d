package search

import (
	"container/list"
	"sync"
)

// SessionCache is an LRU of search services keyed by client session, so each typing session
// gets its own debounce slot. Evicted services are stopped.
type SessionCache struct {
	capacity int
	newFn    func() *Service
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type sessionEntry struct {
	key     string
	service *Service
}

// NewSessionCache creates a cache holding at most capacity sessions; newFn creates the service
// of a session on first use.
func NewSessionCache(capacity int, newFn func() *Service) *SessionCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &SessionCache{
		capacity: capacity,
		newFn:    newFn,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the service of key, creating it (and evicting the oldest session) if needed.
func (c *SessionCache) Get(key string) *Service {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*sessionEntry).service
	}

	entry := &sessionEntry{key: key, service: c.newFn()}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			evicted := oldest.Value.(*sessionEntry)
			delete(c.cache, evicted.key)
			evicted.service.Stop()
		}
	}
	return entry.service
}

// Len returns the number of live sessions.
func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
