package words

import (
	"container/list"
	"sync"
	"time"
)

// Cache keeps derived word models per job with an LRU size bound and a TTL.
// It is a convenience layer only: a miss just means the model is rebuilt
// from the persisted transcript.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	ll         *list.List
	byKey      map[string]*list.Element

	now func() time.Time
}

type cacheEntry struct {
	key     string
	model   *Model
	expires time.Time
}

func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		ll:         list.New(),
		byKey:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

func (c *Cache) Get(key string) (*Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().After(ent.expires) {
		c.remove(el)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return ent.model, true
}

func (c *Cache) Put(key string, m *Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[key]; ok {
		ent := el.Value.(*cacheEntry)
		ent.model = m
		ent.expires = c.now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, model: m, expires: c.now().Add(c.ttl)})
	c.byKey[key] = el
	for c.ll.Len() > c.maxEntries {
		c.remove(c.ll.Back())
	}
}

// Invalidate drops the entry for key. Must be called whenever the
// underlying transcript changes.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byKey[key]; ok {
		c.remove(el)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) remove(el *list.Element) {
	ent := el.Value.(*cacheEntry)
	c.ll.Remove(el)
	delete(c.byKey, ent.key)
}
