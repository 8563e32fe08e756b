package embedding

import (
	"container/list"
	"sync"
)

// EmbeddingCache is an LRU cache of embedding vectors keyed by the input text.
// Reads promote the entry in the recency list, which mutates shared state, so
// every operation holds the exclusive lock.
type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List
}

type cacheEntry struct {
	text   string
	vector []float32
}

// NewEmbeddingCache creates a cache holding at most capacity vectors.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
	}
}

// Get returns the cached vector for text and marks it most recently used.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	c.recency.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

// Set stores the vector for text, evicting the least recently used entry when
// the cache is full.
func (c *EmbeddingCache) Set(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		c.recency.MoveToFront(elem)
		elem.Value.(*cacheEntry).vector = vector
		return
	}

	c.entries[text] = c.recency.PushFront(&cacheEntry{text: text, vector: vector})
	if c.recency.Len() > c.capacity {
		oldest := c.recency.Back()
		if oldest != nil {
			c.recency.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).text)
		}
	}
}

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}
