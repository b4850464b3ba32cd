package pipeline

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

// responseCache is a size-bounded LRU of successful responses with a TTL.
type responseCache struct {
	mu      sync.Mutex
	size    int
	ttl     time.Duration
	now     func() time.Time
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	key      string
	response types.Response
	expires  time.Time
}

func newResponseCache(size int, ttl time.Duration, now func() time.Time) *responseCache {
	return &responseCache{
		size:    size,
		ttl:     ttl,
		now:     now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// cacheKey hashes the normalized request together with the response variant.
func cacheKey(req types.GenerationRequest, withContext bool) string {
	payload, _ := json.Marshal(struct {
		Request     types.GenerationRequest `json:"request"`
		WithContext bool                    `json:"with_context"`
	}{req, withContext})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (c *responseCache) get(key string) (types.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return types.Response{}, false
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.entries, key)
		return types.Response{}, false
	}
	c.order.MoveToFront(el)
	return cloneResponse(entry.response), true
}

func (c *responseCache) put(key string, resp types.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{key: key, response: cloneResponse(resp), expires: c.now().Add(c.ttl)}
	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(entry)
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *responseCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

func (c *responseCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// cloneResponse copies the parts of a response a caller could mutate.
func cloneResponse(r types.Response) types.Response {
	if r.GenerationResult != nil {
		result := *r.GenerationResult
		result.Warnings = append([]types.Warning(nil), result.Warnings...)
		r.GenerationResult = &result
	}
	r.RetrievedContext = append([]types.ContextItem(nil), r.RetrievedContext...)
	return r
}
