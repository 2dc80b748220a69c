package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

const cacheKeyMessages = 3
const cacheKeyPrefix = 256

// Cache is a bounded FIFO response cache keyed by a fingerprint of the
// conversation tail. Access is single-threaded per agent, so no locking.
type Cache struct {
	capacity int
	order    []string
	entries  map[string]*engine.Response
}

// NewCache creates a cache holding up to capacity responses.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 64
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*engine.Response),
	}
}

// Key fingerprints a request: the last three messages' content, each
// truncated to a bounded prefix, plus the tool-set size. Two requests with
// byte-identical tails and tool counts hash to the same key.
func (c *Cache) Key(msgs []engine.Message, toolCount int) string {
	var b strings.Builder
	start := len(msgs) - cacheKeyMessages
	if start < 0 {
		start = 0
	}
	for _, m := range msgs[start:] {
		content := m.Content
		if len(content) > cacheKeyPrefix {
			content = content[:cacheKeyPrefix]
		}
		b.WriteString(string(m.Role))
		b.WriteString("\x1f")
		b.WriteString(content)
		b.WriteString("\x1e")
	}
	fmt.Fprintf(&b, "tools=%d", toolCount)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for key, or nil.
func (c *Cache) Get(key string) *engine.Response {
	return c.entries[key]
}

// Put stores resp under key, evicting the oldest entry at capacity.
func (c *Cache) Put(key string, resp *engine.Response) {
	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, key)
	c.entries[key] = resp
}

// Len returns the number of cached responses.
func (c *Cache) Len() int { return len(c.entries) }
