package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/hammamikhairi/astra/internal/logger"
)

// DefaultCacheEntries bounds the in-memory audio cache.
const DefaultCacheEntries = 256

// AudioCache is a thread-safe in-memory cache of synthesized audio. The key
// is sha256(voice + ":" + text), so changing voice misses until it is
// switched back. When full, the oldest entry is evicted. Nothing is written
// to disk: the assistant keeps no state across restarts.
type AudioCache struct {
	mu      sync.RWMutex
	entries map[string][]byte // hash -> WAV bytes
	order   []string          // insertion order for eviction
	max     int
	voice   string
	log     *logger.Logger
	hits    int64
	misses  int64
}

// NewAudioCache creates an audio cache holding at most max entries.
// A max of zero or less uses DefaultCacheEntries.
func NewAudioCache(voice string, max int, log *logger.Logger) *AudioCache {
	if max <= 0 {
		max = DefaultCacheEntries
	}
	return &AudioCache{
		entries: make(map[string][]byte),
		max:     max,
		voice:   voice,
		log:     log,
	}
}

// Get returns cached audio for the given text and true, or nil and false.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
		c.log.Debug("cache hit: %s (%d bytes)", truncate(text, 40), len(data))
		return data, true
	}
	c.misses++
	return nil, false
}

// Put stores audio data for the given text.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.hashKey(text)

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.log.Debug("cache store: %s (%d bytes, %d entries)", truncate(text, 40), len(audio), size)
}

// Has reports whether audio for the text is cached.
func (c *AudioCache) Has(text string) bool {
	key := c.hashKey(text)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached entries.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}
