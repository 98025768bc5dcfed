// Package cache implements the disk-persisted content cache used for
// generated guide text. Entries are keyed by a fingerprint of the generation
// parameters and may carry an absolute expiry.
//
// The whole map lives in memory and is rewritten to a single JSON file on
// every mutation. The file is replaced atomically (temp file + rename) so a
// crash never leaves a torn file behind. Only one process may own a file.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Params are the generation inputs a cache entry is keyed by.
// Values are formatted with %v, so 3 and "3" fingerprint identically.
type Params map[string]any

// Entry is one persisted cache record.
type Entry struct {
	Content   string            `json:"content"`
	Params    map[string]string `json:"params"`
	Timestamp time.Time         `json:"timestamp"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
}

func (e Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// ErrEmptyParams is returned by Set when no parameters are given.
var ErrEmptyParams = errors.New("cache: empty params")

// Observer receives hit/miss notifications. It is satisfied by the
// observability package and may be nil.
type Observer interface {
	CacheHit()
	CacheMiss()
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	now     func() time.Time
	log     zerolog.Logger
	obs     Observer
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithLogger sets the logger used for persistence failures.
func WithLogger(l zerolog.Logger) Option { return func(c *Cache) { c.log = l } }

// WithObserver reports hits and misses.
func WithObserver(o Observer) Option { return func(c *Cache) { c.obs = o } }

// Open loads the cache stored at path. A missing, unreadable or corrupt
// file yields an empty cache rather than an error.
func Open(path string, opts ...Option) *Cache {
	c := &Cache{
		path:    path,
		entries: map[string]Entry{},
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.load()
	return c
}

func (c *Cache) load() {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Err(err).Str("path", c.path).Msg("cache_read_failed_starting_empty")
		}
		return
	}
	var m map[string]Entry
	if err := json.Unmarshal(b, &m); err != nil {
		c.log.Warn().Err(err).Str("path", c.path).Msg("cache_corrupt_starting_empty")
		return
	}
	if m != nil {
		c.entries = m
	}
}

// Fingerprint returns the order-independent SHA-256 key for p.
func Fingerprint(p Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + fmt.Sprint(p[k])
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}

func stringify(p Params) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Get returns the content stored for p. Expired entries are evicted here.
func (c *Cache) Get(p Params) (string, bool) {
	key := Fingerprint(p)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && e.expired(c.now()) {
		delete(c.entries, key)
		if err := c.persistLocked(); err != nil {
			c.log.Warn().Err(err).Msg("cache_evict_persist_failed")
		}
		ok = false
	}
	if c.obs != nil {
		if ok {
			c.obs.CacheHit()
		} else {
			c.obs.CacheMiss()
		}
	}
	if !ok {
		return "", false
	}
	return e.Content, true
}

// Set stores content for p, replacing any previous entry. A zero ttl means
// the entry never expires. When the file cannot be written the entry is
// dropped from memory too, so a failed write reads back as a miss.
func (c *Cache) Set(p Params, content string, ttl time.Duration) error {
	if len(p) == 0 {
		return ErrEmptyParams
	}
	key := Fingerprint(p)
	now := c.now().UTC()
	e := Entry{Content: content, Params: stringify(p), Timestamp: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = e
	if err := c.persistLocked(); err != nil {
		delete(c.entries, key)
		c.log.Error().Err(err).Str("path", c.path).Msg("cache_write_failed")
		return fmt.Errorf("cache: persist: %w", err)
	}
	return nil
}

// Invalidate removes the entry for p, if any.
func (c *Cache) Invalidate(p Params) error {
	key := Fingerprint(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return nil
	}
	delete(c.entries, key)
	return c.persistLocked()
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]Entry{}
	return c.persistLocked()
}

// ClearWhere removes entries whose stored parameter key equals value and
// returns how many were removed.
func (c *Cache) ClearWhere(key, value string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.Params[key] == value {
			delete(c.entries, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, c.persistLocked()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) persistLocked() error {
	b, err := json.Marshal(c.entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
