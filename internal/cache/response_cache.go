// Package cache implements the response cache (C1): a fingerprint-keyed
// memoization layer for finalized LLM responses with TTL and LRU eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/docassist/pkg/models"
)

// Options configures a ResponseCache.
type Options struct {
	TTL        time.Duration
	MaxEntries int
}

type entry struct {
	response  models.LLMResponse
	expiresAt int64 // unix millis
}

// ResponseCache maps a request fingerprint to a (response, expiry) pair.
// Mutation is serialized per spec.md §5 "Cache: single shared instance per
// process; internal mutation serialized"; a second concurrent miss on the
// same fingerprint MAY duplicate the provider call (single-flight is not
// required), but a stale write must never clobber a fresher one — Put
// compares expiry before overwriting.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]entry
	order   []string // insertion/touch order, oldest first, for LRU eviction
	ttl     time.Duration
	maxSize int
}

// New creates a ResponseCache. Zero or negative options fall back to
// defaults (1024 entries per spec.md §4.1, no TTL meaning entries never
// expire by age).
func New(opts Options) *ResponseCache {
	maxSize := opts.MaxEntries
	if maxSize <= 0 {
		maxSize = 1024
	}
	ttl := opts.TTL
	if ttl < 0 {
		ttl = 0
	}
	return &ResponseCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached response for a fingerprint, if present and not
// expired.
func (c *ResponseCache) Get(fingerprint string) (models.LLMResponse, bool) {
	return c.GetAt(fingerprint, time.Now())
}

// GetAt is Get with an explicit clock, for deterministic tests.
func (c *ResponseCache) GetAt(fingerprint string, now time.Time) (models.LLMResponse, bool) {
	if fingerprint == "" {
		return models.LLMResponse{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return models.LLMResponse{}, false
	}
	if c.ttl > 0 && now.UnixMilli() >= e.expiresAt {
		delete(c.entries, fingerprint)
		c.removeFromOrder(fingerprint)
		return models.LLMResponse{}, false
	}
	c.touch(fingerprint)
	return e.response, true
}

// Put stores a response under fingerprint with the given TTL override (zero
// means use the cache's default TTL). A write that would replace a fresher
// entry (later expiry) is dropped rather than clobbering it, per spec.md
// §5's ordering guarantee.
func (c *ResponseCache) Put(fingerprint string, resp models.LLMResponse, ttl time.Duration) {
	c.PutAt(fingerprint, resp, ttl, time.Now())
}

// PutAt is Put with an explicit clock.
func (c *ResponseCache) PutAt(fingerprint string, resp models.LLMResponse, ttl time.Duration, now time.Time) {
	if fingerprint == "" {
		return
	}
	effective := ttl
	if effective <= 0 {
		effective = c.ttl
	}
	var expiresAt int64
	if effective > 0 {
		expiresAt = now.Add(effective).UnixMilli()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[fingerprint]; ok && existing.expiresAt > expiresAt && expiresAt != 0 {
		// A fresher entry is already present; don't overwrite it with a
		// staler write that lost a race.
		return
	}

	c.entries[fingerprint] = entry{response: resp, expiresAt: expiresAt}
	c.touch(fingerprint)
	c.sweep(now.UnixMilli())
}

// touch moves fingerprint to the most-recently-used end of order.
func (c *ResponseCache) touch(fingerprint string) {
	c.removeFromOrder(fingerprint)
	c.order = append(c.order, fingerprint)
}

func (c *ResponseCache) removeFromOrder(fingerprint string) {
	for i, k := range c.order {
		if k == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// sweep removes expired entries, then evicts least-recently-used entries
// until the cache is within maxSize.
func (c *ResponseCache) sweep(nowUnix int64) {
	if c.ttl > 0 {
		for key, e := range c.entries {
			if e.expiresAt > 0 && nowUnix >= e.expiresAt {
				delete(c.entries, key)
				c.removeFromOrder(key)
			}
		}
	}
	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Sweep runs eviction immediately; exposed for callers that want a
// background sweep loop instead of relying on lazy-on-access eviction.
func (c *ResponseCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep(time.Now().UnixMilli())
}

// Size returns the current number of entries.
func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.order = nil
}

// FingerprintInput carries the canonicalized inputs that determine an LLM
// response, per spec.md §3's CacheEntry definition.
type FingerprintInput struct {
	ProviderID      string
	Model           string
	Messages        []models.Message
	Options         map[string]any
	ToolSchemasHash string
}

// Fingerprint computes a stable cache key: canonical JSON over sorted keys,
// whitespace-collapsed message content, sha256-hashed to a fixed-width hex
// string so keys stay small and never leak raw prompt content in logs.
func Fingerprint(in FingerprintInput) string {
	normMessages := make([]map[string]any, 0, len(in.Messages))
	for _, m := range in.Messages {
		normMessages = append(normMessages, map[string]any{
			"role":         string(m.Role),
			"content":      collapseWhitespace(m.Content),
			"name":         m.Name,
			"tool_call_id": m.ToolCallID,
			"tool_calls":   m.ToolCalls,
		})
	}
	payload := map[string]any{
		"provider_id":       in.ProviderID,
		"model":             in.Model,
		"messages":          normMessages,
		"options":           canonicalizeOptions(in.Options),
		"tool_schemas_hash": in.ToolSchemasHash,
	}
	// json.Marshal on map[string]any sorts keys lexicographically already,
	// but we canonicalize nested option maps explicitly for determinism
	// across Go versions.
	data, err := json.Marshal(payload)
	if err != nil {
		// Fingerprinting must never fail the caller; fall back to a
		// degenerate but still-deterministic key.
		data = []byte(in.ProviderID + "|" + in.Model)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func canonicalizeOptions(opts map[string]any) map[string]any {
	if opts == nil {
		return map[string]any{}
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, len(opts))
	for _, k := range keys {
		out[k] = opts[k]
	}
	return out
}
