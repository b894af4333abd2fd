// Package cache holds the per-session tutor response cache.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 50
)

type entry struct {
	text string
	at   time.Time
}

// Response maps normalized questions to tutor answers. Entries expire after
// the TTL and the oldest are evicted once the cache grows past its bound.
type Response struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type Option func(*Response)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Response) { r.now = now }
}

// NewResponse builds a cache. Non-positive limits fall back to the defaults.
func NewResponse(ttl time.Duration, maxEntries int, opts ...Option) *Response {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	r := &Response{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key builds the cache key for a question asked by userID within trackID.
func Key(userID, trackID, message string) string {
	if userID == "" {
		userID = "anonymous"
	}
	if trackID == "" {
		trackID = "general"
	}
	return userID + ":" + trackID + ":" + strings.ToLower(strings.TrimSpace(message))
}

// Get returns the cached text when present and younger than the TTL.
func (r *Response) Get(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return "", false
	}
	if r.now().Sub(e.at) >= r.ttl {
		return "", false
	}
	return e.text, true
}

// Set stores text under key, then evicts the oldest entries over the bound.
func (r *Response) Set(key, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = entry{text: text, at: r.now()}
	r.prune()
}

func (r *Response) prune() {
	excess := len(r.entries) - r.maxEntries
	if excess <= 0 {
		return
	}
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return r.entries[keys[i]].at.Before(r.entries[keys[j]].at)
	})
	for _, k := range keys[:excess] {
		delete(r.entries, k)
	}
}

// Len reports the number of stored entries, expired ones included.
func (r *Response) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
