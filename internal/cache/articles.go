// Package cache provides a process-local TTL cache for paginated article reads.
package cache

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"article-service/internal/domain"
)

// DefaultTTL bounds how stale a cached article page may be.
const DefaultTTL = 10 * time.Second

// ArticleCache memoizes the result of a parameterized article listing for a
// short window. Entries are evicted lazily on the first lookup past expiry.
//
// Writes never invalidate cached pages, so a list read may be up to TTL stale
// relative to concurrent creates, updates or deletes. That bounded staleness
// is part of the read contract. Single-flight is not guaranteed: concurrent
// identical misses may both query and both fill the key; last write wins,
// which is harmless since the underlying query is a pure read.
type ArticleCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	articles   []domain.Article
	insertedAt time.Time
}

func New(ttl time.Duration) *ArticleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ArticleCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Key builds the deterministic cache key for a listing query. Absent filters
// are encoded with a fixed sentinel so the same parameter tuple always maps
// to the same key.
func Key(page, perPage int, authorID *int64, publishedOn *time.Time) string {
	author := "-"
	if authorID != nil {
		author = strconv.FormatInt(*authorID, 10)
	}
	day := "-"
	if publishedOn != nil {
		day = publishedOn.Format("2006-01-02")
	}
	return fmt.Sprintf("articles:%d:%d:%s:%s", page, perPage, author, day)
}

// Get returns the cached page for key if present and fresh.
func (c *ArticleCache) Get(key string) ([]domain.Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return copyArticles(e.articles), true
}

// Put stores a page under key, replacing any previous value.
func (c *ArticleCache) Put(key string, articles []domain.Article) {
	stored := copyArticles(articles)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{articles: stored, insertedAt: c.now()}
}

// Callers get copies so cached state cannot be mutated through a returned slice.
func copyArticles(in []domain.Article) []domain.Article {
	out := make([]domain.Article, len(in))
	copy(out, in)
	return out
}
