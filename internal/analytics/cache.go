package analytics

import (
	"sync"
	"time"

	"github.com/openpredict/termfeed/internal/model"
)

// BookKey identifies one book state for memoization: the source it merged
// from and that source's revision or generation counter.
type BookKey struct {
	Source   string
	Revision uint64
}

// Cache memoizes one market's book metrics by input identity and carries
// the previous momentum sample for acceleration tracking. Momentum itself
// is never memoized: its window slides with the clock, so an unchanged
// trade log can still produce a different reading.
type Cache struct {
	book     BookParams
	momentum MomentumParams

	mu      sync.Mutex
	bookKey BookKey
	metrics BookMetrics
	hasBook bool
	prev    *Momentum
}

// NewCache creates a cache with the given tunings. Zero params fall back
// to defaults inside the compute functions.
func NewCache(book BookParams, momentum MomentumParams) *Cache {
	return &Cache{book: book, momentum: momentum}
}

// BookMetrics returns the metrics for the identified book state, computing
// only when the key changed since the last call.
func (c *Cache) BookMetrics(key BookKey, bids, asks []model.BookLevel) BookMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasBook && key == c.bookKey {
		return c.metrics
	}
	c.metrics = ComputeBookMetrics(bids, asks, c.book)
	c.bookKey = key
	c.hasBook = true
	return c.metrics
}

// Momentum computes the current window's momentum and remembers it as the
// previous sample for the next call's acceleration comparison.
func (c *Cache) Momentum(trades []model.Trade, now time.Time) Momentum {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := ComputeMomentum(trades, now, c.prev, c.momentum)
	c.prev = &m
	return m
}
