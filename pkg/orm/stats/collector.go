package stats

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultCapacity = 1000

// Summary aggregates every record seen for one SQL text.
type Summary struct {
	SQL     string        `json:"sql"`
	Count   int64         `json:"count"`
	Errors  int64         `json:"errors"`
	Rows    int64         `json:"rows"`
	Total   time.Duration `json:"total"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
}

// Summarizer reports per-SQL aggregates.
type Summarizer interface {
	Summary() []Summary
}

// Collector keeps the most recent records in memory together with
// per-SQL aggregates. It is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	ring    []Record
	next    int
	full    bool
	summary map[string]*Summary
}

// NewCollector creates a collector retaining up to capacity records.
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Collector{
		ring:    make([]Record, capacity),
		summary: make(map[string]*Summary),
	}
}

// Record implements Sink.
func (c *Collector) Record(_ context.Context, rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = rec
	c.next = (c.next + 1) % len(c.ring)
	if c.next == 0 {
		c.full = true
	}

	s, ok := c.summary[rec.SQL]
	if !ok {
		s = &Summary{SQL: rec.SQL}
		c.summary[rec.SQL] = s
	}
	s.Count++
	s.Rows += rec.Rows
	s.Total += rec.Total
	if rec.Total > s.Max {
		s.Max = rec.Total
	}
	if rec.Failed() {
		s.Errors++
	}
}

// Len returns the number of retained records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.full {
		return len(c.ring)
	}
	return c.next
}

// Recent implements Reader. A non-positive n returns every retained record.
func (c *Collector) Recent(_ context.Context, n int) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.next
	if c.full {
		size = len(c.ring)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (c.next - i + len(c.ring)) % len(c.ring)
		out = append(out, c.ring[idx])
	}
	return out, nil
}

// Summary implements Summarizer, ordered by total time descending.
func (c *Collector) Summary() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Summary, 0, len(c.summary))
	for _, s := range c.summary {
		cp := *s
		if cp.Count > 0 {
			cp.Average = cp.Total / time.Duration(cp.Count)
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].SQL < out[j].SQL
		}
		return out[i].Total > out[j].Total
	})
	return out
}

// Reset drops all retained records and aggregates.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring = make([]Record, len(c.ring))
	c.next = 0
	c.full = false
	c.summary = make(map[string]*Summary)
}
