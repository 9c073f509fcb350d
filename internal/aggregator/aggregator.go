package aggregator

import (
	"context"
	"sort"
	"sync"

	"github.com/atikulmunna/logtally/internal/model"
)

// Ranked is a key/count pair in an ordered result.
type Ranked struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// counter counts keys and remembers the order they were first seen in.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string, n int) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// ranked returns entries by count descending; equal counts keep first-seen order.
func (c *counter) ranked() []Ranked {
	out := make([]Ranked, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Ranked{Key: k, Count: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Aggregator accumulates access-log records in a single pass and answers the
// report queries over everything seen so far.
type Aggregator struct {
	mu         sync.RWMutex
	total      int
	statuses   map[int]int
	urls       *counter
	agents     *counter
	ipStatuses map[string]map[int]int
	ipOrder    []string
	timestamps map[string]int
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		statuses:   make(map[int]int),
		urls:       newCounter(),
		agents:     newCounter(),
		ipStatuses: make(map[string]map[int]int),
		timestamps: make(map[string]int),
	}
}

// FromRecords aggregates a materialized slice of records.
func FromRecords(records []model.LogRecord) *Aggregator {
	a := New()
	for _, r := range records {
		a.Add(r)
	}
	return a
}

// Add records one log entry.
func (a *Aggregator) Add(r model.LogRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.statuses[r.Status]++
	a.urls.add(r.URL, 1)
	a.agents.add(r.UserAgent, 1)
	a.timestamps[r.Timestamp]++

	byStatus, ok := a.ipStatuses[r.IP]
	if !ok {
		byStatus = make(map[int]int)
		a.ipStatuses[r.IP] = byStatus
		a.ipOrder = append(a.ipOrder, r.IP)
	}
	byStatus[r.Status]++
}

// Start consumes records until the channel closes or ctx is done.
func (a *Aggregator) Start(ctx context.Context, records <-chan model.LogRecord) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-records:
			if !ok {
				return nil
			}
			a.Add(r)
		}
	}
}

// TotalRequests returns the number of records seen.
func (a *Aggregator) TotalRequests() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

// StatusFrequency returns the count per distinct status code.
func (a *Aggregator) StatusFrequency() map[int]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[int]int, len(a.statuses))
	for k, v := range a.statuses {
		out[k] = v
	}
	return out
}

// TopURLs returns the n most requested URLs. n < 0 returns all of them.
func (a *Aggregator) TopURLs(n int) []Ranked {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return truncate(a.urls.ranked(), n)
}

// UserAgentFrequency returns every user agent ranked by request count.
func (a *Aggregator) UserAgentFrequency() []Ranked {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.agents.ranked()
}

// SuspiciousIPs returns the IPs whose number of requests with a status in
// failureStatuses is strictly greater than threshold.
func (a *Aggregator) SuspiciousIPs(failureStatuses []int, threshold int) []Ranked {
	a.mu.RLock()
	defer a.mu.RUnlock()

	statuses := dedupe(failureStatuses)
	failed := newCounter()
	for _, ip := range a.ipOrder {
		n := 0
		for _, s := range statuses {
			n += a.ipStatuses[ip][s]
		}
		if n > threshold {
			failed.add(ip, n)
		}
	}
	return failed.ranked()
}

// TrafficTrends returns request counts per timestamp bucket in ascending bucket order.
func (a *Aggregator) TrafficTrends(p Precision) []Ranked {
	a.mu.RLock()
	defer a.mu.RUnlock()

	buckets := make(map[string]int)
	for ts, n := range a.timestamps {
		buckets[p.Truncate(ts)] += n
	}

	out := make([]Ranked, 0, len(buckets))
	for k, v := range buckets {
		out = append(out, Ranked{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

func truncate(items []Ranked, n int) []Ranked {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func dedupe(statuses []int) []int {
	seen := make(map[int]bool, len(statuses))
	out := statuses[:0:0]
	for _, s := range statuses {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
