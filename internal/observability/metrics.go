package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	started      time.Time
	requestCount map[string]int64
	errorCount   map[string]int64
	latencyTotal map[string]time.Duration
}

// RouteStats is the snapshot of a single route|method|status key.
type RouteStats struct {
	Key          string  `json:"key"`
	Count        int64   `json:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Requests      []RouteStats     `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:      time.Now(),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		latencyTotal: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
}

// RecordError increments error counters by domain error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the counters, requests sorted by key.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Errors: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Requests:      make([]RouteStats, 0, len(m.requestCount)),
		Errors:        make(map[string]int64, len(m.errorCount)),
	}
	for key, count := range m.requestCount {
		avg := float64(m.latencyTotal[key].Microseconds()) / float64(count) / 1000
		snap.Requests = append(snap.Requests, RouteStats{Key: key, Count: count, AvgLatencyMs: avg})
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].Key < snap.Requests[j].Key })
	for key, count := range m.errorCount {
		snap.Errors[key] = count
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
