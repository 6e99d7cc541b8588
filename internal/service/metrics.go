package service

import (
	"sync/atomic"
	"time"
)

// Metrics counts query-time calls. The zero value is ready to use.
type Metrics struct {
	searches        int64
	searchErrors    int64
	searchLatency   int64 // nanoseconds
	asks            int64
	askErrors       int64
	askLatency      int64 // nanoseconds
	notFound        int64
	keywordSearches int64
	reloads         int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Searches         int64   `json:"searches"`
	SearchErrors     int64   `json:"search_errors"`
	AvgSearchLatency float64 `json:"avg_search_latency_ms"`
	Asks             int64   `json:"asks"`
	AskErrors        int64   `json:"ask_errors"`
	AvgAskLatency    float64 `json:"avg_ask_latency_ms"`
	NotFound         int64   `json:"not_found"`
	KeywordSearches  int64   `json:"keyword_searches"`
	Reloads          int64   `json:"reloads"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	searches := atomic.LoadInt64(&m.searches)
	asks := atomic.LoadInt64(&m.asks)
	return MetricsSnapshot{
		Searches:         searches,
		SearchErrors:     atomic.LoadInt64(&m.searchErrors),
		AvgSearchLatency: avgMillis(atomic.LoadInt64(&m.searchLatency), searches),
		Asks:             asks,
		AskErrors:        atomic.LoadInt64(&m.askErrors),
		AvgAskLatency:    avgMillis(atomic.LoadInt64(&m.askLatency), asks),
		NotFound:         atomic.LoadInt64(&m.notFound),
		KeywordSearches:  atomic.LoadInt64(&m.keywordSearches),
		Reloads:          atomic.LoadInt64(&m.reloads),
	}
}

func (m *Metrics) recordSearch(d time.Duration, err error) {
	atomic.AddInt64(&m.searches, 1)
	atomic.AddInt64(&m.searchLatency, d.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&m.searchErrors, 1)
	}
}

func (m *Metrics) recordAsk(d time.Duration, notFound bool, err error) {
	atomic.AddInt64(&m.asks, 1)
	atomic.AddInt64(&m.askLatency, d.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&m.askErrors, 1)
	}
	if notFound {
		atomic.AddInt64(&m.notFound, 1)
	}
}

func (m *Metrics) recordKeywordSearch() { atomic.AddInt64(&m.keywordSearches, 1) }

func (m *Metrics) recordReload() { atomic.AddInt64(&m.reloads, 1) }

func avgMillis(totalNs, n int64) float64 {
	if n == 0 {
		return 0
	}
	return float64(totalNs) / float64(n) / 1e6
}
