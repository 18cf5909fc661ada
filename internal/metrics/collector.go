// Package metrics provides Prometheus-compatible metrics collection for
// the authorization runtime.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and exposes Prometheus-compatible metrics for
// authorization checks.
type Collector struct {
	checkCount    int64
	allowCount    int64
	denyCount     int64
	errorCount    int64
	checkDuration int64 // total milliseconds, across all checks

	// per-action breakdown
	byAction sync.Map // map[string]*ActionMetrics

	// cache metrics, fed by entitycache.Cache.Stats
	cacheHits   int64
	cacheMisses int64

	startTime time.Time
}

// ActionMetrics holds per-action-name counters.
type ActionMetrics struct {
	Checks  int64
	Allowed int64
	Denied  int64
	Latency int64 // total milliseconds
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordCheck records the outcome and latency of a single authorization
// check. allowed is ignored when err is non-nil (the check errored
// rather than being decided either way).
func (c *Collector) RecordCheck(action string, duration time.Duration, allowed bool, err error) {
	atomic.AddInt64(&c.checkCount, 1)
	atomic.AddInt64(&c.checkDuration, duration.Milliseconds())

	m, _ := c.byAction.LoadOrStore(action, &ActionMetrics{})
	am := m.(*ActionMetrics)
	atomic.AddInt64(&am.Checks, 1)
	atomic.AddInt64(&am.Latency, duration.Milliseconds())

	switch {
	case err != nil:
		atomic.AddInt64(&c.errorCount, 1)
	case allowed:
		atomic.AddInt64(&c.allowCount, 1)
		atomic.AddInt64(&am.Allowed, 1)
	default:
		atomic.AddInt64(&c.denyCount, 1)
		atomic.AddInt64(&am.Denied, 1)
	}
}

// RecordCacheStats snapshots the entity cache's hit/miss counters.
func (c *Collector) RecordCacheStats(hits, misses uint64) {
	atomic.StoreInt64(&c.cacheHits, int64(hits))
	atomic.StoreInt64(&c.cacheMisses, int64(misses))
}

// PrometheusFormat returns metrics in Prometheus exposition format.
func (c *Collector) PrometheusFormat() string {
	var output string

	output += c.formatCounter("cedarguard_checks_total", "", atomic.LoadInt64(&c.checkCount))
	output += c.formatCounter("cedarguard_checks_allowed_total", "", atomic.LoadInt64(&c.allowCount))
	output += c.formatCounter("cedarguard_checks_denied_total", "", atomic.LoadInt64(&c.denyCount))
	output += c.formatCounter("cedarguard_checks_errored_total", "", atomic.LoadInt64(&c.errorCount))
	if count := atomic.LoadInt64(&c.checkCount); count > 0 {
		avg := float64(atomic.LoadInt64(&c.checkDuration)) / float64(count)
		output += c.formatGauge("cedarguard_check_duration_avg_ms", "", avg)
	}

	c.byAction.Range(func(key, value interface{}) bool {
		action := key.(string)
		am := value.(*ActionMetrics)
		labels := fmt.Sprintf(`action="%s"`, action)
		output += c.formatCounter("cedarguard_action_checks_total", labels, atomic.LoadInt64(&am.Checks))
		output += c.formatCounter("cedarguard_action_allowed_total", labels, atomic.LoadInt64(&am.Allowed))
		output += c.formatCounter("cedarguard_action_denied_total", labels, atomic.LoadInt64(&am.Denied))
		return true
	})

	output += c.formatCounter("cedarguard_entity_cache_hits_total", "", atomic.LoadInt64(&c.cacheHits))
	output += c.formatCounter("cedarguard_entity_cache_misses_total", "", atomic.LoadInt64(&c.cacheMisses))

	output += c.formatGauge("cedarguard_uptime_seconds", "", time.Since(c.startTime).Seconds())

	return output
}

func (c *Collector) formatCounter(name, labels string, value int64) string {
	if labels != "" {
		return fmt.Sprintf("%s{%s} %d\n", name, labels, value)
	}
	return fmt.Sprintf("%s %d\n", name, value)
}

func (c *Collector) formatGauge(name, labels string, value float64) string {
	if labels != "" {
		return fmt.Sprintf("%s{%s} %.2f\n", name, labels, value)
	}
	return fmt.Sprintf("%s %.2f\n", name, value)
}

// Handler returns an HTTP handler exposing metrics for scraping.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(c.PrometheusFormat()))
	}
}
