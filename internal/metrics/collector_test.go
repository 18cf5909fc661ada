package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatal("NewCollector() returned nil")
	}
}

func TestCollector_RecordCheck_CountsAllowDenyError(t *testing.T) {
	c := NewCollector()

	c.RecordCheck("view", 10*time.Millisecond, true, nil)
	c.RecordCheck("view", 20*time.Millisecond, false, nil)
	c.RecordCheck("delete", 5*time.Millisecond, false, errors.New("boom"))

	output := c.PrometheusFormat()

	if !strings.Contains(output, "cedarguard_checks_total 3") {
		t.Errorf("PrometheusFormat() = %q, want cedarguard_checks_total 3", output)
	}
	if !strings.Contains(output, "cedarguard_checks_allowed_total 1") {
		t.Errorf("PrometheusFormat() = %q, want cedarguard_checks_allowed_total 1", output)
	}
	if !strings.Contains(output, "cedarguard_checks_denied_total 1") {
		t.Errorf("PrometheusFormat() = %q, want cedarguard_checks_denied_total 1", output)
	}
	if !strings.Contains(output, "cedarguard_checks_errored_total 1") {
		t.Errorf("PrometheusFormat() = %q, want cedarguard_checks_errored_total 1", output)
	}
}

func TestCollector_RecordCheck_PerActionBreakdown(t *testing.T) {
	c := NewCollector()

	c.RecordCheck("view", 100*time.Millisecond, true, nil)
	c.RecordCheck("view", 200*time.Millisecond, true, nil)
	c.RecordCheck("edit", 50*time.Millisecond, false, nil)

	output := c.PrometheusFormat()

	if !strings.Contains(output, `action="view"`) {
		t.Errorf("PrometheusFormat() = %q, want a view action breakdown", output)
	}
	if !strings.Contains(output, "cedarguard_action_allowed_total") {
		t.Errorf("PrometheusFormat() = %q, want a per-action allowed counter", output)
	}
}

func TestCollector_RecordCacheStats(t *testing.T) {
	c := NewCollector()
	c.RecordCacheStats(7, 3)

	output := c.PrometheusFormat()
	if !strings.Contains(output, "cedarguard_entity_cache_hits_total 7") {
		t.Errorf("PrometheusFormat() = %q, want cedarguard_entity_cache_hits_total 7", output)
	}
	if !strings.Contains(output, "cedarguard_entity_cache_misses_total 3") {
		t.Errorf("PrometheusFormat() = %q, want cedarguard_entity_cache_misses_total 3", output)
	}
}

func TestCollector_PrometheusFormat_IncludesUptime(t *testing.T) {
	c := NewCollector()
	output := c.PrometheusFormat()

	if !strings.Contains(output, "cedarguard_uptime_seconds") {
		t.Errorf("PrometheusFormat() = %q, want cedarguard_uptime_seconds", output)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RecordCheck("view", 10*time.Millisecond, true, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	handler := c.Handler()
	handler(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}

	contentType := rr.Header().Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", contentType)
	}
	if !strings.Contains(rr.Body.String(), "cedarguard_checks_total") {
		t.Error("response body missing cedarguard_checks_total")
	}
}
