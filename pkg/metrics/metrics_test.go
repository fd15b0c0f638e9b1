package metrics

import (
	"math"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestRecorderObserveGeneration(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveGeneration("ok", 1500*time.Millisecond)

	families := gather(t, rec, "centelha_generation_requests_total", "centelha_generation_duration_seconds")

	counter := findMetric(t, families["centelha_generation_requests_total"], map[string]string{"outcome": "ok"})
	if got := counter.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected counter value 1, got %v", got)
	}

	hist := findMetric(t, families["centelha_generation_duration_seconds"], map[string]string{"outcome": "ok"}).GetHistogram()
	if hist == nil {
		t.Fatalf("expected histogram metric for generation latency")
	}
	if hist.GetSampleCount() != 1 {
		t.Fatalf("expected histogram count 1, got %d", hist.GetSampleCount())
	}
	if diff := math.Abs(hist.GetSampleSum() - 1.5); diff > 0.001 {
		t.Fatalf("expected histogram sum near 1.5, got %v", hist.GetSampleSum())
	}
}

func TestRecorderObserveOffline(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveLookup(LookupHit)
	rec.ObserveLookup(LookupHit)
	rec.ObserveLookup(LookupMiss)
	rec.ObserveStore(StoreStored)
	rec.ObserveInstall(true)
	rec.ObserveNamespacesDeleted(2)
	rec.ObserveNamespacesDeleted(0)

	families := gather(t, rec,
		"centelha_offline_lookups_total",
		"centelha_offline_stores_total",
		"centelha_offline_installs_total",
		"centelha_offline_namespaces_deleted_total",
	)

	hits := findMetric(t, families["centelha_offline_lookups_total"], map[string]string{"outcome": "hit"})
	if got := hits.GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	stored := findMetric(t, families["centelha_offline_stores_total"], map[string]string{"outcome": "stored"})
	if got := stored.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 store, got %v", got)
	}
	installed := findMetric(t, families["centelha_offline_installs_total"], map[string]string{"outcome": "installed"})
	if got := installed.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 install, got %v", got)
	}
	deleted := findMetric(t, families["centelha_offline_namespaces_deleted_total"], nil)
	if got := deleted.GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 deleted namespaces, got %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.ObserveGeneration("ok", time.Second)
	rec.ObserveLookup(LookupHit)
	rec.ObserveStore(StoreError)
	rec.ObserveInstall(false)
	rec.ObserveNamespacesDeleted(1)

	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 503 {
		t.Fatalf("expected 503 from nil recorder, got %d", rr.Code)
	}
}

func TestRecorderHandler(t *testing.T) {
	rec := NewRecorder(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)

	rec.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200 response, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected response body")
	}
}

func gather(t *testing.T, rec *Recorder, names ...string) map[string][]*dto.Metric {
	t.Helper()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	families, err := rec.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	out := make(map[string][]*dto.Metric, len(names))
	for _, fam := range families {
		if wanted[fam.GetName()] {
			out[fam.GetName()] = fam.GetMetric()
		}
	}
	for name := range wanted {
		if _, ok := out[name]; !ok {
			t.Fatalf("metric family %s not found", name)
		}
	}
	return out
}

func findMetric(t *testing.T, metrics []*dto.Metric, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, m := range metrics {
		if matchLabels(m, labels) {
			return m
		}
	}
	t.Fatalf("metric with labels %v not found", labels)
	return nil
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}
