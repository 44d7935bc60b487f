package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = Noop{}
	r.ObserveRequest("GET", "/health", 200, time.Millisecond)
	r.ObserveRetrieval("written")
}

func TestPromRequests(t *testing.T) {
	p := NewProm("igloader")
	p.ObserveRequest("POST", "/api/v1/download/post", 404, 20*time.Millisecond)

	families, err := p.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if !hasMetric(families, "igloader_http_requests_total", map[string]string{"method": "POST", "route": "/api/v1/download/post", "status": "404"}) {
		t.Fatalf("expected http_requests metric")
	}
	if !hasMetric(families, "igloader_http_request_duration_seconds", map[string]string{"method": "POST", "route": "/api/v1/download/post"}) {
		t.Fatalf("expected http_request_duration metric")
	}
}

func TestPromRetrievals(t *testing.T) {
	p := NewProm("igloader")
	p.ObserveRetrieval("already_present")
	p.ObserveRetrieval("already_present")

	families, err := p.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "igloader_retrievals_total" {
			continue
		}
		if got := fam.GetMetric()[0].GetCounter().GetValue(); got != 2 {
			t.Fatalf("expected 2 retrievals, got %v", got)
		}
		return
	}
	t.Fatalf("expected retrievals metric")
}

func TestPromRegistriesAreIndependent(t *testing.T) {
	// Two recorders in one process must not collide on registration
	a := NewProm("igloader")
	b := NewProm("igloader")
	a.ObserveRetrieval("written")

	families, err := b.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if hasMetric(families, "igloader_retrievals_total", nil) {
		t.Fatalf("expected second registry to have no retrievals")
	}
}

func TestHandler(t *testing.T) {
	p := NewProm("igloader")
	p.ObserveRetrieval("written")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `igloader_retrievals_total{outcome="written"} 1`) {
		t.Fatalf("expected retrievals in output, got:\n%s", rec.Body.String())
	}
}

func hasMetric(families []*dto.MetricFamily, name string, labels map[string]string) bool {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				return true
			}
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, labels map[string]string) bool {
	if len(labels) == 0 {
		return true
	}
	found := 0
	for _, pair := range pairs {
		if val, ok := labels[pair.GetName()]; ok && pair.GetValue() == val {
			found++
		}
	}
	return found == len(labels)
}
