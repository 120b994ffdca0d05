package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCollectorExposition(t *testing.T) {
	c := NewCollector()
	c.Extractions.Inc()
	c.TripsSelected.Set(7)
	c.HTTPRequests.WithLabelValues("timetable").Inc()
	c.NATSSetConnected(true)
	c.PublishObserve(3 * time.Millisecond)

	body := scrape(t, c)
	for _, want := range []string{
		"timetables_extractions_total 1",
		"timetables_trips_selected 7",
		`timetables_http_requests_total{route="timetable"} 1`,
		"timetables_nats_connected 1",
		"timetables_nats_publish_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}

	c.NATSSetConnected(false)
	if !strings.Contains(scrape(t, c), "timetables_nats_connected 0") {
		t.Error("connected gauge did not drop to 0")
	}
}

func TestCollectorsUseSeparateRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.Extractions.Inc()
	if !strings.Contains(scrape(t, a), "timetables_extractions_total 1") {
		t.Error("first collector lost its increment")
	}
	if !strings.Contains(scrape(t, b), "timetables_extractions_total 0") {
		t.Error("second collector saw the first one's increment")
	}
}
