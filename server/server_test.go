package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-timetables/config"
	"github.com/theoremus-urban-solutions/gtfs-timetables/extract"
	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-timetables/realtime"
	"github.com/theoremus-urban-solutions/gtfs-timetables/render"
	"github.com/theoremus-urban-solutions/gtfs-timetables/store"
)

func day(s string) time.Time {
	t, err := gtfs.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func wt(s string) gtfs.WideTime {
	v, err := gtfs.ParseWideTime(s)
	if err != nil {
		panic(err)
	}
	return v
}

// serverFeed has route 4 running both directions between Xavier Square
// and York Road, and route 6 touching Zebra Lane only. The DAILY
// service covers all of 2025.
func serverFeed() *gtfs.Feed {
	return &gtfs.Feed{
		Agencies: []gtfs.Agency{{ID: "A1", Name: "City Transit"}},
		Routes: []gtfs.Route{
			{ID: "R4", AgencyID: "A1", ShortName: "4", LongName: "Grand Boulevard"},
			{ID: "R6", AgencyID: "A1", ShortName: "6", LongName: "Ring"},
		},
		Trips: []gtfs.Trip{
			{ID: "T41", RouteID: "R4", ServiceID: "DAILY", Headsign: "South", DirectionID: 0},
			{ID: "T42", RouteID: "R4", ServiceID: "DAILY", Headsign: "South", DirectionID: 0},
			{ID: "T43", RouteID: "R4", ServiceID: "DAILY", Headsign: "North", DirectionID: 1},
			{ID: "T61", RouteID: "R6", ServiceID: "DAILY", Headsign: "Ring", DirectionID: 0},
		},
		Stops: []gtfs.Stop{
			{ID: "S1", Name: "Xavier Square", Lat: 47.50, Lon: 19.05},
			{ID: "S2", Name: "York Road", Lat: 47.51, Lon: 19.06},
			{ID: "S3", Name: "Zebra Lane", Lat: 47.52, Lon: 19.07},
		},
		StopTimes: []gtfs.StopTime{
			{TripID: "T41", StopID: "S1", Arrival: wt("08:00:00"), Departure: wt("08:00:30"), Sequence: 1},
			{TripID: "T41", StopID: "S2", Arrival: wt("08:10:00"), Departure: wt("08:10:30"), Sequence: 2},
			{TripID: "T42", StopID: "S1", Arrival: wt("08:30:00"), Departure: wt("08:30:30"), Sequence: 1},
			{TripID: "T42", StopID: "S2", Arrival: wt("08:45:00"), Departure: wt("08:45:30"), Sequence: 2},
			{TripID: "T43", StopID: "S2", Arrival: wt("09:00:00"), Departure: wt("09:00:30"), Sequence: 1},
			{TripID: "T43", StopID: "S1", Arrival: wt("09:12:00"), Departure: wt("09:12:30"), Sequence: 2},
			{TripID: "T61", StopID: "S3", Arrival: wt("10:00:00"), Departure: wt("10:00:30"), Sequence: 1},
		},
		Calendars: []gtfs.Calendar{{
			ServiceID: "DAILY",
			Monday:    true,
			Tuesday:   true,
			Wednesday: true,
			Thursday:  true,
			Friday:    true,
			Saturday:  true,
			Sunday:    true,
			Start:     day("20250101"),
			End:       day("20251231"),
		}},
	}
}

func testServer(opts Options) *Server {
	cfg := &config.AppConfig{}
	cfg.Server.Port = 8080
	if opts.Feed == nil {
		opts.Feed = serverFeed()
	}
	if opts.FeedName == "" {
		opts.FeedName = "city"
	}
	return New(cfg, opts)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv := testServer(Options{Realtime: &realtime.Snapshot{HeaderTime: 1755500000}})
	rec := get(t, srv.Router(), "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status        string `json:"status"`
		Feed          string `json:"feed"`
		Trips         int    `json:"trips"`
		RealtimeEpoch int64  `json:"latestRealtimeEpoch"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Feed != "city" || resp.Trips != 4 {
		t.Errorf("health = %+v", resp)
	}
	if resp.RealtimeEpoch != 1755500000 {
		t.Errorf("realtime epoch = %d", resp.RealtimeEpoch)
	}
}

func TestRoutes(t *testing.T) {
	srv := testServer(Options{})
	h := srv.Router()

	rec := get(t, h, "/api/routes")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var routes []struct {
		ID        string `json:"id"`
		ShortName string `json:"shortName"`
		LongName  string `json:"longName"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &routes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(routes) != 2 || routes[0].ShortName != "4" || routes[1].ShortName != "6" {
		t.Errorf("routes = %+v", routes)
	}

	rec = get(t, h, "/api/routes?q=ring")
	routes = routes[:0]
	if err := json.Unmarshal(rec.Body.Bytes(), &routes); err != nil {
		t.Fatalf("decode filtered: %v", err)
	}
	if len(routes) != 1 || routes[0].ID != "R6" {
		t.Errorf("filtered routes = %+v", routes)
	}
}

func TestTimetableBothDirections(t *testing.T) {
	srv := testServer(Options{})
	rec := get(t, srv.Router(), "/api/timetable?route=4&date=2025-08-18")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var tables []render.TableJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &tables); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(tables))
	}
	d0 := tables[0]
	if d0.Direction != 0 || len(d0.Stops) != 2 || len(d0.Trips) != 2 {
		t.Errorf("direction 0 = %+v", d0)
	}
	if d0.Cells[0][0] != "08:00:00" || d0.Cells[1][1] != "08:45:00" {
		t.Errorf("direction 0 cells = %v", d0.Cells)
	}
	d1 := tables[1]
	if d1.Direction != 1 || d1.Stops[0].Name != "York Road" {
		t.Errorf("direction 1 = %+v", d1)
	}
}

func TestTimetableTextSingleDirection(t *testing.T) {
	srv := testServer(Options{})
	rec := get(t, srv.Router(), "/api/timetable?route=4&date=20250818&direction=1&format=text")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Direction 1") {
		t.Errorf("body missing direction heading:\n%s", body)
	}
	if strings.Contains(body, "Direction 0") {
		t.Errorf("body has the other direction:\n%s", body)
	}
}

func TestTimetableValidation(t *testing.T) {
	srv := testServer(Options{})
	h := srv.Router()
	cases := []struct {
		name   string
		target string
	}{
		{"missing route", "/api/timetable"},
		{"bad date", "/api/timetable?route=4&date=tomorrow"},
		{"bad direction", "/api/timetable?route=4&direction=2"},
		{"bad format", "/api/timetable?route=4&format=pdf"},
		{"bad pattern", "/api/timetable?route=(&date=2025-08-18"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, h, tc.target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error"] == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestTimetableMemoized(t *testing.T) {
	srv := testServer(Options{})
	h := srv.Router()
	url := "/api/timetable?route=4&date=2025-08-18"

	first := get(t, h, url)
	second := get(t, h, url)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d / %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("memoized response differs from the first one")
	}

	scrape := get(t, h, "/metrics").Body.String()
	if !strings.Contains(scrape, "timetables_cache_misses_total 1") {
		t.Error("want exactly one cache miss")
	}
	if !strings.Contains(scrape, "timetables_cache_hits_total 1") {
		t.Error("want exactly one cache hit")
	}
}

func TestAlerts(t *testing.T) {
	rt := &realtime.Snapshot{
		Alerts: []realtime.Alert{
			{ID: "a1", Header: "Escalator out", RouteIDs: []string{"R4"}},
			{ID: "a2", Header: "Citywide notice"},
			{ID: "a3", Header: "Stop closed", StopIDs: []string{"S2"}},
			{ID: "a4", Header: "Other line", RouteIDs: []string{"R9"}},
		},
	}
	srv := testServer(Options{Realtime: rt})
	h := srv.Router()

	var alerts []realtime.Alert
	rec := get(t, h, "/api/alerts")
	if err := json.Unmarshal(rec.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(alerts) != 4 {
		t.Errorf("got %d alerts unfiltered, want 4", len(alerts))
	}

	// Route 4 sees its own alert, the citywide one and the closure of a
	// stop it serves, but not the other line's alert.
	rec = get(t, h, "/api/alerts?route=4")
	alerts = alerts[:0]
	if err := json.Unmarshal(rec.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("decode filtered: %v", err)
	}
	if len(alerts) != 3 {
		t.Errorf("got %d alerts for route 4, want 3: %+v", len(alerts), alerts)
	}

	if rec = get(t, h, "/api/alerts?route=99"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown route status = %d", rec.Code)
	}
}

func TestAlertsWithoutSnapshot(t *testing.T) {
	srv := testServer(Options{})
	rec := get(t, srv.Router(), "/api/alerts")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	res, err := extract.Run(serverFeed(), extract.Options{Date: day("20250818"), RoutePattern: "4"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := st.SaveRun(ctx, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	srv := testServer(Options{Archive: st})
	rec := get(t, srv.Router(), "/api/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var runs []store.RunInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].Pattern != "4" || runs[0].RunID != res.RunID {
		t.Errorf("runs = %+v", runs)
	}

	plain := testServer(Options{})
	if rec := get(t, plain.Router(), "/api/runs"); rec.Code != http.StatusNotFound {
		t.Errorf("runs without archive status = %d", rec.Code)
	}
}
