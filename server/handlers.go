package server

import (
	"bytes"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-timetables/extract"
	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-timetables/realtime"
	"github.com/theoremus-urban-solutions/gtfs-timetables/render"
	"github.com/theoremus-urban-solutions/gtfs-timetables/store"
	"github.com/theoremus-urban-solutions/gtfs-timetables/timetable"
)

type healthResponse struct {
	Status        string `json:"status"`
	Feed          string `json:"feed"`
	Routes        int    `json:"routes"`
	Trips         int    `json:"trips"`
	Stops         int    `json:"stops"`
	RealtimeEpoch int64  `json:"latestRealtimeEpoch,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.HTTPRequests.WithLabelValues("health").Inc()
	resp := healthResponse{
		Status: "ok",
		Feed:   s.feedName,
		Routes: len(s.feed.Routes),
		Trips:  len(s.feed.Trips),
		Stops:  len(s.feed.Stops),
	}
	if s.rt != nil {
		resp.RealtimeEpoch = s.rt.HeaderTime
	}
	writeJSON(w, http.StatusOK, resp)
}

type routeInfo struct {
	ID        string `json:"id"`
	ShortName string `json:"shortName"`
	LongName  string `json:"longName,omitempty"`
	AgencyID  string `json:"agencyId,omitempty"`
}

// handleRoutes lists the feed's routes, optionally narrowed by a
// case-insensitive ?q= substring over short and long names.
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	s.metrics.HTTPRequests.WithLabelValues("routes").Inc()
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	out := make([]routeInfo, 0, len(s.feed.Routes))
	for _, rt := range s.feed.Routes {
		if q != "" &&
			!strings.Contains(strings.ToLower(rt.ShortName), q) &&
			!strings.Contains(strings.ToLower(rt.LongName), q) {
			continue
		}
		out = append(out, routeInfo{ID: rt.ID, ShortName: rt.ShortName, LongName: rt.LongName, AgencyID: rt.AgencyID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShortName != out[j].ShortName {
			return out[i].ShortName < out[j].ShortName
		}
		return out[i].ID < out[j].ID
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTimetable(w http.ResponseWriter, r *http.Request) {
	s.metrics.HTTPRequests.WithLabelValues("timetable").Inc()
	q := r.URL.Query()

	pattern := strings.TrimSpace(q.Get("route"))
	if pattern == "" {
		writeError(w, http.StatusBadRequest, "route parameter is required")
		return
	}
	date, err := parseDateParam(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dir, err := parseDirectionParam(q.Get("direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := q.Get("format")
	if strings.TrimSpace(name) == "" {
		name = "json"
	}
	format, err := render.ParseFormat(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := memoKey("tt", gtfs.FormatDate(date), pattern, strconv.Itoa(dir), string(format))
	if buf, ok := s.cacheGet(key); ok {
		s.metrics.CacheHits.Inc()
		w.Header().Set("Content-Type", format.ContentType())
		_, _ = w.Write(buf)
		return
	}
	s.metrics.CacheMisses.Inc()

	opts := extract.Options{
		Date:         date,
		RoutePattern: pattern,
		Area:         s.area,
		AreaPolicy:   s.policy,
	}
	if s.rt != nil {
		opts.Canceled = s.rt.CanceledTrips(date)
	}
	start := time.Now()
	res, err := extract.Run(s.feed, opts)
	if err != nil {
		s.metrics.ExtractionErrors.Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.Extractions.Inc()
	s.metrics.ExtractionSeconds.Observe(time.Since(start).Seconds())
	s.metrics.TripsSelected.Set(float64(res.Counts.Selected))
	if s.pub != nil {
		if err := s.pub.PublishResult(res); err != nil {
			log.Printf("nats publish failed: %v", err)
		}
	}

	tables := res.Tables[:]
	if dir != dirBoth {
		tables = []*timetable.Table{res.Tables[dir]}
	}
	var buf bytes.Buffer
	if err := render.Write(&buf, format, tables...); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.cachePut(key, buf.Bytes())
	w.Header().Set("Content-Type", format.ContentType())
	_, _ = w.Write(buf.Bytes())
}

// handleAlerts returns service alerts, narrowed by ?route= to those
// touching the route or any stop it serves. Without a realtime
// snapshot the list is empty.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	s.metrics.HTTPRequests.WithLabelValues("alerts").Inc()
	if s.rt == nil {
		writeJSON(w, http.StatusOK, []realtime.Alert{})
		return
	}
	routeParam := strings.TrimSpace(r.URL.Query().Get("route"))
	alerts := s.rt.Alerts
	if routeParam != "" {
		routeIDs := map[string]bool{}
		for _, rt := range s.feed.Routes {
			if rt.ID == routeParam || rt.ShortName == routeParam {
				routeIDs[rt.ID] = true
			}
		}
		if len(routeIDs) == 0 {
			writeError(w, http.StatusBadRequest, "no such route: "+routeParam)
			return
		}
		alerts = s.rt.AlertsFor(routeIDs, s.stopsOf(routeIDs))
	}
	if alerts == nil {
		alerts = []realtime.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// stopsOf collects every stop served by trips of the given routes.
func (s *Server) stopsOf(routeIDs map[string]bool) map[string]bool {
	trips := map[string]bool{}
	for _, t := range s.feed.Trips {
		if routeIDs[t.RouteID] {
			trips[t.ID] = true
		}
	}
	stops := map[string]bool{}
	for _, st := range s.feed.StopTimes {
		if trips[st.TripID] {
			stops[st.StopID] = true
		}
	}
	return stops
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	s.metrics.HTTPRequests.WithLabelValues("runs").Inc()
	limit, err := parseLimitParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.archive.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.RunInfo{}
	}
	writeJSON(w, http.StatusOK, runs)
}
