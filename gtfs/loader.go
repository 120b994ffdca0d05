package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
)

// Table files this loader consumes. Anything else in the archive
// (shapes, transfers, fares) is ignored.
var tableNames = map[string]bool{
	"agency.txt":         true,
	"routes.txt":         true,
	"trips.txt":          true,
	"stops.txt":          true,
	"stop_times.txt":     true,
	"calendar.txt":       true,
	"calendar_dates.txt": true,
}

var requiredTables = []string{"routes.txt", "trips.txt", "stops.txt", "stop_times.txt"}

// Load reads a feed from a local path or an http(s) URL.
func Load(src string) (*Feed, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return LoadFromURL(src)
	}
	return LoadFromFile(src)
}

// LoadFromFile reads a feed from a zip archive or an unpacked directory.
func LoadFromFile(p string) (*Feed, error) {
	st, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return loadFS(os.DirFS(p))
	}
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open feed %s: %w", p, err)
	}
	defer zr.Close()
	return loadFS(&zr.Reader)
}

// LoadFromBytes reads a feed from zip bytes already in memory.
func LoadFromBytes(b []byte) (*Feed, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, err
	}
	return loadFS(zr)
}

// LoadFromURL downloads a feed archive to a temporary file and loads
// it from there, so the body is never held in memory alongside the
// parsed tables.
func LoadFromURL(url string) (*Feed, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: %s", url, resp.Status)
	}
	tmp, err := os.CreateTemp("", "gtfs-*.zip")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return LoadFromFile(tmp.Name())
}

// loadFS walks any fs.FS (zip readers and os.DirFS both qualify) and
// decodes each table file it recognizes. Table files may sit in a
// subdirectory, which some archives produce; the first file seen for a
// given name wins.
func loadFS(fsys fs.FS) (*Feed, error) {
	feed := &Feed{}
	seen := map[string]bool{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(path.Base(p))
		if !tableNames[name] || seen[name] {
			return nil
		}
		seen[name] = true
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		return feed.decodeTable(name, f)
	})
	if err != nil {
		return nil, err
	}
	for _, name := range requiredTables {
		if !seen[name] {
			return nil, fmt.Errorf("feed is missing %s", name)
		}
	}
	if !seen["calendar.txt"] && !seen["calendar_dates.txt"] {
		log.Printf("gtfs: feed has neither calendar.txt nor calendar_dates.txt, no service will match any date")
	}
	return feed, nil
}

func (f *Feed) decodeTable(name string, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rec, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if len(rec) < 2 {
		return nil
	}
	idx := headerIndex(rec[0])
	rows := rec[1:]
	switch name {
	case "agency.txt":
		f.Agencies = decodeAgencies(rows, idx)
	case "routes.txt":
		f.Routes, err = decodeRoutes(rows, idx)
	case "trips.txt":
		f.Trips, err = decodeTrips(rows, idx)
	case "stops.txt":
		f.Stops, err = decodeStops(rows, idx)
	case "stop_times.txt":
		f.StopTimes, err = decodeStopTimes(rows, idx)
	case "calendar.txt":
		f.Calendars, err = decodeCalendars(rows, idx)
	case "calendar_dates.txt":
		f.CalendarDates, err = decodeCalendarDates(rows, idx)
	}
	return err
}

// headerIndex maps lowercased column names to positions. The first cell
// may carry a UTF-8 BOM, which several agencies ship; it is stripped.
func headerIndex(head []string) map[string]int {
	m := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		m[strings.ToLower(h)] = i
	}
	return m
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func requireColumns(file string, idx map[string]int, names ...string) error {
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			return &ParseError{File: file, Line: 1, Field: n, Err: ErrMissingColumn}
		}
	}
	return nil
}

func decodeAgencies(rows [][]string, idx map[string]int) []Agency {
	out := make([]Agency, 0, len(rows))
	for _, row := range rows {
		a := Agency{
			ID:       field(row, idx, "agency_id"),
			Name:     field(row, idx, "agency_name"),
			URL:      field(row, idx, "agency_url"),
			Timezone: field(row, idx, "agency_timezone"),
		}
		if a.Name == "" && a.ID == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

func decodeRoutes(rows [][]string, idx map[string]int) ([]Route, error) {
	if err := requireColumns("routes.txt", idx, "route_id"); err != nil {
		return nil, err
	}
	out := make([]Route, 0, len(rows))
	for n, row := range rows {
		r := Route{
			ID:        field(row, idx, "route_id"),
			AgencyID:  field(row, idx, "agency_id"),
			ShortName: field(row, idx, "route_short_name"),
			LongName:  field(row, idx, "route_long_name"),
			Type:      atoiDefault(field(row, idx, "route_type"), 0),
		}
		if r.ID == "" {
			log.Printf("gtfs: routes.txt line %d: empty route_id, row skipped", n+2)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeTrips(rows [][]string, idx map[string]int) ([]Trip, error) {
	if err := requireColumns("trips.txt", idx, "trip_id", "route_id"); err != nil {
		return nil, err
	}
	out := make([]Trip, 0, len(rows))
	for n, row := range rows {
		t := Trip{
			ID:        field(row, idx, "trip_id"),
			RouteID:   field(row, idx, "route_id"),
			ServiceID: field(row, idx, "service_id"),
			Headsign:  field(row, idx, "trip_headsign"),
		}
		if t.ID == "" || t.RouteID == "" {
			log.Printf("gtfs: trips.txt line %d: empty trip_id or route_id, row skipped", n+2)
			continue
		}
		switch dir := field(row, idx, "direction_id"); dir {
		case "", "0":
			t.DirectionID = 0
		case "1":
			t.DirectionID = 1
		default:
			log.Printf("gtfs: %v", &ParseError{
				File: "trips.txt", Line: n + 2, Field: "direction_id",
				Err: fmt.Errorf("value %q, using 0", dir),
			})
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeStops(rows [][]string, idx map[string]int) ([]Stop, error) {
	if err := requireColumns("stops.txt", idx, "stop_id"); err != nil {
		return nil, err
	}
	out := make([]Stop, 0, len(rows))
	for n, row := range rows {
		s := Stop{
			ID:            field(row, idx, "stop_id"),
			Name:          field(row, idx, "stop_name"),
			ParentStation: field(row, idx, "parent_station"),
		}
		if s.ID == "" {
			log.Printf("gtfs: stops.txt line %d: empty stop_id, row skipped", n+2)
			continue
		}
		var err error
		s.Lat, err = strconv.ParseFloat(field(row, idx, "stop_lat"), 64)
		if err == nil {
			s.Lon, err = strconv.ParseFloat(field(row, idx, "stop_lon"), 64)
		}
		if err != nil {
			log.Printf("gtfs: %v", &ParseError{
				File: "stops.txt", Line: n + 2, Field: "stop_lat",
				Err: fmt.Errorf("unparseable coordinates, row skipped"),
			})
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeStopTimes(rows [][]string, idx map[string]int) ([]StopTime, error) {
	if err := requireColumns("stop_times.txt", idx, "trip_id", "stop_id"); err != nil {
		return nil, err
	}
	out := make([]StopTime, 0, len(rows))
	for n, row := range rows {
		st := StopTime{
			TripID:   field(row, idx, "trip_id"),
			StopID:   field(row, idx, "stop_id"),
			Sequence: atoiDefault(field(row, idx, "stop_sequence"), 0),
		}
		if st.TripID == "" || st.StopID == "" {
			log.Printf("gtfs: stop_times.txt line %d: empty trip_id or stop_id, row skipped", n+2)
			continue
		}
		var err error
		st.Arrival, err = ParseWideTime(field(row, idx, "arrival_time"))
		if err != nil {
			log.Printf("gtfs: %v", &ParseError{File: "stop_times.txt", Line: n + 2, Field: "arrival_time", Err: err})
		}
		st.Departure, err = ParseWideTime(field(row, idx, "departure_time"))
		if err != nil {
			log.Printf("gtfs: %v", &ParseError{File: "stop_times.txt", Line: n + 2, Field: "departure_time", Err: err})
		}
		out = append(out, st)
	}
	return out, nil
}

func decodeCalendars(rows [][]string, idx map[string]int) ([]Calendar, error) {
	if err := requireColumns("calendar.txt", idx, "service_id", "start_date", "end_date"); err != nil {
		return nil, err
	}
	day := func(row []string, name string) bool {
		return field(row, idx, name) == "1"
	}
	out := make([]Calendar, 0, len(rows))
	for n, row := range rows {
		c := Calendar{
			ServiceID: field(row, idx, "service_id"),
			Monday:    day(row, "monday"),
			Tuesday:   day(row, "tuesday"),
			Wednesday: day(row, "wednesday"),
			Thursday:  day(row, "thursday"),
			Friday:    day(row, "friday"),
			Saturday:  day(row, "saturday"),
			Sunday:    day(row, "sunday"),
		}
		if c.ServiceID == "" {
			log.Printf("gtfs: calendar.txt line %d: empty service_id, row skipped", n+2)
			continue
		}
		var err error
		c.Start, err = ParseDate(field(row, idx, "start_date"))
		if err == nil {
			c.End, err = ParseDate(field(row, idx, "end_date"))
		}
		if err != nil {
			log.Printf("gtfs: %v", &ParseError{
				File: "calendar.txt", Line: n + 2, Field: "start_date",
				Err: fmt.Errorf("unparseable window, row skipped"),
			})
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeCalendarDates(rows [][]string, idx map[string]int) ([]CalendarDate, error) {
	if err := requireColumns("calendar_dates.txt", idx, "service_id", "date", "exception_type"); err != nil {
		return nil, err
	}
	out := make([]CalendarDate, 0, len(rows))
	for n, row := range rows {
		cd := CalendarDate{
			ServiceID:     field(row, idx, "service_id"),
			ExceptionType: atoiDefault(field(row, idx, "exception_type"), 0),
		}
		if cd.ServiceID == "" {
			log.Printf("gtfs: calendar_dates.txt line %d: empty service_id, row skipped", n+2)
			continue
		}
		var err error
		cd.Date, err = ParseDate(field(row, idx, "date"))
		if err != nil {
			log.Printf("gtfs: %v", &ParseError{File: "calendar_dates.txt", Line: n + 2, Field: "date", Err: err})
			continue
		}
		if cd.ExceptionType != ExceptionAdded && cd.ExceptionType != ExceptionRemoved {
			log.Printf("gtfs: calendar_dates.txt line %d: exception_type %d unknown, row skipped", n+2, cd.ExceptionType)
			continue
		}
		out = append(out, cd)
	}
	return out, nil
}
