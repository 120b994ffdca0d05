package gtfs

import (
	"fmt"
	"time"
)

// Exception types carried by calendar_dates.txt rows.
const (
	ExceptionAdded   = 1
	ExceptionRemoved = 2
)

// Agency is one row of agency.txt. ID may be empty in single-agency
// feeds.
type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

// Route is one row of routes.txt.
type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Type      int
}

// Trip is one row of trips.txt. DirectionID is 0 or 1.
type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID int
}

// Stop is one row of stops.txt. Lat and Lon are WGS84 degrees.
type Stop struct {
	ID            string
	Name          string
	ParentStation string
	Lat           float64
	Lon           float64
}

// StopTime is one row of stop_times.txt. Arrival or Departure is NoTime
// when the source field was empty or unparseable.
type StopTime struct {
	TripID    string
	StopID    string
	Arrival   WideTime
	Departure WideTime
	Sequence  int
}

// Calendar is one row of calendar.txt: a weekly pattern valid on the
// enabled weekdays between Start and End inclusive.
type Calendar struct {
	ServiceID string
	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool
	Start     time.Time
	End       time.Time
}

// EnabledOn reports whether the weekly pattern covers the given weekday.
func (c Calendar) EnabledOn(w time.Weekday) bool {
	switch w {
	case time.Monday:
		return c.Monday
	case time.Tuesday:
		return c.Tuesday
	case time.Wednesday:
		return c.Wednesday
	case time.Thursday:
		return c.Thursday
	case time.Friday:
		return c.Friday
	case time.Saturday:
		return c.Saturday
	default:
		return c.Sunday
	}
}

// CalendarDate is one row of calendar_dates.txt: a dated exception to a
// weekly pattern, either ExceptionAdded or ExceptionRemoved.
type CalendarDate struct {
	ServiceID     string
	Date          time.Time
	ExceptionType int
}

// Feed is one GTFS dataset held in memory. Filters treat Feeds as
// immutable and derive new ones, so intermediate results can be kept
// and compared.
type Feed struct {
	Agencies      []Agency
	Routes        []Route
	Trips         []Trip
	Stops         []Stop
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
}

// RoutesByID builds a lookup map over f.Routes.
func (f *Feed) RoutesByID() map[string]Route {
	m := make(map[string]Route, len(f.Routes))
	for _, r := range f.Routes {
		m[r.ID] = r
	}
	return m
}

// TripsByID builds a lookup map over f.Trips.
func (f *Feed) TripsByID() map[string]Trip {
	m := make(map[string]Trip, len(f.Trips))
	for _, t := range f.Trips {
		m[t.ID] = t
	}
	return m
}

// StopsByID builds a lookup map over f.Stops.
func (f *Feed) StopsByID() map[string]Stop {
	m := make(map[string]Stop, len(f.Stops))
	for _, s := range f.Stops {
		m[s.ID] = s
	}
	return m
}

// Summary returns a one-line table census for logs.
func (f *Feed) Summary() string {
	return fmt.Sprintf("agencies=%d routes=%d trips=%d stops=%d stop_times=%d calendars=%d calendar_dates=%d",
		len(f.Agencies), len(f.Routes), len(f.Trips), len(f.Stops),
		len(f.StopTimes), len(f.Calendars), len(f.CalendarDates))
}

const dateLayout = "20060102"

// ParseDate parses a GTFS YYYYMMDD date into a UTC midnight instant.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// FormatDate renders t as a GTFS YYYYMMDD date.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Day strips the time of day from t, keeping the civil date at UTC
// midnight. Calendar windows and exception dates compare against this.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
