package filter

import (
	"time"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

func day(s string) time.Time {
	d, err := gtfs.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// serviceFeed exercises the calendar rules. Each service runs its own
// trip on its own route and stop, so pruning is visible per service.
//
//	WK   weekdays all 2025, removed on 2025-08-15
//	SAT  saturdays all 2025, added on 2025-08-15
//	HOL  no weekly row, added on 2025-08-20
//	CONF added and removed on 2025-08-25
func serviceFeed() *gtfs.Feed {
	window := func(sid string, days [7]bool) gtfs.Calendar {
		return gtfs.Calendar{
			ServiceID: sid,
			Monday:    days[0], Tuesday: days[1], Wednesday: days[2],
			Thursday: days[3], Friday: days[4], Saturday: days[5], Sunday: days[6],
			Start: day("20250101"), End: day("20251231"),
		}
	}
	return &gtfs.Feed{
		Agencies: []gtfs.Agency{{ID: "A1", Name: "Metro"}},
		Routes: []gtfs.Route{
			{ID: "R1", AgencyID: "A1", ShortName: "1"},
			{ID: "R2", AgencyID: "A1", ShortName: "2"},
			{ID: "R3", AgencyID: "A1", ShortName: "3"},
			{ID: "R4", AgencyID: "A1", ShortName: "4"},
		},
		Trips: []gtfs.Trip{
			{ID: "T-WK", RouteID: "R1", ServiceID: "WK"},
			{ID: "T-SAT", RouteID: "R2", ServiceID: "SAT"},
			{ID: "T-HOL", RouteID: "R3", ServiceID: "HOL"},
			{ID: "T-CONF", RouteID: "R4", ServiceID: "CONF"},
		},
		Stops: []gtfs.Stop{
			{ID: "S1", Name: "First", Lat: 47.50, Lon: 19.06},
			{ID: "S2", Name: "Second", Lat: 47.51, Lon: 19.07},
			{ID: "S3", Name: "Third", Lat: 47.52, Lon: 19.08},
			{ID: "S4", Name: "Fourth", Lat: 47.53, Lon: 19.09},
			{ID: "S5", Name: "Fifth", Lat: 47.54, Lon: 19.10},
		},
		StopTimes: []gtfs.StopTime{
			{TripID: "T-WK", StopID: "S1", Arrival: 8 * 3600, Departure: 8 * 3600, Sequence: 1},
			{TripID: "T-WK", StopID: "S2", Arrival: 8*3600 + 600, Departure: 8*3600 + 600, Sequence: 2},
			{TripID: "T-SAT", StopID: "S3", Arrival: 9 * 3600, Departure: 9 * 3600, Sequence: 1},
			{TripID: "T-HOL", StopID: "S4", Arrival: 10 * 3600, Departure: 10 * 3600, Sequence: 1},
			{TripID: "T-CONF", StopID: "S5", Arrival: 11 * 3600, Departure: 11 * 3600, Sequence: 1},
		},
		Calendars: []gtfs.Calendar{
			window("WK", [7]bool{true, true, true, true, true, false, false}),
			window("SAT", [7]bool{false, false, false, false, false, true, false}),
		},
		CalendarDates: []gtfs.CalendarDate{
			{ServiceID: "WK", Date: day("20250815"), ExceptionType: gtfs.ExceptionRemoved},
			{ServiceID: "SAT", Date: day("20250815"), ExceptionType: gtfs.ExceptionAdded},
			{ServiceID: "HOL", Date: day("20250820"), ExceptionType: gtfs.ExceptionAdded},
			{ServiceID: "CONF", Date: day("20250825"), ExceptionType: gtfs.ExceptionAdded},
			{ServiceID: "CONF", Date: day("20250825"), ExceptionType: gtfs.ExceptionRemoved},
		},
	}
}

func tripIDs(f *gtfs.Feed) []string {
	ids := make([]string, 0, len(f.Trips))
	for _, t := range f.Trips {
		ids = append(ids, t.ID)
	}
	return ids
}

func stopIDs(f *gtfs.Feed) []string {
	ids := make([]string, 0, len(f.Stops))
	for _, s := range f.Stops {
		ids = append(ids, s.ID)
	}
	return ids
}
