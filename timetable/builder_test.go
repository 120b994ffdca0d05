package timetable

import (
	"testing"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

func wt(s string) gtfs.WideTime {
	v, err := gtfs.ParseWideTime(s)
	if err != nil {
		panic(err)
	}
	return v
}

func st(trip, stop, arrival string) gtfs.StopTime {
	a := gtfs.NoTime
	if arrival != "" {
		a = wt(arrival)
	}
	return gtfs.StopTime{TripID: trip, StopID: stop, Arrival: a, Departure: a}
}

// feedOf builds a one-route feed from stop_times, deriving the trip
// table from the rows and naming stops from the given map.
func feedOf(stopTimes []gtfs.StopTime, stopNames map[string]string) *gtfs.Feed {
	f := &gtfs.Feed{
		Routes:    []gtfs.Route{{ID: "R1", ShortName: "7"}},
		StopTimes: stopTimes,
	}
	seen := map[string]bool{}
	for _, row := range stopTimes {
		if !seen[row.TripID] {
			seen[row.TripID] = true
			f.Trips = append(f.Trips, gtfs.Trip{ID: row.TripID, RouteID: "R1"})
		}
		if !seen["stop:"+row.StopID] {
			seen["stop:"+row.StopID] = true
			f.Stops = append(f.Stops, gtfs.Stop{ID: row.StopID, Name: stopNames[row.StopID]})
		}
	}
	return f
}

func TestBuildTwoTrips(t *testing.T) {
	f := feedOf([]gtfs.StopTime{
		st("A", "X", "08:00:00"),
		st("A", "Y", "08:10:00"),
		st("B", "X", "08:30:00"),
		st("B", "Y", "08:45:00"),
	}, map[string]string{"X": "Xavier Square", "Y": "York Road"})

	tab := Build(f, 0)

	if len(tab.Stops) != 2 || len(tab.Trips) != 2 {
		t.Fatalf("grid is %dx%d, want 2x2", len(tab.Stops), len(tab.Trips))
	}
	if tab.Stops[0].StopID != "X" || tab.Stops[0].Order != 1 ||
		tab.Stops[1].StopID != "Y" || tab.Stops[1].Order != 2 {
		t.Errorf("stop rows = %+v", tab.Stops)
	}
	if tab.Stops[0].Name != "Xavier Square" || tab.Stops[1].Name != "York Road" {
		t.Errorf("stop names not joined: %+v", tab.Stops)
	}
	if tab.Trips[0].TripID != "A" || tab.Trips[0].Order != 1 ||
		tab.Trips[1].TripID != "B" || tab.Trips[1].Order != 2 {
		t.Errorf("trip columns = %+v", tab.Trips)
	}
	wantCells := [][2]string{
		{"08:00:00", "08:30:00"},
		{"08:10:00", "08:45:00"},
	}
	for i, row := range wantCells {
		for j, want := range row {
			got, ok := tab.Cell(i+1, j+1)
			if !ok || got != wt(want) {
				t.Errorf("Cell(%d,%d) = %v, %v; want %s", i+1, j+1, got, ok, want)
			}
		}
	}
	if tab.Routes[0] != "7" {
		t.Errorf("routes = %v", tab.Routes)
	}
}

func TestBuildSkippedStopCellAbsent(t *testing.T) {
	f := feedOf([]gtfs.StopTime{
		st("A", "X", "08:00:00"),
		st("A", "Y", "08:10:00"),
		st("C", "X", "09:00:00"),
	}, nil)

	tab := Build(f, 0)

	if v, ok := tab.Cell(1, 2); !ok || v != wt("09:00:00") {
		t.Errorf("Cell(X, C) = %v, %v; want 09:00:00", v, ok)
	}
	if _, ok := tab.Cell(2, 2); ok {
		t.Error("Cell(Y, C) present, want absent for skipped stop")
	}
}

func TestBuildRanksFollowEarliestArrival(t *testing.T) {
	// B appears first in the file but starts later than A.
	f := feedOf([]gtfs.StopTime{
		st("B", "Y", "09:00:00"),
		st("B", "Z", "09:20:00"),
		st("A", "X", "08:00:00"),
		st("A", "Y", "08:30:00"),
	}, nil)

	tab := Build(f, 0)

	wantStops := []string{"X", "Y", "Z"}
	for i, id := range wantStops {
		if tab.Stops[i].StopID != id || tab.Stops[i].Order != i+1 {
			t.Fatalf("stop rows = %+v, want %v in rank order", tab.Stops, wantStops)
		}
	}
	if tab.Trips[0].TripID != "A" || tab.Trips[1].TripID != "B" {
		t.Errorf("trip columns = %+v, want A before B", tab.Trips)
	}
	for i := 1; i < len(tab.Stops); i++ {
		if tab.Stops[i-1].Earliest > tab.Stops[i].Earliest {
			t.Errorf("stop ranks not monotone in earliest arrival: %+v", tab.Stops)
		}
	}
}

func TestBuildTieKeepsFeedOrder(t *testing.T) {
	f := feedOf([]gtfs.StopTime{
		st("A", "P", "08:00:00"),
		st("B", "Q", "08:00:00"),
	}, nil)

	tab := Build(f, 0)

	if tab.Stops[0].StopID != "P" || tab.Stops[1].StopID != "Q" {
		t.Errorf("equal arrivals reordered stops: %+v", tab.Stops)
	}
	if tab.Trips[0].TripID != "A" || tab.Trips[1].TripID != "B" {
		t.Errorf("equal arrivals reordered trips: %+v", tab.Trips)
	}
}

func TestBuildMissingArrivals(t *testing.T) {
	f := feedOf([]gtfs.StopTime{
		st("A", "V", "08:00:00"),
		st("E", "V", ""),
		st("E", "X", "08:20:00"),
		st("D", "W", ""),
	}, nil)

	tab := Build(f, 0)

	for _, tc := range tab.Trips {
		if tc.TripID == "D" {
			t.Error("trip with no valid arrivals got a column")
		}
	}
	for _, sr := range tab.Stops {
		if sr.StopID == "W" {
			t.Error("stop with no valid arrivals got a row")
		}
	}
	var eCol *TripCol
	for i := range tab.Trips {
		if tab.Trips[i].TripID == "E" {
			eCol = &tab.Trips[i]
		}
	}
	if eCol == nil {
		t.Fatal("trip E missing")
	}
	if eCol.Earliest != wt("08:20:00") {
		t.Errorf("trip E earliest = %v, rows without arrival must not count", eCol.Earliest)
	}
	if _, ok := tab.Cell(1, eCol.Order); ok {
		t.Error("Cell(V, E) present, want absent when the row has no arrival")
	}
}

func TestBuildLoopTripShowsEarlierArrival(t *testing.T) {
	f := feedOf([]gtfs.StopTime{
		st("L", "S", "08:00:00"),
		st("L", "T", "08:10:00"),
		st("L", "S", "08:30:00"),
	}, nil)

	tab := Build(f, 0)

	if len(tab.Stops) != 2 {
		t.Fatalf("stops = %+v, want S and T once each", tab.Stops)
	}
	if v, ok := tab.Cell(1, 1); !ok || v != wt("08:00:00") {
		t.Errorf("Cell(S, L) = %v, want the earlier visit", v)
	}
}

func TestBuildPastMidnightOrdersNumerically(t *testing.T) {
	f := feedOf([]gtfs.StopTime{
		st("N2", "S", "25:30:00"),
		st("N1", "S", "23:50:00"),
	}, nil)

	tab := Build(f, 0)

	if tab.Trips[0].TripID != "N1" || tab.Trips[1].TripID != "N2" {
		t.Errorf("trip columns = %+v, want 23:50 before 25:30", tab.Trips)
	}
	if tab.Trips[1].Earliest.String() != "25:30:00" {
		t.Errorf("past-midnight earliest = %q", tab.Trips[1].Earliest.String())
	}
}

func TestBuildEmptyFeed(t *testing.T) {
	tab := Build(&gtfs.Feed{}, 1)
	if !tab.Empty() {
		t.Error("empty feed should build an empty table")
	}
	if tab.Direction != 1 {
		t.Errorf("direction = %d", tab.Direction)
	}
	if _, ok := tab.Cell(1, 1); ok {
		t.Error("Cell on empty table should report absent")
	}
}

func TestCellBounds(t *testing.T) {
	f := feedOf([]gtfs.StopTime{st("A", "X", "08:00:00")}, nil)
	tab := Build(f, 0)
	for _, q := range [][2]int{{0, 1}, {1, 0}, {2, 1}, {1, 2}, {-1, -1}} {
		if _, ok := tab.Cell(q[0], q[1]); ok {
			t.Errorf("Cell(%d,%d) in bounds, want out of range", q[0], q[1])
		}
	}
}
