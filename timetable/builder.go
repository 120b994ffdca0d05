package timetable

import (
	"sort"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// Build pivots a single-direction feed into a wide grid. The direction
// argument only labels the result; the feed decides the content.
//
// Stop and trip ranks come from minimum arrival times over rows that
// carry a valid arrival. Stops and trips whose every row lacks one do
// not appear. When a trip serves the same stop twice (a loop), the cell
// shows the earlier arrival.
func Build(f *gtfs.Feed, direction int) *Table {
	t := &Table{Direction: direction}
	for _, r := range f.Routes {
		t.Routes = append(t.Routes, r.ShortName)
	}

	var stopOrder, tripOrder []string
	minStop := map[string]gtfs.WideTime{}
	minTrip := map[string]gtfs.WideTime{}
	for _, st := range f.StopTimes {
		if !st.Arrival.Valid() {
			continue
		}
		if cur, ok := minStop[st.StopID]; !ok {
			stopOrder = append(stopOrder, st.StopID)
			minStop[st.StopID] = st.Arrival
		} else if st.Arrival < cur {
			minStop[st.StopID] = st.Arrival
		}
		if cur, ok := minTrip[st.TripID]; !ok {
			tripOrder = append(tripOrder, st.TripID)
			minTrip[st.TripID] = st.Arrival
		} else if st.Arrival < cur {
			minTrip[st.TripID] = st.Arrival
		}
	}
	// stable keeps first-appearance order for equal minima
	sort.SliceStable(stopOrder, func(i, j int) bool { return minStop[stopOrder[i]] < minStop[stopOrder[j]] })
	sort.SliceStable(tripOrder, func(i, j int) bool { return minTrip[tripOrder[i]] < minTrip[tripOrder[j]] })

	stops := f.StopsByID()
	trips := f.TripsByID()
	rowAt := make(map[string]int, len(stopOrder))
	for i, id := range stopOrder {
		t.Stops = append(t.Stops, StopRow{
			Order:    i + 1,
			StopID:   id,
			Name:     stops[id].Name,
			Earliest: minStop[id],
		})
		rowAt[id] = i
	}
	colAt := make(map[string]int, len(tripOrder))
	for j, id := range tripOrder {
		t.Trips = append(t.Trips, TripCol{
			Order:    j + 1,
			TripID:   id,
			Headsign: trips[id].Headsign,
			Earliest: minTrip[id],
		})
		colAt[id] = j
	}

	t.Cells = make([][]gtfs.WideTime, len(t.Stops))
	for i := range t.Cells {
		row := make([]gtfs.WideTime, len(t.Trips))
		for j := range row {
			row[j] = gtfs.NoTime
		}
		t.Cells[i] = row
	}
	for _, st := range f.StopTimes {
		if !st.Arrival.Valid() {
			continue
		}
		i, okRow := rowAt[st.StopID]
		j, okCol := colAt[st.TripID]
		if !okRow || !okCol {
			continue
		}
		if cur := t.Cells[i][j]; !cur.Valid() || st.Arrival < cur {
			t.Cells[i][j] = st.Arrival
		}
	}
	return t
}
