package timetable

import "github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"

// StopRow is one grid row: a stop with its dense rank by earliest
// arrival in this direction.
type StopRow struct {
	Order    int
	StopID   string
	Name     string
	Earliest gtfs.WideTime
}

// TripCol is one grid column: a trip with its dense rank by the time it
// first serves any stop.
type TripCol struct {
	Order    int
	TripID   string
	Headsign string
	Earliest gtfs.WideTime
}

// Table is the wide stop x trip grid for one direction of a route
// selection. Cells[i][j] holds the arrival of trip j+1 at stop i+1,
// or NoTime when the trip does not serve that stop.
type Table struct {
	Direction int
	Routes    []string
	Stops     []StopRow
	Trips     []TripCol
	Cells     [][]gtfs.WideTime
}

// Empty reports whether the grid has no cells at all.
func (t *Table) Empty() bool {
	return len(t.Stops) == 0 || len(t.Trips) == 0
}

// Cell returns the arrival at the 1-based (stopOrder, tripOrder)
// position. ok is false outside the grid and when the trip does not
// serve the stop.
func (t *Table) Cell(stopOrder, tripOrder int) (gtfs.WideTime, bool) {
	if stopOrder < 1 || stopOrder > len(t.Stops) || tripOrder < 1 || tripOrder > len(t.Trips) {
		return gtfs.NoTime, false
	}
	v := t.Cells[stopOrder-1][tripOrder-1]
	return v, v.Valid()
}
