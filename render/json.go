package render

import (
	"encoding/json"
	"io"

	"github.com/theoremus-urban-solutions/gtfs-timetables/timetable"
)

// TableJSON is the wire shape of one grid. Cells hold HH:MM:SS strings,
// empty where the trip skips the stop.
type TableJSON struct {
	Direction int        `json:"direction"`
	Routes    []string   `json:"routes,omitempty"`
	Stops     []StopJSON `json:"stops"`
	Trips     []TripJSON `json:"trips"`
	Cells     [][]string `json:"cells"`
}

type StopJSON struct {
	Order  int    `json:"order"`
	StopID string `json:"stopId"`
	Name   string `json:"name"`
}

type TripJSON struct {
	Order    int    `json:"order"`
	TripID   string `json:"tripId"`
	Headsign string `json:"headsign,omitempty"`
}

// TableToJSON converts one grid to its wire shape.
func TableToJSON(t *timetable.Table) TableJSON {
	out := TableJSON{
		Direction: t.Direction,
		Routes:    t.Routes,
		Stops:     make([]StopJSON, 0, len(t.Stops)),
		Trips:     make([]TripJSON, 0, len(t.Trips)),
		Cells:     make([][]string, 0, len(t.Stops)),
	}
	for _, sr := range t.Stops {
		out.Stops = append(out.Stops, StopJSON{Order: sr.Order, StopID: sr.StopID, Name: sr.Name})
	}
	for _, tc := range t.Trips {
		out.Trips = append(out.Trips, TripJSON{Order: tc.Order, TripID: tc.TripID, Headsign: tc.Headsign})
	}
	for i := range t.Stops {
		row := make([]string, len(t.Trips))
		for j := range t.Trips {
			row[j] = t.Cells[i][j].String()
		}
		out.Cells = append(out.Cells, row)
	}
	return out
}

// WriteJSON writes the tables as one indented JSON array.
func WriteJSON(w io.Writer, tables ...*timetable.Table) error {
	out := make([]TableJSON, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableToJSON(t))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
