package render

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/theoremus-urban-solutions/gtfs-timetables/timetable"
)

// WriteCSV writes one grid as CSV: stop_order and stop_name, then one
// column per trip in rank order. Cells a trip skips are empty fields.
func WriteCSV(w io.Writer, t *timetable.Table) error {
	cw := csv.NewWriter(w)
	head := []string{"stop_order", "stop_name"}
	for _, tc := range t.Trips {
		head = append(head, "trip_"+strconv.Itoa(tc.Order))
	}
	if err := cw.Write(head); err != nil {
		return err
	}
	for i, sr := range t.Stops {
		row := make([]string, 0, len(head))
		row = append(row, strconv.Itoa(sr.Order), sr.Name)
		for j := range t.Trips {
			row = append(row, t.Cells[i][j].String())
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
