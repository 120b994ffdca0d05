package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/theoremus-urban-solutions/gtfs-timetables/timetable"
)

// WriteText renders one grid with aligned columns, headed by the
// direction and route selection. An empty grid renders the heading and
// a note instead of a bare header row.
func WriteText(w io.Writer, t *timetable.Table) error {
	if len(t.Routes) > 0 {
		fmt.Fprintf(w, "Direction %d (routes %s)\n", t.Direction, strings.Join(t.Routes, ", "))
	} else {
		fmt.Fprintf(w, "Direction %d\n", t.Direction)
	}
	if t.Empty() {
		_, err := fmt.Fprintln(w, "no service")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "#\tstop")
	for _, tc := range t.Trips {
		fmt.Fprintf(tw, "\t%d", tc.Order)
	}
	fmt.Fprintln(tw)
	for i, sr := range t.Stops {
		fmt.Fprintf(tw, "%d\t%s", sr.Order, sr.Name)
		for j := range t.Trips {
			if cell := t.Cells[i][j]; cell.Valid() {
				fmt.Fprintf(tw, "\t%s", cell)
			} else {
				fmt.Fprint(tw, "\t-")
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
