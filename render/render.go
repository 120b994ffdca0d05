package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-timetables/timetable"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat reads a format name. The empty string means FormatText.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("format %q: want text, csv or json", s)
}

// ContentType returns the MIME type HTTP responses should carry.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Write renders the tables in the given format. Text and CSV write one
// block per table separated by a blank line; JSON writes one array.
func Write(w io.Writer, f Format, tables ...*timetable.Table) error {
	if f == FormatJSON {
		return WriteJSON(w, tables...)
	}
	for i, t := range tables {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		var err error
		switch f {
		case FormatCSV:
			err = WriteCSV(w, t)
		default:
			err = WriteText(w, t)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
