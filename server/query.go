package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// QueryError marks a request problem the caller can fix; handlers turn
// it into a 400.
type QueryError struct{ Msg string }

func (e *QueryError) Error() string { return e.Msg }

// dirBoth selects both directions in one response.
const dirBoth = -1

// parseDateParam accepts 2006-01-02 or 20060102. Empty means today.
func parseDateParam(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return gtfs.Day(time.Now()), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := gtfs.ParseDate(s); err == nil {
		return t, nil
	}
	return time.Time{}, &QueryError{Msg: "date must look like 2025-08-18 or 20250818"}
}

func parseDirectionParam(s string) (int, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "both":
		return dirBoth, nil
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, &QueryError{Msg: "direction must be 0, 1 or both"}
}

func parseLimitParam(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0, &QueryError{Msg: "limit must be a non-negative integer"}
	}
	return v, nil
}

func memoKey(args ...string) string {
	var b bytes.Buffer
	for i, a := range args {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(a)
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
