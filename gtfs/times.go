package gtfs

import (
	"fmt"
	"strconv"
	"strings"
)

// WideTime is a GTFS time of day in seconds since midnight of the
// service day. Values at or past 24:00:00 are legal and mark trips
// running over midnight, so WideTime is not a clock time and never
// wraps.
type WideTime int

// NoTime marks a missing arrival or departure.
const NoTime WideTime = -1

// Valid reports whether t carries an actual time.
func (t WideTime) Valid() bool { return t >= 0 }

// String renders HH:MM:SS. Hours past 24 stay as-is, matching the GTFS
// convention. NoTime renders as the empty string.
func (t WideTime) String() string {
	if !t.Valid() {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// ParseWideTime parses H:MM:SS or HH:MM:SS with hours unbounded above.
// An empty string is not an error: it yields NoTime, which is how an
// absent arrival_time field reads.
func ParseWideTime(s string) (WideTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoTime, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return NoTime, fmt.Errorf("time %q: want H:MM:SS", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return NoTime, fmt.Errorf("time %q: bad hours: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return NoTime, fmt.Errorf("time %q: bad minutes: %w", s, err)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return NoTime, fmt.Errorf("time %q: bad seconds: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return NoTime, fmt.Errorf("time %q out of range", s)
	}
	return WideTime(h*3600 + m*60 + sec), nil
}
