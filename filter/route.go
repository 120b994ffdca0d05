package filter

import (
	"fmt"
	"regexp"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// MatchRoutes returns the routes whose short name matches the pattern,
// in feed order. The pattern is a Go regular expression anchored at
// both ends, so "4" selects exactly route 4 and "4.*" selects 4, 4A
// and 47. Zero matches is an ordinary empty result; only an invalid
// pattern is an error.
func MatchRoutes(f *gtfs.Feed, pattern string) ([]gtfs.Route, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("route pattern %q: %w", pattern, err)
	}
	var out []gtfs.Route
	for _, r := range f.Routes {
		if re.MatchString(r.ShortName) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ByRoutes derives a feed containing only the given routes and the
// trips, stop_times, stops and calendar rows they still reference.
func ByRoutes(f *gtfs.Feed, routes []gtfs.Route) *gtfs.Feed {
	ids := make(map[string]bool, len(routes))
	for _, r := range routes {
		ids[r.ID] = true
	}
	keep := map[string]bool{}
	for _, t := range f.Trips {
		if ids[t.RouteID] {
			keep[t.ID] = true
		}
	}
	return shrink(f, keep)
}
