package filter

import "github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"

// shrink derives a feed containing only the given trips and everything
// they still reference. The cascade runs trips -> stop_times -> stops,
// trips -> routes -> agencies, and trips -> calendar rows, so the
// result never holds a row pointing at a removed one. Slice order
// follows the input feed, which keeps downstream tie-breaking stable.
func shrink(f *gtfs.Feed, keepTrips map[string]bool) *gtfs.Feed {
	out := &gtfs.Feed{}

	services := map[string]bool{}
	routes := map[string]bool{}
	for _, t := range f.Trips {
		if keepTrips[t.ID] {
			out.Trips = append(out.Trips, t)
			services[t.ServiceID] = true
			routes[t.RouteID] = true
		}
	}

	stops := map[string]bool{}
	for _, st := range f.StopTimes {
		if keepTrips[st.TripID] {
			out.StopTimes = append(out.StopTimes, st)
			stops[st.StopID] = true
		}
	}
	for _, s := range f.Stops {
		if stops[s.ID] {
			out.Stops = append(out.Stops, s)
		}
	}

	agencies := map[string]bool{}
	for _, r := range f.Routes {
		if routes[r.ID] {
			out.Routes = append(out.Routes, r)
			agencies[r.AgencyID] = true
		}
	}
	for _, a := range f.Agencies {
		if agencies[a.ID] || len(f.Agencies) == 1 {
			out.Agencies = append(out.Agencies, a)
		}
	}

	for _, c := range f.Calendars {
		if services[c.ServiceID] {
			out.Calendars = append(out.Calendars, c)
		}
	}
	for _, cd := range f.CalendarDates {
		if services[cd.ServiceID] {
			out.CalendarDates = append(out.CalendarDates, cd)
		}
	}
	return out
}
