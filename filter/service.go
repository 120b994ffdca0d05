package filter

import (
	"time"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// ActiveServices returns the service_ids running on the given date. A
// service runs when its weekly calendar enables the date's weekday
// inside the start/end window, or an added exception names the date,
// and no removed exception names it. Removal wins over addition for
// the same service and date regardless of row order.
func ActiveServices(f *gtfs.Feed, date time.Time) map[string]bool {
	day := gtfs.Day(date)
	active := map[string]bool{}
	for _, c := range f.Calendars {
		if !c.EnabledOn(day.Weekday()) {
			continue
		}
		if day.Before(c.Start) || day.After(c.End) {
			continue
		}
		active[c.ServiceID] = true
	}
	for _, cd := range f.CalendarDates {
		if cd.ExceptionType == gtfs.ExceptionAdded && cd.Date.Equal(day) {
			active[cd.ServiceID] = true
		}
	}
	for _, cd := range f.CalendarDates {
		if cd.ExceptionType == gtfs.ExceptionRemoved && cd.Date.Equal(day) {
			delete(active, cd.ServiceID)
		}
	}
	return active
}

// ByDate derives a feed containing only what runs on the given date.
// Dates outside every calendar window produce an empty feed, not an
// error. The operation is idempotent: filtering the result by the same
// date changes nothing.
func ByDate(f *gtfs.Feed, date time.Time) *gtfs.Feed {
	active := ActiveServices(f, date)
	keep := map[string]bool{}
	for _, t := range f.Trips {
		if active[t.ServiceID] {
			keep[t.ID] = true
		}
	}
	return shrink(f, keep)
}

// WithoutTrips derives a feed with the given trips removed, used to
// drop trips a realtime feed marks canceled before the schedule is
// built. An empty drop set returns the input unchanged.
func WithoutTrips(f *gtfs.Feed, drop map[string]bool) *gtfs.Feed {
	if len(drop) == 0 {
		return f
	}
	keep := map[string]bool{}
	for _, t := range f.Trips {
		if !drop[t.ID] {
			keep[t.ID] = true
		}
	}
	return shrink(f, keep)
}

// SplitByDirection partitions a feed's trips by direction_id. Both
// results are full feeds pruned by the usual cascade, so each side can
// be pivoted into a grid independently.
func SplitByDirection(f *gtfs.Feed) (dir0, dir1 *gtfs.Feed) {
	k0 := map[string]bool{}
	k1 := map[string]bool{}
	for _, t := range f.Trips {
		if t.DirectionID == 1 {
			k1[t.ID] = true
		} else {
			k0[t.ID] = true
		}
	}
	return shrink(f, k0), shrink(f, k1)
}
