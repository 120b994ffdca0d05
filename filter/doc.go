/*
Package filter narrows a gtfs.Feed by service date, geographic area,
route selection, or travel direction.

Every filter takes a Feed and returns a new one; inputs are never
mutated. Results are internally consistent: when trips drop out, the
stop_times, stops, routes, agencies and calendar rows they referenced
are pruned with them, so any output Feed can be fed to any other filter
or to the schedule builder without dangling references.

An empty result is an ordinary value, not an error. A date outside
every calendar window, a polygon covering no stops, or a pattern
matching no route all yield an empty Feed that renders as a header-only
table downstream.
*/
package filter
