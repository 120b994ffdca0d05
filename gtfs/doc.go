/*
Package gtfs loads GTFS static feeds into normalized in-memory tables.

A Feed holds the seven tables this pipeline consumes (agency, routes,
trips, stops, stop_times, calendar, calendar_dates) as plain slices of
structs. Everything downstream works on this one representation: filters
derive new Feeds, the schedule builder pivots one into a grid. Feeds are
never mutated after loading.

# Loading

Feeds load from a zip archive, an unpacked directory, raw zip bytes, or
an http(s) URL:

	feed, err := gtfs.Load("gtfs.zip")           // path or URL
	feed, err := gtfs.LoadFromFile("feeds/bkk")  // unpacked directory
	feed, err := gtfs.LoadFromBytes(zipBytes)    // already in memory

URL downloads spool to a temporary file first; feeds can run to hundreds
of megabytes and are not buffered in memory twice.

# Times

GTFS times of day routinely pass 24:00:00: a trip leaving Friday evening
arrives at 26:05:00, which is 02:05 Saturday on Friday's service day.
WideTime keeps these as plain seconds so ordering and comparison stay
numeric. A missing arrival_time is NoTime, not an error.

# Malformed input

Structural problems (missing required table, unreadable CSV, a required
column absent) fail the load. A single bad row does not: it is skipped
or degraded to missing data with a logged ParseError, so one stray
record cannot invalidate a whole schedule.
*/
package gtfs
