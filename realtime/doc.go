/*
Package realtime reads GTFS-realtime TripUpdates and ServiceAlerts and
reduces them to the two things a printed timetable can use: which
scheduled trips are canceled for a service day, and which alerts are
worth a footnote.

A Snapshot is one decoded read of the feeds. It is plain data; callers
decide whether a fetch failure is fatal. For a static extraction it
usually is not, and the pipeline runs fine with a nil Snapshot.
*/
package realtime
