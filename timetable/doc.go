/*
Package timetable pivots a filtered gtfs.Feed into the wide grid a
printed timetable shows: one row per stop, one column per trip, arrival
times in the cells.

Rows are ordered by each stop's earliest scheduled arrival and columns
by the time each trip first serves any stop, both as dense 1..N ranks.
Ties keep feed order, so two stops reached at the same minute stay in
the order the feed listed them. A trip that skips a stop leaves that
cell empty; a stop_time without a usable arrival contributes nothing.

The feed is expected to be pre-filtered to one route selection and one
direction. Build does not split by direction itself; see
filter.SplitByDirection.
*/
package timetable
