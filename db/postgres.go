// Package db loads a GTFS dataset from a Postgres database holding the
// standard tables (routes, trips, stops, stop_times, calendar,
// calendar_dates), as produced by the usual GTFS import tools. The
// result is the same gtfs.Feed an archive load produces, so the rest
// of the pipeline does not care where a feed came from.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// DB wraps a pooled Postgres connection.
type DB struct {
	conn *sql.DB
}

// Connect opens and pings the database.
func Connect(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error { return d.conn.Close() }

// LoadFeed reads the whole dataset into memory. Optional tables
// (agency, calendar, calendar_dates) missing from the schema are
// tolerated with a log line; the required four are not.
func (d *DB) LoadFeed(ctx context.Context) (*gtfs.Feed, error) {
	f := &gtfs.Feed{}
	if err := d.loadRoutes(ctx, f); err != nil {
		return nil, err
	}
	if err := d.loadTrips(ctx, f); err != nil {
		return nil, err
	}
	if err := d.loadStops(ctx, f); err != nil {
		return nil, err
	}
	if err := d.loadStopTimes(ctx, f); err != nil {
		return nil, err
	}
	if err := d.loadAgencies(ctx, f); err != nil {
		log.Printf("db: agency unavailable: %v", err)
	}
	if err := d.loadCalendars(ctx, f); err != nil {
		log.Printf("db: calendar unavailable: %v", err)
	}
	if err := d.loadCalendarDates(ctx, f); err != nil {
		log.Printf("db: calendar_dates unavailable: %v", err)
	}
	if len(f.Calendars) == 0 && len(f.CalendarDates) == 0 {
		log.Printf("db: no calendar rows loaded, no service will match any date")
	}
	return f, nil
}

func (d *DB) loadAgencies(ctx context.Context, f *gtfs.Feed) error {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT COALESCE(agency_id, ''), agency_name,
		       COALESCE(agency_url, ''), COALESCE(agency_timezone, '')
		FROM agency`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a gtfs.Agency
		if err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone); err != nil {
			return fmt.Errorf("scan agency: %w", err)
		}
		f.Agencies = append(f.Agencies, a)
	}
	return rows.Err()
}

func (d *DB) loadRoutes(ctx context.Context, f *gtfs.Feed) error {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT route_id, COALESCE(agency_id, ''), COALESCE(route_short_name, ''),
		       COALESCE(route_long_name, ''), COALESCE(route_type, 0)
		FROM routes`)
	if err != nil {
		return fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r gtfs.Route
		if err := rows.Scan(&r.ID, &r.AgencyID, &r.ShortName, &r.LongName, &r.Type); err != nil {
			return fmt.Errorf("scan route: %w", err)
		}
		f.Routes = append(f.Routes, r)
	}
	return rows.Err()
}

func (d *DB) loadTrips(ctx context.Context, f *gtfs.Feed) error {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT trip_id, route_id, COALESCE(service_id, ''),
		       COALESCE(trip_headsign, ''), COALESCE(direction_id, 0)
		FROM trips`)
	if err != nil {
		return fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t gtfs.Trip
		if err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &t.Headsign, &t.DirectionID); err != nil {
			return fmt.Errorf("scan trip: %w", err)
		}
		f.Trips = append(f.Trips, t)
	}
	return rows.Err()
}

func (d *DB) loadStops(ctx context.Context, f *gtfs.Feed) error {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT stop_id, COALESCE(stop_name, ''), COALESCE(parent_station, ''),
		       COALESCE(stop_lat, 0), COALESCE(stop_lon, 0)
		FROM stops`)
	if err != nil {
		return fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s gtfs.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.ParentStation, &s.Lat, &s.Lon); err != nil {
			return fmt.Errorf("scan stop: %w", err)
		}
		f.Stops = append(f.Stops, s)
	}
	return rows.Err()
}

func (d *DB) loadStopTimes(ctx context.Context, f *gtfs.Feed) error {
	// Imports store GTFS times as text or interval; ::text covers both
	// and ParseWideTime keeps 26:05:00 intact. Ordering matches the
	// row order a file load would produce.
	rows, err := d.conn.QueryContext(ctx, `
		SELECT trip_id, stop_id, COALESCE(arrival_time::text, ''),
		       COALESCE(departure_time::text, ''), COALESCE(stop_sequence, 0)
		FROM stop_times
		ORDER BY trip_id, stop_sequence`)
	if err != nil {
		return fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var st gtfs.StopTime
		var arr, dep string
		if err := rows.Scan(&st.TripID, &st.StopID, &arr, &dep, &st.Sequence); err != nil {
			return fmt.Errorf("scan stop_time: %w", err)
		}
		n++
		var perr error
		if st.Arrival, perr = gtfs.ParseWideTime(arr); perr != nil {
			log.Printf("db: stop_times row %d: %v", n, perr)
		}
		if st.Departure, perr = gtfs.ParseWideTime(dep); perr != nil {
			log.Printf("db: stop_times row %d: %v", n, perr)
		}
		f.StopTimes = append(f.StopTimes, st)
	}
	return rows.Err()
}

func (d *DB) loadCalendars(ctx context.Context, f *gtfs.Feed) error {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT service_id, monday::int, tuesday::int, wednesday::int, thursday::int,
		       friday::int, saturday::int, sunday::int, start_date::date, end_date::date
		FROM calendar`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c gtfs.Calendar
		var mo, tu, we, th, fr, sa, su int
		if err := rows.Scan(&c.ServiceID, &mo, &tu, &we, &th, &fr, &sa, &su, &c.Start, &c.End); err != nil {
			return fmt.Errorf("scan calendar: %w", err)
		}
		c.Monday, c.Tuesday, c.Wednesday = mo == 1, tu == 1, we == 1
		c.Thursday, c.Friday = th == 1, fr == 1
		c.Saturday, c.Sunday = sa == 1, su == 1
		c.Start = gtfs.Day(c.Start)
		c.End = gtfs.Day(c.End)
		f.Calendars = append(f.Calendars, c)
	}
	return rows.Err()
}

func (d *DB) loadCalendarDates(ctx context.Context, f *gtfs.Feed) error {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT service_id, date::date, exception_type::int
		FROM calendar_dates`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cd gtfs.CalendarDate
		if err := rows.Scan(&cd.ServiceID, &cd.Date, &cd.ExceptionType); err != nil {
			return fmt.Errorf("scan calendar_date: %w", err)
		}
		cd.Date = gtfs.Day(cd.Date)
		f.CalendarDates = append(f.CalendarDates, cd)
	}
	return rows.Err()
}
