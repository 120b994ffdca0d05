// Package store archives extraction results in a SQLite file so other
// tools can read past timetables without re-running the pipeline.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theoremus-urban-solutions/gtfs-timetables/extract"
	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a SQLite archive. SQLite allows one writer at a time, so
// the connection pool is pinned to a single connection and every write
// additionally holds writeMu.
type Store struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// Open opens (or creates) the archive at path with WAL mode and foreign
// keys enabled. Call EnsureSchema before the first write.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			log.Printf("store: %s failed: %v", pragma, err)
		}
	}
	return &Store{conn: conn}, nil
}

// EnsureSchema creates the runs and cells tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// SaveRun writes one extraction result as a runs row plus one cells row
// per populated grid entry, in a single transaction. Cells a trip does
// not serve are not stored.
func (s *Store) SaveRun(ctx context.Context, res *extract.Result) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, service_date, pattern, routes, trips_selected, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.RunID, gtfs.FormatDate(res.Date), res.Pattern, strings.Join(res.RouteNames(), ","),
		res.Counts.Selected, res.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (run_id, direction, stop_order, stop_id, stop_name,
		                   trip_order, trip_id, headsign, arrival_secs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for _, tbl := range res.Tables {
		if tbl == nil || tbl.Empty() {
			continue
		}
		for _, row := range tbl.Stops {
			for _, col := range tbl.Trips {
				at, ok := tbl.Cell(row.Order, col.Order)
				if !ok {
					continue
				}
				if _, err := stmt.ExecContext(ctx,
					res.RunID, tbl.Direction, row.Order, row.StopID, row.Name,
					col.Order, col.TripID, col.Headsign, int(at),
				); err != nil {
					return fmt.Errorf("insert cell %s/%s: %w", row.StopID, col.TripID, err)
				}
			}
		}
	}
	return tx.Commit()
}

// RunInfo is one archived run as listed by ListRuns.
type RunInfo struct {
	RunID     string    `json:"runId"`
	Date      time.Time `json:"date"`
	Pattern   string    `json:"pattern"`
	Routes    []string  `json:"routes,omitempty"`
	Trips     int       `json:"trips"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListRuns returns up to limit archived runs, newest first. A limit of
// zero or less means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT run_id, service_date, pattern, routes, trips_selected, created_at
		FROM runs
		ORDER BY created_at DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info                  RunInfo
			date, routes, created string
		)
		if err := rows.Scan(&info.RunID, &date, &info.Pattern, &routes, &info.Trips, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if info.Date, err = gtfs.ParseDate(date); err != nil {
			return nil, fmt.Errorf("run %s: %w", info.RunID, err)
		}
		if info.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("run %s: %w", info.RunID, err)
		}
		if routes != "" {
			info.Routes = strings.Split(routes, ",")
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Cell is one archived timetable entry.
type Cell struct {
	Direction int
	StopOrder int
	StopID    string
	StopName  string
	TripOrder int
	TripID    string
	Headsign  string
	Arrival   gtfs.WideTime
}

// RunCells reloads every cell of one run, ordered by direction, stop
// and trip. An unknown run id yields an empty slice.
func (s *Store) RunCells(ctx context.Context, runID string) ([]Cell, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT direction, stop_order, stop_id, stop_name, trip_order, trip_id, headsign, arrival_secs
		FROM cells
		WHERE run_id = ?
		ORDER BY direction, stop_order, trip_order`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cells for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Cell
	for rows.Next() {
		var (
			c    Cell
			secs int
		)
		if err := rows.Scan(&c.Direction, &c.StopOrder, &c.StopID, &c.StopName,
			&c.TripOrder, &c.TripID, &c.Headsign, &secs); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.Arrival = gtfs.WideTime(secs)
		out = append(out, c)
	}
	return out, rows.Err()
}
