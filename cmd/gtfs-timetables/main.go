package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/theoremus-urban-solutions/gtfs-timetables/config"
	"github.com/theoremus-urban-solutions/gtfs-timetables/db"
	"github.com/theoremus-urban-solutions/gtfs-timetables/extract"
	"github.com/theoremus-urban-solutions/gtfs-timetables/filter"
	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-timetables/internal"
	"github.com/theoremus-urban-solutions/gtfs-timetables/metrics"
	"github.com/theoremus-urban-solutions/gtfs-timetables/publisher"
	"github.com/theoremus-urban-solutions/gtfs-timetables/realtime"
	"github.com/theoremus-urban-solutions/gtfs-timetables/render"
	"github.com/theoremus-urban-solutions/gtfs-timetables/server"
	"github.com/theoremus-urban-solutions/gtfs-timetables/store"
	"github.com/theoremus-urban-solutions/gtfs-timetables/timetable"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file path (default: search config.yml)")
		feedName   = flag.String("feed", "", "feed name from config feeds[]")
		src        = flag.String("src", "", "GTFS source: zip path, directory or URL (overrides config)")
		pgDSN      = flag.String("pg", "", "load the feed from this Postgres DSN (overrides config)")
		date       = flag.String("date", "", "service date, 2025-08-18 or 20250818 (default today)")
		route      = flag.String("route", "", "route short name pattern, matched in full, e.g. 4 or M[12] or 4|6")
		area       = flag.String("area", "", `polygon as lon,lat pairs, e.g. "19.02,47.47 19.09,47.47 19.06,47.54"`)
		areaFile   = flag.String("area-file", "", "polygon from a GeoJSON file")
		areaPolicy = flag.String("area-policy", "", "any|all (default from config)")
		direction  = flag.String("direction", "both", "0|1|both")
		format     = flag.String("format", "", "text|csv|json (default from config)")
		out        = flag.String("out", "-", "output file, - for stdout")
		sqlitePath = flag.String("sqlite", "", "archive the run into this SQLite file (overrides config)")
		rtUpdates  = flag.String("rt-updates", "", "GTFS-RT TripUpdates URL or file (overrides config)")
		rtAlerts   = flag.String("rt-alerts", "", "GTFS-RT ServiceAlerts URL or file (overrides config)")
		serve      = flag.Bool("serve", false, "serve the HTTP API instead of one-shot extraction")
		quiet      = flag.Bool("q", false, "suppress log output")
	)
	flag.Parse()

	internal.InitLogging(*quiet)

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	feedCfg, feedErr := cfg.SelectFeed(*feedName)
	if feedErr != nil && *src == "" && *pgDSN == "" {
		log.Fatalf("select feed: %v", feedErr)
	}

	var static, dsn string
	switch {
	case *src != "":
		static = *src
	case *pgDSN != "":
		dsn = *pgDSN
	case feedCfg.Static != "":
		static = feedCfg.Static
	case feedCfg.PostgresDSN != "":
		dsn = feedCfg.PostgresDSN
	default:
		log.Fatalf("no GTFS source: pass -src or -pg, or configure feeds[]")
	}

	var collector *metrics.Collector
	if *serve {
		collector = metrics.NewCollector()
	}

	loadStart := time.Now()
	feed := loadFeed(static, dsn)
	if collector != nil {
		collector.FeedLoadSeconds.Observe(time.Since(loadStart).Seconds())
	}
	log.Printf("loaded %s", feed.Summary())

	tuURL, saURL := feedCfg.TripUpdatesURL, feedCfg.ServiceAlertsURL
	if *rtUpdates != "" {
		tuURL = *rtUpdates
	}
	if *rtAlerts != "" {
		saURL = *rtAlerts
	}
	var snapshot *realtime.Snapshot
	if tuURL != "" || saURL != "" {
		snapshot, err = realtime.Fetch(tuURL, saURL)
		if err != nil {
			log.Printf("realtime fetch failed, continuing with schedule only: %v", err)
			snapshot = nil
		}
	}

	poly := parseArea(*area, *areaFile)
	policyName := cfg.Extract.AreaPolicy
	if *areaPolicy != "" {
		policyName = *areaPolicy
	}
	policy, err := filter.ParseAreaPolicy(policyName)
	if err != nil {
		log.Fatalf("area policy: %v", err)
	}

	archPath := cfg.Extract.SQLitePath
	if *sqlitePath != "" {
		archPath = *sqlitePath
	}

	if *serve {
		runServer(cfg, serveDeps{
			name:      displayName(feedCfg.Name, static, dsn),
			feed:      feed,
			snapshot:  snapshot,
			archPath:  archPath,
			poly:      poly,
			policy:    policy,
			collector: collector,
		})
		return
	}

	if strings.TrimSpace(*route) == "" {
		log.Fatalf("-route is required: an anchored pattern over route names, e.g. -route 4 or -route 'M[12]'")
	}
	when := time.Now()
	if *date != "" {
		when, err = parseDate(*date)
		if err != nil {
			log.Fatalf("date: %v", err)
		}
	}

	opts := extract.Options{
		Date:         when,
		RoutePattern: *route,
		Area:         poly,
		AreaPolicy:   policy,
	}
	if snapshot != nil {
		opts.Canceled = snapshot.CanceledTrips(gtfs.Day(when))
	}
	res, err := extract.Run(feed, opts)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}

	outFormat, dir := outputShape(cfg, *format, *direction)
	w := openOutput(*out)
	tables := res.Tables[:]
	if dir >= 0 {
		tables = []*timetable.Table{res.Tables[dir]}
	}
	if err := render.Write(w, outFormat, tables...); err != nil {
		log.Fatalf("render: %v", err)
	}
	if snapshot != nil && outFormat == render.FormatText {
		writeAlertFootnotes(w, snapshot, res)
	}
	if c, ok := w.(io.Closer); ok && w != os.Stdout {
		if err := c.Close(); err != nil {
			log.Fatalf("output: %v", err)
		}
	}

	if archPath != "" {
		archiveRun(archPath, res)
	}
	if cfg.Notify.NATSURL != "" {
		notify(cfg.Notify, res, nil)
	}
}

func loadFeed(static, dsn string) *gtfs.Feed {
	if dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		conn, err := db.Connect(ctx, dsn)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer conn.Close()
		feed, err := conn.LoadFeed(ctx)
		if err != nil {
			log.Fatalf("load feed: %v", err)
		}
		return feed
	}
	feed, err := gtfs.Load(static)
	if err != nil {
		log.Fatalf("load feed: %v", err)
	}
	return feed
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return gtfs.ParseDate(s)
}

func parseArea(area, areaFile string) *filter.Polygon {
	switch {
	case area != "":
		p, err := filter.ParsePolygon(area)
		if err != nil {
			log.Fatalf("area: %v", err)
		}
		return &p
	case areaFile != "":
		b, err := os.ReadFile(areaFile)
		if err != nil {
			log.Fatalf("area file: %v", err)
		}
		p, err := filter.PolygonFromGeoJSON(b)
		if err != nil {
			log.Fatalf("area file: %v", err)
		}
		return &p
	}
	return nil
}

func outputShape(cfg *config.AppConfig, format, direction string) (render.Format, int) {
	name := cfg.Extract.Format
	if format != "" {
		name = format
	}
	f, err := render.ParseFormat(name)
	if err != nil {
		log.Fatalf("format: %v", err)
	}
	switch direction {
	case "", "both":
		return f, -1
	case "0":
		return f, 0
	case "1":
		return f, 1
	}
	log.Fatalf("direction must be 0, 1 or both")
	return f, -1
}

func openOutput(path string) io.Writer {
	if path == "" || path == "-" {
		return os.Stdout
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("output: %v", err)
	}
	return f
}

func writeAlertFootnotes(w io.Writer, snapshot *realtime.Snapshot, res *extract.Result) {
	alerts := snapshot.AlertsFor(res.RouteIDSet(), res.StopIDSet())
	if len(alerts) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Service alerts:")
	for _, a := range alerts {
		line := "  - " + a.Header
		if a.Effect != "" {
			line += " (" + a.Effect + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func archiveRun(path string, res *extract.Result) {
	st, err := store.Open(path)
	if err != nil {
		log.Fatalf("archive: %v", err)
	}
	defer st.Close()
	ctx := context.Background()
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("archive: %v", err)
	}
	if err := st.SaveRun(ctx, res); err != nil {
		log.Fatalf("archive: %v", err)
	}
	log.Printf("archived run %s to %s", res.RunID, path)
}

func notify(cfg config.NotifyConfig, res *extract.Result, m publisher.Metrics) {
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix, m)
	if err != nil {
		log.Printf("nats connect failed, skipping notify: %v", err)
		return
	}
	defer pub.Close()
	if err := pub.PublishResult(res); err != nil {
		log.Printf("nats publish failed: %v", err)
	}
}

type serveDeps struct {
	name      string
	feed      *gtfs.Feed
	snapshot  *realtime.Snapshot
	archPath  string
	poly      *filter.Polygon
	policy    filter.AreaPolicy
	collector *metrics.Collector
}

func runServer(cfg *config.AppConfig, deps serveDeps) {
	var archive *store.Store
	if deps.archPath != "" {
		var err error
		archive, err = store.Open(deps.archPath)
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		defer archive.Close()
		if err := archive.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("archive: %v", err)
		}
	}

	var pub *publisher.NATSPublisher
	if cfg.Notify.NATSURL != "" {
		var err error
		pub, err = publisher.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix, deps.collector)
		if err != nil {
			log.Printf("nats connect failed, serving without notify: %v", err)
		} else {
			defer pub.Close()
		}
	}

	srv := server.New(cfg, server.Options{
		FeedName:   deps.name,
		Feed:       deps.feed,
		Realtime:   deps.snapshot,
		Archive:    archive,
		Publisher:  pub,
		Area:       deps.poly,
		AreaPolicy: deps.policy,
		Metrics:    deps.collector,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func displayName(name, static, dsn string) string {
	if name != "" {
		return name
	}
	if static != "" {
		return static
	}
	if dsn != "" {
		return "postgres"
	}
	return "feed"
}
