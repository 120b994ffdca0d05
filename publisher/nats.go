// Package publisher announces completed extractions on NATS so
// downstream consumers can pick up fresh timetables.
package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/theoremus-urban-solutions/gtfs-timetables/extract"
	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// Metrics receives publish outcomes and connection state. A nil Metrics
// is allowed.
type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics Metrics
}

// NewNATSPublisher connects to url. Events go out under subjectPrefix
// ("timetables" when empty).
func NewNATSPublisher(url, subjectPrefix string, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfs-timetables"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "timetables"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Event announces one extracted direction.
type Event struct {
	RunID       string    `json:"runId"`
	Date        string    `json:"date"`
	Pattern     string    `json:"pattern"`
	Routes      []string  `json:"routes"`
	Direction   int       `json:"direction"`
	StopCount   int       `json:"stopCount"`
	TripCount   int       `json:"tripCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// PublishResult emits one Event per non-empty direction on
// prefix.<pattern>.<direction>.
func (p *NATSPublisher) PublishResult(res *extract.Result) error {
	for _, tbl := range res.Tables {
		if tbl == nil || tbl.Empty() {
			continue
		}
		ev := Event{
			RunID:       res.RunID,
			Date:        gtfs.FormatDate(res.Date),
			Pattern:     res.Pattern,
			Routes:      res.RouteNames(),
			Direction:   tbl.Direction,
			StopCount:   len(tbl.Stops),
			TripCount:   len(tbl.Trips),
			GeneratedAt: res.CreatedAt,
		}
		if err := p.publish(subjectFor(p.prefix, res.Pattern, tbl.Direction), ev); err != nil {
			return err
		}
	}
	return nil
}

func (p *NATSPublisher) publish(subject string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func subjectFor(prefix, pattern string, direction int) string {
	return fmt.Sprintf("%s.%s.%d", prefix, subjectToken(pattern), direction)
}

// subjectToken makes s usable as a single NATS subject token. Tokens
// cannot contain spaces, '.', '>' or '*'.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
