package realtime

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// Alert is a service alert reduced to identity, wording, severity and
// the entities it touches.
type Alert struct {
	ID          string   `json:"id"`
	Header      string   `json:"header"`
	Description string   `json:"description,omitempty"`
	Cause       string   `json:"cause,omitempty"`
	Effect      string   `json:"effect,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	Start       int64    `json:"start,omitempty"`
	End         int64    `json:"end,omitempty"`
	RouteIDs    []string `json:"routeIds,omitempty"`
	StopIDs     []string `json:"stopIds,omitempty"`
	TripIDs     []string `json:"tripIds,omitempty"`
}

type canceledTrip struct {
	tripID    string
	startDate string
}

// Snapshot is one decoded read of the realtime feeds.
type Snapshot struct {
	FetchedAt  time.Time
	HeaderTime int64
	Alerts     []Alert
	canceled   []canceledTrip
}

// Fetch reads and decodes the given feeds. Either source may be empty,
// in which case that feed is skipped. An http(s) source is downloaded;
// anything else is read as a local file, which makes saved .pb dumps
// usable directly.
func Fetch(tripUpdatesURL, serviceAlertsURL string) (*Snapshot, error) {
	var tu, al []byte
	var err error
	if tripUpdatesURL != "" {
		if tu, err = fetchRaw(tripUpdatesURL); err != nil {
			return nil, fmt.Errorf("trip updates: %w", err)
		}
	}
	if serviceAlertsURL != "" {
		if al, err = fetchRaw(serviceAlertsURL); err != nil {
			return nil, fmt.Errorf("service alerts: %w", err)
		}
	}
	return FromBytes(tu, al)
}

func fetchRaw(src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}
	resp, err := http.Get(src)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", src, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FromBytes decodes raw protobuf feed messages. Either argument may be
// empty.
func FromBytes(tripUpdates, serviceAlerts []byte) (*Snapshot, error) {
	s := &Snapshot{FetchedAt: time.Now().UTC()}
	if len(tripUpdates) > 0 {
		fm := &gtfsrtpb.FeedMessage{}
		if err := proto.Unmarshal(tripUpdates, fm); err != nil {
			return nil, fmt.Errorf("trip updates: %w", err)
		}
		s.readTripUpdates(fm)
	}
	if len(serviceAlerts) > 0 {
		fm := &gtfsrtpb.FeedMessage{}
		if err := proto.Unmarshal(serviceAlerts, fm); err != nil {
			return nil, fmt.Errorf("service alerts: %w", err)
		}
		s.readAlerts(fm)
	}
	return s, nil
}

func (s *Snapshot) readHeader(fm *gtfsrtpb.FeedMessage) {
	if s.HeaderTime == 0 && fm.Header != nil && fm.Header.Timestamp != nil {
		s.HeaderTime = int64(*fm.Header.Timestamp)
	}
}

func (s *Snapshot) readTripUpdates(fm *gtfsrtpb.FeedMessage) {
	s.readHeader(fm)
	for _, e := range fm.Entity {
		tu := e.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}
		sr := tu.Trip.ScheduleRelationship
		if sr == nil || *sr != gtfsrtpb.TripDescriptor_CANCELED {
			continue
		}
		c := canceledTrip{tripID: *tu.Trip.TripId}
		if tu.Trip.StartDate != nil {
			c.startDate = *tu.Trip.StartDate
		}
		s.canceled = append(s.canceled, c)
	}
}

func (s *Snapshot) readAlerts(fm *gtfsrtpb.FeedMessage) {
	s.readHeader(fm)
	for _, e := range fm.Entity {
		a := e.Alert
		if a == nil {
			continue
		}
		al := Alert{
			Header:      translatedText(a.HeaderText),
			Description: translatedText(a.DescriptionText),
		}
		if e.Id != nil {
			al.ID = *e.Id
		}
		if a.Cause != nil {
			al.Cause = a.Cause.String()
		}
		if a.Effect != nil {
			al.Effect = a.Effect.String()
		}
		if a.SeverityLevel != nil {
			al.Severity = a.SeverityLevel.String()
		}
		if len(a.ActivePeriod) > 0 && a.ActivePeriod[0] != nil {
			p := a.ActivePeriod[0]
			if p.Start != nil {
				al.Start = int64(*p.Start)
			}
			if p.End != nil {
				al.End = int64(*p.End)
			}
		}
		for _, ie := range a.InformedEntity {
			if ie == nil {
				continue
			}
			if ie.RouteId != nil && *ie.RouteId != "" {
				al.RouteIDs = append(al.RouteIDs, *ie.RouteId)
			}
			if ie.StopId != nil && *ie.StopId != "" {
				al.StopIDs = append(al.StopIDs, *ie.StopId)
			}
			if ie.Trip != nil && ie.Trip.TripId != nil && *ie.Trip.TripId != "" {
				al.TripIDs = append(al.TripIDs, *ie.Trip.TripId)
			}
		}
		s.Alerts = append(s.Alerts, al)
	}
}

func translatedText(ts *gtfsrtpb.TranslatedString) string {
	if ts == nil {
		return ""
	}
	for _, tr := range ts.Translation {
		if tr != nil && tr.Text != nil && *tr.Text != "" {
			return *tr.Text
		}
	}
	return ""
}

// CanceledTrips returns the trips marked canceled for the given
// service day. Updates carrying no start_date apply to whichever day
// is asked for.
func (s *Snapshot) CanceledTrips(date time.Time) map[string]bool {
	day := gtfs.FormatDate(date)
	out := map[string]bool{}
	for _, c := range s.canceled {
		if c.startDate == "" || c.startDate == day {
			out[c.tripID] = true
		}
	}
	return out
}

// AlertsFor returns the alerts touching any of the given routes or
// stops. Alerts that name no entity at all are network-wide and always
// included; alerts scoped only to individual trips are not matched
// here.
func (s *Snapshot) AlertsFor(routeIDs, stopIDs map[string]bool) []Alert {
	var out []Alert
	for _, a := range s.Alerts {
		if a.matches(routeIDs, stopIDs) {
			out = append(out, a)
		}
	}
	return out
}

func (a Alert) matches(routes, stops map[string]bool) bool {
	if len(a.RouteIDs) == 0 && len(a.StopIDs) == 0 && len(a.TripIDs) == 0 {
		return true
	}
	for _, id := range a.RouteIDs {
		if routes[id] {
			return true
		}
	}
	for _, id := range a.StopIDs {
		if stops[id] {
			return true
		}
	}
	return false
}
