package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
)

// Polygon is a closed ring of lon/lat vertices. The ring does not need
// to repeat its first vertex; a repeated closing vertex is dropped.
type Polygon struct {
	pts [][2]float64
}

// NewPolygon builds a polygon from lon/lat pairs. At least three
// distinct vertices are required.
func NewPolygon(pts [][2]float64) (Polygon, error) {
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return Polygon{}, errors.New("polygon needs at least 3 vertices")
	}
	return Polygon{pts: pts}, nil
}

// ParsePolygon reads a ring written as "lon,lat lon,lat ..." with
// vertices separated by spaces or semicolons.
func ParsePolygon(s string) (Polygon, error) {
	toks := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ';' || r == '\t' || r == '\n'
	})
	pts := make([][2]float64, 0, len(toks))
	for _, tok := range toks {
		parts := strings.Split(tok, ",")
		if len(parts) != 2 {
			return Polygon{}, fmt.Errorf("polygon vertex %q: want lon,lat", tok)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("polygon vertex %q: %w", tok, err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("polygon vertex %q: %w", tok, err)
		}
		pts = append(pts, [2]float64{lon, lat})
	}
	return NewPolygon(pts)
}

// PolygonFromGeoJSON extracts the outer ring of the first Polygon or
// MultiPolygon geometry in a GeoJSON document. Bare geometries,
// Features and FeatureCollections are all accepted.
func PolygonFromGeoJSON(b []byte) (Polygon, error) {
	var doc struct {
		Type        string            `json:"type"`
		Features    []json.RawMessage `json:"features"`
		Geometry    json.RawMessage   `json:"geometry"`
		Coordinates json.RawMessage   `json:"coordinates"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return Polygon{}, fmt.Errorf("geojson: %w", err)
	}
	switch doc.Type {
	case "FeatureCollection":
		for _, f := range doc.Features {
			if p, err := PolygonFromGeoJSON(f); err == nil {
				return p, nil
			}
		}
		return Polygon{}, errors.New("geojson: no polygon feature found")
	case "Feature":
		return PolygonFromGeoJSON(doc.Geometry)
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(doc.Coordinates, &rings); err != nil {
			return Polygon{}, fmt.Errorf("geojson polygon: %w", err)
		}
		if len(rings) == 0 {
			return Polygon{}, errors.New("geojson polygon has no rings")
		}
		return ringPolygon(rings[0])
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(doc.Coordinates, &polys); err != nil {
			return Polygon{}, fmt.Errorf("geojson multipolygon: %w", err)
		}
		if len(polys) == 0 || len(polys[0]) == 0 {
			return Polygon{}, errors.New("geojson multipolygon is empty")
		}
		return ringPolygon(polys[0][0])
	default:
		return Polygon{}, fmt.Errorf("geojson: unsupported type %q", doc.Type)
	}
}

func ringPolygon(ring [][]float64) (Polygon, error) {
	pts := make([][2]float64, 0, len(ring))
	for _, pos := range ring {
		if len(pos) < 2 {
			return Polygon{}, errors.New("geojson position needs lon and lat")
		}
		pts = append(pts, [2]float64{pos[0], pos[1]})
	}
	return NewPolygon(pts)
}

// Contains reports whether the point lies inside the ring, by even-odd
// ray casting. Points exactly on an edge count as outside.
func (p Polygon) Contains(lon, lat float64) bool {
	in := false
	n := len(p.pts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p.pts[i][0], p.pts[i][1]
		xj, yj := p.pts[j][0], p.pts[j][1]
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			in = !in
		}
	}
	return in
}

// AreaPolicy decides how much of a trip must lie inside the area for
// the trip to survive ByArea.
type AreaPolicy int

const (
	// AreaAny keeps a trip when at least one of its stops is inside.
	AreaAny AreaPolicy = iota
	// AreaAll keeps a trip only when every one of its stops is inside.
	AreaAll
)

// ParseAreaPolicy reads "any" or "all". The empty string means AreaAny.
func ParseAreaPolicy(s string) (AreaPolicy, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return AreaAny, nil
	case "all":
		return AreaAll, nil
	}
	return AreaAny, fmt.Errorf("area policy %q: want any or all", s)
}

func (p AreaPolicy) String() string {
	if p == AreaAll {
		return "all"
	}
	return "any"
}

// ByArea derives a feed restricted to stops inside the polygon and to
// the trips the policy admits. Whether a trip survives is judged
// against its full stop list; the surviving trip then keeps only its
// in-area stop_times, so through-running trips appear with partial
// columns rather than dragging outside stops back in.
func ByArea(f *gtfs.Feed, poly Polygon, policy AreaPolicy) *gtfs.Feed {
	inside := map[string]bool{}
	for _, s := range f.Stops {
		if poly.Contains(s.Lon, s.Lat) {
			inside[s.ID] = true
		}
	}

	total := map[string]int{}
	in := map[string]int{}
	for _, st := range f.StopTimes {
		total[st.TripID]++
		if inside[st.StopID] {
			in[st.TripID]++
		}
	}
	keep := map[string]bool{}
	for id, n := range total {
		if policy == AreaAll {
			if in[id] == n {
				keep[id] = true
			}
		} else if in[id] > 0 {
			keep[id] = true
		}
	}

	g := *f
	g.StopTimes = make([]gtfs.StopTime, 0, len(f.StopTimes))
	for _, st := range f.StopTimes {
		if inside[st.StopID] {
			g.StopTimes = append(g.StopTimes, st)
		}
	}
	return shrink(&g, keep)
}
