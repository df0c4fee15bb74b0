// Package replay feeds recorded GPX tracks through the filter and segment
// engine. The same track always produces the same result.
package replay

import (
	"errors"
	"fmt"

	"backend-runtracker/internal/gpsfilter"
	"backend-runtracker/internal/segment"
	"backend-runtracker/internal/shared/geo"

	"github.com/jftuga/geodist"
	"github.com/tkrajina/gpxgo/gpx"
)

// hdopMeters converts horizontal dilution of precision to an accuracy
// radius, using a typical receiver range error.
const hdopMeters = 5.0

var ErrNoFixes = errors.New("replay: track has no timestamped points")

type Result struct {
	Fixes         int                            `json:"fixes"`
	Decisions     []gpsfilter.Decision           `json:"decisions"`
	Rejected      map[gpsfilter.RejectReason]int `json:"rejected"`
	Segments      []segment.Segment              `json:"segments"`
	TotalDistance float64                        `json:"total_distance_m"`
	DurationSec   float64                        `json:"duration_sec"`
	// Displacement is the straight line from the first to the last fix on
	// the WGS84 ellipsoid. Zero when Vincenty does not converge.
	Displacement float64 `json:"displacement_m"`
}

func LoadGPX(path string) ([]geo.Fix, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fixesFromGPX(g)
}

func ParseGPX(data []byte) ([]geo.Fix, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	return fixesFromGPX(g)
}

// fixesFromGPX flattens every track segment in file order. Points without
// a timestamp cannot be speed-checked and are skipped.
func fixesFromGPX(g *gpx.GPX) ([]geo.Fix, error) {
	var fixes []geo.Fix
	for _, track := range g.Tracks {
		for _, seg := range track.Segments {
			for _, p := range seg.Points {
				if p.Timestamp.IsZero() {
					continue
				}
				fix := geo.Fix{
					Latitude:        p.Latitude,
					Longitude:       p.Longitude,
					TimestampMillis: p.Timestamp.UnixMilli(),
				}
				if p.HorizontalDilution.NotNull() {
					fix.Accuracy = geo.Float(p.HorizontalDilution.Value() * hdopMeters)
				}
				fixes = append(fixes, fix)
			}
		}
	}
	if len(fixes) == 0 {
		return nil, ErrNoFixes
	}
	return fixes, nil
}

// Run replays fixes through a fresh engine and closes the trailing segment.
func Run(fixes []geo.Fix, cfg gpsfilter.Config, thresholdMeters float64) Result {
	engine := segment.NewEngine(thresholdMeters)
	res := Result{
		Fixes:     len(fixes),
		Decisions: make([]gpsfilter.Decision, 0, len(fixes)),
		Rejected:  map[gpsfilter.RejectReason]int{},
	}
	for _, f := range fixes {
		d, _ := engine.Process(f, cfg, segment.Biometrics{})
		res.Decisions = append(res.Decisions, d)
		if d.RejectReason != gpsfilter.ReasonNone {
			res.Rejected[d.RejectReason]++
		}
	}
	engine.Finish(segment.Biometrics{})

	res.Segments = engine.Segments()
	res.TotalDistance = engine.TotalDistance()
	for _, s := range res.Segments {
		res.DurationSec += s.DurationSeconds
	}
	if len(fixes) > 1 {
		res.Displacement = displacement(fixes[0], fixes[len(fixes)-1])
	}
	return res
}

func displacement(from, to geo.Fix) float64 {
	_, km, err := geodist.VincentyDistance(
		geodist.Coord{Lat: from.Latitude, Lon: from.Longitude},
		geodist.Coord{Lat: to.Latitude, Lon: to.Longitude},
	)
	if err != nil {
		return 0
	}
	return km * 1000
}
