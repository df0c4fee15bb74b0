package replay

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"backend-runtracker/internal/gpsfilter"
	"backend-runtracker/internal/segment"
	"backend-runtracker/internal/sensor"

	"github.com/google/go-cmp/cmp"
)

// 5 m steps every second, one 60 m jump and one point with a poor fix.
const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>morning run</name>
    <trkseg>
      <trkpt lat="48.850000" lon="2.350000"><time>2024-05-01T07:00:00Z</time></trkpt>
      <trkpt lat="48.850045" lon="2.350000"><time>2024-05-01T07:00:01Z</time></trkpt>
      <trkpt lat="48.850090" lon="2.350000"><time>2024-05-01T07:00:02Z</time></trkpt>
      <trkpt lat="48.850630" lon="2.350000"><time>2024-05-01T07:00:03Z</time></trkpt>
      <trkpt lat="48.850135" lon="2.350000"><time>2024-05-01T07:00:04Z</time><hdop>10</hdop></trkpt>
      <trkpt lat="48.850135" lon="2.350000"><time>2024-05-01T07:00:05Z</time></trkpt>
      <trkpt lat="48.850180" lon="2.350000"><time>2024-05-01T07:00:06Z</time></trkpt>
      <trkpt lat="48.850185" lon="2.350000"><time>2024-05-01T07:00:07Z</time></trkpt>
      <trkpt lat="48.850300" lon="2.350000"></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseGPXSkipsUntimedPoints(t *testing.T) {
	fixes, err := ParseGPX([]byte(sampleGPX))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(fixes) != 8 {
		t.Fatalf("expected 8 timed fixes, got %d", len(fixes))
	}
	if fixes[1].TimestampMillis-fixes[0].TimestampMillis != 1000 {
		t.Fatalf("unexpected timestamps")
	}
	if fixes[4].Accuracy == nil || *fixes[4].Accuracy != 50 {
		t.Fatalf("expected hdop-derived accuracy, got %v", fixes[4].Accuracy)
	}
	if fixes[0].Accuracy != nil {
		t.Fatalf("accuracy must stay unknown without hdop")
	}
}

func TestRunClassifiesTrack(t *testing.T) {
	fixes, err := ParseGPX([]byte(sampleGPX))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := Run(fixes, gpsfilter.DefaultConfig(), segment.DefaultThresholdMeters)

	if res.Rejected[gpsfilter.ReasonImplausibleSpeed] != 1 {
		t.Fatalf("expected one teleport, got %+v", res.Rejected)
	}
	if res.Rejected[gpsfilter.ReasonLowAccuracy] != 1 {
		t.Fatalf("expected one low accuracy fix, got %+v", res.Rejected)
	}
	if res.Rejected[gpsfilter.ReasonBelowMinDistance] != 1 {
		t.Fatalf("expected one jitter fix, got %+v", res.Rejected)
	}

	var sum float64
	for _, s := range res.Segments {
		sum += s.DistanceMeters
	}
	if math.Abs(sum-res.TotalDistance) > 1e-6 {
		t.Fatalf("segment sum %v != total %v", sum, res.TotalDistance)
	}
	// four accepted 5 m steps; the jump, the poor fix and the jitter add nothing
	if math.Abs(res.TotalDistance-20.015) > 0.05 {
		t.Fatalf("unexpected distance %v", res.TotalDistance)
	}
	// 0.000185 degrees of latitude at 48.85N on the ellipsoid
	if res.Displacement < 20.4 || res.Displacement > 20.7 {
		t.Fatalf("unexpected displacement %v", res.Displacement)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.gpx")
	if err := os.WriteFile(path, []byte(sampleGPX), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fixes, err := LoadGPX(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	first := Run(fixes, gpsfilter.DefaultConfig(), segment.DefaultThresholdMeters)
	second := Run(fixes, gpsfilter.DefaultConfig(), segment.DefaultThresholdMeters)
	if diff := cmp.Diff(first, second, cmp.AllowUnexported(sensor.Reading{})); diff != "" {
		t.Fatalf("replay differs (-first +second):\n%s", diff)
	}
}

func TestLoadGPXErrors(t *testing.T) {
	if _, err := LoadGPX(filepath.Join(t.TempDir(), "missing.gpx")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	empty := `<?xml version="1.0"?><gpx version="1.1" creator="t" xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg></trkseg></trk></gpx>`
	if _, err := ParseGPX([]byte(empty)); err != ErrNoFixes {
		t.Fatalf("expected ErrNoFixes, got %v", err)
	}
}
