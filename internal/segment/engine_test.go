package segment

import (
	"math"
	"testing"

	"backend-runtracker/internal/gpsfilter"
	"backend-runtracker/internal/sensor"
	"backend-runtracker/internal/shared/geo"
)

// ~5.004 m of latitude
const fiveMeters = 0.000045

func trackFix(step int, tsMillis int64) geo.Fix {
	return geo.Fix{
		Latitude:        48.85 + float64(step)*fiveMeters,
		Longitude:       2.35,
		TimestampMillis: tsMillis,
		Speed:           geo.Float(5),
		Accuracy:        geo.Float(5),
	}
}

func TestScenarioThreeFixes(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	cfg := gpsfilter.DefaultConfig()
	bio := Biometrics{}

	var accepted int
	var closed []*Segment
	for i := 0; i < 3; i++ {
		d, seg := e.Process(trackFix(i, int64(i)*1000), cfg, bio)
		if d.AcceptedForDistance {
			accepted++
		}
		if seg != nil {
			closed = append(closed, seg)
		}
	}

	if accepted != 2 {
		t.Fatalf("expected 2 accepted decisions, got %d", accepted)
	}
	if math.Abs(e.TotalDistance()-10) > 0.1 {
		t.Fatalf("expected ~10m, got %v", e.TotalDistance())
	}
	if len(closed) != 1 {
		t.Fatalf("expected one segment, got %d", len(closed))
	}
	seg := closed[0]
	if seg.ID != 1 || seg.OrderIndex != 0 {
		t.Fatalf("unexpected ids: %+v", seg)
	}
	if seg.DurationSeconds != 2 {
		t.Fatalf("expected 2s duration, got %v", seg.DurationSeconds)
	}
	if len(seg.Path) != 3 {
		t.Fatalf("expected 3 path fixes, got %d", len(seg.Path))
	}
	if e.Finish(bio) != nil {
		t.Fatalf("no trailing segment expected after exact boundary")
	}
}

func TestFinishKeepsPartialSegment(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	cfg := gpsfilter.DefaultConfig()
	for i := 0; i < 5; i++ {
		e.Process(trackFix(i, int64(i)*1000), cfg, Biometrics{})
	}
	// four ~5 m steps close exactly two segments
	if got := len(e.Segments()); got != 2 {
		t.Fatalf("expected 2 full segments, got %d", got)
	}
	seg := e.Finish(Biometrics{})
	if seg != nil {
		t.Fatalf("expected nothing pending, got %+v", seg)
	}

	e.Process(trackFix(5, 5000), cfg, Biometrics{})
	seg = e.Finish(Biometrics{})
	if seg == nil {
		t.Fatalf("expected trailing partial segment")
	}
	if seg.OrderIndex != 2 || seg.ID != 3 {
		t.Fatalf("partial segment must come last: %+v", seg)
	}
	if seg.DistanceMeters >= DefaultThresholdMeters {
		t.Fatalf("expected short segment, got %v", seg.DistanceMeters)
	}
}

func TestSumOfSegmentsMatchesTotal(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	cfg := gpsfilter.DefaultConfig()
	ts := int64(0)
	lat := 40.0
	for i := 0; i < 200; i++ {
		ts += 1000
		lat += fiveMeters * (0.7 + float64(i%5)*0.3)
		e.Process(geo.Fix{Latitude: lat, Longitude: -3.7 + float64(i%3)*0.00001, TimestampMillis: ts}, cfg, Biometrics{})
	}
	e.Finish(Biometrics{})

	var sum float64
	for i, s := range e.Segments() {
		if s.OrderIndex != i {
			t.Fatalf("segment %d has order index %d", i, s.OrderIndex)
		}
		sum += s.DistanceMeters
	}
	if math.Abs(sum-e.TotalDistance()) > 1e-6 {
		t.Fatalf("segment sum %v != total %v", sum, e.TotalDistance())
	}
}

func TestRejectedFixesDoNotMoveAnchor(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	cfg := gpsfilter.DefaultConfig()
	e.Process(trackFix(0, 0), cfg, Biometrics{})

	bad := trackFix(4, 1000)
	bad.Accuracy = geo.Float(80)
	d, _ := e.Process(bad, cfg, Biometrics{})
	if d.AcceptedForDistance || e.TotalDistance() != 0 {
		t.Fatalf("low accuracy fix added distance")
	}

	teleport := trackFix(400, 2000)
	d, _ = e.Process(teleport, cfg, Biometrics{})
	if d.RejectReason != gpsfilter.ReasonImplausibleSpeed || e.TotalDistance() != 0 {
		t.Fatalf("teleport added distance: %+v", d)
	}

	if prev := e.PreviousFix(); prev == nil || prev.TimestampMillis != 0 {
		t.Fatalf("anchor moved on rejected fixes: %+v", prev)
	}
}

func TestSlowMovementAccumulatesAgainstAnchor(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	cfg := gpsfilter.DefaultConfig()
	// 1 m steps are jitter on their own but add up against the anchor
	for i := 0; i < 5; i++ {
		e.Process(geo.Fix{Latitude: 10 + float64(i)*fiveMeters/5, Longitude: 10, TimestampMillis: int64(i) * 1000}, cfg, Biometrics{})
	}
	if e.TotalDistance() < 3 {
		t.Fatalf("expected slow movement to be counted, got %v", e.TotalDistance())
	}
}

func TestSegmentBiometricsAndCalories(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	cfg := gpsfilter.DefaultConfig()
	bio := Biometrics{
		HeartRate: sensor.Present(150, sensor.SourceWearable),
		Cadence:   sensor.Absent(),
		Calories:  sensor.Present(12, sensor.SourceEstimate),
	}
	var segs []*Segment
	for i := 0; i < 5; i++ {
		if _, s := e.Process(trackFix(i, int64(i)*1000), cfg, bio); s != nil {
			segs = append(segs, s)
		}
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if hr, ok := segs[0].HeartRate.Value(); !ok || hr != 150 {
		t.Fatalf("expected heart rate snapshot")
	}
	if segs[0].Cadence.IsPresent() {
		t.Fatalf("cadence must stay absent")
	}
	if segs[0].Calories == nil || *segs[0].Calories != 12 {
		t.Fatalf("first segment takes the whole estimate")
	}
	if segs[1].Calories == nil || *segs[1].Calories != 6 {
		t.Fatalf("second segment takes half, got %v", segs[1].Calories)
	}
}

func TestSegmentsWithoutCalories(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	for i := 0; i < 3; i++ {
		e.Process(trackFix(i, int64(i)*1000), gpsfilter.DefaultConfig(), Biometrics{})
	}
	if segs := e.Segments(); len(segs) != 1 || segs[0].Calories != nil {
		t.Fatalf("expected one segment without calories: %+v", segs)
	}
}

func TestPathHasNoDuplicateBoundaries(t *testing.T) {
	e := NewEngine(DefaultThresholdMeters)
	for i := 0; i < 6; i++ {
		e.Process(trackFix(i, int64(i)*1000), gpsfilter.DefaultConfig(), Biometrics{})
	}
	if got := len(e.Path()); got != 6 {
		t.Fatalf("expected 6 path fixes, got %d", got)
	}
}

func TestNewEngineDefaultThreshold(t *testing.T) {
	e := NewEngine(0)
	if e.threshold != DefaultThresholdMeters {
		t.Fatalf("expected default threshold")
	}
	if e.PreviousFix() != nil || e.PendingDistance() != 0 {
		t.Fatalf("expected empty engine")
	}
}

func TestReanchorSkipsGapDistance(t *testing.T) {
	e := NewEngine(100)
	cfg := gpsfilter.DefaultConfig()
	e.Process(trackFix(0, 0), cfg, Biometrics{})
	e.Process(trackFix(1, 1000), cfg, Biometrics{})

	e.Reanchor()
	if e.PreviousFix() != nil {
		t.Fatalf("expected anchor cleared")
	}
	// 20 steps away after the gap: anchors without adding distance
	d, _ := e.Process(trackFix(21, 60000), cfg, Biometrics{})
	if d.RejectReason != gpsfilter.ReasonNoPreviousSample {
		t.Fatalf("expected new anchor, got %v", d.RejectReason)
	}
	e.Process(trackFix(22, 61000), cfg, Biometrics{})

	if math.Abs(e.TotalDistance()-2*5.004) > 0.05 {
		t.Fatalf("gap leaked into distance: %v", e.TotalDistance())
	}
	seg := e.Finish(Biometrics{})
	if seg == nil {
		t.Fatalf("expected final segment")
	}
	if seg.StartTimestampMillis != 0 || seg.DurationSeconds != 61 {
		t.Fatalf("segment should keep wall-clock bounds: %+v", seg)
	}
}
