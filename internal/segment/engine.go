package segment

import (
	"backend-runtracker/internal/gpsfilter"
	"backend-runtracker/internal/shared/geo"
)

// Engine accumulates filter decisions into a total distance and fixed-length
// segments. It is not safe for concurrent use; the session loop owns it.
type Engine struct {
	threshold float64

	previous  *geo.Fix
	resumed   bool
	total     float64
	sinceLast float64
	pathBuf   []geo.Fix
	segStart  int64
	nextID    int
	segments  []Segment

	// timestamp of the latest anchor or distance-accepted fix
	lastMillis int64
}

func NewEngine(thresholdMeters float64) *Engine {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThresholdMeters
	}
	return &Engine{threshold: thresholdMeters, nextID: 1}
}

// Process runs the filter against the engine's previous fix and ingests the
// result.
func (e *Engine) Process(fix geo.Fix, cfg gpsfilter.Config, bio Biometrics) (gpsfilter.Decision, *Segment) {
	d := gpsfilter.Evaluate(e.previous, fix, cfg)
	return d, e.Ingest(fix, d, bio)
}

// Ingest applies one decision. It returns the segment closed by this fix, if
// any.
func (e *Engine) Ingest(fix geo.Fix, d gpsfilter.Decision, bio Biometrics) *Segment {
	if e.previous == nil {
		anchor := fix
		e.previous = &anchor
		if !e.resumed {
			e.segStart = fix.TimestampMillis
		}
		e.resumed = false
		e.lastMillis = fix.TimestampMillis
		if d.AcceptedForPath {
			e.pathBuf = append(e.pathBuf, fix)
		}
		return nil
	}
	if !d.AcceptedForDistance {
		return nil
	}

	e.total += d.DistanceMeters
	e.sinceLast += d.DistanceMeters
	if d.AcceptedForPath {
		e.pathBuf = append(e.pathBuf, fix)
	}
	accepted := fix
	e.previous = &accepted
	e.lastMillis = fix.TimestampMillis

	if e.sinceLast < e.threshold {
		return nil
	}
	seg := e.close(fix.TimestampMillis, bio)
	// the boundary fix opens the next segment's trace
	e.pathBuf = []geo.Fix{fix}
	return &seg
}

// Reanchor forgets the previous fix so the next one anchors a fresh trace
// and the gap before it adds no distance. The open segment keeps its start
// timestamp.
func (e *Engine) Reanchor() {
	if e.previous == nil {
		return
	}
	e.previous = nil
	e.resumed = true
}

// Finish closes the trailing partial segment. It returns nil when nothing
// has been accumulated since the last boundary.
func (e *Engine) Finish(bio Biometrics) *Segment {
	if e.sinceLast <= 0 {
		return nil
	}
	seg := e.close(e.lastMillis, bio)
	e.pathBuf = nil
	return &seg
}

func (e *Engine) close(nowMillis int64, bio Biometrics) Segment {
	seg := Segment{
		ID:                   e.nextID,
		OrderIndex:           e.nextID - 1,
		DistanceMeters:       e.sinceLast,
		DurationSeconds:      float64(nowMillis-e.segStart) / 1000,
		StartTimestampMillis: e.segStart,
		HeartRate:            bio.HeartRate,
		Cadence:              bio.Cadence,
		Path:                 e.pathBuf,
	}
	// even split of the session estimate over the segments so far
	if kcal, ok := bio.Calories.Value(); ok {
		share := kcal / float64(len(e.segments)+1)
		seg.Calories = &share
	}

	e.segments = append(e.segments, seg)
	e.nextID++
	e.sinceLast = 0
	e.segStart = nowMillis
	return seg
}

func (e *Engine) TotalDistance() float64 { return e.total }

// PendingDistance is the distance since the last segment boundary.
func (e *Engine) PendingDistance() float64 { return e.sinceLast }

func (e *Engine) PreviousFix() *geo.Fix {
	if e.previous == nil {
		return nil
	}
	p := *e.previous
	return &p
}

// Segments returns a copy of the closed segments in order.
func (e *Engine) Segments() []Segment {
	out := make([]Segment, len(e.segments))
	copy(out, e.segments)
	return out
}

// Path is the session trace: every segment path followed by the open buffer,
// without the repeated boundary fixes.
func (e *Engine) Path() []geo.Fix {
	var out []geo.Fix
	appendFix := func(f geo.Fix) {
		if n := len(out); n > 0 && out[n-1].TimestampMillis == f.TimestampMillis &&
			out[n-1].Latitude == f.Latitude && out[n-1].Longitude == f.Longitude {
			return
		}
		out = append(out, f)
	}
	for _, s := range e.segments {
		for _, f := range s.Path {
			appendFix(f)
		}
	}
	for _, f := range e.pathBuf {
		appendFix(f)
	}
	return out
}
