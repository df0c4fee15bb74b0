package tracking

import (
	"context"
	"log"
	"time"

	"backend-runtracker/internal/segment"
	"backend-runtracker/internal/sensor"
	"backend-runtracker/internal/shared/geo"
)

// Everything in this file runs on the Run goroutine.

// ingest drops fixes from before the session (or the last resume) and fixes
// at or before the last one ingested, so switching between push and poll
// never counts a fix twice.
func (t *Tracker) ingest(fix geo.Fix) {
	if t.state != StateRunning {
		return
	}
	if fix.TimestampMillis < t.floor || fix.TimestampMillis <= t.lastIngested {
		return
	}
	t.lastIngested = fix.TimestampMillis

	now := t.clock.Now()
	t.refreshBiometrics(now)
	d, closed := t.engine.Process(fix, t.cfg.Filter, t.biometrics())

	t.publish(TopicLocation, LocationEvent{SessionID: t.session.ID, Fix: fix, Decision: d})
	if d.AcceptedForPace {
		t.pace.Add(d.SpeedMps)
		speed, _ := t.pace.SpeedMps()
		if perKm, ok := t.pace.SecondsPerKm(); ok {
			t.publish(TopicPace, PaceEvent{SessionID: t.session.ID, SpeedMps: speed, SecondsPerKm: perKm})
		}
	}
	if closed != nil {
		t.publish(TopicTracking, t.snapshot(now))
	}
}

func (t *Tracker) tick(now time.Time) {
	if t.state != StateRunning {
		return
	}
	if t.background {
		t.poll()
	}
	t.refreshBiometrics(now)
	snap := t.snapshot(now)
	t.publish(TopicTracking, snap)

	if t.cfg.RemoteUpdateInterval <= 0 || now.Sub(t.lastUpdate) < t.cfg.RemoteUpdateInterval {
		return
	}
	t.lastUpdate = now
	if snap.LocalOnly() {
		return
	}
	ctx, rec := t.runCtx, ToRecord(snap)
	go func() {
		if err := t.api.UpdateSession(ctx, rec); err != nil {
			log.Printf("tracking: update session %s failed: %v", rec.SessionID, err)
		}
	}()
}

func (t *Tracker) poll() {
	cursor := t.lastIngested
	if t.floor-1 > cursor {
		cursor = t.floor - 1
	}
	fixes, err := t.loc.FixesSince(t.runCtx, cursor)
	if err != nil {
		log.Printf("tracking: background poll failed: %v", err)
		return
	}
	for _, fix := range fixes {
		t.ingest(fix)
	}
	if len(fixes) > 0 {
		t.trim(t.lastIngested)
	}
}

// trim drops buffered fixes the session can no longer ingest.
func (t *Tracker) trim(cursor int64) {
	if cursor <= 0 {
		return
	}
	if _, err := t.loc.Trim(t.runCtx, cursor); err != nil {
		log.Printf("tracking: trimming location buffer failed: %v", err)
	}
}

// catchUp ingests whatever the current mode has pending: the durable buffer
// in the background, the live stream otherwise.
func (t *Tracker) catchUp() {
	if t.background {
		t.poll()
		return
	}
	t.drain()
}

// drain ingests fixes already queued on the live stream.
func (t *Tracker) drain() {
	for t.fixes != nil {
		select {
		case fix, ok := <-t.fixes:
			if !ok {
				t.fixes = nil
				return
			}
			t.ingest(fix)
		default:
			return
		}
	}
}

// subscribe failures leave the session running without live fixes.
func (t *Tracker) subscribe() {
	ctx := t.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	fixes, err := t.loc.Subscribe(ctx, t.cfg.Location)
	if err != nil {
		log.Printf("tracking: location subscribe failed, continuing degraded: %v", err)
		t.fixes = nil
		return
	}
	t.fixes = fixes
}

func (t *Tracker) unsubscribe() {
	if t.fixes == nil {
		return
	}
	t.loc.Unsubscribe()
	t.fixes = nil
}

func (t *Tracker) stopTicker() {
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
}

func (t *Tracker) refreshBiometrics(now time.Time) {
	t.heartRate = t.resolver.Resolve(sensor.HeartRate)
	t.cadence = t.resolver.Resolve(sensor.Cadence)
	t.calories = t.resolver.Calories(t.elapsed(now))
}

func (t *Tracker) biometrics() segment.Biometrics {
	return segment.Biometrics{HeartRate: t.heartRate, Cadence: t.cadence, Calories: t.calories}
}

func (t *Tracker) elapsed(now time.Time) time.Duration {
	var end time.Time
	switch t.state {
	case StateRunning:
		end = now
	case StatePaused:
		end = t.pausedAt
	case StateCompleted:
		end = t.endedAt
	default:
		return 0
	}
	d := end.Sub(t.startedAt) - t.pausedTotal
	if d < 0 {
		return 0
	}
	return d
}

func (t *Tracker) snapshot(now time.Time) Session {
	if t.state == StateIdle {
		return Session{State: StateIdle, Background: t.background}
	}
	s := t.session
	s.State = t.state
	s.Background = t.background
	s.ElapsedSeconds = t.elapsed(now).Seconds()
	s.TotalDistanceMeters = t.engine.TotalDistance()
	s.Segments = t.engine.Segments()
	s.LastHeartRate = t.heartRate
	s.LastCadence = t.cadence
	s.LastCalorieEstimate = t.calories
	if perKm, ok := t.pace.SecondsPerKm(); ok {
		s.PaceSecondsPerKm = &perKm
	}
	if t.state == StateCompleted {
		s.EndTimestampMillis = t.endedAt.UnixMilli()
	}
	return s
}
