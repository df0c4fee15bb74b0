package gpsfilter

import (
	"errors"
	"fmt"

	"backend-runtracker/internal/shared/geo"
)

type RejectReason int

const (
	ReasonNone RejectReason = iota
	ReasonNoPreviousSample
	ReasonLowAccuracy
	ReasonBelowMinDistance
	ReasonImplausibleSpeed
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonNoPreviousSample:
		return "NO_PREVIOUS_SAMPLE"
	case ReasonLowAccuracy:
		return "LOW_ACCURACY"
	case ReasonBelowMinDistance:
		return "BELOW_MIN_DISTANCE"
	case ReasonImplausibleSpeed:
		return "IMPLAUSIBLE_SPEED"
	}
	return fmt.Sprintf("RejectReason(%d)", int(r))
}

func (r RejectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Config holds the filter thresholds.
type Config struct {
	MaxAccuracyMeters float64 // fixes less accurate than this never add distance
	MinDistanceMeters float64 // jitter floor between accepted fixes
	MaxSpeedKmh       float64 // anything faster is a GPS teleport for a runner
}

func DefaultConfig() Config {
	return Config{
		MaxAccuracyMeters: 25,
		MinDistanceMeters: 3,
		MaxSpeedKmh:       36,
	}
}

func (c Config) Validate() error {
	if c.MaxAccuracyMeters <= 0 {
		return errors.New("max accuracy must be positive")
	}
	if c.MinDistanceMeters < 0 {
		return errors.New("min distance must not be negative")
	}
	if c.MaxSpeedKmh <= 0 {
		return errors.New("max speed must be positive")
	}
	return nil
}

// Decision is the classification of one fix against the previous accepted fix.
type Decision struct {
	AcceptedForPath     bool         `json:"accepted_for_path"`
	AcceptedForDistance bool         `json:"accepted_for_distance"`
	AcceptedForPace     bool         `json:"accepted_for_pace"`
	DistanceMeters      float64      `json:"distance_m"`
	SpeedMps            float64      `json:"speed_mps"`
	RejectReason        RejectReason `json:"reject_reason"`
}

// Evaluate classifies current against previous. It has no side effects, so a
// recorded track replays to the same decisions.
func Evaluate(previous *geo.Fix, current geo.Fix, cfg Config) Decision {
	if previous == nil {
		return Decision{
			AcceptedForPath: true,
			RejectReason:    ReasonNoPreviousSample,
		}
	}

	d := Decision{DistanceMeters: geo.DistanceMeters(*previous, current)}

	elapsedMs := current.TimestampMillis - previous.TimestampMillis
	if elapsedMs > 0 {
		d.SpeedMps = d.DistanceMeters / (float64(elapsedMs) / 1000)
	}

	switch {
	case current.Accuracy != nil && *current.Accuracy > cfg.MaxAccuracyMeters:
		d.RejectReason = ReasonLowAccuracy
	case d.DistanceMeters < cfg.MinDistanceMeters:
		d.RejectReason = ReasonBelowMinDistance
	case d.SpeedMps*3.6 > cfg.MaxSpeedKmh:
		d.RejectReason = ReasonImplausibleSpeed
	}

	// jitter still traces the route; bad accuracy and teleports do not
	d.AcceptedForPath = d.RejectReason == ReasonNone || d.RejectReason == ReasonBelowMinDistance
	d.AcceptedForDistance = d.RejectReason == ReasonNone
	d.AcceptedForPace = d.AcceptedForDistance && elapsedMs > 0
	return d
}
