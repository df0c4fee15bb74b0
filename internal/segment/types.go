package segment

import (
	"backend-runtracker/internal/sensor"
	"backend-runtracker/internal/shared/geo"
)

const DefaultThresholdMeters = 10.0

// Segment is a closed slice of the run. It is never modified after the
// engine hands it out.
type Segment struct {
	ID                   int            `json:"id"`
	OrderIndex           int            `json:"order_index"`
	DistanceMeters       float64        `json:"distance_m"`
	DurationSeconds      float64        `json:"duration_sec"`
	StartTimestampMillis int64          `json:"start_timestamp_ms"`
	HeartRate            sensor.Reading `json:"heart_rate"`
	Cadence              sensor.Reading `json:"cadence"`
	Calories             *float64       `json:"calories,omitempty"`
	Path                 []geo.Fix      `json:"path"`
}

// Biometrics is the resolver output in effect when a segment closes.
// Calories is the cumulative session estimate.
type Biometrics struct {
	HeartRate sensor.Reading
	Cadence   sensor.Reading
	Calories  sensor.Reading
}
