package tracking

import (
	"errors"
	"strings"

	"backend-runtracker/internal/gpsfilter"
	"backend-runtracker/internal/segment"
	"backend-runtracker/internal/sensor"
	"backend-runtracker/internal/shared/geo"
)

var (
	ErrPermissionDenied  = errors.New("tracking: location permission denied")
	ErrInvalidTransition = errors.New("tracking: invalid state transition")
	ErrClosed            = errors.New("tracking: tracker loop is not running")
)

type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StatePaused    State = "PAUSED"
	StateCompleted State = "COMPLETED"
)

// Hub topics the tracker publishes on.
const (
	TopicTracking = "tracking"
	TopicLocation = "location"
	TopicPace     = "pace"
	TopicUpload   = "upload"
)

// LocalIDPrefix marks a session id generated while the remote API was
// unreachable.
const LocalIDPrefix = "local-"

// Session is a point-in-time copy of the run. Biometrics are either present
// with a source or absent.
type Session struct {
	ID                   string            `json:"id"`
	StartTimestampMillis int64             `json:"start_timestamp_ms"`
	EndTimestampMillis   int64             `json:"end_timestamp_ms,omitempty"`
	State                State             `json:"state"`
	TotalDistanceMeters  float64           `json:"total_distance_m"`
	ElapsedSeconds       float64           `json:"elapsed_sec"`
	Segments             []segment.Segment `json:"segments"`
	LastHeartRate        sensor.Reading    `json:"last_heart_rate"`
	LastCadence          sensor.Reading    `json:"last_cadence"`
	LastCalorieEstimate  sensor.Reading    `json:"last_calorie_estimate"`
	ShoeID               string            `json:"shoe_id,omitempty"`
	Background           bool              `json:"background"`
	PaceSecondsPerKm     *float64          `json:"pace_sec_per_km,omitempty"`
}

// LocalOnly reports whether the session never obtained a remote id.
func (s Session) LocalOnly() bool {
	return strings.HasPrefix(s.ID, LocalIDPrefix)
}

type StartOptions struct {
	ShoeID string `json:"shoe_id"`
}

// LocationEvent is published for every fix the tracker ingests.
type LocationEvent struct {
	SessionID string             `json:"session_id"`
	Fix       geo.Fix            `json:"fix"`
	Decision  gpsfilter.Decision `json:"decision"`
}

type PaceEvent struct {
	SessionID    string  `json:"session_id"`
	SpeedMps     float64 `json:"speed_mps"`
	SecondsPerKm float64 `json:"sec_per_km"`
}

// UploadOutcome reports how the completed session left the device.
type UploadOutcome struct {
	SessionID string `json:"session_id"`
	Uploaded  bool   `json:"uploaded"`
	Queued    bool   `json:"queued"`
	Error     string `json:"error,omitempty"`
}
