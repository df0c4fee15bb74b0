package remote

// SessionRecord is the body of endSession/updateSession. Heart rate and
// cadence use 0 when the engine had no reading.
type SessionRecord struct {
	SessionID       string          `json:"session_id"`
	StartedAtMillis int64           `json:"started_at_ms"`
	EndedAtMillis   int64           `json:"ended_at_ms,omitempty"`
	DistanceMeters  int64           `json:"distance_m"`
	DurationSeconds int64           `json:"duration_sec"`
	HeartRate       int             `json:"heart_rate"`
	Cadence         int             `json:"cadence"`
	Calories        int             `json:"calories"`
	ShoeID          string          `json:"shoe_id,omitempty"`
	Segments        []SegmentRecord `json:"segments"`
}

type SegmentRecord struct {
	ID                   int          `json:"id"`
	OrderIndex           int          `json:"order_index"`
	DistanceMeters       float64      `json:"distance_m"`
	DurationSeconds      float64      `json:"duration_sec"`
	StartTimestampMillis int64        `json:"start_timestamp_ms"`
	HeartRate            int          `json:"heart_rate"`
	Cadence              int          `json:"cadence"`
	Calories             float64      `json:"calories"`
	Path                 []PathRecord `json:"path"`
}

type PathRecord struct {
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	TimestampMillis int64   `json:"timestamp_ms"`
}

type beginResponse struct {
	SessionID string `json:"session_id"`
}
