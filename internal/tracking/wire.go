package tracking

import (
	"math"

	"backend-runtracker/internal/remote"
	"backend-runtracker/internal/sensor"
)

// ToRecord converts a snapshot to the remote wire format, where 0 stands
// for an absent biometric.
func ToRecord(s Session) remote.SessionRecord {
	rec := remote.SessionRecord{
		SessionID:       s.ID,
		StartedAtMillis: s.StartTimestampMillis,
		EndedAtMillis:   s.EndTimestampMillis,
		DistanceMeters:  int64(math.Round(s.TotalDistanceMeters)),
		DurationSeconds: int64(math.Round(s.ElapsedSeconds)),
		HeartRate:       wireInt(s.LastHeartRate),
		Cadence:         wireInt(s.LastCadence),
		Calories:        wireInt(s.LastCalorieEstimate),
		ShoeID:          s.ShoeID,
		Segments:        make([]remote.SegmentRecord, 0, len(s.Segments)),
	}
	for _, seg := range s.Segments {
		sr := remote.SegmentRecord{
			ID:                   seg.ID,
			OrderIndex:           seg.OrderIndex,
			DistanceMeters:       seg.DistanceMeters,
			DurationSeconds:      seg.DurationSeconds,
			StartTimestampMillis: seg.StartTimestampMillis,
			HeartRate:            wireInt(seg.HeartRate),
			Cadence:              wireInt(seg.Cadence),
			Path:                 make([]remote.PathRecord, 0, len(seg.Path)),
		}
		if seg.Calories != nil {
			sr.Calories = *seg.Calories
		}
		for _, f := range seg.Path {
			sr.Path = append(sr.Path, remote.PathRecord{Lat: f.Latitude, Lng: f.Longitude, TimestampMillis: f.TimestampMillis})
		}
		rec.Segments = append(rec.Segments, sr)
	}
	return rec
}

func wireInt(r sensor.Reading) int {
	return int(math.Round(r.OrZero()))
}
