// Package archive keeps completed sessions in postgres so they survive
// restarts independently of the remote upload.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"backend-runtracker/internal/db"
	"backend-runtracker/internal/shared/geo"
	"backend-runtracker/internal/tracking"

	"github.com/jackc/pgx/v5"
)

type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// Summary is the archived session row. Nil biometrics were absent.
type Summary struct {
	SessionID       string     `json:"session_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DistanceM       float64    `json:"distance_m"`
	DurationSec     int64      `json:"duration_sec"`
	HeartRate       *float64   `json:"heart_rate,omitempty"`
	Cadence         *float64   `json:"cadence,omitempty"`
	Calories        *float64   `json:"calories,omitempty"`
	ShoeID          *string    `json:"shoe_id,omitempty"`
	Status          string     `json:"status"`
	SegmentCount    int        `json:"segment_count"`
	AverageSpeedMps float64    `json:"average_speed_mps"`
}

type Segment struct {
	ID          int       `json:"id"`
	OrderIndex  int       `json:"order_index"`
	DistanceM   float64   `json:"distance_m"`
	DurationSec float64   `json:"duration_sec"`
	StartedAt   time.Time `json:"started_at"`
	HeartRate   *float64  `json:"heart_rate,omitempty"`
	Cadence     *float64  `json:"cadence,omitempty"`
	Calories    *float64  `json:"calories,omitempty"`
	Path        []geo.Fix `json:"path"`
}

// Save upserts the session row and inserts its segments in one
// transaction. Segments are immutable, so rows that already exist are left
// alone and a retried Save is harmless.
func (s *Store) Save(ctx context.Context, session tracking.Session) error {
	var endedAt *time.Time
	if session.EndTimestampMillis > 0 {
		t := time.UnixMilli(session.EndTimestampMillis).UTC()
		endedAt = &t
	}
	var shoeID *string
	if session.ShoeID != "" {
		shoeID = &session.ShoeID
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return saveSession(ctx, tx, session, endedAt, shoeID)
	})
}

func saveSession(ctx context.Context, tx pgx.Tx, session tracking.Session, endedAt *time.Time, shoeID *string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO running_sessions (id, started_at, ended_at, total_distance_m, elapsed_sec, last_heart_rate, last_cadence, calories, shoe_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			total_distance_m = EXCLUDED.total_distance_m,
			elapsed_sec = EXCLUDED.elapsed_sec,
			last_heart_rate = EXCLUDED.last_heart_rate,
			last_cadence = EXCLUDED.last_cadence,
			calories = EXCLUDED.calories,
			status = EXCLUDED.status
	`, session.ID, time.UnixMilli(session.StartTimestampMillis).UTC(), endedAt,
		session.TotalDistanceMeters, int64(math.Round(session.ElapsedSeconds)),
		session.LastHeartRate.Ptr(), session.LastCadence.Ptr(), session.LastCalorieEstimate.Ptr(),
		shoeID, string(session.State))
	if err != nil {
		return fmt.Errorf("archive session %s: %w", session.ID, err)
	}

	for _, seg := range session.Segments {
		path, err := json.Marshal(seg.Path)
		if err != nil {
			return fmt.Errorf("archive segment %d path: %w", seg.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO session_segments (session_id, segment_id, order_index, distance_m, duration_sec, started_at, heart_rate, cadence, calories, path)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (session_id, segment_id) DO NOTHING
		`, session.ID, seg.ID, seg.OrderIndex, seg.DistanceMeters, seg.DurationSeconds,
			time.UnixMilli(seg.StartTimestampMillis).UTC(),
			seg.HeartRate.Ptr(), seg.Cadence.Ptr(), seg.Calories, path)
		if err != nil {
			return fmt.Errorf("archive segment %d of %s: %w", seg.ID, session.ID, err)
		}
	}
	return nil
}

func (s *Store) Summary(ctx context.Context, sessionID string) (Summary, error) {
	var sum Summary
	row := s.db.QueryRow(ctx, `
		SELECT id, started_at, ended_at, total_distance_m, elapsed_sec, last_heart_rate, last_cadence, calories, shoe_id, status
		FROM running_sessions WHERE id=$1
	`, sessionID)
	if err := row.Scan(&sum.SessionID, &sum.StartedAt, &sum.EndedAt, &sum.DistanceM, &sum.DurationSec,
		&sum.HeartRate, &sum.Cadence, &sum.Calories, &sum.ShoeID, &sum.Status); err != nil {
		return Summary{}, err
	}

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM session_segments WHERE session_id=$1`, sessionID).Scan(&sum.SegmentCount); err != nil {
		return Summary{}, err
	}
	if sum.DurationSec > 0 {
		sum.AverageSpeedMps = sum.DistanceM / float64(sum.DurationSec)
	}
	return sum, nil
}

func (s *Store) Segments(ctx context.Context, sessionID string) ([]Segment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT segment_id, order_index, distance_m, duration_sec, started_at, heart_rate, cadence, calories, path
		FROM session_segments WHERE session_id=$1
		ORDER BY order_index
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var (
			seg  Segment
			path []byte
		)
		if err := rows.Scan(&seg.ID, &seg.OrderIndex, &seg.DistanceM, &seg.DurationSec, &seg.StartedAt,
			&seg.HeartRate, &seg.Cadence, &seg.Calories, &path); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(path, &seg.Path); err != nil {
			return nil, fmt.Errorf("segment %d path: %w", seg.ID, err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}
