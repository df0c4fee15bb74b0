package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"backend-runtracker/internal/kvstore"
	"backend-runtracker/internal/remote"
	"backend-runtracker/internal/timeutil"
)

const keyPrefix = "pending_upload:"

// PendingUpload is a finished session that has not reached the remote
// service yet. Each one lives under its own key.
type PendingUpload struct {
	SessionID        string          `json:"session_id"`
	Payload          json.RawMessage `json:"payload"`
	EnqueuedAtMillis int64           `json:"enqueued_at_ms"`
	AttemptCount     int             `json:"attempt_count"`
	LastError        string          `json:"last_error,omitempty"`
}

func (p PendingUpload) Record() (remote.SessionRecord, error) {
	var rec remote.SessionRecord
	if err := json.Unmarshal(p.Payload, &rec); err != nil {
		return remote.SessionRecord{}, fmt.Errorf("decode pending upload %s: %w", p.SessionID, err)
	}
	return rec, nil
}

type Queue struct {
	store kvstore.Store
	clock timeutil.Clock
}

func NewQueue(store kvstore.Store, clock timeutil.Clock) *Queue {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Queue{store: store, clock: clock}
}

func key(sessionID string) string { return keyPrefix + sessionID }

// Enqueue stores rec for a later retry with AttemptCount 0.
func (q *Queue) Enqueue(ctx context.Context, rec remote.SessionRecord) (PendingUpload, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return PendingUpload{}, err
	}
	p := PendingUpload{
		SessionID:        rec.SessionID,
		Payload:          payload,
		EnqueuedAtMillis: q.clock.Now().UnixMilli(),
	}
	if err := q.save(ctx, p); err != nil {
		return PendingUpload{}, err
	}
	return p, nil
}

func (q *Queue) save(ctx context.Context, p PendingUpload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := q.store.Put(ctx, key(p.SessionID), b); err != nil {
		return fmt.Errorf("store pending upload %s: %w", p.SessionID, err)
	}
	return nil
}

func (q *Queue) Get(ctx context.Context, sessionID string) (PendingUpload, error) {
	b, err := q.store.Get(ctx, key(sessionID))
	if err != nil {
		return PendingUpload{}, err
	}
	var p PendingUpload
	if err := json.Unmarshal(b, &p); err != nil {
		return PendingUpload{}, fmt.Errorf("decode pending upload %s: %w", sessionID, err)
	}
	return p, nil
}

// Pending lists queued uploads, oldest first. Keys removed between listing
// and reading are skipped.
func (q *Queue) Pending(ctx context.Context) ([]PendingUpload, error) {
	keys, err := q.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]PendingUpload, 0, len(keys))
	for _, k := range keys {
		p, err := q.Get(ctx, strings.TrimPrefix(k, keyPrefix))
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnqueuedAtMillis < out[j].EnqueuedAtMillis
	})
	return out, nil
}

func (q *Queue) Remove(ctx context.Context, sessionID string) error {
	return q.store.Delete(ctx, key(sessionID))
}
