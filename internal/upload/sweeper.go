package upload

import (
	"context"
	"errors"
	"log"
	"time"

	"backend-runtracker/internal/kvstore"
	"backend-runtracker/internal/remote"
	"backend-runtracker/internal/timeutil"
)

const (
	DefaultMaxAttempts = 10
	DefaultInterval    = time.Minute
)

// Uploader is the part of the remote session API the sweeper needs.
type Uploader interface {
	EndSession(ctx context.Context, rec remote.SessionRecord) (remote.SessionRecord, error)
}

type SweepResult struct {
	Delivered int
	Failed    int
	Abandoned int
}

// Sweeper retries pending uploads. It only touches one record key at a time,
// so the engine can keep enqueueing during a sweep.
type Sweeper struct {
	queue       *Queue
	api         Uploader
	clock       timeutil.Clock
	maxAttempts int
	interval    time.Duration
}

func NewSweeper(queue *Queue, api Uploader, clock timeutil.Clock, maxAttempts int, interval time.Duration) *Sweeper {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{queue: queue, api: api, clock: clock, maxAttempts: maxAttempts, interval: interval}
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return res, err
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rec, err := p.Record()
		if err != nil {
			log.Printf("upload %s: abandoning unreadable payload: %v", p.SessionID, err)
			if err := s.queue.Remove(ctx, p.SessionID); err != nil {
				log.Printf("upload %s: remove failed: %v", p.SessionID, err)
			}
			res.Abandoned++
			continue
		}

		if _, err := s.api.EndSession(ctx, rec); err != nil {
			p.LastError = err.Error()
		} else {
			if err := s.queue.Remove(ctx, p.SessionID); err != nil {
				log.Printf("upload %s: delivered but remove failed: %v", p.SessionID, err)
			}
			res.Delivered++
			continue
		}

		p.AttemptCount++
		if p.AttemptCount >= s.maxAttempts {
			log.Printf("upload %s: abandoned after %d attempts: %s", p.SessionID, p.AttemptCount, p.LastError)
			if err := s.queue.Remove(ctx, p.SessionID); err != nil {
				log.Printf("upload %s: remove failed: %v", p.SessionID, err)
			}
			res.Abandoned++
			continue
		}

		// re-enqueued by the engine meanwhile: leave the newer record alone
		current, err := s.queue.Get(ctx, p.SessionID)
		if errors.Is(err, kvstore.ErrNotFound) || (err == nil && current.EnqueuedAtMillis != p.EnqueuedAtMillis) {
			res.Failed++
			continue
		}
		if err := s.queue.save(ctx, p); err != nil {
			log.Printf("upload %s: saving attempt count failed: %v", p.SessionID, err)
		}
		res.Failed++
	}
	return res, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			res, err := s.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("upload sweep failed: %v", err)
				continue
			}
			if res.Delivered+res.Failed+res.Abandoned > 0 {
				log.Printf("upload sweep: delivered=%d failed=%d abandoned=%d", res.Delivered, res.Failed, res.Abandoned)
			}
		}
	}
}
