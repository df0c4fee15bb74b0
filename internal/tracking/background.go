package tracking

import "context"

// EnterBackground swaps the live subscription for polling the durable
// buffer. Queued live fixes are ingested first; nothing else changes.
func (t *Tracker) EnterBackground(ctx context.Context) error {
	return t.exec(ctx, func() {
		if t.background {
			return
		}
		t.background = true
		if t.state == StateRunning {
			t.drain()
			t.unsubscribe()
		}
	})
}

// EnterForeground catches up on the buffer once and resubscribes.
func (t *Tracker) EnterForeground(ctx context.Context) error {
	return t.exec(ctx, func() {
		if !t.background {
			return
		}
		t.background = false
		if t.state == StateRunning {
			t.poll()
			t.subscribe()
		}
	})
}
