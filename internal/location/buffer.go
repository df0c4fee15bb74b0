package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"backend-runtracker/internal/kvstore"
	"backend-runtracker/internal/shared/geo"
)

const bufferPrefix = "location_buffer:"

// Buffer is the durable fix log written while the host is in the background.
// Keys carry the zero-padded timestamp so lexical order is time order.
type Buffer struct {
	store kvstore.Store
	mu    sync.Mutex
}

func NewBuffer(store kvstore.Store) *Buffer {
	return &Buffer{store: store}
}

func bufferKey(ts int64) string {
	return fmt.Sprintf("%s%016d", bufferPrefix, ts)
}

func keyTimestamp(k string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(k, bufferPrefix), 10, 64)
}

func (b *Buffer) Append(ctx context.Context, fix geo.Fix) error {
	if fix.TimestampMillis < 0 {
		return errors.New("fix timestamp must not be negative")
	}
	payload, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Put(ctx, bufferKey(fix.TimestampMillis), payload)
}

// FixesSince returns buffered fixes newer than cursor, oldest first.
func (b *Buffer) FixesSince(ctx context.Context, cursor int64) ([]geo.Fix, error) {
	keys, err := b.store.Keys(ctx, bufferPrefix)
	if err != nil {
		return nil, err
	}
	var out []geo.Fix
	for _, k := range keys {
		ts, err := keyTimestamp(k)
		if err != nil || ts <= cursor {
			continue
		}
		raw, err := b.store.Get(ctx, k)
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var fix geo.Fix
		if err := json.Unmarshal(raw, &fix); err != nil {
			return nil, fmt.Errorf("decode buffered fix %s: %w", k, err)
		}
		out = append(out, fix)
	}
	return out, nil
}

// Trim drops fixes at or before the cursor.
func (b *Buffer) Trim(ctx context.Context, cursor int64) (int, error) {
	keys, err := b.store.Keys(ctx, bufferPrefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		ts, err := keyTimestamp(k)
		if err != nil || ts > cursor {
			continue
		}
		if err := b.store.Delete(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
