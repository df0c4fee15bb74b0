package location

import (
	"context"
	"errors"
	"sync"

	"backend-runtracker/internal/shared/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrNotSubscribed    = errors.New("no active location subscription")
	ErrBackpressure     = errors.New("location subscriber is not keeping up")
)

const subscriptionBuffer = 64

// Options is the subscription configuration passed to the OS layer.
type Options struct {
	MinDistanceMeters float64
	IntervalMillis    int64
}

// HostSource is a location source fed by the host app: live fixes arrive
// through Push, background fixes through the durable Buffer.
type HostSource struct {
	buffer *Buffer

	mu         sync.Mutex
	permission bool
	opts       Options
	fixes      chan geo.Fix
}

func NewHostSource(buffer *Buffer) *HostSource {
	return &HostSource{buffer: buffer}
}

func (s *HostSource) SetPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = granted
}

func (s *HostSource) RequestPermission(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.permission {
		return ErrPermissionDenied
	}
	return nil
}

func (s *HostSource) Subscribe(_ context.Context, opts Options) (<-chan geo.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.permission {
		return nil, ErrPermissionDenied
	}
	s.opts = opts
	s.fixes = make(chan geo.Fix, subscriptionBuffer)
	return s.fixes, nil
}

// Unsubscribe detaches the channel without closing it, so a concurrent Push
// can never hit a closed channel.
func (s *HostSource) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixes = nil
}

func (s *HostSource) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixes != nil
}

// Push hands a live fix to the subscriber without blocking.
func (s *HostSource) Push(fix geo.Fix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fixes == nil {
		return ErrNotSubscribed
	}
	select {
	case s.fixes <- fix:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *HostSource) Buffer() *Buffer { return s.buffer }

func (s *HostSource) FixesSince(ctx context.Context, cursor int64) ([]geo.Fix, error) {
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.FixesSince(ctx, cursor)
}

// Trim drops buffered fixes at or before cursor.
func (s *HostSource) Trim(ctx context.Context, cursor int64) (int, error) {
	if s.buffer == nil {
		return 0, nil
	}
	return s.buffer.Trim(ctx, cursor)
}
