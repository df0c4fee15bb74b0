package tracking

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"backend-runtracker/internal/gpsfilter"
	"backend-runtracker/internal/location"
	"backend-runtracker/internal/pace"
	"backend-runtracker/internal/remote"
	"backend-runtracker/internal/segment"
	"backend-runtracker/internal/sensor"
	"backend-runtracker/internal/shared/geo"
	"backend-runtracker/internal/timeutil"
	"backend-runtracker/internal/upload"

	"github.com/google/uuid"
)

const (
	DefaultPollInterval         = time.Second
	DefaultRemoteUpdateInterval = 30 * time.Second
	DefaultHandOffTimeout       = 30 * time.Second

	enqueueTimeout = 5 * time.Second
	uploadsBuffer  = 16
)

// LocationSource is the OS location layer: a push subscription for the
// foreground and a durable buffer for the background.
type LocationSource interface {
	RequestPermission(ctx context.Context) error
	Subscribe(ctx context.Context, opts location.Options) (<-chan geo.Fix, error)
	Unsubscribe()
	FixesSince(ctx context.Context, cursor int64) ([]geo.Fix, error)
	Trim(ctx context.Context, cursor int64) (int, error)
}

type SessionAPI interface {
	BeginSession(ctx context.Context) (string, error)
	UpdateSession(ctx context.Context, rec remote.SessionRecord) error
	EndSession(ctx context.Context, rec remote.SessionRecord) (remote.SessionRecord, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, rec remote.SessionRecord) (upload.PendingUpload, error)
}

// Archiver keeps a local copy of completed sessions.
type Archiver interface {
	Save(ctx context.Context, s Session) error
}

type Publisher interface {
	BroadcastJSON(topic string, v any)
}

type Config struct {
	Filter                 gpsfilter.Config
	SegmentThresholdMeters float64
	// PollInterval drives elapsed bookkeeping and background polling.
	PollInterval         time.Duration
	RemoteUpdateInterval time.Duration
	PaceWindow           int
	Location             location.Options
	// HandOffTimeout bounds the EndSession call after Stop.
	HandOffTimeout time.Duration
}

func DefaultConfig() Config {
	filter := gpsfilter.DefaultConfig()
	return Config{
		Filter:                 filter,
		SegmentThresholdMeters: segment.DefaultThresholdMeters,
		PollInterval:           DefaultPollInterval,
		RemoteUpdateInterval:   DefaultRemoteUpdateInterval,
		PaceWindow:             pace.DefaultWindow,
		HandOffTimeout:         DefaultHandOffTimeout,
		Location: location.Options{
			MinDistanceMeters: filter.MinDistanceMeters,
			IntervalMillis:    DefaultPollInterval.Milliseconds(),
		},
	}
}

type Option func(*Tracker)

func WithClock(c timeutil.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithArchive(a Archiver) Option {
	return func(t *Tracker) { t.archive = a }
}

func WithPublisher(p Publisher) Option {
	return func(t *Tracker) { t.pub = p }
}

// Tracker is the session state machine. Run owns every field below the
// divider; the exported methods post closures into its inbox.
type Tracker struct {
	cfg      Config
	loc      LocationSource
	api      SessionAPI
	queue    Enqueuer
	resolver *sensor.Resolver
	clock    timeutil.Clock
	archive  Archiver
	pub      Publisher

	inbox   chan func()
	done    chan struct{}
	uploads chan UploadOutcome
	// serializes lifecycle commands that straddle a network call
	cmdMu sync.Mutex

	// -- owned by Run --
	runCtx       context.Context
	state        State
	session      Session
	last         Session
	engine       *segment.Engine
	pace         *pace.Smoother
	fixes        <-chan geo.Fix
	ticker       timeutil.Ticker
	background   bool
	floor        int64
	lastIngested int64
	startedAt    time.Time
	pausedAt     time.Time
	pausedTotal  time.Duration
	endedAt      time.Time
	lastUpdate   time.Time
	heartRate    sensor.Reading
	cadence      sensor.Reading
	calories     sensor.Reading
}

func New(loc LocationSource, api SessionAPI, queue Enqueuer, resolver *sensor.Resolver, cfg Config, opts ...Option) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PaceWindow <= 0 {
		cfg.PaceWindow = pace.DefaultWindow
	}
	if cfg.HandOffTimeout <= 0 {
		cfg.HandOffTimeout = DefaultHandOffTimeout
	}
	t := &Tracker{
		cfg:      cfg,
		loc:      loc,
		api:      api,
		queue:    queue,
		resolver: resolver,
		clock:    timeutil.RealClock{},
		inbox:    make(chan func()),
		done:     make(chan struct{}),
		uploads:  make(chan UploadOutcome, uploadsBuffer),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.resolver == nil {
		t.resolver = sensor.NewResolver(t.clock)
	}
	return t
}

// Run processes commands, live fixes and ticks one at a time until ctx is
// done. It must be called exactly once.
func (t *Tracker) Run(ctx context.Context) error {
	t.runCtx = ctx
	defer close(t.done)

	for {
		var tick <-chan time.Time
		if t.ticker != nil {
			tick = t.ticker.C()
		}

		select {
		case <-ctx.Done():
			t.release()
			return ctx.Err()
		case fn := <-t.inbox:
			fn()
		case fix, ok := <-t.fixes:
			if !ok {
				log.Printf("tracking: location stream closed, continuing without live fixes")
				t.fixes = nil
				continue
			}
			t.ingest(fix)
		case now := <-tick:
			t.tick(now)
		}
	}
}

// Uploads reports the outcome of every session hand-off.
func (t *Tracker) Uploads() <-chan UploadOutcome { return t.uploads }

func (t *Tracker) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case t.inbox <- wrapped:
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Start begins a session. A start while running is ignored and returns the
// running session.
func (t *Tracker) Start(ctx context.Context, opts StartOptions) (Session, error) {
	t.cmdMu.Lock()
	defer t.cmdMu.Unlock()

	var current Session
	if err := t.exec(ctx, func() { current = t.snapshot(t.clock.Now()) }); err != nil {
		return Session{}, err
	}
	switch current.State {
	case StateRunning:
		log.Printf("tracking: start ignored, session %s is already running", current.ID)
		return current, nil
	case StatePaused, StateCompleted:
		return Session{}, fmt.Errorf("%w: start while %s", ErrInvalidTransition, current.State)
	}

	if err := t.loc.RequestPermission(ctx); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	id, err := t.api.BeginSession(ctx)
	if err != nil || id == "" {
		id = LocalIDPrefix + uuid.NewString()
		log.Printf("tracking: begin session failed, tracking locally as %s: %v", id, err)
	}

	t.resolver.Start(sensor.HeartRate)
	t.resolver.Start(sensor.Cadence)
	t.resolver.Start(sensor.Calories)

	var snap Session
	err = t.exec(ctx, func() {
		now := t.clock.Now()
		t.state = StateRunning
		t.session = Session{ID: id, StartTimestampMillis: now.UnixMilli(), ShoeID: opts.ShoeID}
		t.engine = segment.NewEngine(t.cfg.SegmentThresholdMeters)
		t.pace = pace.NewSmoother(t.cfg.PaceWindow)
		t.floor = now.UnixMilli()
		t.lastIngested = 0
		t.startedAt = now
		t.pausedAt = time.Time{}
		t.pausedTotal = 0
		t.endedAt = time.Time{}
		t.lastUpdate = now
		t.heartRate, t.cadence, t.calories = sensor.Absent(), sensor.Absent(), sensor.Absent()
		if !t.background {
			t.subscribe()
		}
		t.ticker = t.clock.NewTicker(t.cfg.PollInterval)
		snap = t.snapshot(now)
	})
	if err != nil {
		t.resolver.StopAll()
		return Session{}, err
	}
	log.Printf("tracking: session %s started", id)
	t.publish(TopicTracking, snap)
	return snap, nil
}

func (t *Tracker) Pause(ctx context.Context) (Session, error) {
	return t.transition(ctx, "pause", func(now time.Time) error {
		if t.state != StateRunning {
			return t.misuse("pause")
		}
		t.catchUp()
		t.unsubscribe()
		t.stopTicker()
		t.pausedAt = now
		t.state = StatePaused
		return nil
	})
}

// Resume re-anchors the engine so ground covered while paused is not
// counted.
func (t *Tracker) Resume(ctx context.Context) (Session, error) {
	return t.transition(ctx, "resume", func(now time.Time) error {
		if t.state != StatePaused {
			return t.misuse("resume")
		}
		t.pausedTotal += now.Sub(t.pausedAt)
		t.pausedAt = time.Time{}
		t.engine.Reanchor()
		t.floor = now.UnixMilli()
		t.state = StateRunning
		if !t.background {
			t.subscribe()
		}
		t.ticker = t.clock.NewTicker(t.cfg.PollInterval)
		return nil
	})
}

// Stop completes the session and returns its final snapshot. The tracker is
// Idle again when Stop returns; the upload continues in the background and
// its result arrives on Uploads.
func (t *Tracker) Stop(ctx context.Context) (Session, error) {
	t.cmdMu.Lock()
	defer t.cmdMu.Unlock()

	snap, err := t.apply(ctx, "stop", func(now time.Time) error {
		if t.state != StateRunning && t.state != StatePaused {
			return t.misuse("stop")
		}
		if t.state == StatePaused {
			t.pausedTotal += now.Sub(t.pausedAt)
			t.pausedAt = time.Time{}
		} else {
			t.catchUp()
		}
		t.unsubscribe()
		t.stopTicker()
		t.trim(now.UnixMilli())

		t.endedAt = now
		t.state = StateCompleted
		t.refreshBiometrics(now)
		t.engine.Finish(t.biometrics())
		t.resolver.StopAll()
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	if t.archive != nil {
		if err := t.archive.Save(ctx, snap); err != nil {
			log.Printf("tracking: archive session %s failed: %v", snap.ID, err)
		}
	}

	var idle Session
	err = t.exec(context.Background(), func() {
		if t.state == StateCompleted && t.session.ID == snap.ID {
			t.last = snap
			t.state = StateIdle
			t.session = Session{}
		}
		idle = t.snapshot(t.clock.Now())
	})
	if err != nil {
		log.Printf("tracking: session %s completed during shutdown", snap.ID)
	} else {
		t.publish(TopicTracking, idle)
	}
	go t.handOff(snap)
	return snap, nil
}

// Snapshot returns the current session, or an idle placeholder.
func (t *Tracker) Snapshot(ctx context.Context) (Session, error) {
	var snap Session
	err := t.exec(ctx, func() { snap = t.snapshot(t.clock.Now()) })
	return snap, err
}

// Trace returns the current session, or the last completed one when idle,
// together with its path.
func (t *Tracker) Trace(ctx context.Context) (Session, []geo.Fix, error) {
	var (
		snap Session
		path []geo.Fix
	)
	err := t.exec(ctx, func() {
		snap = t.snapshot(t.clock.Now())
		if t.state == StateIdle {
			snap = t.last
		}
		if t.engine != nil {
			path = t.engine.Path()
		}
	})
	return snap, path, err
}

func (t *Tracker) transition(ctx context.Context, op string, fn func(now time.Time) error) (Session, error) {
	t.cmdMu.Lock()
	defer t.cmdMu.Unlock()
	return t.apply(ctx, op, fn)
}

// apply runs fn on the loop and publishes the resulting snapshot. Callers
// hold cmdMu.
func (t *Tracker) apply(ctx context.Context, op string, fn func(now time.Time) error) (Session, error) {
	var (
		snap  Session
		opErr error
	)
	err := t.exec(ctx, func() {
		now := t.clock.Now()
		if opErr = fn(now); opErr == nil {
			snap = t.snapshot(now)
		}
	})
	if err != nil {
		return Session{}, err
	}
	if opErr != nil {
		return Session{}, opErr
	}
	log.Printf("tracking: %s session %s -> %s", op, snap.ID, snap.State)
	t.publish(TopicTracking, snap)
	return snap, nil
}

func (t *Tracker) misuse(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, t.state)
}

func (t *Tracker) handOff(snap Session) {
	rec := ToRecord(snap)
	outcome := UploadOutcome{SessionID: snap.ID}

	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.HandOffTimeout)
	_, err := t.api.EndSession(ctx, rec)
	cancel()
	if err == nil {
		outcome.Uploaded = true
	} else {
		outcome.Error = err.Error()
		log.Printf("tracking: end session %s failed, queueing for retry: %v", snap.ID, err)
		// the remote call may have spent the whole hand-off budget
		qctx, qcancel := context.WithTimeout(context.Background(), enqueueTimeout)
		if _, qerr := t.queue.Enqueue(qctx, rec); qerr != nil {
			log.Printf("tracking: queue session %s failed: %v", snap.ID, qerr)
		} else {
			outcome.Queued = true
		}
		qcancel()
	}

	t.publish(TopicUpload, outcome)
	select {
	case t.uploads <- outcome:
	default:
		log.Printf("tracking: upload outcome for %s dropped, no reader", snap.ID)
	}
}

func (t *Tracker) publish(topic string, v any) {
	if t.pub != nil {
		t.pub.BroadcastJSON(topic, v)
	}
}

// release runs on shutdown with a session still open.
func (t *Tracker) release() {
	if t.state != StateRunning && t.state != StatePaused {
		return
	}
	log.Printf("tracking: shutting down with session %s still %s", t.session.ID, t.state)
	t.unsubscribe()
	t.stopTicker()
	t.resolver.StopAll()
}
