package sensor

import (
	"log"
	"sort"
	"sync"
	"time"

	"backend-runtracker/internal/timeutil"
)

const (
	DefaultStaleAfter = 5 * time.Second
	DefaultWeightKg   = 70.0

	runningMET        = 9.8
	referenceHeartBPM = 150.0
)

type latestSample struct {
	value *float64
	at    time.Time
}

// Resolver picks, per channel, the first provider in priority order
// (wearable, then phone-native) whose latest sample is present and fresh.
type Resolver struct {
	clock      timeutil.Clock
	staleAfter time.Duration
	weightKg   float64

	mu         sync.Mutex
	providers  map[Channel][]Provider
	latest     map[Provider]latestSample
	subscribed map[Provider]bool
	started    map[Channel]bool
}

type ResolverOption func(*Resolver)

func WithStaleAfter(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

func WithBodyWeight(kg float64) ResolverOption {
	return func(r *Resolver) {
		if kg > 0 {
			r.weightKg = kg
		}
	}
}

func NewResolver(clock timeutil.Clock, opts ...ResolverOption) *Resolver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r := &Resolver{
		clock:      clock,
		staleAfter: DefaultStaleAfter,
		weightKg:   DefaultWeightKg,
		providers:  map[Channel][]Provider{},
		latest:     map[Provider]latestSample{},
		subscribed: map[Provider]bool{},
		started:    map[Channel]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func priority(s Source) int {
	switch s {
	case SourceWearable:
		return 0
	case SourcePhoneNative:
		return 1
	}
	return 2
}

// Register adds a provider. Registering into a started channel subscribes it
// right away.
func (r *Resolver) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := p.Channel()
	list := append(r.providers[ch], p)
	sort.SliceStable(list, func(i, j int) bool {
		return priority(list[i].Source()) < priority(list[j].Source())
	})
	r.providers[ch] = list

	if r.started[ch] {
		r.subscribeLocked(p)
	}
}

// Start is idempotent.
func (r *Resolver) Start(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started[ch] {
		return
	}
	r.started[ch] = true
	for _, p := range r.providers[ch] {
		r.subscribeLocked(p)
	}
}

func (r *Resolver) subscribeLocked(p Provider) {
	if r.subscribed[p] {
		return
	}
	err := p.Subscribe(func(s Sample) {
		r.record(p, s)
	})
	if err != nil {
		log.Printf("sensor %s/%s subscribe failed: %v", p.Source(), p.Channel(), err)
		return
	}
	r.subscribed[p] = true
}

func (r *Resolver) record(p Provider, s Sample) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.subscribed[p] {
		return
	}
	var v *float64
	if s.Value != nil {
		copied := *s.Value
		v = &copied
	}
	r.latest[p] = latestSample{value: v, at: now}
}

// Stop releases every subscription on the channel, including providers that
// never produced a value.
func (r *Resolver) Stop(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers[ch] {
		if r.subscribed[p] {
			p.Unsubscribe()
			delete(r.subscribed, p)
		}
		delete(r.latest, p)
	}
	delete(r.started, ch)
}

// StopAll stops every started channel.
func (r *Resolver) StopAll() {
	r.mu.Lock()
	var chans []Channel
	for ch := range r.started {
		chans = append(chans, ch)
	}
	r.mu.Unlock()
	for _, ch := range chans {
		r.Stop(ch)
	}
}

func (r *Resolver) Started(ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started[ch]
}

// Resolve never makes up a value: with no fresh provider it returns Absent.
func (r *Resolver) Resolve(ch Channel) Reading {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.providers[ch] {
		if !p.IsAvailable() {
			continue
		}
		s, ok := r.latest[p]
		if !ok || s.value == nil {
			continue
		}
		if now.Sub(s.at) >= r.staleAfter {
			continue
		}
		return Present(*s.value, p.Source())
	}
	return Absent()
}

// Calories resolves the calorie channel like any other and falls back to the
// MET estimate, so it always yields a value.
func (r *Resolver) Calories(elapsed time.Duration) Reading {
	if reading := r.Resolve(Calories); reading.IsPresent() {
		return reading
	}
	return Present(EstimateCalories(r.weightKg, elapsed, r.Resolve(HeartRate)), SourceEstimate)
}

// EstimateCalories is MET(9.8) x weight x hours. With a heart rate the MET is
// scaled by hr/150, clamped to [0.6, 1.4].
func EstimateCalories(weightKg float64, elapsed time.Duration, hr Reading) float64 {
	if elapsed <= 0 || weightKg <= 0 {
		return 0
	}
	met := runningMET
	if bpm, ok := hr.Value(); ok && bpm > 0 {
		factor := bpm / referenceHeartBPM
		if factor < 0.6 {
			factor = 0.6
		}
		if factor > 1.4 {
			factor = 1.4
		}
		met *= factor
	}
	return met * weightKg * elapsed.Hours()
}
