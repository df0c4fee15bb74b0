package sensor

import "sync"

// Sample is one provider callback. A nil Value means the device reported
// nothing usable.
type Sample struct {
	Value *float64
}

// Provider is one biometric source for one channel.
type Provider interface {
	Source() Source
	Channel() Channel
	IsAvailable() bool
	Subscribe(func(Sample)) error
	Unsubscribe()
}

// PushProvider is fed by the host application, which owns the actual
// wearable or health SDK subscription.
type PushProvider struct {
	source  Source
	channel Channel

	mu        sync.Mutex
	available bool
	callback  func(Sample)
}

func NewPushProvider(source Source, channel Channel) *PushProvider {
	return &PushProvider{source: source, channel: channel}
}

func (p *PushProvider) Source() Source   { return p.source }
func (p *PushProvider) Channel() Channel { return p.channel }

func (p *PushProvider) IsAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *PushProvider) SetAvailable(available bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = available
}

func (p *PushProvider) Subscribe(cb func(Sample)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback = cb
	return nil
}

func (p *PushProvider) Unsubscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback = nil
}

// Subscribed reports whether a callback is attached.
func (p *PushProvider) Subscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callback != nil
}

// Push delivers a value to the subscriber, if any. Pushing marks the
// provider available.
func (p *PushProvider) Push(value *float64) {
	p.mu.Lock()
	p.available = true
	cb := p.callback
	p.mu.Unlock()

	if cb != nil {
		cb(Sample{Value: value})
	}
}
