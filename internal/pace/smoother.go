package pace

import (
	"sync"

	"github.com/montanaflynn/stats"
)

const DefaultWindow = 5

// Smoother averages the last few pace-accepted speeds.
type Smoother struct {
	mu     sync.Mutex
	window int
	speeds stats.Float64Data
}

func NewSmoother(window int) *Smoother {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Smoother{window: window}
}

func (s *Smoother) Add(speedMps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speeds = append(s.speeds, speedMps)
	if len(s.speeds) > s.window {
		s.speeds = s.speeds[len(s.speeds)-s.window:]
	}
}

func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speeds = nil
}

// SpeedMps is the mean of the window; false until a sample arrives.
func (s *Smoother) SpeedMps() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.speeds) == 0 {
		return 0, false
	}
	mean, err := stats.Mean(s.speeds)
	if err != nil {
		return 0, false
	}
	return mean, true
}

// SecondsPerKm converts the smoothed speed into running pace.
func (s *Smoother) SecondsPerKm() (float64, bool) {
	speed, ok := s.SpeedMps()
	if !ok || speed <= 0 {
		return 0, false
	}
	return 1000 / speed, true
}
