package pace

import (
	"math"
	"testing"
)

func TestSmootherEmpty(t *testing.T) {
	s := NewSmoother(3)
	if _, ok := s.SecondsPerKm(); ok {
		t.Fatalf("expected no pace without samples")
	}
}

func TestSmootherWindow(t *testing.T) {
	s := NewSmoother(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		s.Add(v)
	}
	speed, ok := s.SpeedMps()
	if !ok || speed != 4 {
		t.Fatalf("expected mean of last three (4), got %v", speed)
	}
	pace, ok := s.SecondsPerKm()
	if !ok || math.Abs(pace-250) > 1e-9 {
		t.Fatalf("expected 250 s/km, got %v", pace)
	}
}

func TestSmootherZeroSpeed(t *testing.T) {
	s := NewSmoother(0)
	s.Add(0)
	if _, ok := s.SecondsPerKm(); ok {
		t.Fatalf("standing still has no pace")
	}
	s.Reset()
	if _, ok := s.SpeedMps(); ok {
		t.Fatalf("expected reset to clear samples")
	}
}
