package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend-runtracker/internal/config"
	"backend-runtracker/internal/kvstore"
	"backend-runtracker/internal/tracking"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(config.Config{ServerPort: ":0", StoreBackend: config.StoreMemory}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.Stream.Close()
	})
	return s
}

func post(t *testing.T, s *Server, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App.Test(req, 5000)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestHealthRoute(t *testing.T) {
	s := NewServer(config.Config{ServerPort: ":0"}, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
	if s.Archive != nil {
		t.Fatalf("archive must stay off without postgres")
	}
}

func TestStoreBackendSelection(t *testing.T) {
	if _, ok := newStore(config.Config{StoreBackend: config.StoreMemory}, nil, nil).(*kvstore.Memory); !ok {
		t.Fatalf("expected memory store")
	}
	if _, ok := newStore(config.Config{StoreBackend: config.StorePostgres}, nil, nil).(*kvstore.Memory); !ok {
		t.Fatalf("expected memory fallback without postgres")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if _, ok := newStore(config.Config{StoreBackend: config.StoreRedis}, nil, client).(*kvstore.Redis); !ok {
		t.Fatalf("expected redis store")
	}
}

func TestTrackingConfigMapping(t *testing.T) {
	tc := trackingConfig(config.Config{
		MaxAccuracyMeters:        20,
		MinDistanceMeters:        4,
		MaxSpeedKmh:              30,
		SegmentThresholdMeters:   500,
		BackgroundPollIntervalMs: 2000,
		RemoteUpdateIntervalMs:   10000,
		PaceWindow:               7,
	})
	if tc.Filter.MaxAccuracyMeters != 20 || tc.Filter.MinDistanceMeters != 4 || tc.Filter.MaxSpeedKmh != 30 {
		t.Fatalf("unexpected filter config %+v", tc.Filter)
	}
	if tc.SegmentThresholdMeters != 500 || tc.PaceWindow != 7 {
		t.Fatalf("unexpected tracking config %+v", tc)
	}
	if tc.PollInterval != 2*time.Second || tc.RemoteUpdateInterval != 10*time.Second {
		t.Fatalf("unexpected intervals %v %v", tc.PollInterval, tc.RemoteUpdateInterval)
	}
	if tc.Location.IntervalMillis != 2000 || tc.Location.MinDistanceMeters != 4 {
		t.Fatalf("unexpected location options %+v", tc.Location)
	}

	if def := trackingConfig(config.Config{}); def != tracking.DefaultConfig() {
		t.Fatalf("zero config must keep defaults, got %+v", def)
	}
}

func TestOfflineSessionEndsInUploadQueue(t *testing.T) {
	s := newTestServer(t)

	post(t, s, "/location/permission", `{"granted":true}`)
	post(t, s, "/sensors/wearable/heart_rate", `{"value":150}`)

	resp := post(t, s, "/tracking/session/start", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", resp.StatusCode)
	}
	var started tracking.Session
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// no remote service is configured, so the session is local
	if !started.LocalOnly() || started.State != tracking.StateRunning {
		t.Fatalf("unexpected session %+v", started)
	}

	if resp := post(t, s, "/tracking/session/stop", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on stop, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if p, err := s.Queue.Get(context.Background(), started.ID); err == nil {
			if p.SessionID != started.ID {
				t.Fatalf("unexpected pending upload %+v", p)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never reached the upload queue")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
