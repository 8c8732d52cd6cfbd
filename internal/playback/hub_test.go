package playback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"aoe4replay/analyzer/internal/config"
	"aoe4replay/analyzer/internal/logging"
	"aoe4replay/analyzer/internal/websockettest"
)

func newTestHub(t *testing.T, cfg config.PlaybackConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, WithLogger(logging.NewTestLogger()))
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func waitForViewers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Viewers() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d viewers, have %d", want, hub.Viewers())
}

func TestHubPlaysFramesToViewers(t *testing.T) {
	hub, server := newTestHub(t, config.PlaybackConfig{PingInterval: time.Second})
	conn, _, err := websocket.DefaultDialer.Dial(websockettest.URL(server.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForViewers(t, hub, 1)

	frames := BuildTimeline(sampleEntities(), 20, TimelineOptions{})
	if err := hub.Play(context.Background(), frames, 1000); err != nil {
		t.Fatalf("Play: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i, want := range frames {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if kind != websocket.BinaryMessage {
			t.Fatalf("expected binary frame, got %d", kind)
		}
		got, err := DecodeFrame(msg)
		if err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if got.Time != want.Time || got.Units != want.Units || got.Buildings != want.Buildings {
			t.Fatalf("frame %d mismatch: got %+v want %+v", i, got, want)
		}
	}
	if stats := hub.Stats(); stats.Delivered != int64(len(frames)) || stats.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestHubRejectsDisallowedOrigin(t *testing.T) {
	_, server := newTestHub(t, config.PlaybackConfig{AllowedOrigins: []string{"https://viewer.example"}})
	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(websockettest.URL(server.URL), header); err == nil {
		t.Fatal("expected origin to be rejected")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
	header.Set("Origin", "https://viewer.example")
	conn, _, err := websocket.DefaultDialer.Dial(websockettest.URL(server.URL), header)
	if err != nil {
		t.Fatalf("expected allowed origin to connect: %v", err)
	}
	conn.Close()
}

func TestHubEnforcesMaxClients(t *testing.T) {
	hub, server := newTestHub(t, config.PlaybackConfig{MaxClients: 1})
	conn, _, err := websocket.DefaultDialer.Dial(websockettest.URL(server.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForViewers(t, hub, 1)

	if _, resp, err := websocket.DefaultDialer.Dial(websockettest.URL(server.URL), nil); err == nil {
		t.Fatal("expected second viewer to be refused")
	} else if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", resp)
	}
}

func TestHubDisconnectsUnresponsiveViewer(t *testing.T) {
	hub, server := newTestHub(t, config.PlaybackConfig{PingInterval: 20 * time.Millisecond})
	conn, _, err := websockettest.DialIgnoringPongs(websockettest.URL(server.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForViewers(t, hub, 1)

	//1.- Keep the client reading so control frames are processed but never answered.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	waitForViewers(t, hub, 0)
}

func TestHubThrottlesOverBudgetViewers(t *testing.T) {
	current := time.Unix(0, 0)
	regulator := NewBandwidthRegulator(10, func() time.Time { return current })
	hub := NewHub(config.PlaybackConfig{}, WithRegulator(regulator), WithLogger(logging.NewTestLogger()))
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial(websockettest.URL(server.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForViewers(t, hub, 1)

	if accepted := hub.Broadcast(make([]byte, 64)); accepted != 0 {
		t.Fatalf("expected oversized frame to be throttled, accepted %d", accepted)
	}
	if stats := hub.Stats(); stats.Throttled != 1 || stats.Viewers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPlayRejectsEmptyTimelineAndHonoursCancel(t *testing.T) {
	hub := NewHub(config.PlaybackConfig{}, WithLogger(logging.NewTestLogger()))
	if err := hub.Play(context.Background(), nil, 1); err != ErrNoFrames {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frames := []Keyframe{{Time: 0}, {Time: 100}}
	if err := hub.Play(ctx, frames, 1); err != context.Canceled {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
