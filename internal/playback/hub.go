package playback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"aoe4replay/analyzer/internal/config"
	"aoe4replay/analyzer/internal/logging"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

// ErrNoFrames is returned by Play when the timeline is empty.
var ErrNoFrames = errors.New("playback: no frames to play")

type viewer struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// HubStats reports delivery counters.
type HubStats struct {
	Viewers   int
	Delivered int64
	Throttled int64
	Dropped   int64
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithRegulator replaces the default per-viewer bandwidth regulator.
func WithRegulator(regulator *BandwidthRegulator) HubOption {
	return func(h *Hub) {
		if h == nil || regulator == nil {
			return
		}
		h.regulator = regulator
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) HubOption {
	return func(h *Hub) {
		if h == nil || logger == nil {
			return
		}
		h.log = logger
	}
}

// Hub fans encoded keyframes out to connected websocket viewers.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	maxClients   int
	regulator    *BandwidthRegulator
	log          *logging.Logger

	lock    sync.Mutex
	viewers map[*viewer]bool
	seq     int64

	delivered atomic.Int64
	throttled atomic.Int64
	dropped   atomic.Int64
}

// NewHub builds a hub from the playback configuration.
func NewHub(cfg config.PlaybackConfig, opts ...HubOption) *Hub {
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = config.DefaultPingInterval
	}
	h := &Hub{
		pingInterval: ping,
		maxClients:   cfg.MaxClients,
		regulator:    NewBandwidthRegulator(DefaultViewerBytesPerSecond, nil),
		log:          logging.L(),
		viewers:      make(map[*viewer]bool),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(cfg.AllowedOrigins)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimSpace(origin))] = true
	}
	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" || set["*"] {
			return true
		}
		return set[origin]
	}
}

// ServeHTTP upgrades the request and registers the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	//1.- Refuse new viewers once the hub is full, before paying for the upgrade.
	if h.maxClients > 0 && h.Viewers() >= h.maxClients {
		http.Error(w, "too many viewers", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logging.Error(err), logging.String("remote", r.RemoteAddr))
		return
	}

	h.lock.Lock()
	h.seq++
	v := &viewer{conn: conn, send: make(chan []byte, sendBuffer), id: fmt.Sprintf("%s#%d", r.RemoteAddr, h.seq)}
	h.viewers[v] = true
	h.lock.Unlock()
	h.log.Info("viewer connected", logging.String("viewer", v.id))

	//2.- The reader only exists to observe pongs and the close handshake.
	go h.readLoop(v)
	go h.writeLoop(v)
}

func (h *Hub) readLoop(v *viewer) {
	defer h.remove(v)
	wait := 2 * h.pingInterval
	_ = v.conn.SetReadDeadline(time.Now().Add(wait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("viewer read ended", logging.String("viewer", v.id), logging.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := v.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				h.remove(v)
				return
			}
		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(v)
				return
			}
		}
	}
}

// remove unregisters v once; closing send tells the writer to finish.
func (h *Hub) remove(v *viewer) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if !h.viewers[v] {
		return
	}
	delete(h.viewers, v)
	close(v.send)
	h.regulator.Forget(v.id)
	h.log.Info("viewer disconnected", logging.String("viewer", v.id))
}

// Broadcast queues msg for every viewer and returns how many accepted it.
// Viewers over their bandwidth budget skip the frame; viewers with a full queue are dropped.
func (h *Hub) Broadcast(msg []byte) int {
	h.lock.Lock()
	defer h.lock.Unlock()
	accepted := 0
	for v := range h.viewers {
		if !h.regulator.Allow(v.id, len(msg)) {
			h.throttled.Add(1)
			continue
		}
		select {
		case v.send <- msg:
			accepted++
			h.delivered.Add(1)
		default:
			close(v.send)
			delete(h.viewers, v)
			h.regulator.Forget(v.id)
			h.dropped.Add(1)
			h.log.Warn("dropping slow viewer", logging.String("viewer", v.id))
		}
	}
	return accepted
}

// Play broadcasts frames in order, pacing them by their match time divided by speed.
// A non-positive speed sends every frame without waiting.
func (h *Hub) Play(ctx context.Context, frames []Keyframe, speed float64) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C
	for i, frame := range frames {
		if i > 0 && speed > 0 {
			gap := (frame.Time - frames[i-1].Time) / speed
			if gap > 0 {
				timer.Reset(time.Duration(gap * float64(time.Second)))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		h.Broadcast(EncodeFrame(frame))
	}
	h.log.Info("playback finished", logging.Int("frames", len(frames)), logging.Int("viewers", h.Viewers()))
	return nil
}

// Viewers reports the number of connected viewers.
func (h *Hub) Viewers() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.viewers)
}

// Stats snapshots the delivery counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Viewers:   h.Viewers(),
		Delivered: h.delivered.Load(),
		Throttled: h.throttled.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for v := range h.viewers {
		delete(h.viewers, v)
		close(v.send)
		h.regulator.Forget(v.id)
	}
}

// Regulator exposes the per-viewer bandwidth regulator for metrics.
func (h *Hub) Regulator() *BandwidthRegulator {
	return h.regulator
}
