// Package preview mirrors a pipeline's wire packets to browser viewers
// over WebSocket, so the stream can be watched without the physical
// display. Viewers are strictly observers: anything they send is ignored.
package preview

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds each WebSocket write toward a viewer.
	writeTimeout = 5 * time.Second

	// sendBuffer is the per-viewer packet backlog. A viewer that falls
	// this far behind is dropped rather than allowed to stall the hub.
	sendBuffer = 64
)

// Hub fans wire packets out to connected viewers. It satisfies
// pipeline.PacketMirror, so it plugs straight into a pipeline sender.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	viewers map[*viewer]struct{}
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The preview endpoint is a same-process debug surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  slog.Default().With("component", "preview"),
		viewers: make(map[*viewer]struct{}),
	}
}

// ServeHTTP upgrades the request and streams packets until the viewer
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	n := len(h.viewers)
	h.mu.Unlock()
	h.logger.Info("viewer connected", "remote", conn.RemoteAddr().String(), "viewers", n)

	go h.writePump(v)
	h.readPump(v)
}

// ViewerCount returns the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// MirrorPacket broadcasts one wire packet. The buffer is copied, so the
// caller may reuse it immediately. Viewers with a full backlog are dropped.
func (h *Hub) MirrorPacket(pkt []byte) {
	h.mu.Lock()
	if len(h.viewers) == 0 {
		h.mu.Unlock()
		return
	}
	buf := append([]byte(nil), pkt...)
	var stalled []*viewer
	for v := range h.viewers {
		select {
		case v.send <- buf:
		default:
			stalled = append(stalled, v)
		}
	}
	for _, v := range stalled {
		delete(h.viewers, v)
		close(v.send)
	}
	h.mu.Unlock()

	for _, v := range stalled {
		h.logger.Warn("dropping stalled viewer", "remote", v.conn.RemoteAddr().String())
	}
}

// writePump drains the viewer's queue onto the socket. It exits when the
// queue closes (viewer dropped) or a write fails.
func (h *Hub) writePump(v *viewer) {
	defer v.conn.Close()
	for pkt := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(websocket.BinaryMessage, pkt); err != nil {
			h.remove(v)
			return
		}
	}
}

// readPump discards inbound messages; its real job is detecting the close.
func (h *Hub) readPump(v *viewer) {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			h.remove(v)
			v.conn.Close()
			return
		}
	}
}

// remove unregisters the viewer if still present and closes its queue.
func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		close(v.send)
	}
	h.mu.Unlock()
}
