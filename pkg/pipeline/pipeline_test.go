package pipeline

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
	"github.com/pixelcast-dev/pixelcast/pkg/protocol"
)

// solidSource emits frames filled with one switchable color.
type solidSource struct {
	mu      sync.Mutex
	w, h    int
	r, g, b uint8
}

func (s *solidSource) setColor(r, g, b uint8) {
	s.mu.Lock()
	s.r, s.g, s.b = r, g, b
	s.mu.Unlock()
}

func (s *solidSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := frame.New(s.w, s.h)
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			f.SetRGB(x, y, s.r, s.g, s.b)
		}
	}
	return f, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Name = "test"
	cfg.Width = 32
	cfg.Height = 24
	cfg.MaxChunkData = 512
	cfg.GenerationInterval = 2 * time.Millisecond
	cfg.Dither = false
	return cfg
}

// startPipeline serves p on an ephemeral port and returns the dial address.
func startPipeline(t *testing.T, ctx context.Context, p *Pipeline) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, l) }()
	t.Cleanup(func() {
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return l.Addr().String()
}

func readPacket(t *testing.T, conn net.Conn) (protocol.Header, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	h, err := protocol.ReadHeader(conn)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	payload := make([]byte, h.DataLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	return h, payload
}

// readFullFrame reads packets until they cover exactly width*height pixels.
func readFullFrame(t *testing.T, conn net.Conn, cfg Config) {
	t.Helper()
	covered := 0
	for covered < cfg.Width*cfg.Height {
		h, _ := readPacket(t, conn)
		if !h.WellFormed() {
			t.Fatalf("packet %+v is not well formed", h)
		}
		if int(h.DataLen) > cfg.MaxChunkData {
			t.Fatalf("packet carries %d bytes, above the %d limit", h.DataLen, cfg.MaxChunkData)
		}
		if int(h.X)+int(h.W) > cfg.Width || int(h.Y)+int(h.H) > cfg.Height {
			t.Fatalf("packet %+v exceeds the %dx%d display", h, cfg.Width, cfg.Height)
		}
		covered += int(h.W) * int(h.H)
	}
	if covered != cfg.Width*cfg.Height {
		t.Fatalf("initial packets cover %d pixels, want %d", covered, cfg.Width*cfg.Height)
	}
}

func TestPipelineStreamsFullFrameThenDiffs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &solidSource{w: 32, h: 24, r: 200, g: 30, b: 90}
	cfg := testConfig()
	p := New(cfg, src, nil, nil)
	addr := startPipeline(t, ctx, p)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// A fresh session always begins with a full-frame update.
	readFullFrame(t, conn, cfg)

	// Identical frames produce no traffic; a color change produces more.
	src.setColor(10, 220, 40)
	h, payload := readPacket(t, conn)
	if h.Degenerate() {
		t.Fatalf("change produced degenerate packet %+v", h)
	}
	want := frame.PackRGB565(10, 220, 40)
	got := uint16(payload[0])<<8 | uint16(payload[1])
	if got != want {
		t.Errorf("first pixel after change = %#04x, want %#04x", got, want)
	}
}

func TestPipelineResetsPerSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &solidSource{w: 32, h: 24, r: 5, g: 5, b: 5}
	cfg := testConfig()
	p := New(cfg, src, nil, nil)
	addr := startPipeline(t, ctx, p)

	for session := 0; session < 2; session++ {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("session %d dial: %v", session, err)
		}
		// Each connection must start with full-frame coverage even though
		// the source never changed.
		readFullFrame(t, conn, cfg)
		conn.Close()
	}
}

func TestPipelineSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &solidSource{w: 64, h: 64, r: 1, g: 2, b: 3}
	cfg := testConfig()
	p := New(cfg, src, nil, nil)

	if p.Snapshot() != nil {
		t.Error("snapshot before any frame, want nil")
	}

	addr := startPipeline(t, ctx, p)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readFullFrame(t, conn, cfg)

	snap := p.Snapshot()
	if snap == nil {
		t.Fatal("snapshot after first frame is nil")
	}
	// The source frame is resized to the display resolution.
	if snap.Width != cfg.Width || snap.Height != cfg.Height {
		t.Errorf("snapshot is %dx%d, want %dx%d", snap.Width, snap.Height, cfg.Width, cfg.Height)
	}
	if r, g, b := snap.RGB(0, 0); r != 1 || g != 2 || b != 3 {
		t.Errorf("snapshot pixel = (%d,%d,%d), want (1,2,3)", r, g, b)
	}
}

func TestPipelineMirrorsPackets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &solidSource{w: 32, h: 24, r: 80, g: 80, b: 80}
	cfg := testConfig()
	mirror := &captureMirror{}
	var mu sync.Mutex
	locked := &lockedMirror{mu: &mu, inner: mirror}
	p := New(cfg, src, nil, locked)
	addr := startPipeline(t, ctx, p)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readFullFrame(t, conn, cfg)

	mu.Lock()
	n := len(mirror.packets)
	mu.Unlock()
	if n == 0 {
		t.Error("mirror saw no packets after a full frame")
	}
}

type lockedMirror struct {
	mu    *sync.Mutex
	inner *captureMirror
}

func (m *lockedMirror) MirrorPacket(pkt []byte) {
	m.mu.Lock()
	m.inner.MirrorPacket(pkt)
	m.mu.Unlock()
}
