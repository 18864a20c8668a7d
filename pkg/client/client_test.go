package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pixelcast-dev/pixelcast/pkg/protocol"
)

type blit struct {
	x, y, w, h int
	pix        []byte
}

type fakeDisplay struct {
	mu     sync.Mutex
	blits  []blit
	status chan string
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{status: make(chan string, 16)}
}

func (d *fakeDisplay) Blit(x, y, w, h int, pix []byte) {
	d.mu.Lock()
	d.blits = append(d.blits, blit{x, y, w, h, append([]byte(nil), pix...)})
	d.mu.Unlock()
}

func (d *fakeDisplay) ShowStatus(msg string) { d.status <- msg }

func (d *fakeDisplay) blitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.blits)
}

// countingConn tracks how many bytes the client actually consumed.
type countingConn struct {
	net.Conn
	mu   sync.Mutex
	read int
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.mu.Lock()
	c.read += n
	c.mu.Unlock()
	return n, err
}

func (c *countingConn) bytesRead() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read
}

func writePacket(t *testing.T, w io.Writer, h protocol.Header, payload []byte) {
	t.Helper()
	if err := protocol.WriteUpdate(w, h, payload); err != nil {
		t.Errorf("write packet: %v", err)
	}
}

func testClient(display Display) *Client {
	cfg := DefaultConfig()
	cfg.Addr = "test"
	cfg.ReadTimeout = time.Second
	return New(cfg, display)
}

func TestSessionRendersPacket(t *testing.T) {
	display := newFakeDisplay()
	c := testClient(display)

	local, remote := net.Pipe()
	defer local.Close()

	payload := make([]byte, 16)
	for i := range payload {
		payload[i] = byte(i)
	}
	go func() {
		writePacket(t, remote, protocol.Header{X: 10, Y: 20, W: 4, H: 2, DataLen: 16}, payload)
		remote.Close()
	}()

	rendered, err := c.session(context.Background(), local)
	if rendered != 1 {
		t.Errorf("rendered = %d, want 1", rendered)
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("session error = %v, want EOF after server close", err)
	}

	if display.blitCount() != 1 {
		t.Fatalf("got %d blits, want 1", display.blitCount())
	}
	b := display.blits[0]
	if b.x != 10 || b.y != 20 || b.w != 4 || b.h != 2 {
		t.Errorf("blit rect = (%d,%d %dx%d), want (10,20 4x2)", b.x, b.y, b.w, b.h)
	}
	for i, v := range b.pix {
		if v != byte(i) {
			t.Fatalf("payload byte %d = %d, want %d", i, v, i)
		}
	}
}

func TestSessionDrainsOversizedPacketThenCloses(t *testing.T) {
	display := newFakeDisplay()
	cfg := DefaultConfig()
	cfg.BufferCapacity = 8
	cfg.ReadTimeout = time.Second
	c := New(cfg, display)

	local, remote := net.Pipe()
	defer local.Close()
	counting := &countingConn{Conn: local}

	go func() {
		// 16 declared bytes against an 8-byte buffer, followed by the
		// start of another packet the client must never touch.
		writePacket(t, remote, protocol.Header{W: 2, H: 4, DataLen: 16}, make([]byte, 16))
		remote.Write([]byte{0xDE, 0xAD})
		remote.Close()
	}()

	rendered, err := c.session(context.Background(), counting)
	if !errors.Is(err, ErrOversizedPayload) {
		t.Fatalf("session error = %v, want ErrOversizedPayload", err)
	}
	if rendered != 0 || display.blitCount() != 0 {
		t.Error("oversized packet was rendered")
	}
	if got := counting.bytesRead(); got != protocol.HeaderSize+16 {
		t.Errorf("client consumed %d bytes, want exactly header+16 = %d",
			got, protocol.HeaderSize+16)
	}
}

func TestSessionDrainsDegeneratePacket(t *testing.T) {
	display := newFakeDisplay()
	c := testClient(display)

	local, remote := net.Pipe()
	defer local.Close()

	go func() {
		// Zero-width rect with a payload: drain, do not render.
		writePacket(t, remote, protocol.Header{W: 0, H: 2, DataLen: 8}, make([]byte, 8))
		// The stream stays aligned for the packet behind it.
		writePacket(t, remote, protocol.Header{X: 1, Y: 1, W: 1, H: 1, DataLen: 2}, []byte{0xF8, 0x00})
		remote.Close()
	}()

	rendered, _ := c.session(context.Background(), local)
	if rendered != 1 {
		t.Errorf("rendered = %d, want 1 (degenerate drained)", rendered)
	}
	if display.blitCount() != 1 || display.blits[0].w != 1 {
		t.Errorf("blits = %+v, want only the 1x1 packet", display.blits)
	}
}

func TestSessionSurvivesSlowByteAtATimeSender(t *testing.T) {
	display := newFakeDisplay()
	cfg := DefaultConfig()
	cfg.ReadTimeout = 60 * time.Millisecond
	c := New(cfg, display)

	local, remote := net.Pipe()
	defer local.Close()

	// Total transfer time far exceeds ReadTimeout, but every byte lands
	// inside the window, so the re-armed deadline never fires.
	pkt := append(protocol.Header{W: 1, H: 1, DataLen: 2}.Encode(), 0x07, 0xE0)
	go func() {
		for _, b := range pkt {
			time.Sleep(20 * time.Millisecond)
			if _, err := remote.Write([]byte{b}); err != nil {
				return
			}
		}
		remote.Close()
	}()

	rendered, _ := c.session(context.Background(), local)
	if rendered != 1 {
		t.Errorf("rendered = %d, want 1 despite slow sender", rendered)
	}
}

func TestRunCooldownAfterMaxFailures(t *testing.T) {
	display := newFakeDisplay()
	cfg := DefaultConfig()
	cfg.Addr = "test"
	cfg.MaxFailures = 3
	cfg.RetryDelay = time.Millisecond
	cfg.CooldownDelay = time.Millisecond
	c := New(cfg, display)

	attempts := make(chan int)
	n := 0
	c.SetDialer(func(ctx context.Context) (net.Conn, error) {
		n++
		select {
		case attempts <- n:
		case <-ctx.Done():
		}
		return nil, errors.New("connection refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	expectAttempt := func(want int) {
		t.Helper()
		select {
		case got := <-attempts:
			if got != want {
				t.Fatalf("attempt %d, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for attempt %d", want)
		}
	}
	expectStatus := func() {
		t.Helper()
		select {
		case <-display.status:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for status screen")
		}
	}
	expectNoStatus := func() {
		t.Helper()
		select {
		case msg := <-display.status:
			t.Fatalf("status %q shown before the failure limit", msg)
		default:
		}
	}

	expectAttempt(1)
	expectAttempt(2)
	expectNoStatus()
	expectAttempt(3)
	expectStatus() // third consecutive failure trips the cooldown

	// Counter was reset: the next cycle needs three more failures.
	expectAttempt(4)
	expectAttempt(5)
	expectNoStatus()
	expectAttempt(6)
	expectStatus()
}

func TestRunResetsFailuresOnSuccessfulConnect(t *testing.T) {
	display := newFakeDisplay()
	cfg := DefaultConfig()
	cfg.Addr = "test"
	cfg.MaxFailures = 3
	cfg.RetryDelay = time.Millisecond
	cfg.CooldownDelay = time.Millisecond
	cfg.ReadTimeout = time.Second
	c := New(cfg, display)

	// Attempts 1 and 2 fail, attempt 3 connects and renders one packet
	// before the server closes. The connect must clear the failure
	// counter, so the streak starts over: attempts 4 and 5 are failures
	// one and two, and only attempt 6 trips the status screen.
	attempts := make(chan int)
	n := 0
	c.SetDialer(func(ctx context.Context) (net.Conn, error) {
		n++
		select {
		case attempts <- n:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if n != 3 {
			return nil, errors.New("connection refused")
		}
		local, remote := net.Pipe()
		go func() {
			writePacket(t, remote, protocol.Header{W: 1, H: 1, DataLen: 2}, []byte{0, 0})
			remote.Close()
		}()
		return local, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 1; i <= 5; i++ {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for attempt %d", i)
		}
		select {
		case msg := <-display.status:
			t.Fatalf("status %q by attempt %d, counter did not reset", msg, i)
		default:
		}
	}
	select {
	case <-attempts:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for attempt 6")
	}

	// Attempt 6 is the third consecutive failure after the reset.
	select {
	case <-display.status:
	case <-time.After(2 * time.Second):
		t.Fatal("status screen never appeared after renewed failures")
	}
}
