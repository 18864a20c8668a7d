// Package client implements the display side of the stream: a receive loop
// for one TCP connection plus the reconnect policy around it. It is written
// for small fixed-memory targets, so the receive buffer is allocated once
// and nothing on the hot path grows it.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pixelcast-dev/pixelcast/pkg/protocol"
)

// ErrOversizedPayload means the server declared a payload bigger than the
// display's receive buffer. The packet is drained to keep the stream
// aligned, then the connection is dropped.
var ErrOversizedPayload = errors.New("client: payload exceeds receive buffer")

// Display is the render target. Blit receives big-endian RGB565 pixel data
// for the given rectangle; the slice is reused after the call returns.
// ShowStatus replaces the screen content with a status message, used when
// the server has been unreachable for a long stretch.
type Display interface {
	Blit(x, y, w, h int, pix []byte)
	ShowStatus(msg string)
}

// Config tunes the receiver.
type Config struct {
	// Addr is the server's TCP address.
	Addr string

	// BufferCapacity is the receive buffer size in bytes. Packets whose
	// declared payload exceeds it are drained and the connection dropped.
	BufferCapacity int

	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration

	// ReadTimeout is the inactivity window: it re-arms after every
	// successful read, so a slow but live connection is never cut.
	ReadTimeout time.Duration

	// RetryDelay is the pause between ordinary reconnect attempts.
	// CooldownDelay is the long pause after MaxFailures consecutive
	// failures, during which the status screen is shown.
	RetryDelay    time.Duration
	CooldownDelay time.Duration

	// MaxFailures is the consecutive connect-failure count that triggers
	// the status screen and cooldown. The counter resets afterwards, and
	// on every successful connect.
	MaxFailures int
}

// DefaultConfig returns the receiver defaults.
func DefaultConfig() Config {
	return Config{
		BufferCapacity: 8192,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    30 * time.Second,
		RetryDelay:     2 * time.Second,
		CooldownDelay:  30 * time.Second,
		MaxFailures:    10,
	}
}

// Client receives updates and pushes them to a Display.
type Client struct {
	cfg     Config
	display Display
	dial    func(ctx context.Context) (net.Conn, error)
	logger  *slog.Logger

	failures int
	buf      []byte
	header   [protocol.HeaderSize]byte
}

// New creates a client rendering to display. Zero fields of cfg fall back
// to DefaultConfig.
func New(cfg Config, display Display) *Client {
	defaults := DefaultConfig()
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = defaults.BufferCapacity
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.CooldownDelay <= 0 {
		cfg.CooldownDelay = defaults.CooldownDelay
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}

	c := &Client{
		cfg:     cfg,
		display: display,
		logger:  slog.Default().With("component", "client", "server", cfg.Addr),
		buf:     make([]byte, cfg.BufferCapacity),
	}
	c.dial = c.dialTCP
	return c
}

// SetDialer overrides how connections are established, for tests and for
// transports other than plain TCP.
func (c *Client) SetDialer(dial func(ctx context.Context) (net.Conn, error)) {
	c.dial = dial
}

func (c *Client) dialTCP(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	return d.DialContext(ctx, "tcp", c.cfg.Addr)
}

// Run connects, receives and reconnects until ctx is cancelled. It only
// returns the ctx error: every network failure is handled by the retry
// policy.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("connect failed", "error", err)
			if !c.backoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		// Reaching the server at all clears the failure streak: the
		// cooldown screen is for an unreachable server, not a flaky
		// session.
		c.failures = 0

		rendered, err := c.session(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("connection lost", "error", err, "packets", rendered)

		if !sleep(ctx, c.cfg.RetryDelay) {
			return ctx.Err()
		}
	}
}

// backoff counts one failure and sleeps the retry delay, or, at the
// failure limit, shows the status screen, sleeps the cooldown and resets
// the counter. It reports false when ctx ended during the wait.
func (c *Client) backoff(ctx context.Context) bool {
	c.failures++
	if c.failures >= c.cfg.MaxFailures {
		c.logger.Error("server unreachable, cooling down",
			"failures", c.failures, "cooldown", c.cfg.CooldownDelay)
		c.display.ShowStatus(fmt.Sprintf("no signal from %s", c.cfg.Addr))
		c.failures = 0
		return sleep(ctx, c.cfg.CooldownDelay)
	}
	return sleep(ctx, c.cfg.RetryDelay)
}

// session reads packets until the connection fails, returning how many
// were rendered.
func (c *Client) session(ctx context.Context, conn net.Conn) (int, error) {
	c.logger.Info("connected", "local", conn.LocalAddr().String())
	rendered := 0
	for {
		if err := ctx.Err(); err != nil {
			return rendered, err
		}

		if err := c.readExact(conn, c.header[:]); err != nil {
			return rendered, fmt.Errorf("read header: %w", err)
		}
		h, err := protocol.DecodeHeader(c.header[:])
		if err != nil {
			return rendered, err
		}

		if int64(h.DataLen) > int64(len(c.buf)) {
			// Drain the declared bytes so nothing is left mid-packet,
			// then drop the connection: the server is misconfigured for
			// this display and rendering would corrupt memory.
			c.logger.Error("payload exceeds buffer",
				"declared", h.DataLen, "capacity", len(c.buf))
			if err := c.discardExact(conn, int(h.DataLen)); err != nil {
				return rendered, err
			}
			return rendered, ErrOversizedPayload
		}

		payload := c.buf[:h.DataLen]
		if err := c.readExact(conn, payload); err != nil {
			return rendered, fmt.Errorf("read payload: %w", err)
		}

		// Zero-area packets are drained but never rendered.
		if h.Degenerate() {
			continue
		}
		if !h.WellFormed() {
			c.logger.Warn("length mismatch, rendering anyway",
				"rect", fmt.Sprintf("%dx%d@%d,%d", h.W, h.H, h.X, h.Y),
				"declared", h.DataLen)
		}

		c.display.Blit(int(h.X), int(h.Y), int(h.W), int(h.H), payload)
		rendered++
	}
}

// readExact fills buf completely. The read deadline re-arms after every
// successful partial read, so only true inactivity times the session out.
func (c *Client) readExact(conn net.Conn, buf []byte) error {
	off := 0
	for off < len(buf) {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return err
		}
		n, err := conn.Read(buf[off:])
		off += n
		if err != nil {
			if off == len(buf) {
				return nil
			}
			return err
		}
	}
	return nil
}

// discardExact consumes and drops exactly n bytes.
func (c *Client) discardExact(conn net.Conn, n int) error {
	for n > 0 {
		chunk := c.buf[:min(n, len(c.buf))]
		if err := c.readExact(conn, chunk); err != nil {
			return err
		}
		n -= len(chunk)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
