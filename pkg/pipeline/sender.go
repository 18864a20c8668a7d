package pipeline

import (
	"fmt"
	"net"
	"time"

	"github.com/pixelcast-dev/pixelcast/pkg/protocol"
	"github.com/pixelcast-dev/pixelcast/pkg/telemetry"
)

// PacketMirror receives a copy of every packet written to the display
// client. The buffer is only valid for the duration of the call.
type PacketMirror interface {
	MirrorPacket(pkt []byte)
}

// Sender writes update packets to one display client over a TCP
// connection. Each packet goes out as a single Write so a concurrent
// reader never sees a header detached from its payload.
type Sender struct {
	conn    net.Conn
	timeout time.Duration
	mirror  PacketMirror
	metrics *telemetry.PipelineMetrics

	buf []byte
}

// NewSender wraps conn. timeout bounds each packet write; mirror and
// metrics may be nil.
func NewSender(conn net.Conn, timeout time.Duration, mirror PacketMirror, metrics *telemetry.PipelineMetrics) *Sender {
	return &Sender{conn: conn, timeout: timeout, mirror: mirror, metrics: metrics}
}

// Send writes one chunk. Any error means the connection is unusable and
// the session must end.
func (s *Sender) Send(h protocol.Header, payload []byte) error {
	n := protocol.HeaderSize + len(payload)
	if cap(s.buf) < n {
		s.buf = make([]byte, n)
	}
	pkt := s.buf[:n]
	h.EncodeTo(pkt)
	copy(pkt[protocol.HeaderSize:], payload)

	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := s.conn.Write(pkt); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObservePacket(n)
	}
	if s.mirror != nil {
		s.mirror.MirrorPacket(pkt)
	}
	return nil
}
