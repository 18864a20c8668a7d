// Package pipeline connects a frame source to one display client: frames
// flow through a bounded queue into a consumer that diffs, encodes, chunks
// and streams them over TCP, while a feedback controller trades fidelity
// against rate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelcast-dev/pixelcast/pkg/control"
	"github.com/pixelcast-dev/pixelcast/pkg/diff"
	"github.com/pixelcast-dev/pixelcast/pkg/frame"
	"github.com/pixelcast-dev/pixelcast/pkg/protocol"
	"github.com/pixelcast-dev/pixelcast/pkg/telemetry"
)

// Source produces the frames a pipeline streams. Implementations may block
// in NextFrame; they must honor ctx cancellation.
type Source interface {
	NextFrame(ctx context.Context) (*frame.Frame, error)
}

// Config tunes one pipeline.
type Config struct {
	// Name labels logs and metrics.
	Name string

	// Address is the TCP address the pipeline listens on for its display
	// client, e.g. ":9100".
	Address string

	// Width and Height are the display resolution. Frames from the source
	// are resized to this before diffing.
	Width  int
	Height int

	// MaxChunkData caps chunk payload bytes so a packet never overflows
	// the client's receive buffer.
	MaxChunkData int

	// GenerationInterval is the pacing of the frame generator while the
	// queue is below the low-water mark.
	GenerationInterval time.Duration

	// QueueCapacity bounds the generator/consumer queue; LowWaterMark is
	// the depth at which the generator resumes producing.
	QueueCapacity int
	LowWaterMark  int

	// SendTimeout bounds each packet write toward the client.
	SendTimeout time.Duration

	// BlockSize is the diff granularity in pixels.
	BlockSize int

	// Controller configures the adaptive threshold loop.
	Controller control.Config

	// Correction and Dither configure the RGB565 encoder.
	Correction frame.Correction
	Dither     bool
}

// DefaultConfig returns a pipeline configuration for a 320x240 panel.
func DefaultConfig() Config {
	return Config{
		Name:               "default",
		Address:            ":9100",
		Width:              320,
		Height:             240,
		MaxChunkData:       8192,
		GenerationInterval: 66 * time.Millisecond,
		QueueCapacity:      DefaultQueueCapacity,
		LowWaterMark:       2,
		SendTimeout:        5 * time.Second,
		BlockSize:          diff.DefaultBlockSize,
		Controller:         control.DefaultConfig(),
		Correction:         DefaultCorrection(),
		Dither:             true,
	}
}

// DefaultCorrection is re-exported so callers configuring a pipeline do not
// need to import the frame package for the common case.
func DefaultCorrection() frame.Correction { return frame.DefaultCorrection() }

// pollInterval is how often the generator rechecks a queue that is at or
// above the low-water mark.
const pollInterval = 10 * time.Millisecond

// Pipeline owns the queue, the diff state and the client connection for
// one display. Create it with New and drive it with Run or Serve.
type Pipeline struct {
	cfg     Config
	source  Source
	queue   *Queue
	metrics *telemetry.PipelineMetrics
	mirror  PacketMirror
	logger  *slog.Logger
	tracer  trace.Tracer

	mu   sync.Mutex
	last *frame.Frame
}

// New creates a pipeline streaming frames from src. Zero fields of cfg fall
// back to DefaultConfig. metrics and mirror may be nil.
func New(cfg Config, src Source, metrics *telemetry.PipelineMetrics, mirror PacketMirror) *Pipeline {
	defaults := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Address == "" {
		cfg.Address = defaults.Address
	}
	if cfg.Width <= 0 {
		cfg.Width = defaults.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = defaults.Height
	}
	if cfg.MaxChunkData <= 0 {
		cfg.MaxChunkData = defaults.MaxChunkData
	}
	if cfg.GenerationInterval <= 0 {
		cfg.GenerationInterval = defaults.GenerationInterval
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaults.QueueCapacity
	}
	if cfg.LowWaterMark <= 0 || cfg.LowWaterMark > cfg.QueueCapacity {
		cfg.LowWaterMark = min(defaults.LowWaterMark, cfg.QueueCapacity)
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaults.SendTimeout
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = defaults.BlockSize
	}
	if cfg.Controller == (control.Config{}) {
		cfg.Controller = defaults.Controller
	}

	return &Pipeline{
		cfg:     cfg,
		source:  src,
		queue:   NewQueue(cfg.QueueCapacity),
		metrics: metrics,
		mirror:  mirror,
		logger:  slog.Default().With("component", "pipeline", "pipeline", cfg.Name),
		tracer:  otel.Tracer("pixelcast/pipeline"),
	}
}

// Name returns the pipeline's label.
func (p *Pipeline) Name() string { return p.cfg.Name }

// Snapshot returns a copy of the most recent frame handled by the consumer,
// or nil if no frame has been processed yet.
func (p *Pipeline) Snapshot() *frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	return p.last.Clone()
}

func (p *Pipeline) setSnapshot(f *frame.Frame) {
	p.mu.Lock()
	p.last = f
	p.mu.Unlock()
}

// Run listens on the configured address and serves display clients until
// ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", p.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", p.cfg.Address, err)
	}
	return p.Serve(ctx, l)
}

// Serve accepts display clients on l, one at a time, and streams to each
// until it disconnects. It returns when ctx is cancelled and closes l.
func (p *Pipeline) Serve(ctx context.Context, l net.Listener) error {
	p.logger.Info("pipeline listening",
		"addr", l.Addr().String(),
		"resolution", fmt.Sprintf("%dx%d", p.cfg.Width, p.cfg.Height))

	// Unblock Accept on shutdown.
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if p.metrics != nil {
			p.metrics.Reconnection()
		}
		p.logger.Info("client connected", "remote", conn.RemoteAddr().String())

		err = p.runSession(ctx, conn)
		conn.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("session ended", "error", err)
		} else {
			p.logger.Info("client disconnected")
		}
	}
}

// runSession streams to one connected client. Diff state, controller state
// and queued frames are all per-session: a new client always starts with a
// full frame and maximum fidelity.
func (p *Pipeline) runSession(ctx context.Context, conn net.Conn) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.queue.Drain()

	// Display clients never send application data, so a blocking read only
	// returns when the peer goes away. Without it a quiescent source would
	// keep a dead session alive forever.
	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := conn.Read(buf); err != nil {
				cancel()
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.generate(sctx)
	}()

	err := p.consume(sctx, conn)
	cancel()
	wg.Wait()
	return err
}

// generate runs the producer side: pull a frame from the source whenever
// the queue is below the low-water mark, then sleep out the generation
// interval. A full queue drops the new frame rather than blocking.
func (p *Pipeline) generate(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		depth := p.queue.Depth()
		if p.metrics != nil {
			p.metrics.SetQueueDepth(depth)
		}
		if depth >= p.cfg.LowWaterMark {
			if !sleep(ctx, pollInterval) {
				return
			}
			continue
		}

		start := time.Now()
		f, err := p.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("source failed", "error", err)
			sleep(ctx, p.cfg.GenerationInterval)
			continue
		}

		if p.queue.Push(f) {
			if p.metrics != nil {
				p.metrics.FrameGenerated()
				p.metrics.ObserveStage("generate", time.Since(start))
			}
		} else if p.metrics != nil {
			p.metrics.FrameDropped()
		}

		if rest := p.cfg.GenerationInterval - time.Since(start); rest > 0 {
			if !sleep(ctx, rest) {
				return
			}
		}
	}
}

// consume runs the sending side: pop, resize, diff, encode, chunk, send,
// then feed the frame's total duration back into the controller.
func (p *Pipeline) consume(ctx context.Context, conn net.Conn) error {
	sender := NewSender(conn, p.cfg.SendTimeout, p.mirror, p.metrics)
	engine := diff.NewEngine(p.cfg.BlockSize)
	ctrl := control.New(p.cfg.Controller)
	encoder := frame.NewEncoder(p.cfg.Correction, p.cfg.Dither)

	for {
		f, ok := p.queue.Pop(ctx)
		if !ok {
			return ctx.Err()
		}
		start := time.Now()

		fctx, span := p.tracer.Start(ctx, "pipeline.frame",
			trace.WithAttributes(attribute.String("pipeline", p.cfg.Name)))

		f = f.Resize(p.cfg.Width, p.cfg.Height)
		p.setSnapshot(f)

		diffStart := time.Now()
		threshold := ctrl.Threshold()
		rects := engine.Diff(f, threshold)
		if p.metrics != nil {
			p.metrics.ObserveStage("diff", time.Since(diffStart))
		}

		chunks, err := p.sendRects(fctx, sender, encoder, f, rects)

		span.SetAttributes(
			attribute.Int("threshold", threshold),
			attribute.Int("rects", len(rects)),
			attribute.Int("chunks", chunks),
		)
		span.End()

		if err != nil {
			if p.metrics != nil {
				p.metrics.ConnectionError()
			}
			return err
		}

		if p.metrics != nil {
			p.metrics.FrameProcessed()
			p.metrics.ObserveChunks(chunks)
			p.metrics.ObserveStage("consume", time.Since(start))
		}

		ctrl.Observe(time.Since(start))
		if p.metrics != nil {
			p.metrics.SetThreshold(ctrl.Threshold())
			p.metrics.SetFPS(ctrl.MeasuredFPS())
		}
	}
}

// sendRects encodes and streams every dirty rectangle of one frame,
// returning the number of chunks written.
func (p *Pipeline) sendRects(ctx context.Context, sender *Sender, encoder *frame.Encoder, f *frame.Frame, rects []diff.Rect) (int, error) {
	if len(rects) == 0 {
		return 0, nil
	}
	_, span := p.tracer.Start(ctx, "pipeline.send")
	defer span.End()

	sendStart := time.Now()
	total := 0
	for _, r := range rects {
		encStart := time.Now()
		payload := encoder.EncodeRegion(f, r.X, r.Y, r.W, r.H)
		if p.metrics != nil {
			p.metrics.ObserveStage("encode", time.Since(encStart))
		}

		chunks, err := protocol.SplitRect(r.X, r.Y, r.W, r.H, payload, p.cfg.MaxChunkData)
		if err != nil {
			// A split failure is a bug in rect construction, not a
			// connection problem; skip the rect and keep the session.
			p.logger.Error("chunking failed", "rect", r, "error", err)
			continue
		}
		for _, c := range chunks {
			if err := sender.Send(c.Header, c.Payload); err != nil {
				return total, err
			}
			total++
		}
	}
	if p.metrics != nil {
		p.metrics.ObserveSendDuration(time.Since(sendStart))
	}
	return total, nil
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
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
