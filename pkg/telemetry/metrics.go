// Package telemetry exposes the pipeline counters and gauges through
// Prometheus. The core pipeline only pushes values here; how they are
// scraped is up to the embedding server.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the metrics namespace prefix.
const Namespace = "pixelcast"

// packetSizeBuckets follow the wire reality: a bare header is 12 bytes and
// the default chunk limit is 8KiB.
var packetSizeBuckets = []float64{
	12, 256, 512, 1024, 2048, 4096, 8192, 10000,
	16384, 25000, 32768, 50000,
}

// Metrics is the collector set shared by all pipelines in a process.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	packetSize    *prometheus.HistogramVec
	chunksPerFrame *prometheus.HistogramVec
	sendDuration  *prometheus.HistogramVec

	queueDepth *prometheus.GaugeVec
	threshold  *prometheus.GaugeVec
	fps        *prometheus.GaugeVec

	framesGenerated  *prometheus.CounterVec
	framesProcessed  *prometheus.CounterVec
	framesDropped    *prometheus.CounterVec
	connectionErrors *prometheus.CounterVec
	reconnections    *prometheus.CounterVec
}

// New registers the collector set on reg. Pass
// prometheus.DefaultRegisterer outside tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-frame duration of each processing stage",
		}, []string{"stage", "pipeline"}),

		packetSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "packet_size_bytes",
			Help:      "Size of sent packets including the header",
			Buckets:   packetSizeBuckets,
		}, []string{"pipeline"}),

		chunksPerFrame: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "chunks_per_frame",
			Help:      "Chunks sent per processed frame",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"pipeline"}),

		sendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "rect_send_duration_seconds",
			Help:      "Time spent sending all dirty rectangles of one frame",
		}, []string{"pipeline"}),

		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "frame_queue_depth",
			Help:      "Frames waiting between the generator and the consumer",
		}, []string{"pipeline"}),

		threshold: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "dynamic_threshold",
			Help:      "Current adaptive diff threshold",
		}, []string{"pipeline"}),

		fps: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "consumer_fps",
			Help:      "Measured consumer frame rate",
		}, []string{"pipeline"}),

		framesGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_generated_total",
			Help:      "Frames produced by the generator",
		}, []string{"pipeline"}),

		framesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_processed_total",
			Help:      "Frames diffed and sent (or attempted) by the consumer",
		}, []string{"pipeline"}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because the queue was full",
		}, []string{"pipeline"}),

		connectionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connection_errors_total",
			Help:      "TCP send failures toward the display client",
		}, []string{"pipeline"}),

		reconnections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconnections_total",
			Help:      "Accepted client connections",
		}, []string{"pipeline"}),
	}
}

// ForPipeline binds the collector set to one pipeline's label.
func (m *Metrics) ForPipeline(name string) *PipelineMetrics {
	return &PipelineMetrics{
		parent:           m,
		name:             name,
		packetSize:       m.packetSize.WithLabelValues(name),
		chunksPerFrame:   m.chunksPerFrame.WithLabelValues(name),
		sendDuration:     m.sendDuration.WithLabelValues(name),
		queueDepth:       m.queueDepth.WithLabelValues(name),
		threshold:        m.threshold.WithLabelValues(name),
		fps:              m.fps.WithLabelValues(name),
		framesGenerated:  m.framesGenerated.WithLabelValues(name),
		framesProcessed:  m.framesProcessed.WithLabelValues(name),
		framesDropped:    m.framesDropped.WithLabelValues(name),
		connectionErrors: m.connectionErrors.WithLabelValues(name),
		reconnections:    m.reconnections.WithLabelValues(name),
	}
}

// PipelineMetrics is the label-bound view one pipeline records into.
type PipelineMetrics struct {
	parent *Metrics
	name   string

	packetSize     prometheus.Observer
	chunksPerFrame prometheus.Observer
	sendDuration   prometheus.Observer

	queueDepth prometheus.Gauge
	threshold  prometheus.Gauge
	fps        prometheus.Gauge

	framesGenerated  prometheus.Counter
	framesProcessed  prometheus.Counter
	framesDropped    prometheus.Counter
	connectionErrors prometheus.Counter
	reconnections    prometheus.Counter
}

// ObserveStage records the duration of one named processing stage.
func (p *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	p.parent.stageDuration.WithLabelValues(stage, p.name).Observe(d.Seconds())
}

// ObservePacket records one sent packet's total size.
func (p *PipelineMetrics) ObservePacket(bytes int) { p.packetSize.Observe(float64(bytes)) }

// ObserveChunks records how many chunks one frame produced.
func (p *PipelineMetrics) ObserveChunks(n int) { p.chunksPerFrame.Observe(float64(n)) }

// ObserveSendDuration records the total send time of one frame's rects.
func (p *PipelineMetrics) ObserveSendDuration(d time.Duration) {
	p.sendDuration.Observe(d.Seconds())
}

// SetQueueDepth publishes the current queue depth.
func (p *PipelineMetrics) SetQueueDepth(depth int) { p.queueDepth.Set(float64(depth)) }

// SetThreshold publishes the current adaptive threshold.
func (p *PipelineMetrics) SetThreshold(v int) { p.threshold.Set(float64(v)) }

// SetFPS publishes the measured consumer frame rate.
func (p *PipelineMetrics) SetFPS(v float64) { p.fps.Set(v) }

// FrameGenerated counts one generated frame.
func (p *PipelineMetrics) FrameGenerated() { p.framesGenerated.Inc() }

// FrameProcessed counts one consumed frame.
func (p *PipelineMetrics) FrameProcessed() { p.framesProcessed.Inc() }

// FrameDropped counts one frame rejected by the full queue.
func (p *PipelineMetrics) FrameDropped() { p.framesDropped.Inc() }

// ConnectionError counts one send failure.
func (p *PipelineMetrics) ConnectionError() { p.connectionErrors.Inc() }

// Reconnection counts one accepted client connection.
func (p *PipelineMetrics) Reconnection() { p.reconnections.Inc() }
