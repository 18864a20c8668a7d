package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/procfs"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// cpuSampler returns the per-core utilization as fractions in [0, 1].
// Abstracted from procfs so tests can inject deterministic samples.
type cpuSampler interface {
	Sample() ([]float64, error)
}

// CPUSource renders a per-core utilization monitor: one labeled bar per
// core plus a scrolling history strip of the aggregate load.
type CPUSource struct {
	w, h    int
	sampler cpuSampler
	history []float64
}

// NewCPU creates a CPU monitor reading /proc.
func NewCPU(w, h int) (*CPUSource, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("source: open procfs: %w", err)
	}
	return newCPUWithSampler(w, h, &procSampler{fs: fs}), nil
}

func newCPUWithSampler(w, h int, s cpuSampler) *CPUSource {
	return &CPUSource{w: w, h: h, sampler: s}
}

// NextFrame samples utilization and draws the monitor.
func (s *CPUSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	loads, err := s.sampler.Sample()
	if err != nil {
		return nil, fmt.Errorf("source: sample cpu: %w", err)
	}

	f := frame.New(s.w, s.h)
	Fill(f, 10, 10, 10)
	DrawText(f, 2, 2, "CPU", 1, 255, 255, 255)

	// Per-core bars under the title.
	top := GlyphHeight + 6
	historyH := s.h / 4
	barArea := s.h - top - historyH - 2
	rowH := 0
	if len(loads) > 0 {
		rowH = barArea / len(loads)
	}
	labelW := TextWidth("0000", 1) + 2
	var total float64
	for i, load := range loads {
		total += load
		y := top + i*rowH
		DrawText(f, 2, y, fmt.Sprintf("%d", i), 1, 170, 170, 170)
		barW := int(load * float64(s.w-labelW-2))
		r, g := barColor(load)
		FillRect(f, labelW, y, barW, max(rowH-2, 1), r, g, 0)
	}

	// Scrolling aggregate history along the bottom.
	if len(loads) > 0 {
		s.history = append(s.history, total/float64(len(loads)))
	}
	if len(s.history) > s.w {
		s.history = s.history[len(s.history)-s.w:]
	}
	base := s.h - 1
	for i, load := range s.history {
		x := s.w - len(s.history) + i
		colH := int(load * float64(historyH))
		r, g := barColor(load)
		FillRect(f, x, base-colH, 1, colH+1, r, g, 0)
	}

	return f, nil
}

// barColor shades green below half load toward red at full load.
func barColor(load float64) (r, g uint8) {
	load = min(max(load, 0), 1)
	return uint8(255 * load), uint8(255 * (1 - load))
}

// procSampler derives utilization from consecutive /proc/stat readings.
type procSampler struct {
	fs   procfs.FS
	prev map[int64]procfs.CPUStat
}

func (p *procSampler) Sample() ([]float64, error) {
	stat, err := p.fs.Stat()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(stat.CPU))
	for id := range stat.CPU {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	loads := make([]float64, len(ids))
	for i, id := range ids {
		cur := stat.CPU[id]
		prev, ok := p.prev[id]
		if !ok {
			continue // first sample has no delta, report idle
		}
		busy := (cur.User - prev.User) + (cur.Nice - prev.Nice) +
			(cur.System - prev.System) + (cur.Iowait - prev.Iowait) +
			(cur.IRQ - prev.IRQ) + (cur.SoftIRQ - prev.SoftIRQ) +
			(cur.Steal - prev.Steal)
		total := busy + (cur.Idle - prev.Idle)
		if total > 0 {
			loads[i] = min(max(busy/total, 0), 1)
		}
	}
	p.prev = stat.CPU
	return loads, nil
}
