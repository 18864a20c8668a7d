package source

import (
	"context"
	"time"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// patternBars are the classic vertical color bars.
var patternBars = [][3]uint8{
	{255, 255, 255},
	{255, 255, 0},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{0, 0, 255},
	{0, 0, 0},
}

// TestPatternSource renders color bars with a block sweeping across them,
// so every frame differs from the last in a bounded region. Useful for
// exercising the diff and chunking paths without a real signal.
type TestPatternSource struct {
	w, h int
	step int
}

// NewTestPattern creates the animated pattern source.
func NewTestPattern(w, h int) *TestPatternSource {
	return &TestPatternSource{w: w, h: h}
}

// NextFrame draws the pattern for the current step and advances it. The
// sequence is deterministic: step n always yields the same frame.
func (s *TestPatternSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	f := frame.New(s.w, s.h)

	barW := (s.w + len(patternBars) - 1) / len(patternBars)
	for i, c := range patternBars {
		FillRect(f, i*barW, 0, barW, s.h, c[0], c[1], c[2])
	}

	// Sweeping block, one quarter of the frame high.
	blockW := max(s.w/8, 1)
	blockH := max(s.h/4, 1)
	x := (s.step * 4) % max(s.w-blockW+1, 1)
	y := (s.h - blockH) / 2
	FillRect(f, x, y, blockW, blockH, 128, 128, 128)

	s.step++
	f.CapturedAt = time.Now()
	return f, nil
}
