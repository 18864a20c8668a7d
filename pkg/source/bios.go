package source

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// BIOS colors, the classic setup-screen palette.
var (
	biosBlue  = [3]uint8{0, 0, 170}
	biosGray  = [3]uint8{170, 170, 170}
	biosWhite = [3]uint8{255, 255, 255}
)

// BIOSSource renders a retro setup-style status screen: gray header bar
// with a title, blue body with a wall clock and uptime. The clock makes the
// frame change once per second, which keeps it a useful end-to-end smoke
// source.
type BIOSSource struct {
	w, h    int
	title   string
	started time.Time
	now     func() time.Time
}

// NewBIOS creates the status screen source. An empty title falls back to
// a generic banner.
func NewBIOS(w, h int, title string) *BIOSSource {
	if title == "" {
		title = "PIXELCAST SETUP"
	}
	return &BIOSSource{
		w:       w,
		h:       h,
		title:   title,
		started: time.Now(),
		now:     time.Now,
	}
}

// NextFrame draws the current screen. It never fails.
func (s *BIOSSource) NextFrame(ctx context.Context) (*frame.Frame, error) {
	f := frame.New(s.w, s.h)
	Fill(f, biosBlue[0], biosBlue[1], biosBlue[2])

	headerH := GlyphHeight + 4
	FillRect(f, 0, 0, s.w, headerH, biosGray[0], biosGray[1], biosGray[2])
	DrawText(f, 2, 2, s.title, 1, 0, 0, 0)

	now := s.now()
	DrawText(f, 2, headerH+4, now.Format("15:04:05"), 1,
		biosWhite[0], biosWhite[1], biosWhite[2])

	up := now.Sub(s.started).Truncate(time.Second)
	DrawText(f, 2, headerH+4+GlyphHeight+3, fmt.Sprintf("UP %s", up), 1,
		biosGray[0], biosGray[1], biosGray[2])

	f.CapturedAt = now
	return f, nil
}
