package source

import (
	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// Glyph metrics of the embedded 5x7 font.
const (
	GlyphWidth  = 5
	GlyphHeight = 7
	// glyphPitch is the horizontal advance including one column of spacing.
	glyphPitch = GlyphWidth + 1
)

// font5x7 holds one row per byte, most significant of the low five bits on
// the left. Unknown runes render as space.
var font5x7 = map[rune][GlyphHeight]byte{
	' ': {0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	'-': {0x00, 0x00, 0x00, 0x0E, 0x00, 0x00, 0x00},
	'.': {0x00, 0x00, 0x00, 0x00, 0x00, 0x0C, 0x0C},
	':': {0x00, 0x0C, 0x0C, 0x00, 0x0C, 0x0C, 0x00},
	'/': {0x01, 0x02, 0x02, 0x04, 0x08, 0x08, 0x10},
	'%': {0x19, 0x1A, 0x02, 0x04, 0x08, 0x0B, 0x13},
	'0': {0x0E, 0x11, 0x13, 0x15, 0x19, 0x11, 0x0E},
	'1': {0x04, 0x0C, 0x04, 0x04, 0x04, 0x04, 0x0E},
	'2': {0x0E, 0x11, 0x01, 0x02, 0x04, 0x08, 0x1F},
	'3': {0x1F, 0x02, 0x04, 0x02, 0x01, 0x11, 0x0E},
	'4': {0x02, 0x06, 0x0A, 0x12, 0x1F, 0x02, 0x02},
	'5': {0x1F, 0x10, 0x1E, 0x01, 0x01, 0x11, 0x0E},
	'6': {0x06, 0x08, 0x10, 0x1E, 0x11, 0x11, 0x0E},
	'7': {0x1F, 0x01, 0x02, 0x04, 0x08, 0x08, 0x08},
	'8': {0x0E, 0x11, 0x11, 0x0E, 0x11, 0x11, 0x0E},
	'9': {0x0E, 0x11, 0x11, 0x0F, 0x01, 0x02, 0x0C},
	'A': {0x0E, 0x11, 0x11, 0x1F, 0x11, 0x11, 0x11},
	'B': {0x1E, 0x11, 0x11, 0x1E, 0x11, 0x11, 0x1E},
	'C': {0x0E, 0x11, 0x10, 0x10, 0x10, 0x11, 0x0E},
	'D': {0x1C, 0x12, 0x11, 0x11, 0x11, 0x12, 0x1C},
	'E': {0x1F, 0x10, 0x10, 0x1E, 0x10, 0x10, 0x1F},
	'F': {0x1F, 0x10, 0x10, 0x1E, 0x10, 0x10, 0x10},
	'G': {0x0E, 0x11, 0x10, 0x17, 0x11, 0x11, 0x0F},
	'H': {0x11, 0x11, 0x11, 0x1F, 0x11, 0x11, 0x11},
	'I': {0x0E, 0x04, 0x04, 0x04, 0x04, 0x04, 0x0E},
	'J': {0x07, 0x02, 0x02, 0x02, 0x02, 0x12, 0x0C},
	'K': {0x11, 0x12, 0x14, 0x18, 0x14, 0x12, 0x11},
	'L': {0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x1F},
	'M': {0x11, 0x1B, 0x15, 0x15, 0x11, 0x11, 0x11},
	'N': {0x11, 0x11, 0x19, 0x15, 0x13, 0x11, 0x11},
	'O': {0x0E, 0x11, 0x11, 0x11, 0x11, 0x11, 0x0E},
	'P': {0x1E, 0x11, 0x11, 0x1E, 0x10, 0x10, 0x10},
	'Q': {0x0E, 0x11, 0x11, 0x11, 0x15, 0x12, 0x0D},
	'R': {0x1E, 0x11, 0x11, 0x1E, 0x14, 0x12, 0x11},
	'S': {0x0F, 0x10, 0x10, 0x0E, 0x01, 0x01, 0x1E},
	'T': {0x1F, 0x04, 0x04, 0x04, 0x04, 0x04, 0x04},
	'U': {0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x0E},
	'V': {0x11, 0x11, 0x11, 0x11, 0x11, 0x0A, 0x04},
	'W': {0x11, 0x11, 0x11, 0x15, 0x15, 0x15, 0x0A},
	'X': {0x11, 0x11, 0x0A, 0x04, 0x0A, 0x11, 0x11},
	'Y': {0x11, 0x11, 0x0A, 0x04, 0x04, 0x04, 0x04},
	'Z': {0x1F, 0x01, 0x02, 0x04, 0x08, 0x10, 0x1F},
}

// FillRect paints the rectangle, clipped to the frame.
func FillRect(f *frame.Frame, x, y, w, h int, r, g, b uint8) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, f.Width), min(y+h, f.Height)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			f.SetRGB(px, py, r, g, b)
		}
	}
}

// Fill paints the whole frame.
func Fill(f *frame.Frame, r, g, b uint8) {
	FillRect(f, 0, 0, f.Width, f.Height, r, g, b)
}

// DrawText renders s at (x, y) with the embedded font, scaled by scale.
// Lowercase letters render as their uppercase glyph; anything without a
// glyph renders as a blank cell. Pixels outside the frame are clipped.
func DrawText(f *frame.Frame, x, y int, s string, scale int, r, g, b uint8) {
	if scale < 1 {
		scale = 1
	}
	cx := x
	for _, ch := range s {
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		drawGlyph(f, cx, y, font5x7[ch], scale, r, g, b)
		cx += glyphPitch * scale
	}
}

// TextWidth returns the pixel width DrawText would use for s.
func TextWidth(s string, scale int) int {
	if scale < 1 {
		scale = 1
	}
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return (n*glyphPitch - 1) * scale
}

func drawGlyph(f *frame.Frame, x, y int, rows [GlyphHeight]byte, scale int, r, g, b uint8) {
	for gy, row := range rows {
		for gx := 0; gx < GlyphWidth; gx++ {
			if row&(1<<(GlyphWidth-1-gx)) == 0 {
				continue
			}
			FillRect(f, x+gx*scale, y+gy*scale, scale, scale, r, g, b)
		}
	}
}
