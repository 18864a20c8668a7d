// Package diff finds the regions of a frame that changed enough to need
// retransmission.
//
// The engine partitions the frame into fixed-size blocks, scores each block
// by the largest per-pixel channel-delta sum against the previous frame, and
// merges adjacent dirty blocks into rectangles. Output is deterministic for
// identical inputs: a higher threshold marks a subset of the blocks dirty.
package diff

import (
	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

// DefaultBlockSize is the block edge used when none is configured.
const DefaultBlockSize = 16

// Rect is a changed region in destination pixel coordinates.
type Rect struct {
	X, Y, W, H int
}

// Engine compares successive frames. It owns the previous rendered frame
// and is used by a single consumer goroutine.
type Engine struct {
	blockSize int
	prev      *frame.Frame
	forceFull bool
}

// NewEngine creates a diff engine with the given block size.
func NewEngine(blockSize int) *Engine {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Engine{blockSize: blockSize, forceFull: true}
}

// Reset discards the previous frame so the next Diff emits one rectangle
// covering the entire frame. Called on (re)connect and on explicit
// full-frame requests.
func (e *Engine) Reset() {
	e.prev = nil
	e.forceFull = true
}

// Diff returns the dirty rectangles between the previously diffed frame and
// curr, then retains curr as the new reference. A block is dirty when any
// of its pixels has sum(|Δr|,|Δg|,|Δb|) > threshold.
func (e *Engine) Diff(curr *frame.Frame, threshold int) []Rect {
	prev := e.prev
	e.prev = curr

	if e.forceFull || prev == nil || !prev.SameSize(curr) {
		e.forceFull = false
		return []Rect{{X: 0, Y: 0, W: curr.Width, H: curr.Height}}
	}

	bs := e.blockSize
	cols := (curr.Width + bs - 1) / bs
	rows := (curr.Height + bs - 1) / bs
	dirty := make([]bool, cols*rows)

	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			if blockChanged(prev, curr, bx*bs, by*bs, bs, threshold) {
				dirty[by*cols+bx] = true
			}
		}
	}

	return mergeBlocks(dirty, cols, rows, bs, curr.Width, curr.Height)
}

// blockChanged scans one block and reports whether any pixel's aggregate
// channel delta exceeds the threshold.
func blockChanged(prev, curr *frame.Frame, x0, y0, bs, threshold int) bool {
	x1 := min(x0+bs, curr.Width)
	y1 := min(y0+bs, curr.Height)
	for y := y0; y < y1; y++ {
		i := (y*curr.Width + x0) * 3
		for x := x0; x < x1; x++ {
			d := absDelta(prev.Pix[i], curr.Pix[i]) +
				absDelta(prev.Pix[i+1], curr.Pix[i+1]) +
				absDelta(prev.Pix[i+2], curr.Pix[i+2])
			if d > threshold {
				return true
			}
			i += 3
		}
	}
	return false
}

func absDelta(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// mergeBlocks turns the dirty-block grid into rectangles: horizontal runs
// within each block row, then runs with identical horizontal extent merged
// across consecutive rows.
func mergeBlocks(dirty []bool, cols, rows, bs, width, height int) []Rect {
	var rects []Rect

	// open maps a run's (x,w) extent to the index of a rect still growing
	// downward from the previous block row.
	type extent struct{ x, w int }
	open := map[extent]int{}

	for by := 0; by < rows; by++ {
		next := map[extent]int{}
		for bx := 0; bx < cols; {
			if !dirty[by*cols+bx] {
				bx++
				continue
			}
			start := bx
			for bx < cols && dirty[by*cols+bx] {
				bx++
			}
			x := start * bs
			w := min(bx*bs, width) - x
			y := by * bs
			h := min(y+bs, height) - y

			ext := extent{x, w}
			if i, ok := open[ext]; ok {
				rects[i].H += h
				next[ext] = i
				continue
			}
			rects = append(rects, Rect{X: x, Y: y, W: w, H: h})
			next[ext] = len(rects) - 1
		}
		open = next
	}
	return rects
}
