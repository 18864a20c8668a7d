package protocol

import (
	"errors"
	"fmt"
)

// Chunk errors.
var (
	ErrPayloadSize   = errors.New("protocol: payload length does not match rect")
	ErrChunkTooSmall = errors.New("protocol: max chunk size below one pixel")
)

// Chunk is one wire packet carved out of a rectangle's payload. Its header
// describes the exact placement of the sub-rectangle it covers, so every
// chunk renders independently. Payload aliases the input rect payload.
type Chunk struct {
	Header  Header
	Payload []byte
}

// SplitRect splits one dirty rectangle's RGB565 payload into chunks whose
// payloads never exceed maxChunkData bytes.
//
// Splitting happens along whole scan-lines. Only when a single row is itself
// larger than maxChunkData is the row split mid-line, always on a pixel
// (2-byte) boundary. Concatenating the chunk payloads in emission order
// reproduces the rect payload exactly.
//
// Degenerate rects (w or h zero, empty payload) yield no chunks.
func SplitRect(x, y, w, h int, payload []byte, maxChunkData int) ([]Chunk, error) {
	if w <= 0 || h <= 0 || len(payload) == 0 {
		return nil, nil
	}
	if len(payload) != w*h*BytesPerPixel {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrPayloadSize, len(payload), w, h)
	}
	if maxChunkData < BytesPerPixel {
		return nil, ErrChunkTooSmall
	}

	if len(payload) <= maxChunkData {
		return []Chunk{{
			Header: Header{
				X: uint16(x), Y: uint16(y),
				W: uint16(w), H: uint16(h),
				DataLen: uint32(len(payload)),
			},
			Payload: payload,
		}}, nil
	}

	bytesPerRow := w * BytesPerPixel
	if bytesPerRow <= maxChunkData {
		return splitRows(x, y, w, h, payload, maxChunkData/bytesPerRow), nil
	}
	return splitWithinRows(x, y, w, h, payload, maxChunkData/BytesPerPixel), nil
}

// splitRows emits bands of rowsPerChunk whole scan-lines.
func splitRows(x, y, w, h int, payload []byte, rowsPerChunk int) []Chunk {
	bytesPerRow := w * BytesPerPixel
	chunks := make([]Chunk, 0, (h+rowsPerChunk-1)/rowsPerChunk)
	for row := 0; row < h; row += rowsPerChunk {
		rows := min(rowsPerChunk, h-row)
		off := row * bytesPerRow
		data := payload[off : off+rows*bytesPerRow]
		chunks = append(chunks, Chunk{
			Header: Header{
				X: uint16(x), Y: uint16(y + row),
				W: uint16(w), H: uint16(rows),
				DataLen: uint32(len(data)),
			},
			Payload: data,
		})
	}
	return chunks
}

// splitWithinRows handles the rare case of a single row wider than the
// chunk limit: every row becomes a run of height-1 sub-rectangles.
func splitWithinRows(x, y, w, h int, payload []byte, pixelsPerChunk int) []Chunk {
	bytesPerRow := w * BytesPerPixel
	perRow := (w + pixelsPerChunk - 1) / pixelsPerChunk
	chunks := make([]Chunk, 0, h*perRow)
	for row := 0; row < h; row++ {
		rowData := payload[row*bytesPerRow : (row+1)*bytesPerRow]
		for px := 0; px < w; px += pixelsPerChunk {
			pixels := min(pixelsPerChunk, w-px)
			data := rowData[px*BytesPerPixel : (px+pixels)*BytesPerPixel]
			chunks = append(chunks, Chunk{
				Header: Header{
					X: uint16(x + px), Y: uint16(y + row),
					W: uint16(pixels), H: 1,
					DataLen: uint32(len(data)),
				},
				Payload: data,
			})
		}
	}
	return chunks
}
