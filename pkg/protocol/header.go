package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// Wire constants.
const (
	// HeaderSize is the size of the update header in bytes.
	HeaderSize = 12

	// BytesPerPixel is the size of one RGB565 pixel on the wire.
	BytesPerPixel = 2
)

// Header errors.
var (
	ErrShortHeader = errors.New("protocol: buffer smaller than header")
	ErrHugePayload = errors.New("protocol: declared payload exceeds limit")
)

// Header describes one rectangular update. Coordinates are destination
// pixels with the origin at the display's top-left corner.
type Header struct {
	X, Y    uint16
	W, H    uint16
	DataLen uint32
}

// WellFormed reports whether DataLen matches the rectangle's pixel count.
// Receivers tolerate a mismatch (log and render) except for the oversized
// case, which is handled by the caller against its own buffer capacity.
func (h Header) WellFormed() bool {
	return h.DataLen == uint32(h.W)*uint32(h.H)*BytesPerPixel
}

// Degenerate reports whether the header describes a no-op update that must
// be drained but never rendered.
func (h Header) Degenerate() bool {
	return h.DataLen == 0 || h.W == 0 || h.H == 0
}

// Encode returns the 12-byte big-endian encoding of the header.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf
}

// EncodeTo encodes the header into buf, which must hold HeaderSize bytes.
func (h Header) EncodeTo(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.X)
	binary.BigEndian.PutUint16(buf[2:4], h.Y)
	binary.BigEndian.PutUint16(buf[4:6], h.W)
	binary.BigEndian.PutUint16(buf[6:8], h.H)
	binary.BigEndian.PutUint32(buf[8:12], h.DataLen)
}

// DecodeHeader decodes a header from the first HeaderSize bytes of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return Header{
		X:       binary.BigEndian.Uint16(data[0:2]),
		Y:       binary.BigEndian.Uint16(data[2:4]),
		W:       binary.BigEndian.Uint16(data[4:6]),
		H:       binary.BigEndian.Uint16(data[6:8]),
		DataLen: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// ReadHeader reads exactly one header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf[:])
}

// WriteUpdate writes the header followed by the payload as one buffer, so a
// single writer never interleaves two packets on the connection.
func WriteUpdate(w io.Writer, h Header, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	h.EncodeTo(buf)
	copy(buf[HeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}
