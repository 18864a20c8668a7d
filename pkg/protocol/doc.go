// Package protocol implements the wire format spoken between a streaming
// pipeline and the display client.
//
// Each update on the wire is a fixed 12-byte big-endian header followed by
// the raw RGB565 pixel payload for one rectangle:
//
//	┌────────┬────────┬────────┬────────┬──────────────┐
//	│ x:u16  │ y:u16  │ w:u16  │ h:u16  │ dataLen:u32  │
//	└────────┴────────┴────────┴────────┴──────────────┘
//	│ payload (dataLen bytes, 2 bytes/pixel, row-major) │
//	└───────────────────────────────────────────────────┘
//
// Rectangles whose payload would not fit the client's receive buffer are
// split into chunks by SplitRect; every chunk is an independently renderable
// sub-rectangle with its own header.
package protocol
