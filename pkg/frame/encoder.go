package frame

import (
	"encoding/binary"
	"math"
)

// Correction is the per-pipeline color correction applied while converting
// a region to the wire pixel format. Gamma 1.0 and unit white-balance scale
// leave pixels untouched.
type Correction struct {
	// Gamma is the exponent applied to normalized channel values.
	Gamma float64

	// WBScale scales the R, G and B channels after gamma.
	WBScale [3]float64
}

// Identity reports whether the correction is a no-op.
func (c Correction) Identity() bool {
	return (c.Gamma == 0 || c.Gamma == 1.0) &&
		(c.WBScale == [3]float64{} || c.WBScale == [3]float64{1, 1, 1})
}

// DefaultCorrection returns the no-op correction.
func DefaultCorrection() Correction {
	return Correction{Gamma: 1.0, WBScale: [3]float64{1, 1, 1}}
}

// Encoder converts frame regions from the RGB working format to big-endian
// RGB565, applying color correction and optional Floyd–Steinberg dithering.
// An encoder is owned by one consumer goroutine; it is not safe for
// concurrent use.
type Encoder struct {
	dither bool
	lut    [3][256]uint8
}

// NewEncoder builds an encoder with the correction baked into per-channel
// lookup tables.
func NewEncoder(c Correction, dither bool) *Encoder {
	e := &Encoder{dither: dither}
	gamma := c.Gamma
	if gamma == 0 {
		gamma = 1.0
	}
	scale := c.WBScale
	if scale == ([3]float64{}) {
		scale = [3]float64{1, 1, 1}
	}
	for ch := 0; ch < 3; ch++ {
		for v := 0; v < 256; v++ {
			corrected := math.Pow(float64(v)/255.0, gamma) * scale[ch] * 255.0
			e.lut[ch][v] = uint8(math.Min(255, math.Max(0, math.Round(corrected))))
		}
	}
	return e
}

// EncodeRegion converts the w×h region at (x, y) of f into RGB565 bytes,
// 2 bytes per pixel, big-endian, row-major.
func (e *Encoder) EncodeRegion(f *Frame, x, y, w, h int) []byte {
	if w <= 0 || h <= 0 {
		return nil
	}
	if e.dither {
		return e.encodeDithered(f, x, y, w, h)
	}
	out := make([]byte, w*h*2)
	oi := 0
	for ry := 0; ry < h; ry++ {
		si := ((y+ry)*f.Width + x) * 3
		for rx := 0; rx < w; rx++ {
			r := e.lut[0][f.Pix[si]]
			g := e.lut[1][f.Pix[si+1]]
			b := e.lut[2][f.Pix[si+2]]
			binary.BigEndian.PutUint16(out[oi:], PackRGB565(r, g, b))
			si += 3
			oi += 2
		}
	}
	return out
}

// encodeDithered quantizes the corrected region to the RGB565 lattice with
// Floyd–Steinberg error diffusion, then packs it.
func (e *Encoder) encodeDithered(f *Frame, x, y, w, h int) []byte {
	// Working copy in float32; errors diffuse beyond 0..255.
	pix := make([]float32, w*h*3)
	for ry := 0; ry < h; ry++ {
		si := ((y+ry)*f.Width + x) * 3
		di := ry * w * 3
		for rx := 0; rx < w; rx++ {
			pix[di] = float32(e.lut[0][f.Pix[si]])
			pix[di+1] = float32(e.lut[1][f.Pix[si+1]])
			pix[di+2] = float32(e.lut[2][f.Pix[si+2]])
			si += 3
			di += 3
		}
	}

	out := make([]byte, w*h*2)
	for ry := 0; ry < h; ry++ {
		for rx := 0; rx < w; rx++ {
			i := (ry*w + rx) * 3
			r, er := quantize(pix[i], 8)
			g, eg := quantize(pix[i+1], 4)
			b, eb := quantize(pix[i+2], 8)
			binary.BigEndian.PutUint16(out[(ry*w+rx)*2:], PackRGB565(r, g, b))

			diffuse(pix, w, h, rx+1, ry, er, eg, eb, 7.0/16.0)
			diffuse(pix, w, h, rx-1, ry+1, er, eg, eb, 3.0/16.0)
			diffuse(pix, w, h, rx, ry+1, er, eg, eb, 5.0/16.0)
			diffuse(pix, w, h, rx+1, ry+1, er, eg, eb, 1.0/16.0)
		}
	}
	return out
}

// quantize snaps v to the nearest multiple of step, clamped to 0..255, and
// returns the value plus the rounding error.
func quantize(v float32, step float32) (uint8, float32) {
	q := float32(math.Round(float64(v/step))) * step
	if q < 0 {
		q = 0
	}
	if q > 255 {
		q = 255
	}
	return uint8(q), v - q
}

func diffuse(pix []float32, w, h, x, y int, er, eg, eb, weight float32) {
	if x < 0 || x >= w || y >= h {
		return
	}
	i := (y*w + x) * 3
	pix[i] += er * weight
	pix[i+1] += eg * weight
	pix[i+2] += eb * weight
}

// PackRGB565 packs 8-bit channels into the 16-bit wire pixel format.
func PackRGB565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}
