package main

import (
	"image"

	"github.com/golang/geo/r3"
)

const (
	nearClipMM = 500
	farClipMM  = 4000

	// raw disparity at or above this value carries no reading
	rawNoReading = 2047

	focalX = 594.21
	focalY = 591.04
)

// rawToMM converts an 11 bit Kinect disparity value to millimetres.
func rawToMM(raw uint16) uint16 {
	if raw >= rawNoReading {
		return 0
	}
	d := float64(raw)*-0.0030711016 + 3.3309495161
	if d <= 0 {
		return 0
	}
	mm := 1000 / d
	if mm > 65535 {
		return 0
	}
	return uint16(mm)
}

// depthMapper turns distances into the 8 bit depth image the
// thresholds operate on.
type depthMapper struct {
	nearWhite bool
	lut       []uint8
}

func newDepthMapper(nearWhite bool) *depthMapper {
	m := &depthMapper{}
	m.setNearWhite(nearWhite)
	return m
}

func (m *depthMapper) setNearWhite(b bool) {
	m.nearWhite = b
	nearV, farV := 0.0, 255.0
	if b {
		nearV, farV = 255.0, 0.0
	}
	if m.lut == nil {
		m.lut = make([]uint8, farClipMM+1)
	}
	for i := range m.lut {
		if i == 0 {
			m.lut[i] = 0
			continue
		}
		m.lut[i] = uint8(mapClamped(float64(i), nearClipMM, farClipMM, nearV, farV) + 0.5)
	}
}

func (m *depthMapper) gray(mm uint16) uint8 {
	if int(mm) >= len(m.lut) {
		return m.lut[len(m.lut)-1]
	}
	return m.lut[mm]
}

// toGray fills dst with the mapped image of f. dst is reallocated when
// its size does not match.
func (m *depthMapper) toGray(f *frame, dst *image.Gray) *image.Gray {
	if dst == nil || dst.Rect.Dx() != f.w || dst.Rect.Dy() != f.h {
		dst = image.NewGray(image.Rect(0, 0, f.w, f.h))
	}
	for y := 0; y < f.h; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+f.w]
		for x := range row {
			row[x] = m.gray(f.mm[y*f.w+x])
		}
	}
	return dst
}

// worldAt projects pixel (x, y) at distance mm into camera space, in mm.
func worldAt(x, y, w, h int, mm uint16) r3.Vector {
	z := float64(mm)
	return r3.Vector{
		X: (float64(x) - float64(w)/2) * z / focalX,
		Y: (float64(y) - float64(h)/2) * z / focalY,
		Z: z,
	}
}

func mapClamped(v, inMin, inMax, outMin, outMax float64) float64 {
	t := (v - inMin) / (inMax - inMin)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return outMin + t*(outMax-outMin)
}
