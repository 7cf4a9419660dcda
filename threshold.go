package main

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// thresholdCV keeps pixels with far < v <= near, using a pair of OpenCV
// thresholds joined with a bitwise and.
func thresholdCV(src *image.Gray, near, far int) (*image.Gray, error) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	in, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, packGray(src))
	if err != nil {
		return nil, fmt.Errorf("wrapping depth image, %v", err)
	}
	defer in.Close()

	nearM := gocv.NewMat()
	defer nearM.Close()
	farM := gocv.NewMat()
	defer farM.Close()
	out := gocv.NewMat()
	defer out.Close()

	gocv.Threshold(in, &nearM, float32(near), 255, gocv.ThresholdBinaryInv)
	gocv.Threshold(in, &farM, float32(far), 255, gocv.ThresholdBinary)
	if err := gocv.BitwiseAnd(nearM, farM, &out); err != nil {
		return nil, fmt.Errorf("joining thresholds, %v", err)
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	copy(dst.Pix, out.ToBytes())
	return dst, nil
}

// thresholdManual keeps pixels with far < v < near.
func thresholdManual(src *image.Gray, near, far int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		off := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
		in := src.Pix[off : off+w]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x, v := range in {
			if int(v) < near && int(v) > far {
				out[x] = 255
			}
		}
	}
	return dst
}

// andMask clears every pixel of dst that is zero in mask.
func andMask(dst, mask *image.Gray) {
	b := dst.Rect.Intersect(mask.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.Pix[mask.PixOffset(x, y)] == 0 {
				dst.Pix[dst.PixOffset(x, y)] = 0
			}
		}
	}
}

// packGray returns the pixels of img with no row padding.
func packGray(img *image.Gray) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w && img.Rect.Min == (image.Point{}) {
		return img.Pix[:w*h]
	}
	out := make([]byte, w*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(out[y*w:(y+1)*w], img.Pix[off:off+w])
	}
	return out
}
