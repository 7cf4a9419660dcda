package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const lineHeight = 14

type overlayState struct {
	accelX, accelY, accelZ float64
	thresholdWithCV        bool
	near, far              int
	blobs                  int
	fps                    float64
	connected              bool
	angle                  int
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s overlayState) text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "accel is: %.2f / %.2f / %.2f\n", s.accelX, s.accelY, s.accelZ)
	sb.WriteString("press p to switch between images and point cloud, rotate the point cloud with the mouse\n")
	fmt.Fprintf(&sb, "using opencv threshold = %d (press spacebar)\n", b2i(s.thresholdWithCV))
	fmt.Fprintf(&sb, "set near threshold %d (press: + -)\n", s.near)
	fmt.Fprintf(&sb, "set far threshold %d (press: < >) num blobs found %d, fps: %.2f\n", s.far, s.blobs, s.fps)
	fmt.Fprintf(&sb, "press c to close the connection and o to open it again, connection is: %d\n", b2i(s.connected))
	fmt.Fprintf(&sb, "press UP and DOWN to change the tilt angle: %d degrees\n", s.angle)
	fmt.Fprintf(&sb, "number of blobs %d\n", s.blobs)
	sb.WriteString("press 1-5 & 0 to change the led mode\n")
	return sb.String()
}

// drawText writes multi line text with the baseline of the first line
// at (x, y).
func drawText(dst draw.Image, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
	}
	for i, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		d.Dot = fixed.P(x, y+i*lineHeight)
		d.DrawString(line)
	}
}

// pastePanel draws img scaled to w x h with its top left at (x, y).
func pastePanel(dst *image.NRGBA, img image.Image, x, y, w, h int) {
	if img == nil {
		return
	}
	var p image.Image = img
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		p = imaging.Resize(img, w, h, imaging.Linear)
	}
	draw.Draw(dst, image.Rect(x, y, x+w, y+h), p, p.Bounds().Min, draw.Src)
}

func newCanvas(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{100, 100, 100, 255})
}
