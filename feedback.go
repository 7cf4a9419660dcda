package main

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/gift"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"
)

const feedbackScaleAmount = 1.02

// fade is drawn over the whole buffer every frame so old trails die out.
var fade = image.NewUniform(color.NRGBA{0, 0, 0, 10})

func newFramebuffer(w, h int) *image.RGBA {
	fb := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(fb, fb.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return fb
}

// hsbFill converts hue, saturation and brightness on a 0-255 scale.
func hsbFill(hue, sat, bri float64) color.Color {
	c := colorful.Hsv(hue/255*360, sat/255, bri/255)
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}
}

// scaleAbout draws src into dst scaled by s, keeping the point about
// fixed.
func scaleAbout(dst draw.Image, src image.Image, about vec2, s float64) {
	b := src.Bounds()
	sw := int(math.Round(float64(b.Dx()) * s))
	sh := int(math.Round(float64(b.Dy()) * s))
	g := gift.New(gift.Resize(sw, sh, gift.LinearResampling))
	scaled := image.NewRGBA(g.Bounds(b))
	g.Draw(scaled, src)

	// the pixel at about in scaled space sits at about*s
	off := image.Pt(
		int(math.Round(about.X*s-about.X)),
		int(math.Round(about.Y*s-about.Y)),
	)
	draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min.Add(off), draw.Src)
}

// fillPath rasterises the closed curve through pts onto dst.
func fillPath(dst draw.Image, pts []vec2, fill color.Color) {
	if len(pts) < 3 {
		return
	}
	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	clamp := func(v vec2) (float32, float32) {
		return float32(math.Max(0, math.Min(w, v.X))), float32(math.Max(0, math.Min(h, v.Y)))
	}

	z := vector.NewRasterizer(b.Dx(), b.Dy())
	start, segs := curvePath(pts)
	z.MoveTo(clamp(start))
	for _, s := range segs {
		c1x, c1y := clamp(s.c1)
		c2x, c2y := clamp(s.c2)
		tx, ty := clamp(s.to)
		z.CubeTo(c1x, c1y, c2x, c2y, tx, ty)
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(fill), image.Point{})
}

// composite renders one step of the trail into ping, feeding back
// pong scaled around the person.
func composite(ping *image.RGBA, pong image.Image, person vec2, contour []vec2, fill color.Color) {
	scaleAbout(ping, pong, person, feedbackScaleAmount)
	draw.Draw(ping, ping.Bounds(), fade, image.Point{}, draw.Over)
	fillPath(ping, contour, fill)
}
