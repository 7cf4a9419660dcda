package main

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r3"
)

const (
	cloudStep      = 2
	cloudPointSize = 3
	cloudFOV       = 60.0
)

// orbitCam looks at the origin from a point on a sphere around it.
type orbitCam struct {
	yaw, pitch float64 // radians
	distance   float64
}

func newOrbitCam(viewHeight int) orbitCam {
	return orbitCam{distance: float64(viewHeight) / 2 / math.Tan(cloudFOV/2*math.Pi/180)}
}

// drag rotates the camera by a mouse movement in pixels.
func (oc *orbitCam) drag(dx, dy float64) {
	oc.yaw += dx * math.Pi / 360
	oc.pitch += dy * math.Pi / 360
	lim := math.Pi/2 - 0.01
	if oc.pitch > lim {
		oc.pitch = lim
	}
	if oc.pitch < -lim {
		oc.pitch = -lim
	}
}

// view transforms a world point into camera space, with the camera
// looking down -Z.
func (oc orbitCam) view(p r3.Vector) r3.Vector {
	cy, sy := math.Cos(-oc.yaw), math.Sin(-oc.yaw)
	p = r3.Vector{X: cy*p.X + sy*p.Z, Y: p.Y, Z: -sy*p.X + cy*p.Z}
	cp, sp := math.Cos(-oc.pitch), math.Sin(-oc.pitch)
	p = r3.Vector{X: p.X, Y: cp*p.Y - sp*p.Z, Z: sp*p.Y + cp*p.Z}
	return p.Sub(r3.Vector{Z: oc.distance})
}

// cloudVertex places a sensor point in the scene, flipped to face the
// camera and pushed back so it sits around the origin.
func cloudVertex(w r3.Vector) r3.Vector {
	return r3.Vector{X: w.X, Y: -w.Y, Z: -w.Z}.Add(r3.Vector{Z: 1000})
}

// renderCloud draws the points of f as seen by cam into dst. zbuf is
// scratch space of at least one entry per dst pixel; a shorter one is
// replaced. The buffer used is returned for reuse.
func renderCloud(dst *image.RGBA, zbuf []float64, f *frame, depthGray *image.Gray, cam orbitCam) (int, []float64) {
	b := dst.Bounds()
	if n := b.Dx() * b.Dy(); len(zbuf) < n {
		zbuf = make([]float64, n)
	}
	for i := range zbuf {
		zbuf[i] = math.Inf(1)
	}
	focal := float64(b.Dy()) / 2 / math.Tan(cloudFOV/2*math.Pi/180)
	cx, cy := float64(b.Min.X)+float64(b.Dx())/2, float64(b.Min.Y)+float64(b.Dy())/2

	drawn := 0
	for y := 0; y < f.h; y += cloudStep {
		for x := 0; x < f.w; x += cloudStep {
			mm := f.distanceAt(x, y)
			if mm == 0 {
				continue
			}
			v := cam.view(cloudVertex(worldAt(x, y, f.w, f.h, mm)))
			if v.Z >= 0 {
				continue
			}
			depth := -v.Z
			// camera space Y points up, screen Y down
			sx := int(cx + focal*v.X/depth)
			sy := int(cy - focal*v.Y/depth)

			c := pointColor(f, depthGray, x, y)
			for py := sy - cloudPointSize/2; py <= sy+cloudPointSize/2; py++ {
				for px := sx - cloudPointSize/2; px <= sx+cloudPointSize/2; px++ {
					if !image.Pt(px, py).In(b) {
						continue
					}
					zi := (py-b.Min.Y)*b.Dx() + px - b.Min.X
					if depth >= zbuf[zi] {
						continue
					}
					zbuf[zi] = depth
					dst.SetRGBA(px, py, c)
				}
			}
			drawn++
		}
	}
	return drawn, zbuf
}

func pointColor(f *frame, depthGray *image.Gray, x, y int) color.RGBA {
	if f.color != nil {
		cb := f.color.Bounds()
		c := color.RGBAModel.Convert(f.color.At(cb.Min.X+x*cb.Dx()/f.w, cb.Min.Y+y*cb.Dy()/f.h)).(color.RGBA)
		c.A = 255
		return c
	}
	if depthGray != nil {
		g := depthGray.GrayAt(x, y).Y
		return color.RGBA{g, g, g, 255}
	}
	return color.RGBA{255, 255, 255, 255}
}
