package main

import (
	"image"
	"math"
)

type vec2 struct {
	X, Y float64
}

func (a vec2) add(b vec2) vec2 { return vec2{a.X + b.X, a.Y + b.Y} }

func (a vec2) sub(b vec2) vec2 { return vec2{a.X - b.X, a.Y - b.Y} }

func (a vec2) mul(s float64) vec2 { return vec2{a.X * s, a.Y * s} }

func ptToVec(p image.Point) vec2 { return vec2{float64(p.X), float64(p.Y)} }

func toVecs(ps []image.Point) []vec2 {
	out := make([]vec2, len(ps))
	for i, p := range ps {
		out[i] = ptToVec(p)
	}
	return out
}

// signedArea is the shoelace area of the closed polygon pts.
func signedArea(pts []vec2) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

// centroid of the closed polygon pts, falling back to the vertex mean
// for degenerate polygons.
func centroid(pts []vec2) vec2 {
	if len(pts) == 0 {
		return vec2{}
	}
	a := signedArea(pts)
	if math.Abs(a) < 1e-9 {
		var m vec2
		for _, p := range pts {
			m = m.add(p)
		}
		return m.mul(1 / float64(len(pts)))
	}
	var c vec2
	for i := range pts {
		j := (i + 1) % len(pts)
		cross := pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
		c.X += (pts[i].X + pts[j].X) * cross
		c.Y += (pts[i].Y + pts[j].Y) * cross
	}
	return c.mul(1 / (6 * a))
}

// smoothed averages each vertex with its size-1 neighbours on each side.
// Neighbour weights fall linearly from 1 towards shape as they get
// further away. Closed lines wrap around.
func smoothed(pts []vec2, size int, shape float64, closed bool) []vec2 {
	n := len(pts)
	if size > n {
		size = n
	}
	if size < 0 {
		size = 0
	}
	if shape < 0 {
		shape = 0
	}
	if shape > 1 {
		shape = 1
	}

	weights := make([]float64, size)
	for i := 1; i < size; i++ {
		weights[i] = 1 + (shape-1)*float64(i)/float64(size)
	}

	out := make([]vec2, n)
	copy(out, pts)
	for i := 0; i < n; i++ {
		sum := 1.0
		for j := 1; j < size; j++ {
			var cur vec2
			l, r := i-j, i+j
			if l < 0 && closed {
				l += n
			}
			if l >= 0 {
				cur = cur.add(pts[l])
				sum += weights[j]
			}
			if r >= n && closed {
				r -= n
			}
			if r < n {
				cur = cur.add(pts[r])
				sum += weights[j]
			}
			out[i] = out[i].add(cur.mul(weights[j]))
		}
		out[i] = out[i].mul(1 / sum)
	}
	return out
}

type cubic struct {
	c1, c2, to vec2
}

// curvePath turns a sequence of curve vertices into cubic segments the
// way a catmull-rom curveTo sequence renders: the first and last
// vertices only steer the curve. start is the first point on the curve.
func curvePath(pts []vec2) (start vec2, segs []cubic) {
	if len(pts) < 4 {
		if len(pts) > 0 {
			start = pts[0]
		}
		for i := 1; i < len(pts); i++ {
			segs = append(segs, cubic{pts[i-1], pts[i], pts[i]})
		}
		return start, segs
	}
	start = pts[1]
	for i := 1; i+2 < len(pts); i++ {
		p0, p1, p2, p3 := pts[i-1], pts[i], pts[i+1], pts[i+2]
		segs = append(segs, cubic{
			c1: p1.add(p2.sub(p0).mul(1.0 / 6)),
			c2: p2.sub(p3.sub(p1).mul(1.0 / 6)),
			to: p2,
		})
	}
	return start, segs
}
