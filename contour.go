package main

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

type blob struct {
	area     float64
	centroid vec2
	pts      []image.Point
	bounds   image.Rectangle
}

func newBlob(pts []image.Point) blob {
	vs := toVecs(pts)
	b := blob{
		area:     math.Abs(signedArea(vs)),
		centroid: centroid(vs),
		pts:      pts,
	}
	if len(pts) > 0 {
		b.bounds = image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
		for _, p := range pts[1:] {
			b.bounds = b.bounds.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
		}
	}
	return b
}

type contourFinder interface {
	// Find returns the outer contours of the foreground of mask whose
	// area is within [minArea, maxArea], largest first, at most
	// considered of them.
	Find(mask *image.Gray, minArea, maxArea float64, considered int) ([]blob, error)
}

// keepBlobs applies the area limits, ordering and count limit shared by
// all finders.
func keepBlobs(all []blob, minArea, maxArea float64, considered int) []blob {
	out := all[:0]
	for _, b := range all {
		if b.area >= minArea && b.area <= maxArea {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].area > out[j].area })
	if considered > 0 && len(out) > considered {
		out = out[:considered]
	}
	return out
}

// largestBlob is the index of the blob with the biggest area, -1 if
// there are none.
func largestBlob(bs []blob) int {
	best := -1
	for i := range bs {
		if best < 0 || bs[i].area > bs[best].area {
			best = i
		}
	}
	return best
}

type cvContourFinder struct{}

func (cvContourFinder) Find(mask *image.Gray, minArea, maxArea float64, considered int) ([]blob, error) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, packGray(mask))
	if err != nil {
		return nil, fmt.Errorf("wrapping mask, %v", err)
	}
	defer m.Close()

	cs := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer cs.Close()

	var all []blob
	for i := 0; i < cs.Size(); i++ {
		c := cs.At(i)
		b := newBlob(c.ToPoints())
		b.area = math.Abs(gocv.ContourArea(c))
		all = append(all, b)
	}
	return keepBlobs(all, minArea, maxArea, considered), nil
}
