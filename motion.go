package main

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"github.com/harrydb/go/img/grayscale"
	"github.com/lucasb-eyer/go-colorful"
)

// cocosContourFinder labels 8-connected components and walks the outer
// boundary of each one.
type cocosContourFinder struct{}

func (cocosContourFinder) Find(mask *image.Gray, minArea, maxArea float64, considered int) ([]blob, error) {
	cocos := grayscale.CoCos(mask, 255, grayscale.NEIGHBOR8)
	all := make([]blob, 0, len(cocos))
	for i := range cocos {
		// a contour needs at least a triangle to have any area
		if len(cocos[i]) < 3 {
			continue
		}
		all = append(all, newBlob(traceBoundary(cocos[i])))
	}
	return keepBlobs(all, minArea, maxArea, considered), nil
}

// clockwise neighbourhood, starting west, y pointing down
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// traceBoundary returns the outer boundary of a single connected
// component, in order, using Moore neighbour tracing.
func traceBoundary(comp []image.Point) []image.Point {
	if len(comp) == 0 {
		return nil
	}
	r := image.Rectangle{Min: comp[0], Max: comp[0].Add(image.Pt(1, 1))}
	for _, p := range comp[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	in := make([]bool, r.Dx()*r.Dy())
	set := func(p image.Point) bool {
		if !p.In(r) {
			return false
		}
		return in[(p.Y-r.Min.Y)*r.Dx()+p.X-r.Min.X]
	}

	start := comp[0]
	for _, p := range comp {
		in[(p.Y-r.Min.Y)*r.Dx()+p.X-r.Min.X] = true
		if p.Y < start.Y || (p.Y == start.Y && p.X < start.X) {
			start = p
		}
	}

	// the raster first pixel always has background to its west
	backStart := start.Add(moore[0])
	out := []image.Point{start}
	cur, back := start, 0
	for limit := 4*len(comp) + 8; limit > 0; limit-- {
		found := false
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			n := cur.Add(moore[d])
			if !set(n) {
				continue
			}
			prev := cur.Add(moore[(d+7)%8])
			if n == start && prev == backStart {
				return out
			}
			back = mooreIndex(prev.Sub(n))
			cur = n
			found = true
			break
		}
		if !found {
			// isolated pixel
			return out
		}
		out = append(out, cur)
	}
	glog.V(2).Infof("boundary trace hit its step limit at %d points", len(out))
	return out
}

// blobView keeps the last set of blobs for the debug page.
type blobView struct {
	sync.RWMutex
	bounds image.Rectangle
	blobs  []blob
}

func (bv *blobView) Update(bounds image.Rectangle, bs []blob) {
	bv.Lock()
	defer bv.Unlock()
	bv.bounds = bounds
	bv.blobs = append(bv.blobs[:0], bs...)
}

func (bv *blobView) render() *image.RGBA {
	bv.RLock()
	defer bv.RUnlock()
	img := image.NewRGBA(bv.bounds)
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if len(bv.blobs) == 0 {
		return img
	}
	pal := colorful.FastWarmPalette(len(bv.blobs))
	for i, b := range bv.blobs {
		for _, p := range b.pts {
			img.Set(p.X, p.Y, pal[i])
		}
		c := image.Pt(int(b.centroid.X), int(b.centroid.Y))
		for d := -2; d <= 2; d++ {
			img.Set(c.X+d, c.Y, color.White)
			img.Set(c.X, c.Y+d, color.White)
		}
	}
	return img
}

func (bv *blobView) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, bv.render()); err != nil {
		glog.V(1).Infof("blob view: %v", err)
	}
}
