package main

import (
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"sync"

	"github.com/disintegration/gift"
)

// sigmadelta keeps a per pixel background estimate of the depth image.
// Pixels that stray from it by more than n times their running
// variance are foreground.
type sigmadelta struct {
	sync.RWMutex
	n      int
	bounds image.Rectangle

	m *image.Gray
	o *image.Gray
	v *image.Gray
	e *image.Gray

	clean *gift.GIFT
}

func newSigmaDelta(n int, bounds image.Rectangle) *sigmadelta {
	return &sigmadelta{
		n:      n,
		bounds: bounds,

		m: image.NewGray(bounds),
		o: image.NewGray(bounds),
		v: image.NewGray(bounds),
		e: image.NewGray(bounds),

		clean: gift.New(gift.GaussianBlur(1.5)),
	}
}

func (s *sigmadelta) Update(in *image.Gray) {
	s.Lock()
	defer s.Unlock()

	b := s.bounds.Intersect(in.Bounds())
	for j := b.Min.Y; j < b.Max.Y; j++ {
		for i := b.Min.X; i < b.Max.X; i++ {
			inx := in.GrayAt(i, j).Y

			// mt estimator
			mx := s.m.GrayAt(i, j).Y
			switch {
			case mx < inx:
				mx++
			case mx > inx:
				mx--
			}
			s.m.SetGray(i, j, color.Gray{mx})

			// ot computation
			oy := int(mx) - int(inx)
			if oy < 0 {
				oy = -oy
			}
			s.o.SetGray(i, j, color.Gray{uint8(oy)})

			// vt update
			vx := int(s.v.GrayAt(i, j).Y)
			not := s.n * oy
			switch {
			case vx < not && vx < 255:
				vx++
			case vx > not && vx > 1:
				vx--
			}
			s.v.SetGray(i, j, color.Gray{uint8(vx)})

			// et estimate
			if oy < vx {
				s.e.SetGray(i, j, color.Gray{0})
			} else {
				s.e.SetGray(i, j, color.Gray{255})
			}
		}
	}
}

// Mask returns the foreground estimate, blurred and binarised again to
// drop speckle.
func (s *sigmadelta) Mask() *image.Gray {
	s.RLock()
	defer s.RUnlock()
	dst := image.NewGray(s.clean.Bounds(s.e.Bounds()))
	s.clean.Draw(dst, s.e)
	for i, p := range dst.Pix {
		if p > 127 {
			dst.Pix[i] = 255
		} else {
			dst.Pix[i] = 0
		}
	}
	return dst
}

func (s *sigmadelta) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.RLock()
	defer s.RUnlock()

	var plane *image.Gray
	switch strings.TrimPrefix(r.URL.Path, "/") {
	case "m":
		plane = s.m
	case "o":
		plane = s.o
	case "v":
		plane = s.v
	case "e":
		plane = s.e
	default:
		http.Error(w, "file not found", 404)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	png.Encode(w, plane)
}
