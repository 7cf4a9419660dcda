package main

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/golang/glog"
)

const colorSuffix = "_color.png"

// playbackSensor loops over a directory of 16 bit PNG depth frames,
// values in mm. A file foo_color.png is used as the color image for
// foo.png.
type playbackSensor struct {
	dir      string
	interval time.Duration
	now      func() time.Time

	lock   sync.Mutex
	frames []*frame
	open   bool
	pos    int
	last   time.Time
	tilt   int
	led    ledMode
}

func newPlaybackSensor(dir string, fps int) *playbackSensor {
	if fps <= 0 {
		fps = 30
	}
	return &playbackSensor{
		dir:      dir,
		interval: time.Second / time.Duration(fps),
		now:      time.Now,
	}
}

// depthFiles lists the depth frames in dir in name order.
func depthFiles(dir string) ([]string, error) {
	fd, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	names, err := fd.Readdirnames(0)
	if err != nil {
		return nil, err
	}
	var fs []string
	for _, n := range names {
		if filepath.Ext(n) != ".png" || strings.HasSuffix(n, colorSuffix) {
			continue
		}
		fs = append(fs, filepath.Join(dir, n))
	}
	sort.Strings(fs)
	return fs, nil
}

func loadImage(fn string) (image.Image, error) {
	fd, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	img, _, err := image.Decode(fd)
	if err != nil {
		return nil, fmt.Errorf("decoding %s, %v", fn, err)
	}
	return img, nil
}

func imageToFrame(img image.Image) *frame {
	b := img.Bounds()
	f := &frame{w: b.Dx(), h: b.Dy(), mm: make([]uint16, b.Dx()*b.Dy())}
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			f.mm[y*f.w+x] = g.Y
		}
	}
	return f
}

func (ps *playbackSensor) Open() error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	if ps.open {
		return nil
	}
	if ps.frames == nil {
		fns, err := depthFiles(ps.dir)
		if err != nil {
			return err
		}
		if len(fns) == 0 {
			return fmt.Errorf("no depth frames in %s", ps.dir)
		}
		for _, fn := range fns {
			img, err := loadImage(fn)
			if err != nil {
				return err
			}
			f := imageToFrame(img)
			cfn := strings.TrimSuffix(fn, ".png") + colorSuffix
			if _, err := os.Stat(cfn); err == nil {
				if f.color, err = loadImage(cfn); err != nil {
					return err
				}
			}
			ps.frames = append(ps.frames, f)
		}
		glog.Infof("loaded %d frames from %s", len(ps.frames), ps.dir)
	}
	ps.open = true
	ps.pos = 0
	ps.last = time.Time{}
	return nil
}

func (ps *playbackSensor) Close() error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.open = false
	return nil
}

func (ps *playbackSensor) Connected() bool {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.open
}

func (ps *playbackSensor) Next() (*frame, bool) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	if !ps.open {
		return nil, false
	}
	now := ps.now()
	if !ps.last.IsZero() && now.Sub(ps.last) < ps.interval {
		return nil, false
	}
	ps.last = now
	f := ps.frames[ps.pos]
	ps.pos = (ps.pos + 1) % len(ps.frames)
	return f, true
}

func (ps *playbackSensor) SetTilt(deg int) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.tilt = clampTilt(deg)
	glog.V(1).Infof("playback tilt %d", ps.tilt)
	return nil
}

func (ps *playbackSensor) SetLED(l ledMode) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	ps.led = l
	glog.V(1).Infof("playback led %v", l)
	return nil
}

func (ps *playbackSensor) Accel() r3.Vector { return r3.Vector{} }
