package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"
)

type PlaybackSuite struct {
	dir string
}

var _ = Suite(&PlaybackSuite{})

func writePNG(c *C, fn string, img image.Image) {
	fd, err := os.Create(fn)
	c.Assert(err, IsNil)
	defer fd.Close()
	c.Assert(png.Encode(fd, img), IsNil)
}

func depthPNG(mm uint16) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray16(x, y, color.Gray16{mm})
		}
	}
	return img
}

func (s *PlaybackSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
	writePNG(c, filepath.Join(s.dir, "0001.png"), depthPNG(1200))
	writePNG(c, filepath.Join(s.dir, "0002.png"), depthPNG(2400))
	writePNG(c, filepath.Join(s.dir, "0002_color.png"), image.NewRGBA(image.Rect(0, 0, 4, 3)))
	c.Assert(os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0644), IsNil)
}

func (s *PlaybackSuite) TestDepthFiles(c *C) {
	fs, err := depthFiles(s.dir)
	c.Assert(err, IsNil)
	c.Check(fs, DeepEquals, []string{filepath.Join(s.dir, "0001.png"), filepath.Join(s.dir, "0002.png")})
}

func (s *PlaybackSuite) TestLoopsAtFrameRate(c *C) {
	now := time.Unix(1000, 0)
	ps := newPlaybackSensor(s.dir, 10)
	ps.now = func() time.Time { return now }

	_, ok := ps.Next()
	c.Check(ok, Equals, false)
	c.Assert(ps.Open(), IsNil)
	c.Check(ps.Connected(), Equals, true)

	f, ok := ps.Next()
	c.Assert(ok, Equals, true)
	c.Check(f.w, Equals, 4)
	c.Check(f.h, Equals, 3)
	c.Check(f.distanceAt(1, 1), Equals, uint16(1200))
	c.Check(f.color, IsNil)

	_, ok = ps.Next()
	c.Check(ok, Equals, false)

	now = now.Add(100 * time.Millisecond)
	f, ok = ps.Next()
	c.Assert(ok, Equals, true)
	c.Check(f.distanceAt(0, 0), Equals, uint16(2400))
	c.Check(f.color, NotNil)

	now = now.Add(100 * time.Millisecond)
	f, ok = ps.Next()
	c.Assert(ok, Equals, true)
	c.Check(f.distanceAt(0, 0), Equals, uint16(1200))

	c.Assert(ps.Close(), IsNil)
	c.Check(ps.Connected(), Equals, false)
	now = now.Add(time.Second)
	_, ok = ps.Next()
	c.Check(ok, Equals, false)
}

func (s *PlaybackSuite) TestMotorRequests(c *C) {
	ps := newPlaybackSensor(s.dir, 0)
	c.Check(ps.interval, Equals, time.Second/30)
	c.Assert(ps.SetTilt(50), IsNil)
	c.Check(ps.tilt, Equals, 30)
	c.Assert(ps.SetLED(ledRed), IsNil)
	c.Check(ps.led, Equals, ledRed)
}

func (s *PlaybackSuite) TestEmptyDir(c *C) {
	ps := newPlaybackSensor(c.MkDir(), 30)
	c.Check(ps.Open(), ErrorMatches, "no depth frames in .*")
}
