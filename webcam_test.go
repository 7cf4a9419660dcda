package main

import (
	"bytes"
	"errors"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	. "gopkg.in/check.v1"
)

type WebcamSuite struct{}

var _ = Suite(&WebcamSuite{})

func (s *WebcamSuite) TestDecodeY16(c *C) {
	raw := []byte{0, 0, 0xff, 0x07, 0x00, 0x04}
	f, err := decodeDepth(raw, 3, 1, fmtY16)
	c.Assert(err, IsNil)
	c.Check(f.mm, DeepEquals, []uint16{rawToMM(0), 0, rawToMM(1024)})

	_, err = decodeDepth(raw[:5], 3, 1, fmtY16)
	c.Check(err, ErrorMatches, "short Y16 frame.*")
}

func (s *WebcamSuite) TestDecodeY10B(c *C) {
	// 1, 2, 512, 1023 packed as 10 bit big endian
	raw := []byte{0x00, 0x40, 0x28, 0x03, 0xff}
	f, err := decodeDepth(raw, 2, 2, fmtY10B)
	c.Assert(err, IsNil)
	c.Check(f.mm, DeepEquals, []uint16{rawToMM(2), rawToMM(4), rawToMM(1024), rawToMM(2046)})

	_, err = decodeDepth(raw[:4], 2, 2, fmtY10B)
	c.Check(err, ErrorMatches, "short Y10B frame.*")
}

func (s *WebcamSuite) TestDecodeUnknown(c *C) {
	_, err := decodeDepth(make([]byte, 8), 2, 2, fmtYUYV)
	c.Check(err, ErrorMatches, "unknown depth format")
}

func (s *WebcamSuite) TestFrameToImageYUYV(c *C) {
	img, err := frameToImage([]byte{10, 128, 20, 130}, 2, 1, fmtYUYV)
	c.Assert(err, IsNil)
	yc := img.(*image.YCbCr)
	c.Check(yc.Y, DeepEquals, []uint8{10, 20})
	c.Check(yc.Cb, DeepEquals, []uint8{128})
	c.Check(yc.Cr, DeepEquals, []uint8{130})

	_, err = frameToImage([]byte{10, 128}, 2, 1, fmtYUYV)
	c.Check(err, NotNil)
	_, err = frameToImage(nil, 2, 1, fmtY16)
	c.Check(err, ErrorMatches, "unknown format")
}

func (s *WebcamSuite) TestMotionDht(c *C) {
	noSOS := []byte{255, 216, 1, 2, 3}
	c.Check(addMotionDht(noSOS), DeepEquals, noSOS)

	withSOS := []byte{255, 216, 255, 218, 9}
	out := addMotionDht(withSOS)
	c.Check(bytes.HasPrefix(out, []byte{255, 216, 255, 196}), Equals, true)
	c.Check(bytes.HasSuffix(out, []byte{255, 218, 9}), Equals, true)
}

func (s *WebcamSuite) TestByArea(c *C) {
	sizes := []webcam.FrameSize{
		{MinWidth: 640, MaxWidth: 640, MinHeight: 480, MaxHeight: 480},
		{MinWidth: 320, MaxWidth: 320, MinHeight: 240, MaxHeight: 240},
	}
	sort.Sort(byArea(sizes))
	c.Check(sizes[0].MaxWidth, Equals, uint32(320))
}

// scriptedSource serves a fixed number of Y16 frames, then fails every
// read. A negative count never fails.
type scriptedSource struct {
	lock   sync.Mutex
	frames int
	reads  int
	closed bool
}

func (ss *scriptedSource) WaitForFrame(timeout uint32) error {
	time.Sleep(time.Millisecond)
	return nil
}

func (ss *scriptedSource) ReadFrame() ([]byte, error) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.frames >= 0 && ss.reads >= ss.frames {
		return nil, errors.New("device gone")
	}
	ss.reads++
	return make([]byte, 2*2*2), nil
}

func (ss *scriptedSource) Close() error {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.closed = true
	return nil
}

func (ss *scriptedSource) isClosed() bool {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.closed
}

type scriptedCam struct {
	kc           *kinectCam
	depth, color []*scriptedSource
}

func newScriptedCam(depthFrames int) *scriptedCam {
	sc := &scriptedCam{kc: newKinectCam("/dev/depth", "/dev/color")}
	sc.kc.open = func(dev, szstr string, supported map[webcam.PixelFormat]bool) (*v4lStream, error) {
		if dev == "/dev/depth" {
			src := &scriptedSource{frames: depthFrames}
			sc.depth = append(sc.depth, src)
			return &v4lStream{cam: src, f: fmtY16, w: 2, h: 2}, nil
		}
		src := &scriptedSource{frames: -1}
		sc.color = append(sc.color, src)
		return &v4lStream{cam: src, f: fmtYUYV, w: 2, h: 2}, nil
	}
	return sc
}

func waitFor(c *C, what string, cond func() bool) {
	for i := 0; i < 400; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Fatalf("timed out waiting for %s", what)
}

func closeWithin(c *C, kc *kinectCam) {
	done := make(chan error, 1)
	go func() { done <- kc.Close() }()
	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(2 * time.Second):
		c.Fatal("Close did not return")
	}
}

func (s *WebcamSuite) TestCloseStopsReadLoops(c *C) {
	sc := newScriptedCam(-1)
	c.Assert(sc.kc.Open(), IsNil)
	waitFor(c, "a depth frame", func() bool {
		_, ok := sc.kc.Next()
		return ok
	})
	c.Check(sc.kc.Connected(), Equals, true)

	closeWithin(c, sc.kc)
	c.Check(sc.kc.Connected(), Equals, false)
	c.Check(sc.depth[0].isClosed(), Equals, true)
	c.Check(sc.color[0].isClosed(), Equals, true)
}

func (s *WebcamSuite) TestDepthFailureReleasesDevices(c *C) {
	sc := newScriptedCam(2)
	c.Assert(sc.kc.Open(), IsNil)
	waitFor(c, "the depth stream to fail", func() bool { return !sc.kc.Connected() })
	c.Check(sc.depth[0].isClosed(), Equals, false)

	// reopening tears the failed connection down first
	c.Assert(sc.kc.Open(), IsNil)
	c.Assert(sc.depth, HasLen, 2)
	c.Check(sc.depth[0].isClosed(), Equals, true)
	c.Check(sc.color[0].isClosed(), Equals, true)

	closeWithin(c, sc.kc)
	c.Check(sc.depth[1].isClosed(), Equals, true)
	c.Check(sc.color[1].isClosed(), Equals, true)
}

func (s *WebcamSuite) TestCloseAfterDepthFailure(c *C) {
	sc := newScriptedCam(0)
	c.Assert(sc.kc.Open(), IsNil)
	waitFor(c, "the depth stream to fail", func() bool { return !sc.kc.Connected() })
	closeWithin(c, sc.kc)
	c.Check(sc.depth[0].isClosed(), Equals, true)
	c.Check(sc.color[0].isClosed(), Equals, true)
}
