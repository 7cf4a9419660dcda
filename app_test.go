package main

import (
	"image/color"
	"math"
	"strings"

	. "gopkg.in/check.v1"
)

type AppSuite struct {
	fs *fakeSensor
	a  *app
}

var _ = Suite(&AppSuite{})

func (s *AppSuite) SetUpTest(c *C) {
	s.fs = &fakeSensor{}
	s.a = newApp(s.fs, config{finder: cocosContourFinder{}})
	c.Assert(s.a.setup(), IsNil)
}

func (s *AppSuite) TestSetupDefaults(c *C) {
	c.Check(s.a.nearThreshold, Equals, 255)
	c.Check(s.a.farThreshold, Equals, 117)
	c.Check(s.a.thresholdWithCV, Equals, true)
	c.Check(s.a.drawPointCloud, Equals, false)
	c.Check(s.fs.open, Equals, true)
	c.Check(s.fs.tilts, DeepEquals, []int{0})
	c.Check(s.a.fbo.Bounds().Dx(), Equals, 640)
	c.Check(s.a.fbo2.Bounds().Dy(), Equals, 480)
}

func (s *AppSuite) TestThresholdKeysClamp(c *C) {
	s.a.keyPressed("+")
	c.Check(s.a.nearThreshold, Equals, 255)
	s.a.keyPressed("-")
	c.Check(s.a.nearThreshold, Equals, 254)
	s.a.keyPressed("=")
	c.Check(s.a.nearThreshold, Equals, 255)

	s.a.keyPressed(".")
	s.a.keyPressed(">")
	c.Check(s.a.farThreshold, Equals, 119)
	for i := 0; i < 200; i++ {
		s.a.keyPressed(",")
	}
	c.Check(s.a.farThreshold, Equals, 0)
	s.a.keyPressed("<")
	c.Check(s.a.farThreshold, Equals, 0)
}

func (s *AppSuite) TestToggles(c *C) {
	c.Check(s.a.keyPressed(" "), Equals, true)
	c.Check(s.a.thresholdWithCV, Equals, false)
	s.a.keyPressed("p")
	c.Check(s.a.drawPointCloud, Equals, true)
	s.a.keyPressed("w")
	c.Check(s.a.mapper.nearWhite, Equals, false)
	c.Check(s.a.keyPressed("q"), Equals, false)
}

func (s *AppSuite) TestTiltAndConnection(c *C) {
	for i := 0; i < 40; i++ {
		s.a.keyPressed("up")
	}
	c.Check(s.a.angle, Equals, 30)
	c.Check(s.fs.tilts[len(s.fs.tilts)-1], Equals, 30)

	s.a.keyPressed("c")
	c.Check(s.fs.open, Equals, false)
	c.Check(s.fs.tilts[len(s.fs.tilts)-1], Equals, 0)

	s.a.keyPressed("o")
	c.Check(s.fs.open, Equals, true)
	c.Check(s.fs.tilts[len(s.fs.tilts)-1], Equals, 30)

	for i := 0; i < 100; i++ {
		s.a.keyPressed("down")
	}
	c.Check(s.a.angle, Equals, -30)

	c.Assert(s.a.exit(), IsNil)
	c.Check(s.fs.open, Equals, false)
	c.Check(s.fs.tilts[len(s.fs.tilts)-1], Equals, 0)
}

func (s *AppSuite) TestLEDKeys(c *C) {
	for _, k := range []string{"1", "2", "3", "4", "5", "0"} {
		s.a.keyPressed(k)
	}
	c.Check(s.fs.leds, DeepEquals, []ledMode{ledGreen, ledYellow, ledRed, ledBlinkGreen, ledBlinkYellowRed, ledOff})
}

func (s *AppSuite) TestHueWraps(c *C) {
	for i := 0; i < 127; i++ {
		s.a.update()
	}
	c.Check(s.a.hue, Equals, 254.0)
	s.a.update()
	c.Check(s.a.hue, Equals, 1.0)
}

func (s *AppSuite) TestUpdateFindsPerson(c *C) {
	s.fs.frames = []*frame{personFrame(200, 100, 300, 400)}
	s.a.update()

	c.Check(s.a.nBlobs, Equals, 1)
	c.Check(math.Abs(s.a.person.X-249.5) < 0.5, Equals, true)
	c.Check(math.Abs(s.a.person.Y-249.5) < 0.5, Equals, true)
	c.Check(len(s.a.contour) > minBlobPoints, Equals, true)

	// no new frame keeps the last silhouette
	s.a.update()
	c.Check(s.a.nBlobs, Equals, 1)
}

func (s *AppSuite) TestUpdateManualThreshold(c *C) {
	s.a.keyPressed(" ")
	s.fs.frames = []*frame{personFrame(10, 10, 60, 60)}
	s.a.update()
	c.Check(s.a.nBlobs, Equals, 1)
}

func (s *AppSuite) TestNothingInRange(c *C) {
	// everything beyond the far threshold
	s.fs.frames = []*frame{personFrame(0, 0, 0, 0)}
	s.a.update()
	c.Check(s.a.nBlobs, Equals, 0)
	c.Check(s.a.contour, HasLen, 0)
}

func (s *AppSuite) TestDrawTrail(c *C) {
	s.fs.frames = []*frame{personFrame(200, 100, 300, 400)}
	s.a.update()
	img := s.a.draw()

	c.Check(img.Bounds().Dx(), Equals, canvasW)
	c.Check(img.Bounds().Dy(), Equals, canvasH)

	// framebuffer is drawn at (410, 10); the person is filled in
	want := color.NRGBAModel.Convert(hsbFill(s.a.hue, 255, 255.0/2)).(color.NRGBA)
	c.Check(img.NRGBAAt(410+250, 10+250), Equals, want)
	// background
	c.Check(img.NRGBAAt(1200, 700), Equals, color.NRGBA{100, 100, 100, 255})
	c.Check(s.a.useFbo2, Equals, true)

	s.a.draw()
	c.Check(s.a.useFbo2, Equals, false)
}

func (s *AppSuite) TestDrawPointCloud(c *C) {
	s.fs.frames = []*frame{personFrame(200, 100, 300, 400)}
	s.a.update()
	s.a.keyPressed("p")
	img := s.a.draw()
	c.Check(img.Bounds().Dx(), Equals, canvasW)

	cloud, zbuf := s.a.cloud, s.a.zbuf
	c.Assert(cloud, NotNil)
	c.Check(zbuf, HasLen, canvasW*canvasH)
	s.a.draw()
	c.Check(s.a.cloud == cloud, Equals, true)
	c.Check(&s.a.zbuf[0], Equals, &zbuf[0])
}

func (s *AppSuite) TestOverlayText(c *C) {
	txt := s.a.overlay().text()
	c.Check(strings.Contains(txt, "set near threshold 255 (press: + -)"), Equals, true)
	c.Check(strings.Contains(txt, "using opencv threshold = 1 (press spacebar)"), Equals, true)
	c.Check(strings.Contains(txt, "connection is: 1"), Equals, true)
	c.Check(strings.Count(txt, "\n"), Equals, 9)
}
