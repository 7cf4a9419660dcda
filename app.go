package main

import (
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/golang/glog"
)

const (
	canvasW = 1230
	canvasH = 768

	panelW = 400
	panelH = 300

	smoothingSize   = 11
	smoothingShape  = 0.5
	minBlobPoints   = 5
	minBlobArea     = 10
	blobsConsidered = 20
)

type config struct {
	finder     contourFinder
	background bool
}

// app holds the state of the installation. All methods are safe for
// concurrent use; key and mouse events arrive from HTTP handlers while
// the frame loop runs update and draw.
type app struct {
	sync.Mutex

	sensor depthSensor
	finder contourFinder
	mapper *depthMapper
	bg     *sigmadelta
	blobs  *blobView

	nearThreshold   int
	farThreshold    int
	thresholdWithCV bool
	drawPointCloud  bool
	angle           int
	hue             float64

	frame   *frame
	depth   *image.Gray
	gray    *image.Gray
	nBlobs  int
	person  vec2
	contour []vec2
	cam     orbitCam

	fbo, fbo2 *image.RGBA
	useFbo2   bool
	canvas    *image.NRGBA
	cloud     *image.RGBA
	zbuf      []float64

	frames   int
	fpsStart time.Time
	fps      float64
	now      func() time.Time
}

func newApp(s depthSensor, cfg config) *app {
	if cfg.finder == nil {
		cfg.finder = cvContourFinder{}
	}
	a := &app{
		sensor: s,
		finder: cfg.finder,
		mapper: newDepthMapper(true),
		blobs:  &blobView{},
		now:    time.Now,
	}
	if cfg.background {
		a.bg = newSigmaDelta(4, image.Rect(0, 0, 640, 480))
	}
	return a
}

func (a *app) setup() error {
	a.Lock()
	defer a.Unlock()

	a.nearThreshold = 255
	a.farThreshold = 117
	a.thresholdWithCV = true
	a.drawPointCloud = false
	a.angle = 0
	a.hue = 0
	a.cam = newOrbitCam(canvasH)
	a.canvas = newCanvas(canvasW, canvasH)
	a.fpsStart = a.now()

	if err := a.sensor.Open(); err != nil {
		return err
	}
	a.tilt(0)
	a.allocate(640, 480)
	return nil
}

// allocate sizes the framebuffers, which follow the sensor resolution.
func (a *app) allocate(w, h int) {
	if a.fbo != nil && a.fbo.Rect.Dx() == w && a.fbo.Rect.Dy() == h {
		return
	}
	a.fbo = newFramebuffer(w, h)
	a.fbo2 = newFramebuffer(w, h)
	a.useFbo2 = false
	if a.bg != nil {
		a.bg = newSigmaDelta(a.bg.n, image.Rect(0, 0, w, h))
	}
}

func (a *app) tilt(deg int) {
	if err := a.sensor.SetTilt(clampTilt(deg)); err != nil {
		glog.V(1).Infof("tilt %d: %v", deg, err)
	}
}

func (a *app) update() {
	a.Lock()
	defer a.Unlock()

	a.hue += 2
	if a.hue > 255 {
		a.hue -= 255
	}
	if a.hue < 0 {
		a.hue = 0
	}

	f, ok := a.sensor.Next()
	if !ok {
		return
	}
	a.frame = f
	a.allocate(f.w, f.h)
	a.depth = a.mapper.toGray(f, a.depth)

	var err error
	if a.thresholdWithCV {
		a.gray, err = thresholdCV(a.depth, a.nearThreshold, a.farThreshold)
		if err != nil {
			glog.Errorf("threshold: %v", err)
			return
		}
	} else {
		a.gray = thresholdManual(a.depth, a.nearThreshold, a.farThreshold)
	}
	if a.bg != nil {
		a.bg.Update(a.depth)
		andMask(a.gray, a.bg.Mask())
	}

	bs, err := a.finder.Find(a.gray, minBlobArea, float64(f.w*f.h)/2, blobsConsidered)
	if err != nil {
		glog.Errorf("contours: %v", err)
		return
	}
	a.nBlobs = len(bs)
	a.blobs.Update(a.gray.Bounds(), bs)

	a.contour = a.contour[:0]
	if i := largestBlob(bs); i >= 0 {
		big := bs[i]
		a.person = big.centroid
		if len(big.pts) > minBlobPoints {
			a.contour = smoothed(toVecs(big.pts), smoothingSize, smoothingShape, true)
		}
	}
}

// draw renders the next frame onto the canvas and returns it. The
// canvas is reused between calls.
func (a *app) draw() *image.NRGBA {
	a.Lock()
	defer a.Unlock()

	a.useFbo2 = !a.useFbo2
	fillCanvas(a.canvas, color.NRGBA{100, 100, 100, 255})

	if a.drawPointCloud {
		if a.frame != nil {
			if a.cloud == nil {
				a.cloud = image.NewRGBA(a.canvas.Bounds())
			}
			fillRGBA(a.cloud, color.RGBA{100, 100, 100, 255})
			_, a.zbuf = renderCloud(a.cloud, a.zbuf, a.frame, a.depth, a.cam)
			pastePanel(a.canvas, a.cloud, 0, 0, canvasW, canvasH)
		}
	} else {
		if a.depth != nil {
			pastePanel(a.canvas, a.depth, 10, 10, panelW, panelH)
		}
		if a.frame != nil && a.frame.color != nil {
			pastePanel(a.canvas, a.frame.color, 10, 310, panelW, panelH)
		}
		ping, pong := a.fbo, a.fbo2
		if a.useFbo2 {
			ping, pong = a.fbo2, a.fbo
		}
		composite(ping, pong, a.person, a.contour, hsbFill(a.hue, 255, 255.0/2))
		pastePanel(a.canvas, ping, 410, 10, ping.Rect.Dx(), ping.Rect.Dy())
	}

	a.tickFPS()
	drawText(a.canvas, 20, 652, a.overlay().text(), color.White)
	return a.canvas
}

func (a *app) tickFPS() {
	a.frames++
	if d := a.now().Sub(a.fpsStart); d >= time.Second {
		a.fps = float64(a.frames) / d.Seconds()
		a.frames = 0
		a.fpsStart = a.now()
	}
}

func (a *app) overlay() overlayState {
	acc := a.sensor.Accel()
	return overlayState{
		accelX:          acc.X,
		accelY:          acc.Y,
		accelZ:          acc.Z,
		thresholdWithCV: a.thresholdWithCV,
		near:            a.nearThreshold,
		far:             a.farThreshold,
		blobs:           a.nBlobs,
		fps:             a.fps,
		connected:       a.sensor.Connected(),
		angle:           a.angle,
	}
}

func clamp255(v int) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return v
}

var ledKeys = map[string]ledMode{
	"1": ledGreen,
	"2": ledYellow,
	"3": ledRed,
	"4": ledBlinkGreen,
	"5": ledBlinkYellowRed,
	"0": ledOff,
}

// keyPressed handles a key. Printable keys are themselves, arrows are
// "up" and "down". It reports whether the key was recognised.
func (a *app) keyPressed(key string) bool {
	a.Lock()
	defer a.Unlock()

	switch key {
	case " ":
		a.thresholdWithCV = !a.thresholdWithCV
	case "p":
		a.drawPointCloud = !a.drawPointCloud
	case ">", ".":
		a.farThreshold = clamp255(a.farThreshold + 1)
	case "<", ",":
		a.farThreshold = clamp255(a.farThreshold - 1)
	case "+", "=":
		a.nearThreshold = clamp255(a.nearThreshold + 1)
	case "-":
		a.nearThreshold = clamp255(a.nearThreshold - 1)
	case "w":
		a.mapper.setNearWhite(!a.mapper.nearWhite)
	case "o":
		a.tilt(a.angle)
		if err := a.sensor.Open(); err != nil {
			glog.Errorf("opening sensor: %v", err)
		}
	case "c":
		a.tilt(0)
		if err := a.sensor.Close(); err != nil {
			glog.Errorf("closing sensor: %v", err)
		}
	case "1", "2", "3", "4", "5", "0":
		if err := a.sensor.SetLED(ledKeys[key]); err != nil {
			glog.V(1).Infof("led %v: %v", ledKeys[key], err)
		}
	case "up":
		a.angle = clampTilt(a.angle + 1)
		a.tilt(a.angle)
	case "down":
		a.angle = clampTilt(a.angle - 1)
		a.tilt(a.angle)
	default:
		return false
	}
	glog.V(2).Infof("key %q", key)
	return true
}

// mouseDragged orbits the point cloud camera.
func (a *app) mouseDragged(dx, dy float64) {
	a.Lock()
	defer a.Unlock()
	if a.drawPointCloud {
		a.cam.drag(dx, dy)
	}
}

func (a *app) exit() error {
	a.Lock()
	defer a.Unlock()
	a.tilt(0)
	return a.sensor.Close()
}

func fillCanvas(img *image.NRGBA, c color.NRGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

func fillRGBA(img *image.RGBA, c color.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}
