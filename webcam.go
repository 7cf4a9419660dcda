package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/golang/geo/r3"
	"github.com/golang/glog"
)

const (
	fmtYUYV  = 0x56595559
	fmtMJPEG = 0x47504a4d
	fmtY16   = 0x20363159
	fmtY10B  = 0x42303159
)

var errNoFormat = errors.New("no supported format found")

type byArea []webcam.FrameSize

func (slice byArea) Len() int {
	return len(slice)
}

//For sorting purposes
func (slice byArea) Less(i, j int) bool {
	ls := slice[i].MaxWidth * slice[i].MaxHeight
	rs := slice[j].MaxWidth * slice[j].MaxHeight
	return ls < rs
}

//For sorting purposes
func (slice byArea) Swap(i, j int) {
	slice[i], slice[j] = slice[j], slice[i]
}

var depthFormats = map[webcam.PixelFormat]bool{
	fmtY16:  true,
	fmtY10B: true,
}

var colorFormats = map[webcam.PixelFormat]bool{
	fmtYUYV:  true,
	fmtMJPEG: true,
}

// frameSource is the part of a streaming webcam.Webcam the read loops use.
type frameSource interface {
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	Close() error
}

// v4lStream is one opened and streaming video node.
type v4lStream struct {
	cam  frameSource
	f    webcam.PixelFormat
	w, h uint32
}

type streamOpener func(dev, szstr string, supported map[webcam.PixelFormat]bool) (*v4lStream, error)

func openStream(dev, szstr string, supported map[webcam.PixelFormat]bool) (*v4lStream, error) {
	cam, err := webcam.Open(dev)
	if err != nil {
		return nil, err
	}

	formatDesc := cam.GetSupportedFormats()
	for f, s := range formatDesc {
		glog.V(1).Infof("%s: available format %s (%#x)", dev, s, f)
	}

	var format webcam.PixelFormat
	for f := range formatDesc {
		if supported[f] {
			format = f
			break
		}
	}
	if format == 0 {
		cam.Close()
		return nil, fmt.Errorf("%s: %v", dev, errNoFormat)
	}

	frames := byArea(cam.GetSupportedFrameSizes(format))
	sort.Sort(frames)

	var size *webcam.FrameSize
	switch {
	case szstr == "" && len(frames) > 0:
		size = &frames[len(frames)-1]
	case strings.Count(szstr, "x") == 1:
		parts := strings.Split(szstr, "x")
		x, xerr := strconv.Atoi(parts[0])
		y, yerr := strconv.Atoi(parts[1])
		if xerr != nil || yerr != nil {
			cam.Close()
			return nil, fmt.Errorf("couldn't parse width x height %q", szstr)
		}
		size = &webcam.FrameSize{
			MaxWidth:  uint32(x),
			MaxHeight: uint32(y),
		}
	default:
		for i := range frames {
			if szstr == frames[i].GetString() {
				size = &frames[i]
			}
		}
	}
	if size == nil {
		cam.Close()
		return nil, fmt.Errorf("no matching frame size %q", szstr)
	}

	f, w, h, err := cam.SetImageFormat(format, size.MaxWidth, size.MaxHeight)
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("SetImageFormat error %v", err)
	}
	glog.Infof("%s: using %s %dx%d", dev, formatDesc[f], w, h)

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("failed to start stream, %v", err)
	}
	return &v4lStream{cam: cam, f: f, w: w, h: h}, nil
}

// read waits for the next frame. A nil frame with a nil error means the
// wait timed out.
func (s *v4lStream) read(timeout uint32) ([]byte, error) {
	err := s.cam.WaitForFrame(timeout)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, nil
	default:
		return nil, fmt.Errorf("unhandled error from WaitForFrame, %v", err)
	}
	frame, err := s.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("unhandled error reading frame, %v", err)
	}
	fc := make([]byte, len(frame))
	copy(fc, frame)
	return fc, nil
}

// kinectCam reads depth from the gspca_kinect V4L2 node, and color from
// an optional second node.
type kinectCam struct {
	depthDev, colorDev string
	timeout            uint32
	open               streamOpener

	lock      sync.Mutex
	depth     *v4lStream
	color     *v4lStream
	latest    *frame
	lastColor image.Image
	seq, read uint64
	failed    bool
	done      chan struct{}
	wg        sync.WaitGroup
}

func newKinectCam(depthDev, colorDev string) *kinectCam {
	return &kinectCam{
		depthDev: depthDev,
		colorDev: colorDev,
		timeout:  uint32(1),
		open:     openStream,
	}
}

// Open starts streaming. A connection whose depth stream has failed is
// torn down and opened again.
func (kc *kinectCam) Open() error {
	kc.lock.Lock()
	stale := kc.depth != nil && kc.failed
	if kc.depth != nil && !stale {
		kc.lock.Unlock()
		return nil
	}
	kc.lock.Unlock()
	if stale {
		if err := kc.Close(); err != nil {
			glog.Warningf("closing failed depth stream: %v", err)
		}
	}

	kc.lock.Lock()
	defer kc.lock.Unlock()
	ds, err := kc.open(kc.depthDev, "", depthFormats)
	if err != nil {
		return err
	}
	var cs *v4lStream
	if kc.colorDev != "" {
		cs, err = kc.open(kc.colorDev, fmt.Sprintf("%dx%d", ds.w, ds.h), colorFormats)
		if err != nil {
			glog.Warningf("color stream unavailable: %v", err)
			cs = nil
		}
	}

	kc.depth, kc.color = ds, cs
	kc.failed = false
	kc.done = make(chan struct{})
	kc.wg.Add(1)
	go kc.run(ds, cs, kc.done)
	if cs != nil {
		kc.wg.Add(1)
		go kc.runColor(cs, kc.done)
	}
	return nil
}

// Close stops both read loops and closes the devices, including after
// the depth stream has failed.
func (kc *kinectCam) Close() error {
	kc.lock.Lock()
	if kc.depth == nil {
		kc.lock.Unlock()
		return nil
	}
	close(kc.done)
	ds, cs := kc.depth, kc.color
	kc.depth, kc.color = nil, nil
	kc.failed = false
	kc.lock.Unlock()

	kc.wg.Wait()
	err := ds.cam.Close()
	if cs != nil {
		if cerr := cs.cam.Close(); cerr != nil {
			glog.Warningf("closing color stream: %v", cerr)
		}
	}
	return err
}

func (kc *kinectCam) Connected() bool {
	kc.lock.Lock()
	defer kc.lock.Unlock()
	return kc.depth != nil && !kc.failed
}

func (kc *kinectCam) Next() (*frame, bool) {
	kc.lock.Lock()
	defer kc.lock.Unlock()
	if kc.latest == nil || kc.seq == kc.read {
		return nil, false
	}
	kc.read = kc.seq
	return kc.latest, true
}

// Motor, LED and accelerometer live on a separate USB device that the
// V4L2 driver does not expose.
func (kc *kinectCam) SetTilt(deg int) error { return errUnsupported }

func (kc *kinectCam) SetLED(l ledMode) error { return errUnsupported }

func (kc *kinectCam) Accel() r3.Vector { return r3.Vector{} }

func (kc *kinectCam) run(ds, cs *v4lStream, done chan struct{}) {
	defer kc.wg.Done()
	glog.Infof("running depth loop on %s", kc.depthDev)
	for {
		select {
		case <-done:
			return
		default:
		}

		raw, err := ds.read(kc.timeout)
		if err != nil {
			glog.Errorf("depth stream stopped: %v", err)
			kc.lock.Lock()
			if kc.depth == ds {
				kc.failed = true
			}
			kc.lock.Unlock()
			return
		}
		if len(raw) == 0 {
			continue
		}
		f, err := decodeDepth(raw, int(ds.w), int(ds.h), ds.f)
		if err != nil {
			glog.Warningf("dropping depth frame: %v", err)
			continue
		}

		kc.lock.Lock()
		f.color = kc.lastColor
		kc.latest = f
		kc.seq++
		kc.lock.Unlock()
	}
}

func (kc *kinectCam) runColor(cs *v4lStream, done chan struct{}) {
	defer kc.wg.Done()
	for {
		select {
		case <-done:
			return
		default:
		}
		raw, err := cs.read(kc.timeout)
		if err != nil {
			glog.Errorf("color stream stopped: %v", err)
			return
		}
		if len(raw) == 0 {
			continue
		}
		img, err := frameToImage(raw, cs.w, cs.h, cs.f)
		if err != nil {
			glog.V(1).Infof("dropping color frame: %v", err)
			continue
		}
		kc.lock.Lock()
		kc.lastColor = img
		kc.lock.Unlock()
	}
}

// decodeDepth unpacks a raw disparity frame into millimetres.
func decodeDepth(raw []byte, w, h int, format webcam.PixelFormat) (*frame, error) {
	n := w * h
	f := &frame{w: w, h: h, mm: make([]uint16, n)}
	switch format {
	case fmtY16:
		if len(raw) < n*2 {
			return nil, fmt.Errorf("short Y16 frame, %d bytes for %dx%d", len(raw), w, h)
		}
		for i := 0; i < n; i++ {
			f.mm[i] = rawToMM(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		}
	case fmtY10B:
		if len(raw)*8 < n*10 {
			return nil, fmt.Errorf("short Y10B frame, %d bytes for %dx%d", len(raw), w, h)
		}
		// 10 bit big endian bit stream, scaled up to the 11 bit range
		var acc uint32
		bits := uint(0)
		j := 0
		for i := 0; i < n; i++ {
			for bits < 10 {
				acc = acc<<8 | uint32(raw[j])
				j++
				bits += 8
			}
			bits -= 10
			v := uint16(acc>>bits) & 0x3ff
			f.mm[i] = rawToMM(v << 1)
		}
	default:
		return nil, errors.New("unknown depth format")
	}
	return f, nil
}

// motion jpeg frames are missing attributes for use as a
// regular jpeg. We add them back here.
func addMotionDht(frame []byte) []byte {
	var (
		dhtMarker = []byte{255, 196}
		dht       = []byte{1, 162, 0, 0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 1, 0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 16, 0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125, 1, 2, 3, 0, 4, 17, 5, 18, 33, 49, 65, 6, 19, 81, 97, 7, 34, 113, 20, 50, 129, 145, 161, 8, 35, 66, 177, 193, 21, 82, 209, 240, 36, 51, 98, 114, 130, 9, 10, 22, 23, 24, 25, 26, 37, 38, 39, 40, 41, 42, 52, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 225, 226, 227, 228, 229, 230, 231, 232, 233, 234, 241, 242, 243, 244, 245, 246, 247, 248, 249, 250, 17, 0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119, 0, 1, 2, 3, 17, 4, 5, 33, 49, 6, 18, 65, 81, 7, 97, 113, 19, 34, 50, 129, 8, 20, 66, 145, 161, 177, 193, 9, 35, 51, 82, 240, 21, 98, 114, 209, 10, 22, 36, 52, 225, 37, 241, 23, 24, 25, 26, 38, 39, 40, 41, 42, 53, 54, 55, 56, 57, 58, 67, 68, 69, 70, 71, 72, 73, 74, 83, 84, 85, 86, 87, 88, 89, 90, 99, 100, 101, 102, 103, 104, 105, 106, 115, 116, 117, 118, 119, 120, 121, 122, 130, 131, 132, 133, 134, 135, 136, 137, 138, 146, 147, 148, 149, 150, 151, 152, 153, 154, 162, 163, 164, 165, 166, 167, 168, 169, 170, 178, 179, 180, 181, 182, 183, 184, 185, 186, 194, 195, 196, 197, 198, 199, 200, 201, 202, 210, 211, 212, 213, 214, 215, 216, 217, 218, 226, 227, 228, 229, 230, 231, 232, 233, 234, 242, 243, 244, 245, 246, 247, 248, 249, 250}
		sosMarker = []byte{255, 218}
	)
	jpegParts := bytes.SplitN(frame, sosMarker, 2)
	if len(jpegParts) != 2 {
		return frame
	}
	return append(jpegParts[0], append(dhtMarker, append(dht, append(sosMarker, jpegParts[1]...)...)...)...)
}

func frameToImage(frame []byte, w, h uint32, format webcam.PixelFormat) (image.Image, error) {
	switch format {
	case fmtYUYV:
		img := image.NewYCbCr(image.Rect(0, 0, int(w), int(h)), image.YCbCrSubsampleRatio422)
		if len(frame) < len(img.Cb)*4 {
			return nil, errors.New("short YUYV frame")
		}
		for i := range img.Cb {
			ii := i * 4
			img.Y[i*2] = frame[ii]
			img.Y[i*2+1] = frame[ii+2]
			img.Cb[i] = frame[ii+1]
			img.Cr[i] = frame[ii+3]
		}
		return img, nil
	case fmtMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(addMotionDht(frame)))
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	return nil, errors.New("unknown format")
}
