package main

import (
	"errors"
	"image"

	"github.com/golang/geo/r3"
)

var errUnsupported = errors.New("operation not supported by this sensor")

type ledMode int

const (
	ledOff ledMode = iota
	ledGreen
	ledYellow
	ledRed
	ledBlinkGreen
	ledBlinkYellowRed
)

func (l ledMode) String() string {
	switch l {
	case ledOff:
		return "off"
	case ledGreen:
		return "green"
	case ledYellow:
		return "yellow"
	case ledRed:
		return "red"
	case ledBlinkGreen:
		return "blink green"
	case ledBlinkYellowRed:
		return "blink yellow/red"
	}
	return "unknown"
}

const (
	minTilt = -30
	maxTilt = 30
)

func clampTilt(deg int) int {
	if deg > maxTilt {
		return maxTilt
	}
	if deg < minTilt {
		return minTilt
	}
	return deg
}

// frame is a single depth capture. mm holds one distance per pixel in
// row order, 0 where the sensor had no reading. color is nil when the
// sensor has no registered color stream.
type frame struct {
	w, h  int
	mm    []uint16
	color image.Image
}

func (f *frame) distanceAt(x, y int) uint16 {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return 0
	}
	return f.mm[y*f.w+x]
}

type depthSensor interface {
	Open() error
	Close() error
	Connected() bool
	// Next returns the newest frame if one arrived since the last call.
	Next() (*frame, bool)
	SetTilt(deg int) error
	SetLED(l ledMode) error
	Accel() r3.Vector
}
