// Package camera acquires and releases video streams from capture devices.
//
// The Manager is platform neutral; a Platform (see package v4l) performs the
// actual device I/O. A Manager never holds more than one open stream.
package camera

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the platform refused access to the camera.
	ErrPermissionDenied = errors.New("camera: permission denied")
	// ErrDeviceUnavailable means the device is missing, busy or stopped producing frames.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")
	// ErrNoDevice means no capture device is present at all.
	ErrNoDevice = errors.New("camera: no capture device")
	// ErrStreamClosed is returned when reading from a released handle.
	ErrStreamClosed = errors.New("camera: stream closed")
)

// BytesPerPixel of Frame.Pix (packed BGR, 8 bits per channel).
const BytesPerPixel = 3

// Device is a video input device. ID is stable for the lifetime of a permission grant.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Frame is a raster sampled from a live stream: Height rows of Width packed BGR pixels.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Ready reports whether the frame has a non-zero size and enough pixel data.
func (f *Frame) Ready() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) >= f.Width*f.Height*BytesPerPixel
}

// Stream is an open video source on one device.
type Stream interface {
	DeviceID() string
	// ReadFrame copies the current frame into dst, reusing dst.Pix. A source
	// that is not ready yet yields a zero-sized frame, not an error.
	ReadFrame(dst *Frame) error
	Close() error
}

// Platform is the device layer a Manager drives.
type Platform interface {
	// Devices enumerates video inputs. An empty result is not an error.
	Devices(ctx context.Context) ([]Device, error)
	// Open acquires an exclusive stream; an empty id means any device.
	Open(ctx context.Context, deviceID string) (Stream, error)
}
