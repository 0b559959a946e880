// Package camtest provides an in-memory camera.Platform for tests.
package camtest

import (
	"context"
	"fmt"
	"sync"

	"qrscan/internal/camera"
)

// Platform is a scriptable camera.Platform that records every open and close.
type Platform struct {
	mu sync.Mutex

	devices     []camera.Device
	deny        bool
	enumErr     error
	unavailable map[string]bool
	failReads   map[string]bool
	frame       camera.Frame

	ops  []string
	open map[string]int
}

// New returns a platform exposing the given devices, each producing a 4x4 frame.
func New(devices ...camera.Device) *Platform {
	return &Platform{
		devices:     devices,
		unavailable: make(map[string]bool),
		failReads:   make(map[string]bool),
		open:        make(map[string]int),
		frame:       camera.Frame{Width: 4, Height: 4, Pix: make([]byte, 4*4*camera.BytesPerPixel)},
	}
}

// Deny makes every open fail with camera.ErrPermissionDenied until Deny(false).
func (p *Platform) Deny(deny bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deny = deny
}

// FailEnumeration makes Devices return err.
func (p *Platform) FailEnumeration(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enumErr = err
}

// SetUnavailable marks a device as busy.
func (p *Platform) SetUnavailable(id string, busy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable[id] = busy
}

// SetDevices replaces the enumerated devices. Streams already open stay open.
func (p *Platform) SetDevices(devices ...camera.Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = devices
}

// FailReads makes every ReadFrame on device id fail, as an unplugged camera would.
func (p *Platform) FailReads(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failReads[id] = true
}

// SetFrame replaces the frame every stream returns.
func (p *Platform) SetFrame(f camera.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = f
}

// Ops returns the recorded "open:<id>" and "close:<id>" operations in order.
func (p *Platform) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

// MaxConcurrent is the highest number of simultaneously open streams observed.
func (p *Platform) MaxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	max, cur := 0, 0
	for _, op := range p.ops {
		switch op[:5] {
		case "open:":
			cur++
		case "close":
			cur--
		}
		if cur > max {
			max = cur
		}
	}
	return max
}

// OpenStreams is the number of streams currently open.
func (p *Platform) OpenStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.open {
		n += c
	}
	return n
}

func (p *Platform) Devices(ctx context.Context) ([]camera.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enumErr != nil {
		return nil, p.enumErr
	}
	return append([]camera.Device(nil), p.devices...), nil
}

func (p *Platform) Open(ctx context.Context, deviceID string) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deny {
		return nil, fmt.Errorf("open %q: %w", deviceID, camera.ErrPermissionDenied)
	}
	if deviceID == "" {
		if len(p.devices) == 0 {
			return nil, camera.ErrNoDevice
		}
		deviceID = p.devices[0].ID
	}
	if !p.known(deviceID) {
		return nil, fmt.Errorf("open %q: %w", deviceID, camera.ErrDeviceUnavailable)
	}
	if p.unavailable[deviceID] {
		return nil, fmt.Errorf("open %q: busy: %w", deviceID, camera.ErrDeviceUnavailable)
	}

	p.ops = append(p.ops, "open:"+deviceID)
	p.open[deviceID]++
	return &stream{platform: p, id: deviceID}, nil
}

func (p *Platform) known(id string) bool {
	for _, d := range p.devices {
		if d.ID == id {
			return true
		}
	}
	return false
}

type stream struct {
	platform *Platform
	id       string
	closed   bool
}

func (s *stream) DeviceID() string { return s.id }

func (s *stream) ReadFrame(dst *camera.Frame) error {
	s.platform.mu.Lock()
	defer s.platform.mu.Unlock()

	if s.closed {
		return camera.ErrStreamClosed
	}
	if s.platform.failReads[s.id] {
		return fmt.Errorf("read %q: input/output error", s.id)
	}
	dst.Width = s.platform.frame.Width
	dst.Height = s.platform.frame.Height
	dst.Pix = append(dst.Pix[:0], s.platform.frame.Pix...)
	return nil
}

func (s *stream) Close() error {
	s.platform.mu.Lock()
	defer s.platform.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.platform.ops = append(s.platform.ops, "close:"+s.id)
	s.platform.open[s.id]--
	return nil
}
