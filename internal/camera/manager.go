package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"qrscan/internal/logger"
)

// StreamHandle is the Manager's ticket for one open stream.
type StreamHandle struct {
	id     uint64
	stream Stream

	mu     sync.Mutex
	closed bool
}

// DeviceID returns the device the stream is bound to.
func (h *StreamHandle) DeviceID() string {
	return h.stream.DeviceID()
}

// ReadFrame reads the current frame into dst.
func (h *StreamHandle) ReadFrame(dst *Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrStreamClosed
	}
	return h.stream.ReadFrame(dst)
}

// Closed reports whether the handle has been released.
func (h *StreamHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Manager enumerates devices and owns at most one open stream.
type Manager struct {
	platform Platform
	logger   *logger.Logger

	mu     sync.Mutex
	held   *StreamHandle
	nextID uint64
}

func NewManager(platform Platform, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{platform: platform, logger: log}
}

// RequestPermission opens a stream only to trigger the platform's access
// check and releases it immediately. A refusal matches ErrPermissionDenied;
// a missing camera is not a refusal.
func (m *Manager) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held != nil {
		// a held stream already proves access
		return nil
	}

	stream, err := m.platform.Open(ctx, "")
	switch {
	case err == nil:
	case errors.Is(err, ErrPermissionDenied):
		m.logger.Warning("Camera permission denied: %v", err)
		return err
	case errors.Is(err, ErrNoDevice):
		m.logger.Info("Permission check skipped, no capture device present")
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Close(); err != nil {
		m.logger.Warning("Error releasing permission probe stream on %s: %v", stream.DeviceID(), err)
	}
	return nil
}

// ListDevices enumerates video inputs.
func (m *Manager) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := m.platform.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	if devices == nil {
		devices = []Device{}
	}
	return devices, nil
}

// OpenStream opens a stream on deviceID ("" = any). A stream still held by
// this manager is closed first, so two streams are never open together.
func (m *Manager) OpenStream(ctx context.Context, deviceID string) (*StreamHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held != nil {
		m.closeLocked(m.held)
	}

	stream, err := m.platform.Open(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrNoDevice) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	m.nextID++
	h := &StreamHandle{id: m.nextID, stream: stream}
	m.held = h
	m.logger.Info("Opened stream %d on device %s", h.id, stream.DeviceID())
	return h, nil
}

// CloseStream releases h. Closing nil or an already closed handle is a no-op.
func (m *Manager) CloseStream(h *StreamHandle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked(h)
}

func (m *Manager) closeLocked(h *StreamHandle) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	err := h.stream.Close()
	h.mu.Unlock()

	if err != nil {
		m.logger.Warning("Error closing stream %d on %s: %v", h.id, h.stream.DeviceID(), err)
	} else {
		m.logger.Info("Closed stream %d on device %s", h.id, h.stream.DeviceID())
	}
	if m.held == h {
		m.held = nil
	}
}

// OpenCount returns the number of streams currently held (0 or 1).
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		return 0
	}
	return 1
}
