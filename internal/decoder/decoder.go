// Package decoder turns sampled camera frames into QR payload strings.
package decoder

import (
	"qrscan/internal/camera"
	"qrscan/internal/logger"
)

// Backend is the decode capability being wrapped. It may fail or panic;
// an empty payload means no code was found.
type Backend interface {
	Decode(frame camera.Frame) (string, error)
}

// Adapter gives every Backend the same forgiving contract: a payload or
// "not found", never an error or a panic. It holds no session state.
type Adapter struct {
	backend Backend
	logger  *logger.Logger
}

func New(backend Backend, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Adapter{backend: backend, logger: log}
}

// Decode returns the payload found in frame. Frames without size or pixels
// are rejected before the backend is called.
func (a *Adapter) Decode(frame camera.Frame) (payload string, found bool) {
	if !frame.Ready() {
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Decoder fault on %dx%d frame: %v", frame.Width, frame.Height, r)
			payload, found = "", false
		}
	}()

	text, err := a.backend.Decode(frame)
	if err != nil {
		a.logger.Debug("Frame decode failed: %v", err)
		return "", false
	}
	if text == "" {
		return "", false
	}
	return text, true
}
