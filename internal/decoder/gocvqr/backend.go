// Package gocvqr decodes QR codes with OpenCV's QRCodeDetector.
package gocvqr

import (
	"fmt"
	"sync"

	"qrscan/internal/camera"

	"gocv.io/x/gocv"
)

// Backend keeps one detector and one set of scratch matrices; calls are
// serialized.
type Backend struct {
	mu       sync.Mutex
	detector gocv.QRCodeDetector
	gray     gocv.Mat
	points   gocv.Mat
	straight gocv.Mat
}

func New() *Backend {
	return &Backend{
		detector: gocv.NewQRCodeDetector(),
		gray:     gocv.NewMat(),
		points:   gocv.NewMat(),
		straight: gocv.NewMat(),
	}
}

// Decode converts the BGR frame to grayscale and runs detection and decoding.
func (b *Backend) Decode(frame camera.Frame) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix[:frame.Width*frame.Height*camera.BytesPerPixel])
	if err != nil {
		return "", fmt.Errorf("wrap frame: %w", err)
	}
	defer src.Close()

	if err := gocv.CvtColor(src, &b.gray, gocv.ColorBGRToGray); err != nil {
		return "", fmt.Errorf("grayscale: %w", err)
	}

	return b.detector.DetectAndDecode(b.gray, &b.points, &b.straight), nil
}

// Close releases the native detector and scratch buffers.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gray.Close()
	b.points.Close()
	b.straight.Close()
	return b.detector.Close()
}
