// Package v4l exposes Linux video4linux capture devices through OpenCV.
package v4l

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"qrscan/internal/camera"
	"qrscan/internal/config"
	"qrscan/internal/logger"

	"gocv.io/x/gocv"
)

const sysfsRoot = "/sys/class/video4linux"

// Platform implements camera.Platform on top of /dev/video* nodes.
type Platform struct {
	deviceDir string
	pattern   string
	width     int
	height    int
	logger    *logger.Logger
}

func New(cfg *config.Config, logger *logger.Logger) *Platform {
	return &Platform{
		deviceDir: cfg.DeviceDirectory,
		pattern:   cfg.DevicePattern,
		width:     cfg.FrameWidth,
		height:    cfg.FrameHeight,
		logger:    logger,
	}
}

// Devices lists capture nodes sorted by index. The label comes from sysfs
// when available.
func (p *Platform) Devices(ctx context.Context) ([]camera.Device, error) {
	matches, err := filepath.Glob(filepath.Join(p.deviceDir, p.pattern))
	if err != nil {
		return nil, fmt.Errorf("glob devices: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return nodeIndex(matches[i]) < nodeIndex(matches[j])
	})

	devices := make([]camera.Device, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := filepath.Base(path)
		devices = append(devices, camera.Device{ID: id, Label: deviceLabel(id)})
	}
	return devices, nil
}

// Open checks access to the node and starts an OpenCV capture on it.
func (p *Platform) Open(ctx context.Context, deviceID string) (camera.Stream, error) {
	if deviceID == "" {
		devices, err := p.Devices(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, camera.ErrNoDevice
		}
		deviceID = devices[0].ID
	}

	path := filepath.Join(p.deviceDir, deviceID)
	if err := probeAccess(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := nodeIndex(path)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s is not a capture node", camera.ErrDeviceUnavailable, deviceID)
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", camera.ErrDeviceUnavailable, deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s could not be opened (busy?)", camera.ErrDeviceUnavailable, deviceID)
	}
	if p.width > 0 && p.height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(p.width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(p.height))
	}

	p.logger.Info("Capture started on %s", path)
	return &stream{id: deviceID, vc: vc, mat: gocv.NewMat()}, nil
}

// probeAccess opens the node the same way the capture backend will, which is
// where the kernel reports a missing video group membership.
func probeAccess(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", camera.ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", camera.ErrDeviceUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", camera.ErrDeviceUnavailable, err)
	}
}

func nodeIndex(path string) int {
	base := filepath.Base(path)
	digits := strings.TrimLeft(base, "abcdefghijklmnopqrstuvwxyz")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return n
}

func deviceLabel(id string) string {
	data, err := os.ReadFile(filepath.Join(sysfsRoot, id, "name"))
	if err != nil {
		return id
	}
	if label := strings.TrimSpace(string(data)); label != "" {
		return label
	}
	return id
}

type stream struct {
	id  string
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (s *stream) DeviceID() string { return s.id }

func (s *stream) ReadFrame(dst *camera.Frame) error {
	if !s.vc.IsOpened() {
		return fmt.Errorf("%w: %s stopped", camera.ErrDeviceUnavailable, s.id)
	}

	dst.Width, dst.Height = 0, 0
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return nil
	}
	if s.mat.Channels() != camera.BytesPerPixel {
		return fmt.Errorf("unexpected %d channel frame from %s", s.mat.Channels(), s.id)
	}

	dst.Width = s.mat.Cols()
	dst.Height = s.mat.Rows()
	dst.Pix = append(dst.Pix[:0], s.mat.ToBytes()...)
	return nil
}

func (s *stream) Close() error {
	s.mat.Close()
	return s.vc.Close()
}
