package v4l

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"qrscan/internal/camera"
	"qrscan/internal/config"
	"qrscan/internal/logger"
)

func TestNodeIndex(t *testing.T) {
	tests := []struct {
		path     string
		expected int
	}{
		{"/dev/video0", 0},
		{"/dev/video12", 12},
		{"video3", 3},
		{"/dev/media", -1},
	}

	for _, tt := range tests {
		if got := nodeIndex(tt.path); got != tt.expected {
			t.Errorf("nodeIndex(%q) = %d, expected %d", tt.path, got, tt.expected)
		}
	}
}

func TestDevices_SortedByIndex(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"video10", "video2", "video0", "other"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("create node: %v", err)
		}
	}

	p := New(&config.Config{DeviceDirectory: dir, DevicePattern: "video*"}, logger.NewNop())
	devices, err := p.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}

	want := []string{"video0", "video2", "video10"}
	if len(devices) != len(want) {
		t.Fatalf("expected %d devices, got %v", len(want), devices)
	}
	for i, id := range want {
		if devices[i].ID != id {
			t.Errorf("device %d = %s, expected %s", i, devices[i].ID, id)
		}
		if devices[i].Label == "" {
			t.Errorf("device %s has empty label", id)
		}
	}
}

func TestOpen_NoDevices(t *testing.T) {
	p := New(&config.Config{DeviceDirectory: t.TempDir(), DevicePattern: "video*"}, logger.NewNop())

	if _, err := p.Open(context.Background(), ""); !errors.Is(err, camera.ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestProbeAccess_Missing(t *testing.T) {
	err := probeAccess(filepath.Join(t.TempDir(), "video9"))
	if !errors.Is(err, camera.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestProbeAccess_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}
	node := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(node, nil, 0000); err != nil {
		t.Fatalf("create node: %v", err)
	}

	if err := probeAccess(node); !errors.Is(err, camera.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}
