package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qrscan/internal/classify"
	"qrscan/internal/export"
	"qrscan/internal/scan"
)

func result(content string, ts time.Time) scan.Result {
	return scan.Result{Content: content, Type: classify.Text, Timestamp: ts}
}

func TestBufferService_FlushWritesDocuments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	s := NewBufferService(dir, 10, nil)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.AddResult(result("one", ts))
	s.AddResult(result("two", ts))

	paths, err := s.FlushResults()
	if err != nil {
		t.Fatalf("FlushResults: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %v", paths)
	}
	if filepath.Base(paths[0]) != "qr-scan-2024-01-02T03-04-05.json" ||
		filepath.Base(paths[1]) != "qr-scan-2024-01-02T03-04-05-1.json" {
		t.Fatalf("unexpected names %v", paths)
	}

	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got, err := export.Parse(data)
	if err != nil || got.Content != "two" {
		t.Fatalf("Parse = %+v, %v", got, err)
	}
	if s.Pending() != 0 {
		t.Fatalf("buffer not cleared")
	}
}

func TestBufferService_FlushEmptyIsNoop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	s := NewBufferService(dir, 10, nil)

	paths, err := s.FlushResults()
	if err != nil || paths != nil {
		t.Fatalf("FlushResults = %v, %v", paths, err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("export dir should not be created for an empty flush")
	}
}

func TestBufferService_FullBufferFlushes(t *testing.T) {
	dir := t.TempDir()
	s := NewBufferService(dir, 2, nil)

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.AddResult(result("r", base.Add(time.Duration(i)*time.Second)))
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 || s.Pending() != 1 {
		t.Fatalf("expected 2 files and 1 pending, got %d files and %d pending", len(entries), s.Pending())
	}
}

func TestBufferService_RunFlushesOnCancel(t *testing.T) {
	dir := t.TempDir()
	s := NewBufferService(dir, 10, nil)
	s.AddResult(result("late", time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 1 {
		t.Fatalf("expected final flush to write 1 file, got %d", len(entries))
	}
}
