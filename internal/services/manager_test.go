package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"qrscan/internal/camera"
	"qrscan/internal/camera/camtest"
	"qrscan/internal/classify"
	"qrscan/internal/config"
	"qrscan/internal/logger"
	"qrscan/internal/repository/sqlite"
	"qrscan/internal/scan"
	"qrscan/internal/services/storage"
	"qrscan/internal/services/websocket"
)

type fixedDecoder string

func (d fixedDecoder) Decode(camera.Frame) (string, bool) { return string(d), d != "" }

type openRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (o *openRecorder) open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

func (o *openRecorder) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

func newTestManager(t *testing.T, payload string, autoOpen bool) (*Manager, *sqlite.ScanRepository, *storage.BufferService) {
	t.Helper()

	log := logger.NewNop()
	cameras := camera.NewManager(camtest.New(camera.Device{ID: "video0", Label: "Desk"}), log)
	session, err := scan.NewSession(cameras, fixedDecoder(payload), classify.New(classify.DefaultOptions()),
		scan.Options{Interval: time.Millisecond, AutoBegin: true}, log)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	db, err := sqlite.New(filepath.Join(t.TempDir(), "scans.db"))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := sqlite.NewScanRepository(db)

	buffer := storage.NewBufferService(t.TempDir(), 10, log)
	hub := websocket.NewHubService(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := &config.Config{AutoOpenURLs: autoOpen}
	return NewManager(session, cameras, repo, buffer, hub, cfg, log), repo, buffer
}

func waitState(t *testing.T, s *scan.Session, st scan.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().State != st {
		if time.Now().After(deadline) {
			t.Fatalf("session stuck in %s, want %s", s.Snapshot().State, st)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestManager_StoresAndExportsResult(t *testing.T) {
	m, repo, buffer := newTestManager(t, "https://example.com", true)
	opener := &openRecorder{}
	m.SetURLOpener(opener.open)

	m.GetSession().Start()
	waitState(t, m.GetSession(), scan.Stopped)
	m.Stop()

	records, err := repo.GetAll(nil)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(records) != 1 || records[0].Content != "https://example.com" || records[0].DeviceID != "video0" {
		t.Fatalf("unexpected history %+v", records)
	}
	if records[0].SessionID != m.GetSession().ID() {
		t.Fatalf("record session %q, want %q", records[0].SessionID, m.GetSession().ID())
	}
	if buffer.Pending() != 1 {
		t.Fatalf("expected result in export buffer, pending=%d", buffer.Pending())
	}
	if got := opener.opened(); len(got) != 1 || got[0] != "https://example.com" {
		t.Fatalf("opened %v", got)
	}
	if m.GetCameras().OpenCount() != 0 {
		t.Fatal("stream left open")
	}
}

func TestManager_DoesNotOpenWhenDisabled(t *testing.T) {
	m, _, _ := newTestManager(t, "https://example.com", false)
	opener := &openRecorder{}
	m.SetURLOpener(opener.open)

	m.GetSession().Start()
	waitState(t, m.GetSession(), scan.Stopped)
	m.Stop()

	if got := opener.opened(); len(got) != 0 {
		t.Fatalf("urls opened while disabled: %v", got)
	}
}

func TestManager_TextIsNeverOpened(t *testing.T) {
	m, repo, _ := newTestManager(t, "just text", true)
	opener := &openRecorder{}
	m.SetURLOpener(opener.open)

	m.GetSession().Start()
	waitState(t, m.GetSession(), scan.Stopped)
	m.Stop()

	if got := opener.opened(); len(got) != 0 {
		t.Fatalf("text result opened: %v", got)
	}
	if n, _ := repo.GetTotalCount(nil); n != 1 {
		t.Fatalf("expected 1 stored result, got %d", n)
	}
}
