package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"qrscan/internal/camera"
	"qrscan/internal/camera/camtest"
	"qrscan/internal/classify"
	"qrscan/internal/config"
	"qrscan/internal/dto"
	"qrscan/internal/export"
	"qrscan/internal/logger"
	"qrscan/internal/middleware"
	"qrscan/internal/repository/sqlite"
	"qrscan/internal/scan"
	"qrscan/internal/services"
	"qrscan/internal/services/storage"
	"qrscan/internal/services/websocket"
)

type fixedDecoder string

func (d fixedDecoder) Decode(camera.Frame) (string, bool) { return string(d), true }

type server struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
	manager *services.Manager
}

func newServer(t *testing.T, payload string) *server {
	t.Helper()

	log := logger.NewNop()
	cameras := camera.NewManager(camtest.New(
		camera.Device{ID: "video0", Label: "Desk"},
		camera.Device{ID: "video2", Label: "Door"},
	), log)
	session, err := scan.NewSession(cameras, fixedDecoder(payload), classify.New(classify.DefaultOptions()),
		scan.Options{Interval: time.Millisecond, AutoBegin: true}, log)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	db, err := sqlite.New(filepath.Join(t.TempDir(), "scans.db"))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	hub := websocket.NewHubService(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	manager := services.NewManager(session, cameras, sqlite.NewScanRepository(db),
		storage.NewBufferService(t.TempDir(), 10, log), hub, &config.Config{}, log)
	t.Cleanup(func() {
		manager.Stop()
		cancel()
		db.Close()
	})

	auth, err := middleware.NewAuth("pw", time.Hour)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	return &server{t: t, handler: SetupRoutes(manager, auth, log), manager: manager}
}

func (s *server) do(method, path string, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) login() {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/login", `{"password":"pw"}`)
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login status %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.CookieName {
			s.cookie = c
		}
	}
	if s.cookie == nil {
		s.t.Fatal("no session cookie")
	}
}

func (s *server) waitResults(n int) dto.ResultsPage {
	s.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var page dto.ResultsPage
		rec := s.do(http.MethodGet, "/api/results", "")
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			s.t.Fatalf("decode results: %v (%s)", err, rec.Body)
		}
		if page.Total >= n {
			return page
		}
		if time.Now().After(deadline) {
			s.t.Fatalf("expected %d results, have %d", n, page.Total)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoutes_RequireLogin(t *testing.T) {
	s := newServer(t, "x")

	if rec := s.do(http.MethodGet, "/api/session", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/auth/login", `{"password":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status %d, want 401", rec.Code)
	}

	s.login()
	if rec := s.do(http.MethodGet, "/api/session", ""); rec.Code != http.StatusOK {
		t.Fatalf("status %d after login", rec.Code)
	}

	s.do(http.MethodPost, "/auth/logout", "")
	if rec := s.do(http.MethodGet, "/api/session", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d after logout, want 401", rec.Code)
	}
}

func TestRoutes_ScanToDownload(t *testing.T) {
	s := newServer(t, `{"order":42}`)
	s.login()

	if rec := s.do(http.MethodPost, "/api/session/start", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("start status %d", rec.Code)
	}

	page := s.waitResults(1)
	stored := page.Results[0]
	if stored.Type != "json" || stored.Content != `{"order":42}` || stored.DeviceID != "video0" {
		t.Fatalf("unexpected stored result %+v", stored)
	}

	var status dto.SessionStatus
	json.Unmarshal(s.do(http.MethodGet, "/api/session", "").Body.Bytes(), &status)
	if status.Session.State != scan.Stopped || status.OpenStreams != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	id := itoa(stored.ID)
	rec := s.do(http.MethodGet, "/api/results/"+id+"/download", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download status %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "qr-scan-") {
		t.Fatalf("Content-Disposition %q", cd)
	}
	res, err := export.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Parse download: %v", err)
	}
	if fc, ok := res.FormattedContent.(map[string]any); !ok || fc["order"] != float64(42) {
		t.Fatalf("formattedContent %#v", res.FormattedContent)
	}

	rec = s.do(http.MethodGet, "/api/results/"+id+"/qrcode?size=128", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qrcode status %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil || img.Bounds().Dx() != 128 {
		t.Fatalf("qrcode image: %v", err)
	}

	if rec := s.do(http.MethodDelete, "/api/results/"+id, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/results/"+id, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/api/results/"+id, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status %d", rec.Code)
	}
}

func TestRoutes_RescanStoresSecondResult(t *testing.T) {
	s := newServer(t, "hello")
	s.login()

	s.do(http.MethodPost, "/api/session/start", "")
	s.waitResults(1)

	if rec := s.do(http.MethodPost, "/api/session/rescan", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("rescan status %d", rec.Code)
	}
	page := s.waitResults(2)
	if page.Results[0].Type != "text" {
		t.Fatalf("unexpected type %s", page.Results[0].Type)
	}

	if rec := s.do(http.MethodPost, "/api/results/clear", ""); rec.Code != http.StatusOK {
		t.Fatalf("clear status %d", rec.Code)
	}
	var cleared dto.ResultsPage
	json.Unmarshal(s.do(http.MethodGet, "/api/results", "").Body.Bytes(), &cleared)
	if cleared.Total != 0 {
		t.Fatalf("history not cleared: %d", cleared.Total)
	}
}

func TestRoutes_Devices(t *testing.T) {
	s := newServer(t, "x")
	s.login()

	var body struct {
		Devices []camera.Device `json:"devices"`
	}
	rec := s.do(http.MethodGet, "/api/devices", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Devices) != 2 {
		t.Fatalf("devices %s (%v)", rec.Body, err)
	}

	if rec := s.do(http.MethodPost, "/api/session/device", `{"id":"video9"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device status %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/session/device", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing id status %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/api/session/device", `{"id":"video2"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("select status %d", rec.Code)
	}
}

func TestRoutes_ResultsRejectUnknownType(t *testing.T) {
	s := newServer(t, "x")
	s.login()

	if rec := s.do(http.MethodGet, "/api/results?type=image", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
