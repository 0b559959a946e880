package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"qrscan/internal/camera"
	"qrscan/internal/camera/v4l"
	"qrscan/internal/classify"
	"qrscan/internal/config"
	"qrscan/internal/decoder"
	"qrscan/internal/decoder/gocvqr"
	"qrscan/internal/logger"
	"qrscan/internal/middleware"
	"qrscan/internal/repository/sqlite"
	"qrscan/internal/routes"
	"qrscan/internal/scan"
	"qrscan/internal/services"
	"qrscan/internal/services/storage"
	"qrscan/internal/services/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	backend       *gocvqr.Backend
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *services.Manager
	auth          *middleware.Auth
}

func NewApp(cfg *config.Config) (*App, error) {
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	auth, err := middleware.NewAuth(cfg.Password, 24*time.Hour)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("hash password: %w", err)
	}

	cameras := camera.NewManager(v4l.New(cfg, log), log)
	backend := gocvqr.New()
	classifier := classify.New(classify.Options{PrimitivesAsJSON: cfg.PrimitivesAsJSON})

	session, err := scan.NewSession(cameras, decoder.New(backend, log), classifier, scan.Options{
		Interval:  cfg.ScanInterval,
		DeviceID:  cfg.CameraDevice,
		AutoBegin: cfg.AutoBegin,
	}, log)
	if err != nil {
		backend.Close()
		db.Close()
		return nil, err
	}

	buffer := storage.NewBufferService(cfg.ExportDirectory, cfg.ExportBufferLimit, log)
	hub := websocket.NewHubService(log)
	mng := services.NewManager(session, cameras, sqlite.NewScanRepository(db), buffer, hub, cfg, log)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		backend:       backend,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
		auth:          auth,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down in
// dependency order: server, session, background services, storage.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	bgCtx, stopBackground := context.WithCancel(context.Background())

	wg.Add(2)
	go func() {
		defer wg.Done()
		a.bufferService.Run(bgCtx, time.Duration(a.config.ExportFlushInterval)*time.Second)
	}()
	go func() {
		defer wg.Done()
		a.hubService.Run(bgCtx)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           routes.SetupRoutes(a.manager, a.auth, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("QR Scan Station\n")
	fmt.Printf("URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("Exports: %s\n", a.config.ExportDirectory)
	fmt.Printf("History: %s\n", a.config.DatabasePath)

	if a.config.AutoBegin {
		a.manager.GetSession().Start()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = server.Shutdown(shutdownCtx)
		cancel()
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	a.manager.Stop()
	stopBackground()
	wg.Wait()

	a.backend.Close()
	if cerr := a.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.logger.Close()
	return err
}
