package services

import (
	"sync"

	"qrscan/internal/camera"
	"qrscan/internal/classify"
	"qrscan/internal/config"
	"qrscan/internal/logger"
	"qrscan/internal/models"
	"qrscan/internal/repository"
	"qrscan/internal/scan"
	"qrscan/internal/services/storage"
	"qrscan/internal/services/websocket"

	"github.com/pkg/browser"
)

// Manager owns the scanning session and routes its events: every event goes
// to the websocket viewers, results are stored, exported and optionally opened.
type Manager struct {
	session          *scan.Session
	cameras          *camera.Manager
	repository       repository.ScanRepository
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	logger           *logger.Logger

	autoOpenURLs bool
	openURL      func(url string) error

	resultQueue chan ResultTask
	numWorkers  int
	wg          sync.WaitGroup
	consumed    chan struct{}
}

// ResultTask is a finished scan waiting to be persisted.
type ResultTask struct {
	SessionID string
	DeviceID  string
	Result    scan.Result
}

func NewManager(session *scan.Session, cameras *camera.Manager, repo repository.ScanRepository, bufferService *storage.BufferService, websocketService *websocket.HubService, config *config.Config, logger *logger.Logger) *Manager {
	manager := &Manager{
		session:          session,
		cameras:          cameras,
		repository:       repo,
		bufferService:    bufferService,
		websocketService: websocketService,
		logger:           logger,
		autoOpenURLs:     config.AutoOpenURLs,
		openURL:          browser.OpenURL,
		resultQueue:      make(chan ResultTask, 16),
		numWorkers:       1, // SQLite takes one writer at a time
		consumed:         make(chan struct{}),
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.resultWorker(i)
	}
	go manager.consume()

	manager.logger.Info("Manager started for session %s", session.ID())
	return manager
}

// SetURLOpener replaces the system browser launcher.
func (m *Manager) SetURLOpener(open func(url string) error) {
	m.openURL = open
}

// consume drains session events until the session is disposed.
func (m *Manager) consume() {
	defer close(m.consumed)

	for ev := range m.session.Events() {
		m.HandleEvent(ev)
	}
}

// HandleEvent forwards ev to viewers and queues results for storage.
func (m *Manager) HandleEvent(ev scan.Event) {
	if err := m.websocketService.BroadcastJSON(ev); err != nil {
		m.logger.Error("Error encoding %s event: %v", ev.Type, err)
	}

	if ev.Type != scan.EventScanSucceeded || ev.Result == nil {
		return
	}

	if m.autoOpenURLs && ev.Result.Type == classify.URL {
		if err := m.openURL(ev.Result.Content); err != nil {
			m.logger.Warning("Could not open %s: %v", ev.Result.Content, err)
		}
	}

	select {
	case m.resultQueue <- ResultTask{SessionID: ev.SessionID, DeviceID: ev.DeviceID, Result: *ev.Result}:
	default:
		m.logger.Warning("Result queue full - result from %s not stored", ev.DeviceID)
	}
}

func (m *Manager) resultWorker(workerID int) {
	defer m.wg.Done()

	for task := range m.resultQueue {
		m.storeResult(task, workerID)
	}
}

func (m *Manager) storeResult(task ResultTask, workerID int) {
	rec, err := models.NewScanRecord(task.SessionID, task.DeviceID, task.Result)
	if err != nil {
		m.logger.Error("Worker %d: cannot encode result: %v", workerID, err)
		return
	}

	if _, err := m.repository.Insert(rec); err != nil {
		m.logger.Error("Worker %d: failed to store result: %v", workerID, err)
	} else {
		m.logger.Info("Stored %s result #%d from %s", rec.Type, rec.ID, rec.DeviceID)
	}

	m.bufferService.AddResult(task.Result)
}

func (m *Manager) GetSession() *scan.Session {
	return m.session
}

func (m *Manager) GetCameras() *camera.Manager {
	return m.cameras
}

func (m *Manager) GetRepository() repository.ScanRepository {
	return m.repository
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

// Stop disposes the session and waits for queued results to be stored.
func (m *Manager) Stop() {
	m.session.Dispose()
	<-m.consumed
	close(m.resultQueue)
	m.wg.Wait()
	m.logger.Info("All result workers stopped")
}
