// Package scan runs the QR scanning session: camera permission, device
// selection, the frame sampling loop and exactly-once result emission.
package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"qrscan/internal/camera"
	"qrscan/internal/classify"
	"qrscan/internal/logger"

	"github.com/google/uuid"
)

// DefaultInterval is the sampling period used when the caller has no preference.
const DefaultInterval = 100 * time.Millisecond

var ErrInvalidInterval = errors.New("scan: sampling interval must be positive")

// Cameras is the device layer a Session drives. *camera.Manager implements it.
type Cameras interface {
	RequestPermission(ctx context.Context) error
	ListDevices(ctx context.Context) ([]camera.Device, error)
	OpenStream(ctx context.Context, deviceID string) (*camera.StreamHandle, error)
	CloseStream(h *camera.StreamHandle)
}

// Decoder extracts a payload from a frame. *decoder.Adapter implements it.
type Decoder interface {
	Decode(frame camera.Frame) (string, bool)
}

// Classifier types a decoded payload. *classify.Classifier implements it.
type Classifier interface {
	Classify(raw string) classify.Classification
}

// Options configure a Session.
type Options struct {
	// Interval between sampling ticks. Shorter catches codes sooner at the
	// cost of CPU. Must be > 0.
	Interval time.Duration
	// DeviceID is the preferred camera; empty picks the first enumerated one.
	DeviceID string
	// AutoBegin starts scanning as soon as permission is granted and a
	// camera is present.
	AutoBegin bool
	// EventBuffer is the capacity of the event channel (default 64).
	EventBuffer int
	// Now stamps results and events (default time.Now).
	Now func() time.Time
}

// Snapshot is a read-only view of a session for status endpoints.
type Snapshot struct {
	ID             string          `json:"id"`
	State          State           `json:"state"`
	Devices        []camera.Device `json:"devices"`
	SelectedDevice string          `json:"selectedDevice,omitempty"`
	Streaming      bool            `json:"streaming"`
	Result         *Result         `json:"result,omitempty"`
	LastFailure    *Failure        `json:"lastFailure,omitempty"`
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdBegin
	cmdCancel
	cmdSwitch
	cmdRetry
	cmdReset
	cmdRefresh
)

var commandNames = [...]string{"start", "begin", "cancel", "switch", "retry", "reset", "refresh"}

func (k commandKind) String() string { return commandNames[k] }

type command struct {
	kind     commandKind
	deviceID string
}

type decodeOutcome struct {
	generation uint64
	payload    string
	found      bool
}

// Session is a single-owner state machine. All state below the channels is
// touched only by the run goroutine; callers talk to it through commands and
// read it through Events and Snapshot.
type Session struct {
	id         string
	cameras    Cameras
	decoder    Decoder
	classifier Classifier
	logger     *logger.Logger
	opts       Options

	ctx      context.Context
	cancel   context.CancelFunc
	commands chan command
	decoded  chan decodeOutcome
	events   chan Event
	done     chan struct{}

	state       State
	devices     []camera.Device
	selected    string
	stream      *camera.StreamHandle
	ticker      *time.Ticker
	frame       camera.Frame
	inflight    bool
	generation  uint64
	delivered   bool
	lastResult  *Result
	lastFailure *Failure
	skipped     int

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewSession starts an idle session. Events must be drained by the caller.
func NewSession(cameras Cameras, dec Decoder, cls Classifier, opts Options, log *logger.Logger) (*Session, error) {
	if opts.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         uuid.NewString(),
		cameras:    cameras,
		decoder:    dec,
		classifier: cls,
		logger:     log,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		commands:   make(chan command, 16),
		decoded:    make(chan decodeOutcome, 1),
		events:     make(chan Event, opts.EventBuffer),
		done:       make(chan struct{}),
		state:      Idle,
		selected:   opts.DeviceID,
	}
	s.publish()

	go s.run()
	return s, nil
}

// ID identifies the current run in events and stored results. Reset starts
// a new run under a fresh id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.ID
}

// Events is closed after Dispose.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns the latest published view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Devices = append([]camera.Device{}, s.snapshot.Devices...)
	return snap
}

// Start asks for camera permission (Idle only).
func (s *Session) Start() { s.send(command{kind: cmdStart}) }

// BeginScanning opens the selected camera and starts sampling (Ready only).
func (s *Session) BeginScanning() { s.send(command{kind: cmdBegin}) }

// Cancel stops scanning without a result (Scanning only).
func (s *Session) Cancel() { s.send(command{kind: cmdCancel}) }

// SwitchDevice selects another camera; while scanning the stream is swapped.
func (s *Session) SwitchDevice(id string) { s.send(command{kind: cmdSwitch, deviceID: id}) }

// RetryPermission asks for permission again after a denial.
func (s *Session) RetryPermission() { s.send(command{kind: cmdRetry}) }

// Reset returns a stopped session to Idle. It is a no-op in Idle.
func (s *Session) Reset() { s.send(command{kind: cmdReset}) }

// RefreshDevices re-enumerates cameras (Ready or Scanning only).
func (s *Session) RefreshDevices() { s.send(command{kind: cmdRefresh}) }

// Dispose stops the session from any state, releases the stream and waits
// for the session goroutine to exit. It is safe to call more than once.
func (s *Session) Dispose() {
	s.cancel()
	<-s.done
}

func (s *Session) send(cmd command) {
	select {
	case <-s.ctx.Done():
	case s.commands <- cmd:
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)

	s.logger.Info("Scan session %s started (interval %v)", s.id, s.opts.Interval)

	for {
		if s.ctx.Err() != nil {
			s.shutdown()
			return
		}

		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C
		}

		select {
		case <-s.ctx.Done():
		case cmd := <-s.commands:
			s.handle(cmd)
		case <-tick:
			s.sample()
		case out := <-s.decoded:
			s.finishDecode(out)
		}
	}
}

func (s *Session) handle(cmd command) {
	switch cmd.kind {
	case cmdStart:
		if s.state != Idle {
			s.ignore(cmd)
			return
		}
		s.acquirePermission()
	case cmdRetry:
		if s.state != PermissionDenied {
			s.ignore(cmd)
			return
		}
		s.acquirePermission()
	case cmdBegin:
		if s.state != Ready {
			s.ignore(cmd)
			return
		}
		s.beginScanning()
	case cmdSwitch:
		s.switchDevice(cmd.deviceID)
	case cmdCancel:
		if s.state != Scanning {
			s.ignore(cmd)
			return
		}
		s.stopSampling()
		s.releaseStream()
		s.setState(Stopped)
	case cmdReset:
		if s.state != Stopped {
			s.ignore(cmd)
			return
		}
		prev := s.id
		s.id = uuid.NewString()
		s.delivered = false
		s.lastResult = nil
		s.lastFailure = nil
		s.logger.Info("Scan session %s reset as %s", prev, s.id)
		s.setState(Idle)
	case cmdRefresh:
		if s.state != Ready && s.state != Scanning {
			s.ignore(cmd)
			return
		}
		if err := s.loadDevices(); err != nil && s.ctx.Err() == nil {
			s.fail(KindEnumeration, "Error accessing camera devices: "+err.Error())
		}
	}
}

func (s *Session) ignore(cmd command) {
	s.logger.Debug("Session %s ignoring %s in state %s", s.id, cmd.kind, s.state)
}

func (s *Session) acquirePermission() {
	s.setState(RequestingPermission)

	err := s.cameras.RequestPermission(s.ctx)
	if s.ctx.Err() != nil {
		return
	}

	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		s.setState(PermissionDenied)
		s.fail(KindPermissionDenied, "Camera permission denied. Please allow camera access to scan QR codes.")
		return
	case err != nil:
		// not a refusal: the probe device is busy, the grant itself is fine
		if lerr := s.loadDevices(); lerr != nil {
			s.logger.Warning("Device enumeration after failed probe: %v", lerr)
		}
		s.setState(Ready)
		s.fail(KindDeviceUnavailable, "Error starting camera: "+err.Error())
		return
	}

	if err := s.loadDevices(); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.setState(Ready)
		s.fail(KindEnumeration, "Error accessing camera devices: "+err.Error())
		return
	}

	s.setState(Ready)
	if s.opts.AutoBegin && len(s.devices) > 0 {
		s.beginScanning()
	}
}

func (s *Session) loadDevices() error {
	devices, err := s.cameras.ListDevices(s.ctx)
	if err != nil {
		return err
	}

	s.devices = devices
	switch {
	case s.stream != nil:
		s.selected = s.stream.DeviceID()
	case !hasDevice(devices, s.selected):
		s.selected = ""
		if len(devices) > 0 {
			s.selected = devices[0].ID
		}
	}
	s.publish()
	return nil
}

func hasDevice(devices []camera.Device, id string) bool {
	for _, d := range devices {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) beginScanning() {
	h, err := s.cameras.OpenStream(s.ctx, s.selected)
	if err != nil {
		if s.ctx.Err() == nil {
			s.openFailed(err)
		}
		return
	}

	s.stream = h
	s.selected = h.DeviceID()
	s.startSampling()
	s.setState(Scanning)
}

// switchDevice only records the choice unless a stream is live; a live
// stream is closed before the next one is opened.
func (s *Session) switchDevice(id string) {
	if s.state != Scanning {
		s.selected = id
		s.publish()
		return
	}
	if id == s.selected {
		return
	}

	s.generation++
	s.releaseStream()

	h, err := s.cameras.OpenStream(s.ctx, id)
	if err != nil {
		if s.ctx.Err() == nil {
			s.stopSampling()
			s.selected = id
			if errors.Is(err, camera.ErrPermissionDenied) {
				s.setState(PermissionDenied)
			} else {
				s.setState(Ready)
			}
			s.openFailed(err)
		}
		return
	}

	s.stream = h
	s.selected = h.DeviceID()
	s.setState(Scanning)
}

func (s *Session) openFailed(err error) {
	if errors.Is(err, camera.ErrPermissionDenied) {
		if s.state != PermissionDenied {
			s.setState(PermissionDenied)
		}
		s.fail(KindPermissionDenied, "Camera permission denied. Please allow camera access to scan QR codes.")
		return
	}
	s.fail(KindDeviceUnavailable, "Error starting camera scanner: "+err.Error())
}

func (s *Session) startSampling() {
	s.ticker = time.NewTicker(s.opts.Interval)
	s.skipped = 0
}

// stopSampling invalidates any decode still in flight.
func (s *Session) stopSampling() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.generation++
}

func (s *Session) releaseStream() {
	if s.stream != nil {
		s.cameras.CloseStream(s.stream)
		s.stream = nil
	}
}

// sample runs one tick. A tick that arrives while the previous decode is
// still running is skipped; the scratch frame is never shared by two decodes.
func (s *Session) sample() {
	if s.state != Scanning || s.stream == nil {
		return
	}
	if s.inflight {
		s.skipped++
		return
	}

	if err := s.stream.ReadFrame(&s.frame); err != nil {
		s.logger.Warning("Lost stream on %s: %v", s.selected, err)
		s.stopSampling()
		s.releaseStream()
		s.setState(Ready)
		s.fail(KindDeviceUnavailable, "Camera stopped delivering frames: "+err.Error())
		return
	}

	s.inflight = true
	gen := s.generation
	frame := s.frame
	go func() {
		out := decodeOutcome{generation: gen}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Decoder panic: %v", r)
				out = decodeOutcome{generation: gen}
			}
			s.decoded <- out
		}()
		out.payload, out.found = s.decoder.Decode(frame)
	}()
}

func (s *Session) finishDecode(out decodeOutcome) {
	s.inflight = false

	if out.generation != s.generation || s.state != Scanning || s.delivered {
		if out.found {
			s.logger.Debug("Session %s discarding stale decode result", s.id)
		}
		return
	}
	if !out.found {
		return
	}
	s.complete(out.payload)
}

func (s *Session) complete(payload string) {
	c := s.classifier.Classify(payload)
	res := Result{
		Content:   payload,
		Type:      c.Type,
		Timestamp: s.opts.Now(),
	}
	if c.Type == classify.JSON {
		res.FormattedContent = c.FormattedContent
	}

	device := s.selected
	s.delivered = true
	s.lastResult = &res
	s.stopSampling()
	s.releaseStream()
	s.setState(Stopped)

	s.logger.Info("Session %s decoded %s payload on %s (%d ticks skipped)", s.id, res.Type, device, s.skipped)
	s.emit(Event{Type: EventScanSucceeded, DeviceID: device, Result: &res})
}

func (s *Session) shutdown() {
	s.stopSampling()
	s.releaseStream()
	if s.state != Stopped {
		s.setState(Stopped)
	}
	s.logger.Info("Scan session %s disposed", s.id)
}

func (s *Session) setState(st State) {
	s.state = st
	s.publish()
	s.emit(Event{Type: EventStateChanged, DeviceID: s.selected})
}

func (s *Session) fail(kind ErrorKind, message string) {
	f := Failure{Kind: kind, Message: message}
	s.lastFailure = &f
	s.publish()
	s.logger.Warning("Session %s: %s: %s", s.id, kind, message)
	s.emit(Event{Type: EventScanFailed, DeviceID: s.selected, Failure: &f})
}

func (s *Session) publish() {
	snap := Snapshot{
		ID:             s.id,
		State:          s.state,
		Devices:        append([]camera.Device{}, s.devices...),
		SelectedDevice: s.selected,
		Streaming:      s.stream != nil,
		LastFailure:    s.lastFailure,
	}
	if s.lastResult != nil {
		r := *s.lastResult
		snap.Result = &r
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// emit blocks until the consumer takes the event. During shutdown it only
// uses free buffer space.
func (s *Session) emit(ev Event) {
	ev.SessionID = s.id
	ev.State = s.state
	ev.Time = s.opts.Now()

	select {
	case s.events <- ev:
	case <-s.ctx.Done():
		select {
		case s.events <- ev:
		default:
			s.logger.Warning("Session %s dropped %s event during shutdown", s.id, ev.Type)
		}
	}
}
