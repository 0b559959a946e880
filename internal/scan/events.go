package scan

import (
	"time"
)

// EventType classifies session output.
type EventType string

const (
	EventStateChanged  EventType = "stateChanged"
	EventScanSucceeded EventType = "scanSucceeded"
	EventScanFailed    EventType = "scanFailed"
)

// ErrorKind names a user-visible failure.
type ErrorKind string

const (
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindDeviceUnavailable ErrorKind = "device_unavailable"
	KindEnumeration       ErrorKind = "enumeration_failed"
)

// Failure is the payload of a scanFailed event.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Event is emitted on the session's event channel. For one transition the
// stateChanged event always comes before scanSucceeded or scanFailed.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Time      time.Time `json:"time"`
	State     State     `json:"state"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Failure   *Failure  `json:"failure,omitempty"`
}
