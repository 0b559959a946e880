package scan

import (
	"fmt"
	"time"

	"qrscan/internal/classify"
)

// State of a scanning session.
type State int

const (
	Idle State = iota
	RequestingPermission
	PermissionDenied
	Ready
	Scanning
	Stopped
)

var stateNames = [...]string{
	Idle:                 "idle",
	RequestingPermission: "requesting_permission",
	PermissionDenied:     "permission_denied",
	Ready:                "ready",
	Scanning:             "scanning",
	Stopped:              "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Result is one successful scan. It is built once by the session and never
// modified afterwards; FormattedContent is only set for classify.JSON.
type Result struct {
	Content          string        `json:"content"`
	Type             classify.Type `json:"type"`
	Timestamp        time.Time     `json:"timestamp"`
	FormattedContent any           `json:"formattedContent,omitempty"`
}
