package dto

import (
	"qrscan/internal/models"
	"qrscan/internal/scan"
)

// ResultsPage is one page of scan history.
type ResultsPage struct {
	Results     []models.ScanRecord `json:"results"`
	Total       int                 `json:"total"`
	TotalPages  int                 `json:"totalPages"`
	CurrentPage int                 `json:"currentPage"`
	Limit       int                 `json:"pageSize"`
}

// DeviceRequest selects a camera for the running session.
type DeviceRequest struct {
	ID string `json:"id"`
}

// LoginRequest carries the station password.
type LoginRequest struct {
	Password string `json:"password"`
}

// SessionStatus is the session snapshot plus server-side counters.
type SessionStatus struct {
	Session       scan.Snapshot `json:"session"`
	OpenStreams   int           `json:"openStreams"`
	Viewers       int           `json:"viewers"`
	PendingExport int           `json:"pendingExport"`
}
