package models

import (
	"encoding/json"
	"fmt"
	"time"

	"qrscan/internal/classify"
	"qrscan/internal/scan"

	"github.com/tidwall/gjson"
)

// ScanRecord is a stored scan result.
type ScanRecord struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	DeviceID         string    `json:"device_id"`
	Content          string    `json:"content"`
	Type             string    `json:"type"`
	FormattedContent string    `json:"formatted_content,omitempty"` // raw JSON, json results only
	ScannedAt        time.Time `json:"scanned_at"`
}

// ScanFilter contains filtering options for querying scan history.
type ScanFilter struct {
	Type     string
	DeviceID string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// ScanStats summarizes the stored history.
type ScanStats struct {
	Total     int            `json:"total"`
	PerType   map[string]int `json:"per_type"`
	PerDevice map[string]int `json:"per_device"`
}

// NewScanRecord flattens a session result for storage.
func NewScanRecord(sessionID, deviceID string, r scan.Result) (*ScanRecord, error) {
	rec := &ScanRecord{
		SessionID: sessionID,
		DeviceID:  deviceID,
		Content:   r.Content,
		Type:      string(r.Type),
		ScannedAt: r.Timestamp.UTC(),
	}
	if r.Type == classify.JSON {
		raw, err := json.Marshal(r.FormattedContent)
		if err != nil {
			return nil, fmt.Errorf("encode formatted content: %w", err)
		}
		rec.FormattedContent = string(raw)
	}
	return rec, nil
}

// Result rebuilds the session result the record was made from.
func (rec *ScanRecord) Result() scan.Result {
	r := scan.Result{
		Content:   rec.Content,
		Type:      classify.Type(rec.Type),
		Timestamp: rec.ScannedAt,
	}
	if r.Type == classify.JSON && gjson.Valid(rec.FormattedContent) {
		r.FormattedContent = gjson.Parse(rec.FormattedContent).Value()
	}
	return r
}
