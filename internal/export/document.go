// Package export converts scan results to and from the downloadable JSON
// document: {content, type, timestamp, formattedContent}, two-space indented.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qrscan/internal/classify"
	"qrscan/internal/scan"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// TimestampLayout is ISO 8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
	filenameLayout  = "2006-01-02T15-04-05"
	ContentType     = "application/json"
)

var ErrInvalidDocument = errors.New("export: invalid document")

// Marshal renders r as an export document. formattedContent is written only
// for json results, where it may legitimately be null.
func Marshal(r scan.Result) ([]byte, error) {
	doc := "{}"
	var err error

	if doc, err = sjson.Set(doc, "content", r.Content); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}
	if doc, err = sjson.Set(doc, "type", string(r.Type)); err != nil {
		return nil, fmt.Errorf("set type: %w", err)
	}
	if doc, err = sjson.Set(doc, "timestamp", r.Timestamp.UTC().Format(TimestampLayout)); err != nil {
		return nil, fmt.Errorf("set timestamp: %w", err)
	}
	if r.Type == classify.JSON {
		if doc, err = sjson.Set(doc, "formattedContent", r.FormattedContent); err != nil {
			return nil, fmt.Errorf("set formattedContent: %w", err)
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, []byte(doc), "", "  "); err != nil {
		return nil, fmt.Errorf("indent: %w", err)
	}
	return out.Bytes(), nil
}

// Parse reads a document produced by Marshal.
func Parse(data []byte) (scan.Result, error) {
	if !gjson.ValidBytes(data) {
		return scan.Result{}, fmt.Errorf("%w: not json", ErrInvalidDocument)
	}

	doc := gjson.ParseBytes(data)
	content := doc.Get("content")
	if content.Type != gjson.String {
		return scan.Result{}, fmt.Errorf("%w: content must be a string", ErrInvalidDocument)
	}

	typ := classify.Type(doc.Get("type").String())
	if !typ.Valid() {
		return scan.Result{}, fmt.Errorf("%w: unknown type %q", ErrInvalidDocument, typ)
	}

	ts, err := time.Parse(time.RFC3339Nano, doc.Get("timestamp").String())
	if err != nil {
		return scan.Result{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidDocument, err)
	}

	res := scan.Result{
		Content:   content.String(),
		Type:      typ,
		Timestamp: ts,
	}
	if fc := doc.Get("formattedContent"); fc.Exists() && typ == classify.JSON {
		res.FormattedContent = fc.Value()
	}
	return res, nil
}

// Filename names the export file after the result timestamp, in UTC.
func Filename(ts time.Time) string {
	return "qr-scan-" + ts.UTC().Format(filenameLayout) + ".json"
}
