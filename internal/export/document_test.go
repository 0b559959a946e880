package export

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"qrscan/internal/classify"
	"qrscan/internal/scan"

	"github.com/tidwall/gjson"
)

var stamp = time.Date(2024, 3, 9, 14, 5, 7, 250*int(time.Millisecond), time.UTC)

func TestMarshal_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		result scan.Result
	}{
		{"text", scan.Result{Content: "Hello World!", Type: classify.Text, Timestamp: stamp}},
		{"url", scan.Result{Content: "https://example.com/a?b=c", Type: classify.URL, Timestamp: stamp}},
		{"json object", scan.Result{
			Content:          `{"a":1,"b":[true,"x"]}`,
			Type:             classify.JSON,
			Timestamp:        stamp,
			FormattedContent: map[string]any{"a": float64(1), "b": []any{true, "x"}},
		}},
		{"json null", scan.Result{Content: "null", Type: classify.JSON, Timestamp: stamp}},
		{"json number", scan.Result{Content: "5", Type: classify.JSON, Timestamp: stamp, FormattedContent: float64(5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.result)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			got, err := Parse(data)
			if err != nil {
				t.Fatalf("Parse: %v\n%s", err, data)
			}
			if got.Content != tt.result.Content || got.Type != tt.result.Type {
				t.Errorf("got %q/%s, want %q/%s", got.Content, got.Type, tt.result.Content, tt.result.Type)
			}
			if !got.Timestamp.Equal(tt.result.Timestamp) {
				t.Errorf("timestamp %v, want %v", got.Timestamp, tt.result.Timestamp)
			}
			if !reflect.DeepEqual(got.FormattedContent, tt.result.FormattedContent) {
				t.Errorf("formattedContent %#v, want %#v", got.FormattedContent, tt.result.FormattedContent)
			}
		})
	}
}

func TestMarshal_ClassifiedOverflowRoundTrips(t *testing.T) {
	c := classify.New(classify.DefaultOptions())
	for _, raw := range []string{"1e400", "-1e400", `{"big":1e400}`} {
		cls := c.Classify(raw)
		res := scan.Result{Content: raw, Type: cls.Type, Timestamp: stamp, FormattedContent: cls.FormattedContent}

		data, err := Marshal(res)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", raw, err)
		}
		got, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse(%s): %v\n%s", raw, err, data)
		}
		if got.Content != raw || got.Type != classify.JSON {
			t.Errorf("got %q/%s, want %q/json", got.Content, got.Type, raw)
		}
		if !reflect.DeepEqual(got.FormattedContent, cls.FormattedContent) {
			t.Errorf("formattedContent %#v, want %#v", got.FormattedContent, cls.FormattedContent)
		}
	}
}

func TestMarshal_Layout(t *testing.T) {
	data, err := Marshal(scan.Result{Content: "hi", Type: classify.Text, Timestamp: stamp})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	want := "{\n  \"content\": \"hi\",\n  \"type\": \"text\",\n  \"timestamp\": \"2024-03-09T14:05:07.250Z\"\n}"
	if string(data) != want {
		t.Fatalf("got\n%s\nwant\n%s", data, want)
	}
}

func TestMarshal_JSONNullKeepsField(t *testing.T) {
	data, err := Marshal(scan.Result{Content: "null", Type: classify.JSON, Timestamp: stamp})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	fc := gjson.GetBytes(data, "formattedContent")
	if !fc.Exists() || fc.Type != gjson.Null {
		t.Fatalf("expected formattedContent: null, got %s", data)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `{"content":`,
		"no content":   `{"type":"text","timestamp":"2024-03-09T14:05:07Z"}`,
		"bad type":     `{"content":"x","type":"image","timestamp":"2024-03-09T14:05:07Z"}`,
		"bad time":     `{"content":"x","type":"text","timestamp":"yesterday"}`,
		"content type": `{"content":5,"type":"text","timestamp":"2024-03-09T14:05:07Z"}`,
	}
	for name, doc := range tests {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("%s: expected ErrInvalidDocument, got %v", name, err)
		}
	}
}

func TestFilename(t *testing.T) {
	local := stamp.In(time.FixedZone("CET", 3600))
	if got := Filename(local); got != "qr-scan-2024-03-09T14-05-07.json" {
		t.Fatalf("Filename = %s", got)
	}
	if strings.ContainsAny(Filename(stamp), ":") {
		t.Fatal("filename must not contain colons")
	}
}
