// Package classify decides what kind of content a decoded QR payload carries.
package classify

import (
	"math"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Type is the content type of a decoded payload.
type Type string

const (
	URL  Type = "url"
	JSON Type = "json"
	Text Type = "text"
)

// Valid reports whether t is one of the known content types.
func (t Type) Valid() bool {
	return t == URL || t == JSON || t == Text
}

// allowedSchemes lists the URI schemes that make a payload a url.
var allowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"ftp":    true,
	"mailto": true,
	"tel":    true,
}

// Options tune classification.
type Options struct {
	// PrimitivesAsJSON classifies bare JSON values such as 5, true or null as
	// json. When false only objects and arrays count as json.
	PrimitivesAsJSON bool
}

// DefaultOptions matches the behavior of a structured-parse-first classifier.
func DefaultOptions() Options {
	return Options{PrimitivesAsJSON: true}
}

// Classification is the outcome of Classify.
type Classification struct {
	Type Type
	// FormattedContent holds the parsed value, only for Type == JSON.
	FormattedContent any
}

// Classifier is safe for concurrent use.
type Classifier struct {
	opts Options
}

func New(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Classify applies, in order: structured parse, allow-listed absolute URI, text.
// It never fails; a rule that cannot parse raw simply does not match.
func (c *Classifier) Classify(raw string) Classification {
	if value, ok := c.parseJSON(raw); ok {
		return Classification{Type: JSON, FormattedContent: value}
	}
	if IsURL(raw) {
		return Classification{Type: URL}
	}
	return Classification{Type: Text}
}

func (c *Classifier) parseJSON(raw string) (any, bool) {
	if !gjson.Valid(raw) {
		return nil, false
	}
	res := gjson.Parse(raw)
	if !c.opts.PrimitivesAsJSON && !res.IsObject() && !res.IsArray() {
		return nil, false
	}
	return finite(res.Value()), true
}

// finite replaces numbers that overflow float64 (1e400 parses as +Inf) with
// nil, the way a JSON serializer writes them, so the value stays encodable.
func finite(v any) any {
	switch v := v.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil
		}
	case map[string]any:
		for k, e := range v {
			v[k] = finite(e)
		}
	case []any:
		for i, e := range v {
			v[i] = finite(e)
		}
	}
	return v
}

// IsURL reports whether raw is an absolute URI with an allow-listed scheme.
func IsURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return false
	}
	if !allowedSchemes[u.Scheme] {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return authority(u) != ""
	}
	return true
}

// authority returns the host of a hierarchical URI. Like a WHATWG parser it
// tolerates missing slashes, so "http:example.com" has host example.com.
func authority(u *url.URL) string {
	if u.Host != "" {
		return u.Host
	}
	rest := u.Opaque
	if rest == "" {
		rest = strings.TrimLeft(u.Path, "/")
	}
	host, _, _ := strings.Cut(rest, "/")
	return host
}
