package usecase

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Payload is an inbound processor callback body, decoded from JSON or a form.
type Payload map[string]any

// CallbackFields lists the accepted aliases per field, in priority order.
type CallbackFields struct {
	JobID     []string
	ResultURL []string
	Base64    []string
}

// DefaultCallbackFields mirrors the schemas seen from processors so far.
func DefaultCallbackFields() CallbackFields {
	return CallbackFields{
		JobID:     []string{"id_gen", "id", "job_id"},
		ResultURL: []string{"url", "image_url", "result_url"},
		Base64:    []string{"base64", "image_base64"},
	}
}

// ExtractFirst returns the first alias holding a non-empty scalar value.
// Strings are trimmed; numbers are formatted without exponent.
func ExtractFirst(p Payload, aliases []string) (string, bool) {
	for _, name := range aliases {
		v, ok := p[name]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case []string:
			if len(t) > 0 {
				s = t[0]
			}
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int64:
			s = strconv.FormatInt(t, 10)
		case int:
			s = strconv.Itoa(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// ResultKind says which branch a callback result resolved to.
type ResultKind string

const (
	ResultURL   ResultKind = "url"
	ResultBytes ResultKind = "bytes"
	ResultNone  ResultKind = "notice"
)

// Result is the located output image, if any.
type Result struct {
	Kind  ResultKind
	URL   string
	Bytes []byte
}

// ExtractResult tries the URL aliases, then the base64 aliases. A base64 value
// that does not decode is treated as absent.
func ExtractResult(p Payload, f CallbackFields) Result {
	if u, ok := ExtractFirst(p, f.ResultURL); ok {
		return Result{Kind: ResultURL, URL: u}
	}
	for _, name := range f.Base64 {
		raw, ok := ExtractFirst(p, []string{name})
		if !ok {
			continue
		}
		if b, err := decodeBase64(raw); err == nil && len(b) > 0 {
			return Result{Kind: ResultBytes, Bytes: b}
		}
	}
	return Result{Kind: ResultNone}
}

// decodeBase64 accepts std or URL alphabets, padded or not, with an optional
// data: URI prefix.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
