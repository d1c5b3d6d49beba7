package providers

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// rawBodyCap is the maximum number of bytes of a request/response body kept
// in a RawExchange record before truncation.
const rawBodyCap = 4096

// redactedHeaderNames lists header names (case-insensitive) whose values
// are replaced with "[redacted]" in a RawExchange record.
var redactedHeaderNames = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
	"cookie":        true,
	"set-cookie":    true,
}

// RawExchange is one captured HTTP request/response pair, emitted through
// a Registry's exchange hook for debug logging. Authorization-class
// headers are redacted and bodies are truncated beyond rawBodyCap before
// the record is built, so callers never see secrets here.
type RawExchange struct {
	Method         string
	URL            string
	RequestHeader  http.Header
	RequestBody    string
	StatusCode     int
	ResponseHeader http.Header
	ResponseBody   string
}

func redactHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if redactedHeaderNames[strings.ToLower(k)] {
			out[k] = []string{"[redacted]"}
			continue
		}
		out[k] = v
	}
	return out
}

func truncateBody(b []byte) string {
	if len(b) <= rawBodyCap {
		return string(b)
	}
	return string(b[:rawBodyCap]) + "...[truncated]"
}

// ExchangeHook receives one RawExchange per HTTP round trip made by a
// registry-managed client.
type ExchangeHook func(RawExchange)

// recordingTransport wraps an http.RoundTripper to capture and redact each
// exchange before handing it to hook.
type recordingTransport struct {
	base http.RoundTripper
	hook ExchangeHook
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if t.hook != nil {
			t.hook(RawExchange{
				Method:        req.Method,
				URL:           req.URL.String(),
				RequestHeader: redactHeaders(req.Header),
				RequestBody:   truncateBody(reqBody),
			})
		}
		return resp, err
	}

	var respBody []byte
	if resp.Body != nil {
		respBody, _ = io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewReader(respBody))
	}

	if t.hook != nil {
		t.hook(RawExchange{
			Method:         req.Method,
			URL:            req.URL.String(),
			RequestHeader:  redactHeaders(req.Header),
			RequestBody:    truncateBody(reqBody),
			StatusCode:     resp.StatusCode,
			ResponseHeader: redactHeaders(resp.Header),
			ResponseBody:   truncateBody(respBody),
		})
	}
	return resp, nil
}
