package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// fieldRequest builds a request to the point endpoint with the given peer
// address and optional proxy headers.
func fieldRequest(remoteAddr string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/field?date=2020&lat=0&lon=0", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestForwardedFor(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"no headers", nil, ""},
		{"single forwarded entry", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"chain keeps originating client", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1, 10.0.0.2"}, "203.0.113.7"},
		{"surrounding whitespace trimmed", map[string]string{"X-Forwarded-For": "  203.0.113.7 , 10.0.0.1"}, "203.0.113.7"},
		{"real-ip fallback", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"forwarded-for beats real-ip", map[string]string{
			"X-Forwarded-For": "203.0.113.7",
			"X-Real-IP":       "198.51.100.9",
		}, "203.0.113.7"},
		{"empty leading entry falls through", map[string]string{
			"X-Forwarded-For": " , 10.0.0.1",
			"X-Real-IP":       "198.51.100.9",
		}, "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fieldRequest("10.0.0.3:4400", tt.headers)
			if got := forwardedFor(r); got != tt.want {
				t.Errorf("forwardedFor = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPPeerAddress(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.7:4400", "203.0.113.7"},
		{"[2001:db8::1]:4400", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"}, // no port, returned as-is
	}
	for _, tt := range tests {
		r := fieldRequest(tt.remoteAddr, nil)
		if got := ClientIP(r, false); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}

// TestClientIPProxyTrust: proxy headers count only when the deployment says
// there is a trusted proxy in front; otherwise they are client-forgeable
// noise and the peer address wins.
func TestClientIPProxyTrust(t *testing.T) {
	headers := map[string]string{
		"X-Forwarded-For": "203.0.113.7",
		"X-Real-IP":       "198.51.100.9",
	}

	r := fieldRequest("10.0.0.3:4400", headers)
	if got := ClientIP(r, true); got != "203.0.113.7" {
		t.Errorf("trusted proxy: ClientIP = %q, want forwarded client", got)
	}
	if got := ClientIP(r, false); got != "10.0.0.3" {
		t.Errorf("untrusted: ClientIP = %q, want peer address", got)
	}

	// A trusted proxy that sets no headers still resolves to the peer.
	bare := fieldRequest("10.0.0.3:4400", nil)
	if got := ClientIP(bare, true); got != "10.0.0.3" {
		t.Errorf("trusted proxy, no headers: ClientIP = %q, want peer address", got)
	}
}
