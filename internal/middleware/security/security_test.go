package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"untrusted peer ignores forwarding", "203.0.113.9:5000", "1.2.3.4", "", "203.0.113.9"},
		{"trusted proxy forwards", "10.0.0.2:5000", "198.51.100.7, 10.0.0.2", "", "198.51.100.7"},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy invalid header", "127.0.0.1:5000", "not-an-ip", "", "127.0.0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				req.Header.Set("X-Real-IP", tc.xri)
			}
			if got := d.ExtractClientIP(req); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
	if d.GetMetrics().SpoofedForwarding != 1 {
		t.Fatalf("expected one spoofed forwarding attempt, got %+v", d.GetMetrics())
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()
	if d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/api/data/expenses", nil)) {
		t.Fatalf("normal request flagged")
	}
	if !d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/api/data/../.env", nil)) {
		t.Fatalf("traversal not flagged")
	}
	if !d.DetectSuspiciousRequest(httptest.NewRequest("TRACE", "/", nil)) {
		t.Fatalf("TRACE not flagged")
	}
	if d.GetMetrics().SuspiciousRequests != 2 {
		t.Fatalf("unexpected metrics %+v", d.GetMetrics())
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	if got := d.ExtractClientIP(req); got != "203.0.113.9" {
		t.Fatalf("untrusted peer: got %q", got)
	}

	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}
	if got := d.ExtractClientIP(req); got != "198.51.100.7" {
		t.Fatalf("trusted peer: got %q want 198.51.100.7", got)
	}
	if err := d.AddTrustedProxy("203.0.113.9"); err == nil {
		t.Fatalf("expected an error for an address without a prefix length")
	}
}

func TestDetectorMiddleware(t *testing.T) {
	cases := []struct {
		name           string
		method         string
		target         string
		wantStatus     int
		wantSuspicious bool
	}{
		{"normal request passes", http.MethodGet, "/api/data/expenses", http.StatusOK, false},
		{"traversal reported but served", http.MethodGet, "/api/data/../.env", http.StatusOK, true},
		{"trace refused", "TRACE", "/", http.StatusMethodNotAllowed, true},
		{"connect refused", http.MethodConnect, "/", http.StatusMethodNotAllowed, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reported bool
			served := false
			h := NewDetector().Middleware(func(r *http.Request) { reported = true }, nil)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { served = true }))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.target, nil))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if reported != tc.wantSuspicious {
				t.Fatalf("reported = %v, want %v", reported, tc.wantSuspicious)
			}
			if served != (tc.wantStatus == http.StatusOK) {
				t.Fatalf("served = %v for status %d", served, tc.wantStatus)
			}
		})
	}
}

func TestDetectorMiddlewareCustomRefusal(t *testing.T) {
	h := NewDetector().Middleware(nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("TRACK", "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing headers: %v", rr.Header())
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("HSTS expected over TLS")
	}
}
