package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"untrusted peer ignores headers", "203.0.113.9:5000", "198.51.100.1", "", "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.2:5000", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.7", "198.51.100.7"},
		{"trusted proxy junk header", "192.168.1.1:5000", "not-an-ip", "", "192.168.1.1"},
		{"no port", "198.51.100.3", "", "", "198.51.100.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSuspicious(t *testing.T) {
	tests := []struct {
		method, target string
		want           bool
	}{
		{http.MethodGet, "/transactions?from=2024-01-01", false},
		{http.MethodGet, "/.env", true},
		{http.MethodGet, "/summary?x=%3Cscript%3E", true},
		{"TRACE", "/healthz", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		if got := isSuspicious(r); got != tt.want {
			t.Errorf("isSuspicious(%s %s) = %v, want %v", tt.method, tt.target, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.allow("a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("a") {
		t.Error("fourth request in the window should be refused")
	}
	if !rl.allow("b") {
		t.Error("other clients have their own budget")
	}
	if rl.totalHits() != 1 {
		t.Errorf("totalHits = %d, want 1", rl.totalHits())
	}

	now = now.Add(rateWindow + time.Second)
	if !rl.allow("a") {
		t.Error("a new window should reset the budget")
	}

	now = now.Add(staleClientAge + time.Minute)
	if removed := rl.cleanupStaleEntries(); removed != 2 {
		t.Errorf("cleanupStaleEntries() = %d, want 2", removed)
	}
	if rl.activeClients() != 0 {
		t.Errorf("activeClients = %d, want 0", rl.activeClients())
	}

	rl.stop()
}
