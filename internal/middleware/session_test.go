package middleware

import (
	"net/http/httptest"
	"testing"
)

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"host and port", "203.0.113.7:4312", "", "203.0.113.7"},
		{"no port", "203.0.113.7", "", "203.0.113.7"},
		{"forwarded wins", "10.0.0.1:80", "198.51.100.2", "198.51.100.2"},
		{"first forwarded hop", "10.0.0.1:80", "198.51.100.2, 10.0.0.9", "198.51.100.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := RemoteIP(r); got != tt.want {
				t.Errorf("RemoteIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetUserFallsBackToAnonymous(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:4312"
	u := GetUser(r)
	if u == nil || !u.IsAnonymous() {
		t.Fatalf("user = %+v, want transient anonymous", u)
	}
	if u.IPAddress() != "203.0.113.7" {
		t.Errorf("ip = %q", u.IPAddress())
	}
}
