package internal

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestXForwardedForToXRealIP(t *testing.T) {
	for _, tt := range []struct {
		name     string
		xff      string
		realIP   string
		wantReal string
	}{
		{
			name:     "public address first",
			xff:      "203.0.113.9, 10.0.0.1",
			wantReal: "203.0.113.9",
		},
		{
			name:     "existing x-real-ip is kept",
			xff:      "203.0.113.9",
			realIP:   "198.51.100.1",
			wantReal: "198.51.100.1",
		},
		{
			name:     "no header",
			wantReal: "",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := XForwardedForToXRealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("X-Real-Ip")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-Ip", tt.realIP)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.wantReal {
				t.Errorf("X-Real-Ip: got %q, want %q", got, tt.wantReal)
			}
		})
	}
}

func TestRemoteXRealIP(t *testing.T) {
	var got string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Real-Ip")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.44:41234"
	req.Header.Set("X-Real-Ip", "203.0.113.1")

	RemoteXRealIP(true, "tcp", inner).ServeHTTP(httptest.NewRecorder(), req)
	if got != "192.0.2.44" {
		t.Errorf("tcp: got %q, want 192.0.2.44", got)
	}

	RemoteXRealIP(true, "unix", inner).ServeHTTP(httptest.NewRecorder(), req)
	if got != "127.0.0.1" {
		t.Errorf("unix: got %q, want 127.0.0.1", got)
	}

	req.Header.Set("X-Real-Ip", "203.0.113.1")
	RemoteXRealIP(false, "tcp", inner).ServeHTTP(httptest.NewRecorder(), req)
	if got != "203.0.113.1" {
		t.Errorf("disabled: got %q, want header untouched", got)
	}
}

func TestNoStoreCache(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStoreCache(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control: got %q, want no-store", got)
	}
}

func TestClientAddr(t *testing.T) {
	for _, tt := range []struct {
		name       string
		remoteAddr string
		realIP     string
		want       netip.Addr
	}{
		{
			name:       "x-real-ip wins",
			remoteAddr: "10.0.0.1:1234",
			realIP:     "198.51.100.3",
			want:       netip.MustParseAddr("198.51.100.3"),
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "192.0.2.10:5555",
			want:       netip.MustParseAddr("192.0.2.10"),
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::5]:443",
			want:       netip.MustParseAddr("2001:db8::5"),
		},
		{
			name:       "garbage",
			remoteAddr: "not-an-address",
			want:       netip.Addr{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-Ip", tt.realIP)
			}

			if got := ClientAddr(req); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
