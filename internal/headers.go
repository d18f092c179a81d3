package internal

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"

	"github.com/sebest/xff"
)

// XForwardedForToXRealIP sets X-Real-Ip from the first public address in
// X-Forwarded-For when a reverse proxy did not already set it.
func XForwardedForToXRealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if xffHeader := r.Header.Get("X-Forwarded-For"); r.Header.Get("X-Real-Ip") == "" && xffHeader != "" {
			ip := xff.Parse(xffHeader)
			slog.Debug("setting x-real-ip", "val", ip)
			r.Header.Set("X-Real-Ip", ip)
		}

		next.ServeHTTP(w, r)
	})
}

// RemoteXRealIP overwrites X-Real-Ip with the socket peer address. It is only
// installed when Glimpse is directly exposed to clients.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if !useRemoteAddress {
		slog.Debug("skipping middleware, useRemoteAddress is empty")
		return next
	}

	if bindNetwork == "unix" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Real-Ip", "127.0.0.1")
			next.ServeHTTP(w, r)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}

// NoStoreCache sets Cache-Control: no-store on every response. Challenges and
// their results are single-use.
func NoStoreCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// ClientAddr returns the best known address of the client that sent r. It
// prefers X-Real-Ip and falls back to what xff can derive from the request.
// The zero Addr is returned when nothing parses.
func ClientAddr(r *http.Request) netip.Addr {
	candidates := []string{r.Header.Get("X-Real-Ip"), xff.GetRemoteAddr(r)}

	for _, c := range candidates {
		if c == "" {
			continue
		}

		if host, _, err := net.SplitHostPort(c); err == nil {
			c = host
		}

		if addr, err := netip.ParseAddr(c); err == nil {
			return addr.Unmap()
		}
	}

	return netip.Addr{}
}
