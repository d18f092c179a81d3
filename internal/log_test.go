package internal

import (
	"bytes"
	"log"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrorLogFilter(t *testing.T) {
	for _, tt := range []struct {
		name     string
		message  string
		wantKept bool
	}{
		{
			name:     "canceled",
			message:  "http: proxy error: context canceled",
			wantKept: false,
		},
		{
			name:     "unrelated",
			message:  "http: TLS handshake error from 10.0.0.1:5000: EOF",
			wantKept: true,
		},
		{
			name:     "canceled in the middle of a line",
			message:  "upload of drawing aborted: context canceled by client",
			wantKept: false,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			filtered := log.New(&ErrorLogFilter{Unwrap: log.New(&buf, "", 0)}, "", 0)
			filtered.Println(tt.message)

			output := buf.String()
			if tt.wantKept {
				if !strings.Contains(output, tt.message) {
					t.Errorf("message was dropped, output: %q", output)
				}
				if !strings.HasSuffix(output, "\n") {
					t.Errorf("message is missing trailing newline: %q", output)
				}
				return
			}

			if buf.Len() != 0 {
				t.Errorf("message should have been suppressed, output: %q", output)
			}
		})
	}
}

func TestGetRequestLogger(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/challenge/flashlag", nil)
	req.Header.Set("X-Real-Ip", "198.51.100.7")

	if lg := GetRequestLogger(req); lg == nil {
		t.Fatal("GetRequestLogger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "WARN+2", want: slog.LevelWarn + 2},
		{in: "error", want: slog.LevelError},
		{in: "chatty", want: slog.LevelInfo},
	} {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
