package internal

import (
	"bytes"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
)

// ParseLevel reads a slog level name such as "debug" or "WARN+2". Unknown
// names fall back to info with a note on stderr.
func ParseLevel(level string) slog.Level {
	var result slog.Level
	if err := result.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v, using info\n", level, err)
		return slog.LevelInfo
	}
	return result
}

// InitSlog installs a JSON handler on stderr as the default logger.
func InitSlog(level string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     ParseLevel(level),
	})))
}

// GetRequestLogger returns a logger annotated with the request attributes
// that matter when debugging a challenge exchange.
func GetRequestLogger(r *http.Request) *slog.Logger {
	return slog.With(
		"method", r.Method,
		"path", r.URL.Path,
		"user_agent", r.UserAgent(),
		"x-forwarded-for", r.Header.Get("X-Forwarded-For"),
		"x-real-ip", r.Header.Get("X-Real-Ip"),
	)
}

var contextCanceled = []byte("context canceled")

// ErrorLogFilter drops the "context canceled" lines net/http writes when a
// client hangs up mid-request and forwards everything else to Unwrap.
type ErrorLogFilter struct {
	Unwrap *log.Logger
}

func (elf *ErrorLogFilter) Write(p []byte) (int, error) {
	if bytes.Contains(p, contextCanceled) || elf.Unwrap == nil {
		return len(p), nil
	}
	return elf.Unwrap.Writer().Write(p)
}

// GetFilteredHTTPLogger returns a logger for http.Server.ErrorLog.
func GetFilteredHTTPLogger() *log.Logger {
	return log.New(&ErrorLogFilter{Unwrap: log.New(os.Stderr, "", log.LstdFlags)}, "", 0)
}
