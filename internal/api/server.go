// Package api serves braillexd's JSON API: driver status, the bound
// model, the supported model catalog, recent key gestures, and cell
// content injection for exercising a display end to end.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/config"
	"github.com/braillekit/braillex/internal/eventlog"
	"github.com/braillekit/braillex/internal/monitoring"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Display is the driver surface the API reads and writes.
// *braillex.Driver implements it; tests substitute a fake.
type Display interface {
	Stats() braillex.Stats
	Model() (braillex.DeviceModel, bool)
	Refresh(cells []byte) error
}

type Server struct {
	display   Display
	store     *eventlog.Store
	cfg       *config.Config
	sessionID string
	started   time.Time
}

func NewServer(display Display, store *eventlog.Store, cfg *config.Config, sessionID string) *Server {
	return &Server{
		display:   display,
		store:     store,
		cfg:       cfg,
		sessionID: sessionID,
		started:   time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/model", s.showModel)
	mux.HandleFunc("/api/models", s.listModels)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/refresh", s.refreshCells)
	return mux
}
