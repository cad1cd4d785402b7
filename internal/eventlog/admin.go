package eventlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/braillekit/braillex/internal/monitoring"
	"github.com/braillekit/braillex/internal/security"
)

// AttachAdminRoutes attaches the event log's debugging endpoints to the
// given HTTP mux under /debug/. These routes are meant for
// localhost/tailnet access, not the public internet.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.db, &tailsql.DBOptions{
		Label: "Braille event log",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	// Server-Sent Events feed of key gestures as they are recorded.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Initial ping establishes the stream before any event arrives.
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.Handle("backup", "Create and download a backup of the event log now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := security.SanitizeFilename(strings.TrimSuffix(filepath.Base(s.path), ".db"))
		backupPath := fmt.Sprintf("%s-backup-%d.db", base, time.Now().Unix())
		if err := security.ValidateExportPath(backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Refusing backup path: %v", err), http.StatusBadRequest)
			return
		}
		if _, err := s.db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("eventlog: removing backup file: %v", err)
			}
		}()

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			monitoring.Logf("eventlog: streaming backup: %v", err)
			return
		}
	}))
}
