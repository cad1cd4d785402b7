package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/httputil"
	"github.com/braillekit/braillex/internal/version"
)

// ModelAPI controls the JSON shape of a device model. Without it the
// response would leak the raw catalog fields, identification bytes
// included, in whatever form they take internally.
type ModelAPI struct {
	Name          string `json:"name"`
	ID            string `json:"id"`
	Cells         int    `json:"cells"`
	VerticalCells int    `json:"vertical_cells,omitempty"`
	LeftKeys      int    `json:"left_keys"`
	RightKeys     int    `json:"right_keys"`
	Protocol      string `json:"protocol"`
}

// ModelToAPI converts a catalog entry to its API representation.
func ModelToAPI(m braillex.DeviceModel) ModelAPI {
	return ModelAPI{
		Name:          m.Name,
		ID:            fmt.Sprintf("%02X%02X", m.ID[0], m.ID[1]),
		Cells:         m.Cells,
		VerticalCells: m.VerticalCells,
		LeftKeys:      m.LeftKeys,
		RightKeys:     m.RightKeys,
		Protocol:      m.Protocol.String(),
	}
}

type statusResponse struct {
	braillex.Stats
	SessionID  string  `json:"session_id,omitempty"`
	UptimeSecs float64 `json:"uptime_secs"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, statusResponse{
		Stats:      s.display.Stats(),
		SessionID:  s.sessionID,
		UptimeSecs: time.Since(s.started).Seconds(),
	})
}

func (s *Server) showModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	m, ok := s.display.Model()
	if !ok {
		httputil.NotFound(w, "no display bound")
		return
	}
	httputil.WriteJSONOK(w, ModelToAPI(m))
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	models := braillex.Models()
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	out := make([]ModelAPI, len(models))
	for i, m := range models {
		out[i] = ModelToAPI(m)
	}
	httputil.WriteJSONOK(w, out)
}

// parseLimit reads the optional limit query parameter. ok is false after
// a response has been written.
func parseLimit(w http.ResponseWriter, r *http.Request) (limit int, ok bool) {
	limit = 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	events, err := s.store.RecentEvents(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve events: %v", err))
		return
	}
	httputil.WriteJSONOK(w, events)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	sessions, err := s.store.Sessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	// Effective values, defaults filled in, not the raw file contents.
	httputil.WriteJSONOK(w, map[string]any{
		"port":            s.cfg.GetPort(),
		"io_timeout":      s.cfg.GetIOTimeout().String(),
		"probe_wait":      s.cfg.GetProbeWait().String(),
		"response_wait":   s.cfg.GetResponseWait().String(),
		"settle_time":     s.cfg.GetSettleTime().String(),
		"repeat_interval": s.cfg.GetRepeatInterval(),
		"listen":          s.cfg.GetListen(),
		"db_path":         s.cfg.GetDBPath(),
		"debug":           s.cfg.GetDebug(),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) refreshCells(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req struct {
		Cells []int `json:"cells"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	cells := make([]byte, len(req.Cells))
	for i, v := range req.Cells {
		if v < 0 || v > 255 {
			httputil.BadRequest(w, fmt.Sprintf("cell %d out of range: %d", i, v))
			return
		}
		cells[i] = byte(v)
	}

	err := s.display.Refresh(cells)
	var connErr *braillex.ConnectionError
	switch {
	case errors.Is(err, braillex.ErrNotBound):
		httputil.NotFound(w, "no display bound")
	case errors.As(err, &connErr):
		httputil.InternalServerError(w, fmt.Sprintf("display write failed: %v", err))
	case err != nil:
		// Geometry mismatches and other refusals are the caller's fault.
		httputil.BadRequest(w, err.Error())
	default:
		httputil.WriteJSONOK(w, map[string]int{"cells": len(cells)})
	}
}
