package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/braillekit/braillex/internal/braillex"
	"github.com/braillekit/braillex/internal/config"
	"github.com/braillekit/braillex/internal/eventlog"
)

type fakeDisplay struct {
	stats      braillex.Stats
	model      braillex.DeviceModel
	bound      bool
	refreshErr error
	lastCells  []byte
}

func (f *fakeDisplay) Stats() braillex.Stats { return f.stats }

func (f *fakeDisplay) Model() (braillex.DeviceModel, bool) { return f.model, f.bound }
func (f *fakeDisplay) Refresh(cells []byte) error {
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.lastCells = cells
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeDisplay, *eventlog.Store) {
	t.Helper()

	store, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m, err := braillex.Identify([2]byte{0x36, 0x31})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	display := &fakeDisplay{
		stats: braillex.Stats{State: "bound", Model: m.Name, Port: "mock0", Cells: m.Cells},
		model: m,
		bound: true,
	}
	return NewServer(display, store, config.Empty(), "ses_test"), display, store
}

func do(t *testing.T, srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func TestShowStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.State != "bound" || got.Model != "EL 80c" || got.SessionID != "ses_test" {
		t.Errorf("status = %+v, want bound EL 80c under ses_test", got)
	}
}

func TestStatusRejectsPost(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/status", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestShowModel(t *testing.T) {
	srv, display, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/model", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got ModelAPI
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := ModelAPI{Name: "EL 80c", ID: "3631", Cells: 80, LeftKeys: 1, RightKeys: 1, Protocol: "A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}

	display.bound = false
	rec = do(t, srv, http.MethodGet, "/api/model", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unbound status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no display bound") {
		t.Errorf("body = %q, want the unbound error", rec.Body.String())
	}
}

func TestListModels(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []ModelAPI
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 13 {
		t.Fatalf("catalog size = %d, want 13", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Name > got[i].Name {
			t.Fatalf("catalog not sorted: %q before %q", got[i-1].Name, got[i].Name)
		}
	}
	var trio *ModelAPI
	for i := range got {
		if got[i].Name == "Trio" {
			trio = &got[i]
		}
	}
	if trio == nil {
		t.Fatal("catalog missing Trio")
	}
	if trio.Protocol != "B" || trio.Cells != 40 || trio.LeftKeys != 0 {
		t.Errorf("Trio entry = %+v, want 40-cell protocol B handheld", *trio)
	}
}

func TestListEvents(t *testing.T) {
	srv, _, store := newTestServer(t)

	m, _ := braillex.Identify([2]byte{0x36, 0x31})
	id, err := store.StartSession(m, "mock0")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	for _, label := range []string{"up", "route3"} {
		ev := braillex.KeyEvent{Keys: []int{3}, Names: []string{label}, Label: label, Pressed: true}
		if err := store.RecordKeyEvent(id, ev); err != nil {
			t.Fatalf("RecordKeyEvent: %v", err)
		}
	}

	rec := do(t, srv, http.MethodGet, "/api/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []eventlog.KeyEventRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 || got[0].Label != "route3" {
		t.Errorf("events = %+v, want 2 newest first", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/events?limit=1", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("limited events = %d, want 1", len(got))
	}

	for _, bad := range []string{"abc", "0", "-3"} {
		rec = do(t, srv, http.MethodGet, "/api/events?limit="+bad, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestListSessions(t *testing.T) {
	srv, _, store := newTestServer(t)

	m, _ := braillex.Identify([2]byte{0x35, 0x39})
	if _, err := store.StartSession(m, "hid:/dev/hidraw0"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	rec := do(t, srv, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []eventlog.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Model != "Trio" || got[0].Port != "hid:/dev/hidraw0" {
		t.Errorf("sessions = %+v, want the Trio session", got)
	}
}

func TestShowConfig(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["port"] != "auto" || got["io_timeout"] != "200ms" {
		t.Errorf("config = %v, want the compiled-in defaults echoed", got)
	}
	if got["repeat_interval"] != float64(10) {
		t.Errorf("repeat_interval = %v, want 10", got["repeat_interval"])
	}
}

func TestShowVersion(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["version"] != "dev" {
		t.Errorf("version = %q, want dev", got["version"])
	}
}

func TestRefreshCells(t *testing.T) {
	srv, display, _ := newTestServer(t)

	cells := make([]int, 80)
	for i := range cells {
		cells[i] = i % 255
	}
	body, _ := json.Marshal(map[string][]int{"cells": cells})

	rec := do(t, srv, http.MethodPost, "/api/refresh", strings.NewReader(string(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(display.lastCells) != 80 || display.lastCells[79] != 79 {
		t.Errorf("driver got %d cells, want the 80 decoded bytes", len(display.lastCells))
	}
}

func TestRefreshCellsErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		refreshErr error
		wantStatus int
	}{
		{
			name:       "invalid json",
			body:       "{cells",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "cell value out of range",
			body:       `{"cells":[0,256]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong geometry",
			body:       `{"cells":[1,2,3]}`,
			refreshErr: errors.New("braillex: refresh with 3 cells on EL 80c, want 80"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not bound",
			body:       `{"cells":[]}`,
			refreshErr: braillex.ErrNotBound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "connection failure",
			body:       `{"cells":[]}`,
			refreshErr: &braillex.ConnectionError{Port: "mock0", Err: io.ErrClosedPipe},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, display, _ := newTestServer(t)
			display.refreshErr = tc.refreshErr

			rec := do(t, srv, http.MethodPost, "/api/refresh", strings.NewReader(tc.body))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if display.lastCells != nil {
				t.Errorf("driver saw a write despite the %s failure", tc.name)
			}
		})
	}
}

func TestRefreshRejectsGet(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/refresh", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
