// Package eventlog persists display sessions and key gestures to SQLite
// and fans live events out to subscribers for the daemon's tail and API
// surfaces.
package eventlog

import (
	crand "crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/braillekit/braillex/internal/braillex"
)

// Store wraps the event log database. All methods are safe for
// concurrent use.
type Store struct {
	db   *sql.DB
	path string

	subscriberMu sync.Mutex
	subscribers  map[string]chan string
	closed       bool
}

// Open opens (creating if necessary) the event log at path and brings its
// schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{
		db:          db,
		path:        path,
		subscribers: make(map[string]chan string),
	}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close drops every subscriber and closes the database.
func (s *Store) Close() error {
	s.subscriberMu.Lock()
	s.closed = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.db.Close()
}

// Session is one driver binding, from identification to terminate.
type Session struct {
	ID        string     `json:"id"`
	Model     string     `json:"model"`
	Port      string     `json:"port"`
	Cells     int        `json:"cells"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// KeyEventRecord is a stored gesture event.
type KeyEventRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Keys      []int     `json:"keys"`
	Label     string    `json:"label,omitempty"`
	Pressed   bool      `json:"pressed"`
	Repeat    bool      `json:"repeat,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StartSession records a fresh binding and returns its session ID.
func (s *Store) StartSession(model braillex.DeviceModel, port string) (string, error) {
	id := fmt.Sprintf("ses_%s", uuid.NewString())
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, model, port, cells, started_at_ns) VALUES (?, ?, ?, ?, ?)`,
		id, model.Name, port, model.Cells, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time. Ending an already ended or
// unknown session is a no-op.
func (s *Store) EndSession(id string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at_ns = ? WHERE session_id = ? AND ended_at_ns IS NULL`,
		time.Now().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// RecordKeyEvent stores one gesture and publishes it to live subscribers.
func (s *Store) RecordKeyEvent(sessionID string, ev braillex.KeyEvent) error {
	keys, err := json.Marshal(ev.Keys)
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO key_events (session_id, keys, label, pressed, is_repeat, at_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(keys), ev.Label, ev.Pressed, ev.Repeat, now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record key event: %w", err)
	}

	rec := KeyEventRecord{
		SessionID: sessionID,
		Keys:      ev.Keys,
		Label:     ev.Label,
		Pressed:   ev.Pressed,
		Repeat:    ev.Repeat,
		Timestamp: now,
	}
	if rowID, err := res.LastInsertId(); err == nil {
		rec.ID = rowID
	}
	if payload, err := json.Marshal(rec); err == nil {
		s.broadcast(string(payload))
	}
	return nil
}

// RecentEvents returns the latest stored gestures, newest first. limit
// values outside 1..1000 fall back to 100.
func (s *Store) RecentEvents(limit int) ([]KeyEventRecord, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT event_id, session_id, keys, label, pressed, is_repeat, at_ns
		 FROM key_events ORDER BY event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []KeyEventRecord
	for rows.Next() {
		var (
			rec   KeyEventRecord
			keys  string
			label sql.NullString
			atNs  int64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &keys, &label, &rec.Pressed, &rec.Repeat, &atNs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keys), &rec.Keys); err != nil {
			return nil, fmt.Errorf("decode keys for event %d: %w", rec.ID, err)
		}
		rec.Label = label.String
		rec.Timestamp = time.Unix(0, atNs)
		events = append(events, rec)
	}
	return events, rows.Err()
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT session_id, model, port, cells, started_at_ns, ended_at_ns
		 FROM sessions ORDER BY started_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			ses       Session
			startedNs int64
			endedNs   sql.NullInt64
		)
		if err := rows.Scan(&ses.ID, &ses.Model, &ses.Port, &ses.Cells, &startedNs, &endedNs); err != nil {
			return nil, err
		}
		ses.StartedAt = time.Unix(0, startedNs)
		if endedNs.Valid {
			t := time.Unix(0, endedNs.Int64)
			ses.EndedAt = &t
		}
		sessions = append(sessions, ses)
	}
	return sessions, rows.Err()
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a live event feed. The channel carries JSON-encoded
// KeyEventRecord payloads and is closed by Unsubscribe or Close.
func (s *Store) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *Store) broadcast(payload string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- payload:
		default:
			// A stalled subscriber drops events rather than blocking the
			// recorder.
		}
	}
}
