package timeline

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed archival of timeline events so a session's
// audit trail stays queryable after the process exits. The store is a sink:
// archiving happens off the append path, and archive errors never affect
// the in-memory timeline.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// DefaultDBPath returns the path to the session archive database under the
// user's data directory.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "unravel", "sessions.db")
}

// OpenStore opens (creating if needed) the archive database at dbPath and
// applies migrations.
func OpenStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: conn, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database path this store writes to.
func (s *Store) Path() string {
	return s.dbPath
}

// migrate creates the necessary tables and indexes if they don't exist.
func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS session_schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM session_schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Sessions},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO session_schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

const migrationV1Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	problem TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	result TEXT,
	error TEXT
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	event_type TEXT NOT NULL,
	turn INTEGER NOT NULL,
	depth INTEGER NOT NULL,
	payload TEXT,
	refs TEXT,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(session_id, event_type);
`

// BeginSession records the start of a solve session and returns nothing;
// the caller supplies the session id it will archive events under.
func (s *Store) BeginSession(sessionID, problem string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO sessions (id, problem, started_at) VALUES (?, ?, ?)",
		sessionID, problem, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FinishSession records the outcome of a solve session. Either result or
// errMsg may be empty.
func (s *Store) FinishSession(sessionID, result, errMsg string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE sessions SET finished_at = ?, result = ?, error = ? WHERE id = ?",
		finishedAt.UTC(), result, errMsg, sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Archive writes a snapshot of the timeline's events for the given session.
// Events already archived (matched by id) are skipped, so Archive may be
// called repeatedly with a growing timeline.
func (s *Store) Archive(sessionID string, tl *Timeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	for seq, ev := range tl.Events() {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal payload: %w", err)
		}
		refs, err := json.Marshal(ev.Refs)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal refs: %w", err)
		}

		_, err = tx.Exec(
			`INSERT OR IGNORE INTO events (id, session_id, seq, timestamp, event_type, turn, depth, payload, refs)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, sessionID, seq, ev.Timestamp.UTC(), string(ev.Type), ev.Turn, ev.Depth, string(payload), string(refs),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// ArchivedSession summarizes one archived solve session.
type ArchivedSession struct {
	ID         string
	Problem    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Result     string
	Error      string
	EventCount int
}

// Sessions lists archived sessions, most recent first.
func (s *Store) Sessions() ([]ArchivedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT s.id, s.problem, s.started_at, s.finished_at,
		       COALESCE(s.result, ''), COALESCE(s.error, ''),
		       (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []ArchivedSession
	for rows.Next() {
		var sess ArchivedSession
		var finished sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.Problem, &sess.StartedAt, &finished, &sess.Result, &sess.Error, &sess.EventCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			sess.FinishedAt = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SessionEvents loads the archived events for a session in sequence order.
// eventType and turn filter the result when non-zero ("" and 0 mean no
// filter).
func (s *Store) SessionEvents(sessionID string, eventType EventType, turn int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT id, timestamp, event_type, turn, depth, payload, refs FROM events WHERE session_id = ?"
	args := []any{sessionID}
	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(eventType))
	}
	if turn > 0 {
		query += " AND turn = ?"
		args = append(args, turn)
	}
	query += " ORDER BY seq"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var evType, payload, refs string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &evType, &ev.Turn, &ev.Depth, &payload, &refs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = EventType(evType)
		if payload != "" && payload != "null" {
			if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		if refs != "" && refs != "null" {
			if err := json.Unmarshal([]byte(refs), &ev.Refs); err != nil {
				return nil, fmt.Errorf("unmarshal refs: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
