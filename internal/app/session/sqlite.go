package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
)

// SQLiteStore persists the session in a local SQLite file so it survives process restarts.
//
// The pair lives in a single row that is written in one statement; reads are served from a
// mutex-guarded copy of that row, loaded once at open.
type SQLiteStore struct {
	db *sql.DB

	mu     sync.RWMutex
	cached *Record
}

// OpenSQLite opens (creating if needed) the session database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer: the gate. One connection keeps the single-row contract trivially atomic.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	rec, err := s.readRow()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.cached = rec

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		credential TEXT NOT NULL,
		profile_json TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) readRow() (*Record, error) {
	row := s.db.QueryRow(`SELECT credential, profile_json, saved_at FROM session WHERE id = 1`)

	var cred, profileJSON string
	var savedAt int64
	err := row.Scan(&cred, &profileJSON, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrSessionStore, fmt.Errorf("scan session row: %w", err))
	}

	var p user.Profile
	if err := json.Unmarshal([]byte(profileJSON), &p); err != nil {
		// A row we cannot decode is as good as no session.
		return nil, nil
	}
	p.Normalize()

	return &Record{Credential: Credential(cred), Profile: &p, SavedAt: time.Unix(savedAt, 0)}, nil
}

func (s *SQLiteStore) Save(cred Credential, profile *user.Profile) error {
	if err := validatePair(cred, profile); err != nil {
		return err
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return errs.Wrap(errs.ErrSessionStore, err)
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO session (id, credential, profile_json, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			credential = excluded.credential,
			profile_json = excluded.profile_json,
			saved_at = excluded.saved_at`,
		string(cred), string(data), now.Unix(),
	)
	if err != nil {
		return errs.Wrap(errs.ErrSessionStore, fmt.Errorf("upsert session: %w", err))
	}

	s.cached = &Record{Credential: cred, Profile: profile.Clone(), SavedAt: time.Unix(now.Unix(), 0)}
	return nil
}

func (s *SQLiteStore) Load() (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached.clone(), nil
}

func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM session`); err != nil {
		return errs.Wrap(errs.ErrSessionStore, fmt.Errorf("delete session: %w", err))
	}
	s.cached = nil
	return nil
}

func (s *SQLiteStore) GetBlob(key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrSessionStore, fmt.Errorf("read blob %q: %w", key, err))
	}
	return data, nil
}

func (s *SQLiteStore) PutBlob(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO blobs (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().Unix(),
	)
	if err != nil {
		return errs.Wrap(errs.ErrSessionStore, fmt.Errorf("write blob %q: %w", key, err))
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
