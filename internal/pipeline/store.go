package pipeline

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS progress (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    document   TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS progress_history (
    start_time  INTEGER PRIMARY KEY,
    run_id      TEXT NOT NULL,
    document    BLOB NOT NULL,
    archived_at TIMESTAMP NOT NULL
);
`

// SQLiteStore persists the current progress document as a single JSON row
// and archives terminal documents to history as msgpack blobs keyed by the
// run's start timestamp. The current row is JSON so operators can inspect
// it with any sqlite client; history is msgpack for compactness.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the store and ensures its schema
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(storeSchema); err != nil {
		return nil, fmt.Errorf("creating progress schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save writes the full current document, replacing the previous snapshot
func (s *SQLiteStore) Save(p *Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO progress (id, document, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}

// Load returns the last saved snapshot, or nil when no run has persisted yet
func (s *SQLiteStore) Load() (*Progress, error) {
	var data string
	err := s.db.QueryRow("SELECT document FROM progress WHERE id = 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading progress: %w", err)
	}
	var p Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling progress: %w", err)
	}
	return &p, nil
}

// Archive stores a terminal document in history keyed by start timestamp
func (s *SQLiteStore) Archive(p *Progress) error {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding history document: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO progress_history (start_time, run_id, document, archived_at)
		VALUES (?, ?, ?, ?)`,
		p.StartTime.UTC().UnixNano(), p.RunID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archiving run %s: %w", p.RunID, err)
	}
	return nil
}

// History returns archived runs, most recent first
func (s *SQLiteStore) History(limit int) ([]*Progress, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT document FROM progress_history ORDER BY start_time DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []*Progress
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		var p Progress
		if err := msgpack.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding history document: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
