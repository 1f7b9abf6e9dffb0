package storage

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. The line log
// lives in an append-only table ordered by rowid; the keyed document lives
// in a single-row table replaced transactionally.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and prepares the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// Single writer; the sqlite driver serializes poorly across many conns.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS lines (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	line BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS doc (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	body BLOB NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AppendLine inserts one line at the end of the log.
func (s *SQLiteStore) AppendLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`INSERT INTO lines (line) VALUES (?)`, line); err != nil {
		return fmt.Errorf("storage: append line: %w", err)
	}
	return nil
}

// ReadLines returns all lines in insertion order.
func (s *SQLiteStore) ReadLines() ([][]byte, error) {
	rows, err := s.db.Query(`SELECT line FROM lines ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: read lines: %w", err)
	}
	defer rows.Close()

	var lines [][]byte
	for rows.Next() {
		var line []byte
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("storage: scan line: %w", err)
		}
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: read lines: %w", err)
	}
	return lines, nil
}

// ReplaceDoc upserts the single document row.
func (s *SQLiteStore) ReplaceDoc(doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO doc (id, body) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET body = excluded.body`,
		doc,
	)
	if err != nil {
		return fmt.Errorf("storage: replace document: %w", err)
	}
	return nil
}

// ReadDoc returns the document, or nil if none has been written.
func (s *SQLiteStore) ReadDoc() ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(`SELECT body FROM doc WHERE id = 1`).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read document: %w", err)
	}
	return body, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
