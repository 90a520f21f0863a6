// internal/store/store.go
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"codemedic/internal/action"
	"codemedic/internal/checkpoint"
)

// Store is the durable session record: executed actions and the
// checkpoint index. Nothing here is required for correctness within a
// session; it exists so past sessions stay inspectable.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS action_history (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		path TEXT,
		command TEXT,
		status TEXT NOT NULL,
		result TEXT,
		can_rollback INTEGER NOT NULL DEFAULT 0,
		enqueued_at INTEGER NOT NULL,
		completed_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at INTEGER NOT NULL,
		file_count INTEGER NOT NULL,
		error_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_action_history_status ON action_history(status);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_name ON checkpoints(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveHistoryEntry persists one completed action
func (s *Store) SaveHistoryEntry(entry *action.HistoryEntry) error {
	qa := entry.Action
	var completedAt *int64
	if !qa.CompletedAt.IsZero() {
		ts := qa.CompletedAt.Unix()
		completedAt = &ts
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO action_history
		(id, kind, path, command, status, result, can_rollback, enqueued_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, qa.Action.Kind, qa.Action.Path, qa.Action.Command,
		qa.Status, entry.Result, entry.CanRollback, qa.EnqueuedAt.Unix(), completedAt)
	if err != nil {
		return fmt.Errorf("save history entry: %w", err)
	}
	return nil
}

// HistoryRecord is a flattened history row
type HistoryRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Path        string    `json:"path,omitempty"`
	Command     string    `json:"command,omitempty"`
	Status      string    `json:"status"`
	Result      string    `json:"result,omitempty"`
	CanRollback bool      `json:"can_rollback"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// ListHistory returns the most recent rows, newest first
func (s *Store) ListHistory(limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, kind, path, command, status, result, can_rollback, enqueued_at, completed_at
		FROM action_history ORDER BY enqueued_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		var path, command, result sql.NullString
		var enqueued int64
		var completed sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Kind, &path, &command, &r.Status, &result, &r.CanRollback, &enqueued, &completed); err != nil {
			return nil, err
		}
		r.Path = path.String
		r.Command = command.String
		r.Result = result.String
		r.EnqueuedAt = time.Unix(enqueued, 0)
		if completed.Valid {
			r.CompletedAt = time.Unix(completed.Int64, 0)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SaveCheckpoint indexes a checkpoint's metadata
func (s *Store) SaveCheckpoint(cp *checkpoint.Checkpoint) error {
	var errorCount *int
	if cp.ErrorCount != nil {
		errorCount = cp.ErrorCount
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO checkpoints
		(id, name, description, created_at, file_count, error_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.Name, cp.Description, cp.Timestamp.Unix(), len(cp.Files), errorCount)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// CheckpointRecord is a flattened checkpoint index row
type CheckpointRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	FileCount   int       `json:"file_count"`
	ErrorCount  *int      `json:"error_count,omitempty"`
}

// ListCheckpoints returns the checkpoint index, newest first
func (s *Store) ListCheckpoints() ([]CheckpointRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, created_at, file_count, error_count
		FROM checkpoints ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CheckpointRecord
	for rows.Next() {
		var r CheckpointRecord
		var description sql.NullString
		var createdAt int64
		var errorCount sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Name, &description, &createdAt, &r.FileCount, &errorCount); err != nil {
			return nil, err
		}
		r.Description = description.String
		r.CreatedAt = time.Unix(createdAt, 0)
		if errorCount.Valid {
			n := int(errorCount.Int64)
			r.ErrorCount = &n
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteCheckpoint removes a checkpoint index row
func (s *Store) DeleteCheckpoint(id string) error {
	_, err := s.db.Exec(`DELETE FROM checkpoints WHERE id = ?`, id)
	return err
}
