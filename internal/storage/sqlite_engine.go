package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/task"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	completed   INTEGER NOT NULL DEFAULT 0
);`

const upsertTask = `
INSERT INTO tasks (id, title, description, completed) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	completed = excluded.completed`

// SQLiteEngine stores tasks in an embedded SQLite database.
// mu guards conn: queries hold the read lock, Close takes the write lock.
type SQLiteEngine struct {
	mu   sync.RWMutex
	conn *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
// The special path ":memory:" keeps the database in memory on a single connection.
func OpenSQLite(ctx context.Context, path string) (*SQLiteEngine, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + path
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.WithComponent("storage").Debugf("sqlite engine opened: %s", path)
	return &SQLiteEngine{conn: conn, path: path}, nil
}

func (s *SQLiteEngine) Tasks() TaskDAO { return s }

func (s *SQLiteEngine) ClearAllTables(ctx context.Context) error {
	return s.DeleteTasks(ctx)
}

// Close checkpoints the WAL and closes the connection pool.
func (s *SQLiteEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	if s.path != ":memory:" {
		if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			logger.WithComponent("storage").Warnf("failed to checkpoint WAL: %v", err)
		}
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *SQLiteEngine) GetTasks(ctx context.Context) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil, ErrClosed
	}
	rows, err := s.conn.QueryContext(ctx, `SELECT id, title, description, completed FROM tasks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		var t task.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteEngine) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return task.Task{}, ErrClosed
	}
	var t task.Task
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, title, description, completed FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("query task %s: %w", id, err)
	}
	return t, nil
}

// InsertTask upserts in place so the row keeps its original position.
func (s *SQLiteEngine) InsertTask(ctx context.Context, t task.Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return ErrClosed
	}
	_, err := s.conn.ExecContext(ctx, upsertTask, t.ID, t.Title, t.Description, boolToInt(t.Completed))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteEngine) UpdateTask(ctx context.Context, t task.Task) (int, error) {
	return s.exec(ctx, `UPDATE tasks SET title = ?, description = ?, completed = ? WHERE id = ?`,
		t.Title, t.Description, boolToInt(t.Completed), t.ID)
}

func (s *SQLiteEngine) UpdateCompleted(ctx context.Context, id string, completed bool) (int, error) {
	return s.exec(ctx, `UPDATE tasks SET completed = ? WHERE id = ?`, boolToInt(completed), id)
}

func (s *SQLiteEngine) DeleteTaskByID(ctx context.Context, id string) (int, error) {
	return s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
}

func (s *SQLiteEngine) DeleteTasks(ctx context.Context) error {
	_, err := s.exec(ctx, `DELETE FROM tasks`)
	return err
}

func (s *SQLiteEngine) DeleteCompletedTasks(ctx context.Context) (int, error) {
	return s.exec(ctx, `DELETE FROM tasks WHERE completed = 1`)
}

// ReplaceAll swaps the table contents inside a single transaction.
func (s *SQLiteEngine) ReplaceAll(ctx context.Context, tasks []task.Task) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return ErrClosed
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertTask)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, t := range tasks {
		if _, err = stmt.ExecContext(ctx, t.ID, t.Title, t.Description, boolToInt(t.Completed)); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (s *SQLiteEngine) exec(ctx context.Context, query string, args ...any) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return 0, ErrClosed
	}
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
