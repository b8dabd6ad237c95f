package task

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed task store.
type Store struct {
	db *sql.DB

	// now is replaceable in tests.
	now func() time.Time
}

// OpenStore opens (and migrates) a task database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db, now: time.Now}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'To Do',
		due_date TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create validates and inserts a new task, returning it with its
// generated id and timestamps.
func (s *Store) Create(draft Draft) (*Task, error) {
	now := s.now().UTC()
	if err := draft.Validate(now); err != nil {
		return nil, err
	}

	res, err := s.db.Exec(
		`INSERT INTO tasks (title, description, status, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		draft.Title, draft.Description, string(draft.Status), draft.DueDate, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.Get(id)
}

// Get returns the task with the given id, or nil if it does not exist.
func (s *Store) Get(id int64) (*Task, error) {
	row := s.db.QueryRow(
		`SELECT id, title, description, status, due_date, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task %d: %w", id, err)
	}
	return t, nil
}

// List returns tasks ordered newest-first with the total count across
// all pages. A non-empty status filters the result set.
func (s *Store) List(skip, limit int, status Status) ([]*Task, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	where := ""
	countArgs := []any{}
	if status != "" {
		where = " WHERE status = ?"
		countArgs = append(countArgs, string(status))
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tasks"+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	args := append(countArgs, limit, skip)
	rows, err := s.db.Query(
		`SELECT id, title, description, status, due_date, created_at, updated_at
		 FROM tasks`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, total, nil
}

// Update applies a validated patch to an existing task. Returns nil
// (no error) when the task does not exist.
func (s *Store) Update(id int64, patch Patch) (*Task, error) {
	now := s.now().UTC()
	if err := patch.Validate(now); err != nil {
		return nil, err
	}

	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Description != nil {
		existing.Description = patch.Description
	}
	if patch.Status != nil {
		existing.Status = *patch.Status
	}
	if patch.DueDate != nil {
		existing.DueDate = patch.DueDate
	}

	_, err = s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, status = ?, due_date = ?, updated_at = ?
		 WHERE id = ?`,
		existing.Title, existing.Description, string(existing.Status), existing.DueDate, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}

	return s.Get(id)
}

// Delete removes a task. Returns false when no such task exists.
func (s *Store) Delete(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var t Task
	var description sql.NullString
	var due sql.NullTime

	err := row.Scan(&t.ID, &t.Title, &description, &t.Status, &due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		t.Description = &description.String
	}
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	return &t, nil
}
