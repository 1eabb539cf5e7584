package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

const taskColumns = `id, title, description, created_at, updated_at`

// Insert creates a task and returns the stored record.
func (s *SQLiteStore) Insert(ctx context.Context, title string, description *string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, title, nullString(description), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert todo: last id: %w", err)
	}

	return s.get(ctx, s.db, id)
}

// ListAll returns every task, newest first.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM todos
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list todos: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Get returns the task with the given id, or nil when there is none.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, s.db, id)
}

// Update applies the non-nil fields of u and refreshes updated_at.
// An empty update returns the record unchanged. Returns nil when id is absent.
func (s *SQLiteStore) Update(ctx context.Context, id int64, u models.TaskUpdate) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update todo: begin: %w", err)
	}
	defer tx.Rollback()

	current, err := s.get(ctx, tx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if u.Empty() {
		return current, nil
	}

	if u.Title != nil {
		current.Title = *u.Title
	}
	if u.Description != nil {
		current.Description = u.Description
	}
	current.UpdatedAt = s.now()

	_, err = tx.ExecContext(ctx, `
		UPDATE todos SET title = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, current.Title, nullString(current.Description), formatTime(current.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update todo %d: commit: %w", id, err)
	}

	return s.get(ctx, s.db, id)
}

// Delete removes the task and returns what was removed, or nil when id is absent.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete todo: begin: %w", err)
	}
	defer tx.Rollback()

	current, err := s.get(ctx, tx, id)
	if err != nil || current == nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete todo %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete todo %d: commit: %w", id, err)
	}

	return current, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryRower, id int64) (*models.Task, error) {
	row := q.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM todos WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get todo %d: %w", id, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*models.Task, error) {
	var (
		t                models.Task
		description      sql.NullString
		created, updated string
	)
	if err := sc.Scan(&t.ID, &t.Title, &description, &created, &updated); err != nil {
		return nil, err
	}
	if description.Valid {
		d := description.String
		t.Description = &d
	}

	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}
