// Package task provides the task entity and its SQLite-backed store.
package task

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task is a single tracked task.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Draft is the caller-supplied portion of a new task.
type Draft struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *Status    `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// ValidationError marks a rejected field value. The REST layer maps it
// to 422 and the tool host surfaces it as recoverable tool output.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

const maxTitleLen = 200

// dueDateLayouts are the accepted due-date input formats. Layouts
// without a zone are interpreted as UTC.
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDueDate parses a due-date string from tool arguments or API
// bodies. Timezone-naive values are normalized to UTC. An empty string
// yields nil.
func ParseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &ValidationError{Field: "due_date", Reason: "must be an RFC 3339 timestamp"}
}

// Validate checks a draft. The status defaults to "To Do" when empty.
func (d *Draft) Validate(now time.Time) error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if d.Status == "" {
		d.Status = StatusToDo
	}
	if !d.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %q, %q, %q", StatusToDo, StatusInProgress, StatusDone)}
	}
	return validateDueDate(d.DueDate, now)
}

// Validate checks the fields a patch actually sets.
func (p *Patch) Validate(now time.Time) error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %q, %q, %q", StatusToDo, StatusInProgress, StatusDone)}
	}
	return validateDueDate(p.DueDate, now)
}

func validateTitle(title string) error {
	if title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(title) > maxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", maxTitleLen)}
	}
	return nil
}

// validateDueDate rejects due dates in the past. Comparison happens in
// UTC; a timezone-naive input is treated as already being UTC by the
// JSON decoding layer, so normalizing here is a plain conversion.
func validateDueDate(due *time.Time, now time.Time) error {
	if due == nil {
		return nil
	}
	if due.UTC().Before(now.UTC()) {
		return &ValidationError{Field: "due_date", Reason: "must not be in the past"}
	}
	return nil
}
