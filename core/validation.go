package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document before it is persisted.
//
// Content must not be empty. Embedding and ID are not checked; both are
// filled in by the store and the vector index.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}
	return nil
}

// ValidateTask validates a Task according to domain rules.
//
// Validation rules:
//   - Title must not be blank
//   - Status must be one of the known values
func ValidateTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is nil", ErrInvalidTask)
	}
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrEmptyTitle)
	}
	if err := ValidateTaskStatus(task.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	return nil
}

// ValidateTaskStatus validates that a TaskStatus has a known value.
func ValidateTaskStatus(status TaskStatus) error {
	switch status {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidStatus, status)
}
