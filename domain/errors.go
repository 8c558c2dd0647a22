package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidTargetColumn marks a move aborted because its destination is unknown.
	ErrInvalidTargetColumn = errors.New("invalid target column")
	// ErrProtectedEntityDelete marks a delete rejected by the protected-name policy.
	ErrProtectedEntityDelete = errors.New("protected entity delete")
	// ErrUnknownColumn is returned by inserts into a column that is not part of the layout.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateTask is returned when an insert would place the same id twice.
	ErrDuplicateTask = errors.New("duplicate task id")
	// ErrValidation marks rejected input.
	ErrValidation = errors.New("validation failed")
)

// InvalidTargetColumnError carries the column a move tried to reach.
type InvalidTargetColumnError struct {
	Column ColumnID
}

func (e *InvalidTargetColumnError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidTargetColumn.Error(), string(e.Column))
}

func (e *InvalidTargetColumnError) Unwrap() error { return ErrInvalidTargetColumn }

// ProtectedEntityDeleteError describes a rejected delete of a protected task.
type ProtectedEntityDeleteError struct {
	ID     string
	Name   string
	Column ColumnID
}

func (e *ProtectedEntityDeleteError) Error() string {
	return fmt.Sprintf("attempted to delete a protected task: %q", e.Name)
}

func (e *ProtectedEntityDeleteError) Unwrap() error { return ErrProtectedEntityDelete }

// Kind is the tag observability backends group these errors under.
func (e *ProtectedEntityDeleteError) Kind() string { return "ProtectedEntityDeleteError" }

// Context returns the attributes attached when the rejection is reported.
func (e *ProtectedEntityDeleteError) Context() map[string]any {
	return map[string]any{
		"id":     e.ID,
		"name":   e.Name,
		"column": string(e.Column),
	}
}

// ValidationError maps field names to a short reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// validationErr returns nil when no field failed.
func validationErr(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
