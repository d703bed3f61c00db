package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateApplication = errors.New("duplicate application")
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrUnsupportedEntryKind = errors.New("unsupported entry kind")
	ErrNothingToReapply     = errors.New("nothing to reapply")
	ErrValidation           = errors.New("validation failed")
)

// TransitionError describes a refused state change. Conflict is set when the
// caller lost a race against a concurrent writer, as opposed to asking for a
// transition the state machine never allows.
type TransitionError struct {
	Subject  string
	From     string
	To       string
	Conflict bool
}

func (e *TransitionError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("%s: %s changed concurrently, refresh and retry", ErrInvalidTransition, e.Subject)
	}
	return fmt.Sprintf("%s: %s cannot move from %s to %s", ErrInvalidTransition, e.Subject, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsConflict reports whether err is a transition lost to a concurrent writer.
func IsConflict(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Conflict
}

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// invalid collects field errors; it returns nil when nothing was added.
type invalid map[string]string

func (v invalid) add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

func (v invalid) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

// Code is a stable machine readable name for an engine error.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateApplication):
		return "duplicate_application"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrUnsupportedEntryKind):
		return "unsupported_entry_kind"
	case errors.Is(err, ErrNothingToReapply):
		return "nothing_to_reapply"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "internal"
}
