// Package apperr defines the error kinds surfaced by the ledger engine.
//
// Every kind matches a sentinel through errors.Is so callers can branch on the
// kind without caring about the concrete type:
//
//	if errors.Is(err, apperr.ErrState) { ... }
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per kind.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConsistency = errors.New("ledger inconsistency")
	ErrState       = errors.New("illegal state transition")
	ErrNotFound    = errors.New("not found")
)

// ValidationError describes one invalid value supplied for one participant
// (or for the split as a whole when Participant is empty).
type ValidationError struct {
	Participant string
	Field       string
	Value       string
	Message     string
}

func (e ValidationError) Error() string {
	if e.Participant == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("participant %q: %s", e.Participant, e.Message)
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors is the complete list of failures found in one validation
// pass. It is never truncated to the first failure.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Messages returns each failure rendered on its own.
func (e ValidationErrors) Messages() []string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return msgs
}

// OrNil returns nil for an empty list so callers can return it directly.
func (e ValidationErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Invalid builds a single-entry ValidationErrors.
func Invalid(participant, field, value, format string, args ...any) ValidationErrors {
	return ValidationErrors{{
		Participant: participant,
		Field:       field,
		Value:       value,
		Message:     fmt.Sprintf(format, args...),
	}}
}

// ConsistencyError reports a closed balance set that does not net to zero.
// It points at an upstream ledger defect and is never corrected silently.
type ConsistencyError struct {
	Context string
	Sum     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency in %s: balances sum to %s, expected 0.00", e.Context, e.Sum)
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }

// StateError reports a settlement transition that is not allowed.
type StateError struct {
	SettlementID string
	Status       string
	Reason       string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("settlement %s (%s): %s", e.SettlementID, e.Status, e.Reason)
}

func (e *StateError) Is(target error) bool { return target == ErrState }

// NotFoundError reports a missing expense, settlement, group or relationship.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}
