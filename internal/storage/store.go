// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/settleup/internal/models"
)

// ErrConflict is returned by TransitionSettlement when the stored settlement
// is no longer in the expected status, and by MarkParticipantSettled when
// concurrent writes kept changing the expense.
var ErrConflict = errors.New("record changed concurrently")

// Filter narrows ledger queries. Zero values mean "no restriction".
type Filter struct {
	// From and To bound the expense date (inclusive).
	From time.Time
	To   time.Time

	GroupID  string
	Category string
}

// MatchesExpense reports whether e passes the filter.
func (f Filter) MatchesExpense(e *models.SharedExpense) bool {
	if f.GroupID != "" && e.GroupID != f.GroupID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	return true
}

// MatchesSettlement reports whether s passes the filter. Settlements carry no
// category, so only the group and date bounds (on CreatedAt) apply.
func (f Filter) MatchesSettlement(s *models.Settlement) bool {
	if f.GroupID != "" && s.GroupID != f.GroupID {
		return false
	}
	if !f.From.IsZero() && s.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// SettlementQuery selects settlements for listing.
type SettlementQuery struct {
	Filter

	// Participant restricts to settlements paid or received by this user.
	Participant string

	// Status restricts to one lifecycle state.
	Status models.SettlementStatus
}

// LedgerStore defines the read/write operations the ledger engine needs.
// This abstraction allows swapping storage backends (SQLite, in-memory)
// without changing the service layer.
//
// Stores guarantee single-record atomicity only. No operation spans records
// transactionally.
type LedgerStore interface {
	// FetchSharedExpenses returns the active expenses matching filter that
	// involve (as payer or participant) at least one of participants.
	// An empty participants list disables that restriction. Soft-deleted
	// expenses are never returned.
	FetchSharedExpenses(ctx context.Context, participants []string, filter Filter) ([]*models.SharedExpense, error)

	// FetchConfirmedSettlements returns the confirmed settlements matching
	// filter paid or received by at least one of participants.
	FetchConfirmedSettlements(ctx context.Context, participants []string, filter Filter) ([]*models.Settlement, error)

	// CreateExpense persists a new expense. ID and timestamps are assigned
	// by the store when empty.
	CreateExpense(ctx context.Context, e *models.SharedExpense) error

	// GetExpense retrieves an expense by ID, including soft-deleted ones.
	GetExpense(ctx context.Context, id string) (*models.SharedExpense, error)

	// UpdateExpense overwrites an existing expense.
	UpdateExpense(ctx context.Context, e *models.SharedExpense) error

	// SoftDeleteExpense marks an expense inactive. The record is kept.
	SoftDeleteExpense(ctx context.Context, id string) error

	// MarkParticipantSettled sets one participant's settled flag and
	// nothing else, atomically. Marking a participant that is already
	// settled, or that is not on the expense, is a no-op.
	MarkParticipantSettled(ctx context.Context, expenseID, userID string, at time.Time) error

	CreateSettlement(ctx context.Context, s *models.Settlement) error
	GetSettlement(ctx context.Context, id string) (*models.Settlement, error)

	// TransitionSettlement writes s only if the stored record is still
	// pending, and returns ErrConflict otherwise.
	TransitionSettlement(ctx context.Context, s *models.Settlement) error

	ListSettlements(ctx context.Context, q SettlementQuery) ([]*models.Settlement, error)

	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)

	// PutRelationship creates or updates the relationship between two users.
	PutRelationship(ctx context.Context, r *models.Relationship) error
	GetRelationship(ctx context.Context, a, b string) (*models.Relationship, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
