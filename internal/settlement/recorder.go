// Package settlement records payments between two parties and drives their
// lifecycle: pending -> confirmed (by the recipient) or pending -> disputed
// (by either party). Both end states are terminal.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/internal/storage"
)

// Balances is the part of the balance aggregator the recorder needs.
type Balances interface {
	PairwiseBalance(ctx context.Context, userA, userB string) (models.PairwiseBalance, error)
	ApplySettlementConfirmed(ctx context.Context, s *models.Settlement) error
}

// NewSettlement is the input to Create.
type NewSettlement struct {
	// GroupID selects the group flow; empty means a peer-to-peer settlement.
	GroupID    string
	Payer      string
	Recipient  string
	Amount     money.Amount
	ExpenseIDs []string
	Note       string
}

// Recorder creates settlements and applies their state transitions.
type Recorder struct {
	store              storage.LedgerStore
	balances           Balances
	metrics            *metrics.Metrics
	now                func() time.Time
	limitToOutstanding bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMetrics counts transitions by resulting status.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides the clock used for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// LimitToOutstanding rejects settlements larger than what the payer
// currently owes the recipient.
func LimitToOutstanding(enabled bool) Option {
	return func(r *Recorder) { r.limitToOutstanding = enabled }
}

// NewRecorder creates a Recorder.
func NewRecorder(store storage.LedgerStore, balances Balances, opts ...Option) *Recorder {
	r := &Recorder{store: store, balances: balances, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create records a pending settlement on behalf of actor, who must be the
// payer.
func (r *Recorder) Create(ctx context.Context, actor string, in NewSettlement) (*models.Settlement, error) {
	if err := validateNew(actor, in); err != nil {
		return nil, err
	}

	if in.GroupID != "" {
		if err := r.checkGroup(ctx, in); err != nil {
			return nil, err
		}
	} else if err := r.checkRelationship(ctx, in); err != nil {
		return nil, err
	}

	for _, id := range in.ExpenseIDs {
		if _, err := r.store.GetExpense(ctx, id); err != nil {
			return nil, err
		}
	}

	if r.limitToOutstanding {
		if err := r.checkOutstanding(ctx, in); err != nil {
			return nil, err
		}
	}

	s := &models.Settlement{
		GroupID:    in.GroupID,
		Payer:      in.Payer,
		Recipient:  in.Recipient,
		Amount:     in.Amount,
		Status:     models.SettlementPending,
		ExpenseIDs: append([]string(nil), in.ExpenseIDs...),
		Note:       in.Note,
		CreatedAt:  r.now().UTC().Truncate(time.Second),
	}
	if err := r.store.CreateSettlement(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}
	r.metrics.Transitioned(string(models.SettlementPending))

	slog.Info("Settlement recorded",
		"settlement_id", s.ID,
		"group_id", s.GroupID,
		"payer", s.Payer,
		"recipient", s.Recipient,
		"amount", s.Amount.String(),
	)
	return s, nil
}

// Confirm moves a pending settlement to confirmed. Only the recipient may
// confirm; confirming an already confirmed settlement again is a no-op.
func (r *Recorder) Confirm(ctx context.Context, id, actor string) (*models.Settlement, error) {
	s, err := r.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != s.Recipient {
		return nil, stateError(s, "only the recipient can confirm a settlement")
	}
	if s.Status == models.SettlementConfirmed {
		return s, nil
	}
	if s.Status != models.SettlementPending {
		return nil, stateError(s, "only pending settlements can be confirmed")
	}

	at := r.now().UTC().Truncate(time.Second)
	next := *s
	next.Status = models.SettlementConfirmed
	next.ConfirmedAt = &at
	next.ConfirmedBy = actor

	if err := r.store.TransitionSettlement(ctx, &next); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("failed to confirm settlement: %w", err)
		}
		// Lost a race. Another confirm by the recipient is still a success.
		current, gerr := r.store.GetSettlement(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == models.SettlementConfirmed {
			return current, nil
		}
		return nil, stateError(current, "settlement changed while confirming")
	}
	r.metrics.Transitioned(string(models.SettlementConfirmed))

	r.markExpensesSettled(ctx, &next, at)

	if err := r.balances.ApplySettlementConfirmed(ctx, &next); err != nil {
		return nil, fmt.Errorf("settlement %s confirmed but balances not updated: %w", id, err)
	}

	slog.Info("Settlement confirmed",
		"settlement_id", id,
		"payer", next.Payer,
		"recipient", next.Recipient,
		"amount", next.Amount.String(),
	)
	return &next, nil
}

// Dispute moves a pending settlement to disputed. Either party may dispute.
// Balances are left untouched.
func (r *Recorder) Dispute(ctx context.Context, id, actor, reason string) (*models.Settlement, error) {
	s, err := r.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != s.Payer && actor != s.Recipient {
		return nil, stateError(s, "only the payer or recipient can dispute a settlement")
	}
	if s.Status != models.SettlementPending {
		return nil, stateError(s, "only pending settlements can be disputed")
	}

	at := r.now().UTC().Truncate(time.Second)
	next := *s
	next.Status = models.SettlementDisputed
	next.DisputedAt = &at
	next.DisputedBy = actor
	next.DisputeReason = reason

	if err := r.store.TransitionSettlement(ctx, &next); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("failed to dispute settlement: %w", err)
		}
		current, gerr := r.store.GetSettlement(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, stateError(current, "settlement changed while disputing")
	}
	r.metrics.Transitioned(string(models.SettlementDisputed))

	slog.Warn("Settlement disputed",
		"settlement_id", id,
		"disputed_by", actor,
		"reason", reason,
	)
	return &next, nil
}

// Get returns a settlement by ID.
func (r *Recorder) Get(ctx context.Context, id string) (*models.Settlement, error) {
	return r.store.GetSettlement(ctx, id)
}

// List returns the settlements matching q in creation order.
func (r *Recorder) List(ctx context.Context, q storage.SettlementQuery) ([]*models.Settlement, error) {
	settlements, err := r.store.ListSettlements(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}

func (r *Recorder) checkGroup(ctx context.Context, in NewSettlement) error {
	group, err := r.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		return err
	}
	var errs apperr.ValidationErrors
	for _, id := range []string{in.Payer, in.Recipient} {
		if !group.HasMember(id) {
			errs = append(errs, apperr.Invalid(id, "group_id", in.GroupID, "is not a member of group %s", in.GroupID)...)
		}
	}
	return errs.OrNil()
}

func (r *Recorder) checkRelationship(ctx context.Context, in NewSettlement) error {
	rel, err := r.store.GetRelationship(ctx, in.Payer, in.Recipient)
	if err != nil {
		return err
	}
	if rel.Status != models.RelationshipAccepted {
		return &apperr.StateError{
			Status: string(rel.Status),
			Reason: fmt.Sprintf("relationship between %s and %s is not accepted", in.Payer, in.Recipient),
		}
	}
	return nil
}

func (r *Recorder) checkOutstanding(ctx context.Context, in NewSettlement) error {
	// Positive means the payer (B) owes the recipient (A).
	bal, err := r.balances.PairwiseBalance(ctx, in.Recipient, in.Payer)
	if err != nil {
		return err
	}
	owed := bal.Amount
	if owed < 0 {
		owed = 0
	}
	if in.Amount > owed {
		return apperr.Invalid(in.Payer, "amount", in.Amount.String(),
			"exceeds the %s owed to %s", owed.String(), in.Recipient)
	}
	return nil
}

// markExpensesSettled flags the payer's share in every referenced expense.
// The flag is bookkeeping only and does not change balances, so a failure
// is logged rather than returned.
func (r *Recorder) markExpensesSettled(ctx context.Context, s *models.Settlement, at time.Time) {
	for _, id := range s.ExpenseIDs {
		if err := r.store.MarkParticipantSettled(ctx, id, s.Payer, at); err != nil {
			slog.Warn("Cannot mark expense settled", "expense_id", id, "settlement_id", s.ID, "error", err)
		}
	}
}

func validateNew(actor string, in NewSettlement) error {
	var errs apperr.ValidationErrors
	if in.Payer == "" {
		errs = append(errs, apperr.Invalid("", "payer", "", "payer is required")...)
	}
	if in.Recipient == "" {
		errs = append(errs, apperr.Invalid("", "recipient", "", "recipient is required")...)
	}
	if in.Payer != "" && in.Payer == in.Recipient {
		errs = append(errs, apperr.Invalid(in.Payer, "recipient", in.Recipient, "payer and recipient must differ")...)
	}
	if in.Amount <= 0 {
		errs = append(errs, apperr.Invalid(in.Payer, "amount", in.Amount.String(), "amount must be positive")...)
	}
	if actor != in.Payer {
		errs = append(errs, apperr.Invalid(actor, "payer", in.Payer, "only the payer can record a settlement")...)
	}
	return errs.OrNil()
}

func stateError(s *models.Settlement, reason string) error {
	return &apperr.StateError{SettlementID: s.ID, Status: string(s.Status), Reason: reason}
}
