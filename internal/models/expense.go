package models

import (
	"time"

	"github.com/mmynk/settleup/internal/money"
)

// SharedExpense is an amount paid by one party and split among participants.
//
// Invariant: the participants' shares sum exactly to Amount. The split is
// computed once, when the expense is created or re-split, and embedded here.
type SharedExpense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to; empty for expenses
	// between friends outside any group.
	GroupID string

	// Payer is the user who paid the full amount.
	Payer string

	// Amount is the total paid, always positive.
	Amount money.Amount

	// Split is the strategy the shares were computed with.
	Split SplitStrategy

	// Participants are the people the amount is split among, in list order.
	// List order matters: it decides who absorbs rounding remainders.
	Participants []Participant

	Category    string
	Description string

	// Date is when the expense happened (used for date-range filters).
	Date time.Time

	// Active is false once the expense has been removed. Inactive expenses
	// are kept for history but excluded from every balance.
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant is one person's share of an expense.
type Participant struct {
	UserID string
	Share  money.Amount

	// Settled marks the share as paid off by a confirmed settlement.
	Settled   bool
	SettledAt *time.Time
}

// ShareOf returns the share owed by userID, if they participate.
func (e *SharedExpense) ShareOf(userID string) (money.Amount, bool) {
	for _, p := range e.Participants {
		if p.UserID == userID {
			return p.Share, true
		}
	}
	return 0, false
}

// MarkSettled flags userID's share as settled at the given time. It reports
// false when userID does not participate or is already settled.
func (e *SharedExpense) MarkSettled(userID string, at time.Time) bool {
	for i := range e.Participants {
		p := &e.Participants[i]
		if p.UserID != userID || p.Settled {
			continue
		}
		settledAt := at
		p.Settled = true
		p.SettledAt = &settledAt
		return true
	}
	return false
}

// Involves reports whether userID paid for or participates in the expense.
func (e *SharedExpense) Involves(userID string) bool {
	if e.Payer == userID {
		return true
	}
	_, ok := e.ShareOf(userID)
	return ok
}

// ParticipantIDs returns the participant user IDs in list order.
func (e *SharedExpense) ParticipantIDs() []string {
	ids := make([]string, len(e.Participants))
	for i, p := range e.Participants {
		ids[i] = p.UserID
	}
	return ids
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (e *SharedExpense) Clone() *SharedExpense {
	c := *e
	c.Participants = append([]Participant(nil), e.Participants...)
	return &c
}
