package models

import (
	"time"

	"github.com/mmynk/settleup/internal/money"
)

// Direction says who owes whom in a PairwiseBalance.
type Direction string

const (
	AOwesB  Direction = "a_owes_b"
	BOwesA  Direction = "b_owes_a"
	Settled Direction = "settled"
)

// DirectionOf derives the direction from a signed pairwise amount
// (positive = B owes A).
func DirectionOf(amount money.Amount) Direction {
	switch {
	case amount.IsNegligible():
		return Settled
	case amount > 0:
		return BOwesA
	default:
		return AOwesB
	}
}

// PairwiseBalance is the cached net amount between two users.
// Amount is positive when UserB owes UserA.
type PairwiseBalance struct {
	UserA       string
	UserB       string
	Amount      money.Amount
	Direction   Direction
	LastUpdated time.Time
}

// Flip returns the same balance seen from UserB's side.
func (b PairwiseBalance) Flip() PairwiseBalance {
	return PairwiseBalance{
		UserA:       b.UserB,
		UserB:       b.UserA,
		Amount:      -b.Amount,
		Direction:   DirectionOf(-b.Amount),
		LastUpdated: b.LastUpdated,
	}
}

// MemberBalance is one member's position within a group.
type MemberBalance struct {
	UserID string

	// NetBalance is positive when the member is owed money. It always
	// equals TotalPaid - TotalOwed.
	NetBalance money.Amount

	// TotalPaid is what the member paid for group expenses plus the
	// confirmed settlements they paid.
	TotalPaid money.Amount

	// TotalOwed is the sum of the member's own shares plus the confirmed
	// settlements they received.
	TotalOwed money.Amount
}

// GroupBalance is the cached per-member view of a group.
// Invariant: the members' NetBalance values sum to zero.
type GroupBalance struct {
	GroupID     string
	Members     []MemberBalance
	LastUpdated time.Time
}

// Member returns the balance of one member, if present.
func (g GroupBalance) Member(userID string) (MemberBalance, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return MemberBalance{}, false
}
