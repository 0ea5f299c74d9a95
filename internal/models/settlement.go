package models

import (
	"time"

	"github.com/mmynk/settleup/internal/money"
)

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementDisputed  SettlementStatus = "disputed"
)

// IsTerminal reports whether no further transition is allowed.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementConfirmed || s == SettlementDisputed
}

// Settlement represents a payment from Payer to Recipient that reduces
// what Payer owes Recipient. Only confirmed settlements affect balances.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to; empty for
	// peer-to-peer settlements.
	GroupID string

	// Payer is the user who paid (debtor settling up).
	Payer string

	// Recipient is the user who received the payment.
	Recipient string

	// Amount is the payment amount, always positive.
	Amount money.Amount

	Status SettlementStatus

	// ExpenseIDs optionally lists the expenses this payment settles.
	ExpenseIDs []string

	// Note is an optional description for the settlement.
	Note string

	CreatedAt time.Time

	ConfirmedAt *time.Time
	ConfirmedBy string

	DisputedAt    *time.Time
	DisputedBy    string
	DisputeReason string
}
