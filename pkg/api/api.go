// Package api defines the messages of the settleup.v1.LedgerService Connect
// service. Amounts travel as decimal strings in major units ("12.50").
package api

import "time"

// ServiceName is the fully-qualified name of the ledger service.
const ServiceName = "settleup.v1.LedgerService"

// Procedure paths, one per RPC.
const (
	ValidateSplitProcedure            = "/" + ServiceName + "/ValidateSplit"
	CreateExpenseProcedure            = "/" + ServiceName + "/CreateExpense"
	UpdateExpenseProcedure            = "/" + ServiceName + "/UpdateExpense"
	DeleteExpenseProcedure            = "/" + ServiceName + "/DeleteExpense"
	GetExpenseProcedure               = "/" + ServiceName + "/GetExpense"
	RecordSettlementProcedure         = "/" + ServiceName + "/RecordSettlement"
	ConfirmSettlementProcedure        = "/" + ServiceName + "/ConfirmSettlement"
	DisputeSettlementProcedure        = "/" + ServiceName + "/DisputeSettlement"
	ListSettlementsProcedure          = "/" + ServiceName + "/ListSettlements"
	GetPairwiseBalanceProcedure       = "/" + ServiceName + "/GetPairwiseBalance"
	GetGroupBalancesProcedure         = "/" + ServiceName + "/GetGroupBalances"
	GetSimplifiedSettlementsProcedure = "/" + ServiceName + "/GetSimplifiedSettlements"
	GetSimplificationStatsProcedure   = "/" + ServiceName + "/GetSimplificationStats"
	CreateGroupProcedure              = "/" + ServiceName + "/CreateGroup"
	SetRelationshipProcedure          = "/" + ServiceName + "/SetRelationship"
)

// ValidationErrorHeader carries one rendered validation failure per value
// on InvalidArgument errors, so clients get the complete list.
const ValidationErrorHeader = "Settleup-Validation-Error"

// Split strategies accepted in SplitSpec.Strategy.
const (
	StrategyEqual      = "equal"
	StrategyPercentage = "percentage"
	StrategyCustom     = "custom"
	StrategyItemized   = "itemized"
)

// SplitSpec describes how an amount is divided. Percentages and Shares are
// aligned with Participants. Items apply to the itemized strategy, which is
// stored as a custom split.
type SplitSpec struct {
	Strategy     string   `json:"strategy"`
	Participants []string `json:"participants"`
	Percentages  []string `json:"percentages,omitempty"`
	Shares       []string `json:"shares,omitempty"`
	Items        []Item   `json:"items,omitempty"`
}

// Item is one receipt line for the itemized strategy.
type Item struct {
	Description string   `json:"description"`
	Amount      string   `json:"amount"`
	AssignedTo  []string `json:"assigned_to"`
}

// FieldError is one validation failure.
type FieldError struct {
	Participant string `json:"participant,omitempty"`
	Field       string `json:"field"`
	Value       string `json:"value,omitempty"`
	Message     string `json:"message"`
}

type ParticipantShare struct {
	UserID    string     `json:"user_id"`
	Share     string     `json:"share"`
	Settled   bool       `json:"settled,omitempty"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

type ValidateSplitRequest struct {
	Total string    `json:"total"`
	Split SplitSpec `json:"split"`
}

// ValidateSplitResponse lists every failure, or the computed shares when
// the split is valid.
type ValidateSplitResponse struct {
	Valid  bool               `json:"valid"`
	Errors []FieldError       `json:"errors,omitempty"`
	Shares []ParticipantShare `json:"shares,omitempty"`
}

type Expense struct {
	ID           string             `json:"id"`
	GroupID      string             `json:"group_id,omitempty"`
	Payer        string             `json:"payer"`
	Amount       string             `json:"amount"`
	Strategy     string             `json:"strategy"`
	Participants []ParticipantShare `json:"participants"`
	Category     string             `json:"category,omitempty"`
	Description  string             `json:"description,omitempty"`
	Date         time.Time          `json:"date"`
	Active       bool               `json:"active"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// CreateExpenseRequest records a new expense. Payer defaults to the caller
// and Date to now.
type CreateExpenseRequest struct {
	GroupID     string     `json:"group_id,omitempty"`
	Payer       string     `json:"payer,omitempty"`
	Amount      string     `json:"amount"`
	Split       SplitSpec  `json:"split"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

type ExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// UpdateExpenseRequest re-splits an expense. Every field is replaced.
type UpdateExpenseRequest struct {
	ID          string     `json:"id"`
	Payer       string     `json:"payer"`
	Amount      string     `json:"amount"`
	Split       SplitSpec  `json:"split"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

type DeleteExpenseRequest struct {
	ID string `json:"id"`
}

type DeleteExpenseResponse struct{}

type GetExpenseRequest struct {
	ID string `json:"id"`
}

type Settlement struct {
	ID            string     `json:"id"`
	GroupID       string     `json:"group_id,omitempty"`
	Payer         string     `json:"payer"`
	Recipient     string     `json:"recipient"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	ExpenseIDs    []string   `json:"expense_ids,omitempty"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy   string     `json:"confirmed_by,omitempty"`
	DisputedAt    *time.Time `json:"disputed_at,omitempty"`
	DisputedBy    string     `json:"disputed_by,omitempty"`
	DisputeReason string     `json:"dispute_reason,omitempty"`
}

// RecordSettlementRequest records a payment from the caller to Recipient.
type RecordSettlementRequest struct {
	GroupID    string   `json:"group_id,omitempty"`
	Recipient  string   `json:"recipient"`
	Amount     string   `json:"amount"`
	ExpenseIDs []string `json:"expense_ids,omitempty"`
	Note       string   `json:"note,omitempty"`
}

type ConfirmSettlementRequest struct {
	ID string `json:"id"`
}

type DisputeSettlementRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type SettlementResponse struct {
	Settlement Settlement `json:"settlement"`
}

// ListSettlementsRequest filters settlements. Participant defaults to the
// caller unless GroupID is set.
type ListSettlementsRequest struct {
	GroupID     string     `json:"group_id,omitempty"`
	Participant string     `json:"participant,omitempty"`
	Status      string     `json:"status,omitempty"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
}

type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

// GetPairwiseBalanceRequest reads the balance between two users. Recompute
// bypasses the cache and reports whether the cached value had drifted.
type GetPairwiseBalanceRequest struct {
	UserA     string `json:"user_a"`
	UserB     string `json:"user_b"`
	Recompute bool   `json:"recompute,omitempty"`
}

type PairwiseBalance struct {
	UserA       string    `json:"user_a"`
	UserB       string    `json:"user_b"`
	Amount      string    `json:"amount"`
	Direction   string    `json:"direction"`
	Summary     string    `json:"summary"`
	LastUpdated time.Time `json:"last_updated"`
}

type GetPairwiseBalanceResponse struct {
	Balance PairwiseBalance `json:"balance"`
	Drifted bool            `json:"drifted,omitempty"`
}

type GetGroupBalancesRequest struct {
	GroupID   string `json:"group_id"`
	Recompute bool   `json:"recompute,omitempty"`
}

type MemberBalance struct {
	UserID     string `json:"user_id"`
	NetBalance string `json:"net_balance"`
	TotalPaid  string `json:"total_paid"`
	TotalOwed  string `json:"total_owed"`
}

type GetGroupBalancesResponse struct {
	GroupID     string          `json:"group_id"`
	Members     []MemberBalance `json:"members"`
	LastUpdated time.Time       `json:"last_updated"`
	Drifted     bool            `json:"drifted,omitempty"`
}

// SimplifyRequest selects either a group or an explicit participant set.
type SimplifyRequest struct {
	GroupID      string   `json:"group_id,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type SimplificationStats struct {
	OriginalCount     int `json:"original_count"`
	SimplifiedCount   int `json:"simplified_count"`
	TransactionsSaved int `json:"transactions_saved"`
}

type GetSimplifiedSettlementsResponse struct {
	Original   []Transfer          `json:"original"`
	Simplified []Transfer          `json:"simplified"`
	Stats      SimplificationStats `json:"stats"`
}

type GetSimplificationStatsResponse struct {
	Stats SimplificationStats `json:"stats"`
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateGroupRequest creates a group. The caller is always a member.
type CreateGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

// SetRelationshipRequest records the caller's relationship with Friend.
type SetRelationshipRequest struct {
	Friend string `json:"friend"`
	Status string `json:"status"`
}

type Relationship struct {
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SetRelationshipResponse struct {
	Relationship Relationship `json:"relationship"`
}
