package calculator

import (
	"sort"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

// NetBalance is one participant's signed position: creditors are positive,
// debtors negative.
type NetBalance struct {
	UserID string
	Amount money.Amount
}

// Transfer is one payment in a settlement plan. It is engine output only and
// never recorded as ledger truth.
type Transfer struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount money.Amount
}

// SimplificationResult holds the raw pairwise debts next to the simplified
// plan that has the same net effect.
type SimplificationResult struct {
	Original   []Transfer
	Simplified []Transfer
}

// SimplificationStats summarizes how much a simplification saved.
type SimplificationStats struct {
	OriginalCount     int
	SimplifiedCount   int
	TransactionsSaved int
}

// Simplify reduces a closed set of net balances to a short list of transfers.
//
// Algorithm (greedy heuristic; the transaction-count-optimal problem is
// NP-hard, so this does not promise the minimum):
//   - debtors and creditors are each sorted by magnitude, largest first;
//     equal magnitudes keep their input order
//   - the largest debtor pays the largest creditor min(|debt|, credit)
//   - whoever reaches zero leaves the queue; repeat until one side is empty
//
// The balances must sum to zero. Otherwise Simplify refuses to run and
// returns a ConsistencyError instead of clipping the discrepancy.
//
// Guarantees: every transfer amount is positive, the transfers sum to the
// total credit, and there are at most (non-zero participants - 1) transfers.
func Simplify(balances []NetBalance) ([]Transfer, error) {
	var sum money.Amount
	seen := make(map[string]bool, len(balances))
	for _, b := range balances {
		if seen[b.UserID] {
			return nil, apperr.Invalid(b.UserID, "balance", b.Amount.String(), "participant listed more than once")
		}
		seen[b.UserID] = true
		sum += b.Amount
	}
	if !sum.IsNegligible() {
		return nil, &apperr.ConsistencyError{Context: "debt simplification", Sum: sum.String()}
	}

	type position struct {
		userID  string
		balance money.Amount
	}
	var debtors, creditors []*position
	for _, b := range balances {
		switch {
		case b.Amount <= -money.Epsilon:
			debtors = append(debtors, &position{b.UserID, b.Amount})
		case b.Amount >= money.Epsilon:
			creditors = append(creditors, &position{b.UserID, b.Amount})
		}
	}
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].balance.Abs() > debtors[j].balance.Abs()
	})
	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].balance > creditors[j].balance
	})

	transfers := make([]Transfer, 0, len(debtors)+len(creditors))
	for len(debtors) > 0 && len(creditors) > 0 {
		d, c := debtors[0], creditors[0]

		amount := money.Min(d.balance.Abs(), c.balance)
		if amount >= money.Epsilon {
			transfers = append(transfers, Transfer{From: d.userID, To: c.userID, Amount: amount})
		}
		d.balance += amount
		c.balance -= amount

		if d.balance.IsNegligible() {
			debtors = debtors[1:]
		}
		if c.balance.IsNegligible() {
			creditors = creditors[1:]
		}
	}
	return transfers, nil
}

// NetBalancesFromMap orders a participant -> balance map by participant ID so
// that simplification never depends on map iteration order.
func NetBalancesFromMap(m map[string]money.Amount) []NetBalance {
	balances := make([]NetBalance, 0, len(m))
	for id, amount := range m {
		balances = append(balances, NetBalance{UserID: id, Amount: amount})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].UserID < balances[j].UserID })
	return balances
}

// NetBalancesFromPairs derives each participant's net position from the
// pairwise balances among them, in participants order. Since every pair is
// counted once for each side with opposite signs, the result sums to zero.
func NetBalancesFromPairs(participants []string, pairs []models.PairwiseBalance) []NetBalance {
	net := make(map[string]money.Amount, len(participants))
	for _, p := range pairs {
		net[p.UserA] += p.Amount
		net[p.UserB] -= p.Amount
	}
	balances := make([]NetBalance, len(participants))
	for i, id := range participants {
		balances[i] = NetBalance{UserID: id, Amount: net[id]}
	}
	return balances
}

// NetBalancesFromMembers converts group member balances.
func NetBalancesFromMembers(members []models.MemberBalance) []NetBalance {
	balances := make([]NetBalance, len(members))
	for i, m := range members {
		balances[i] = NetBalance{UserID: m.UserID, Amount: m.NetBalance}
	}
	return balances
}

// OriginalDebts lists the outstanding pairwise debts before simplification,
// each as a transfer from debtor to creditor. Settled pairs are skipped.
func OriginalDebts(pairs []models.PairwiseBalance) []Transfer {
	debts := make([]Transfer, 0, len(pairs))
	for _, p := range pairs {
		switch {
		case p.Amount >= money.Epsilon:
			debts = append(debts, Transfer{From: p.UserB, To: p.UserA, Amount: p.Amount})
		case p.Amount <= -money.Epsilon:
			debts = append(debts, Transfer{From: p.UserA, To: p.UserB, Amount: -p.Amount})
		}
	}
	return debts
}

// Stats reports how many transfers the simplification saved.
func Stats(result SimplificationResult) SimplificationStats {
	saved := len(result.Original) - len(result.Simplified)
	if saved < 0 {
		saved = 0
	}
	return SimplificationStats{
		OriginalCount:     len(result.Original),
		SimplifiedCount:   len(result.Simplified),
		TransactionsSaved: saved,
	}
}
