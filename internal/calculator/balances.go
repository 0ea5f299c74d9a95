package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

// PairwiseContribution returns the signed effect of one expense on the
// balance between a and b (positive = b owes a).
//
// Only expenses paid by a or b count. An expense paid by a third party does
// not create a debt between a and b, even if both participate.
func PairwiseContribution(e *models.SharedExpense, a, b string) money.Amount {
	if e == nil || !e.Active || a == b {
		return 0
	}
	switch e.Payer {
	case a:
		if share, ok := e.ShareOf(b); ok {
			return share
		}
	case b:
		if share, ok := e.ShareOf(a); ok {
			return -share
		}
	}
	return 0
}

// SettlementPairContribution returns the signed effect of one settlement on
// the balance between a and b. A confirmed payment from b to a reduces what
// b owes a; a payment from a to b does the reverse.
func SettlementPairContribution(s *models.Settlement, a, b string) money.Amount {
	if s == nil || s.Status != models.SettlementConfirmed {
		return 0
	}
	switch {
	case s.Payer == a && s.Recipient == b:
		return s.Amount
	case s.Payer == b && s.Recipient == a:
		return -s.Amount
	}
	return 0
}

// PairwiseBalance folds every active expense and confirmed settlement into
// the balance between a and b (positive = b owes a).
func PairwiseBalance(expenses []*models.SharedExpense, settlements []*models.Settlement, a, b string) money.Amount {
	var balance money.Amount
	for _, e := range expenses {
		balance += PairwiseContribution(e, a, b)
	}
	for _, s := range settlements {
		balance += SettlementPairContribution(s, a, b)
	}
	return balance
}

// GroupContribution returns the per-member effect of one expense.
// The payer is credited with every other participant's share and each other
// participant is debited their own share, so the deltas sum to zero.
func GroupContribution(e *models.SharedExpense) map[string]models.MemberBalance {
	delta := make(map[string]models.MemberBalance)
	if e == nil || !e.Active {
		return delta
	}

	payer := delta[e.Payer]
	payer.UserID = e.Payer
	payer.TotalPaid += e.Amount
	for _, p := range e.Participants {
		if p.UserID == e.Payer {
			payer.TotalOwed += p.Share
			continue
		}
		m := delta[p.UserID]
		m.UserID = p.UserID
		m.TotalOwed += p.Share
		m.NetBalance -= p.Share
		delta[p.UserID] = m
		payer.NetBalance += p.Share
	}
	delta[e.Payer] = payer
	return delta
}

// SettlementGroupContribution returns the per-member effect of one settlement.
// The payer's TotalPaid and the recipient's TotalOwed grow by the amount, so
// NetBalance stays TotalPaid - TotalOwed.
func SettlementGroupContribution(s *models.Settlement) map[string]models.MemberBalance {
	delta := make(map[string]models.MemberBalance)
	if s == nil || s.Status != models.SettlementConfirmed {
		return delta
	}
	delta[s.Payer] = models.MemberBalance{UserID: s.Payer, TotalPaid: s.Amount, NetBalance: s.Amount}
	delta[s.Recipient] = models.MemberBalance{UserID: s.Recipient, TotalOwed: s.Amount, NetBalance: -s.Amount}
	return delta
}

// ApplyDelta adds sign*delta to balances and returns the updated slice.
// Members missing from balances are appended in ID order.
func ApplyDelta(balances []models.MemberBalance, delta map[string]models.MemberBalance, sign int) []models.MemberBalance {
	s := money.Amount(sign)
	pos := make(map[string]int, len(balances))
	for i, b := range balances {
		pos[b.UserID] = i
	}

	ids := make([]string, 0, len(delta))
	for id := range delta {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d := delta[id]
		i, ok := pos[id]
		if !ok {
			balances = append(balances, models.MemberBalance{UserID: id})
			i = len(balances) - 1
			pos[id] = i
		}
		balances[i].NetBalance += s * d.NetBalance
		balances[i].TotalPaid += s * d.TotalPaid
		balances[i].TotalOwed += s * d.TotalOwed
	}
	return balances
}

// GroupNetBalances computes every member's position from scratch.
//
// Result order is members order, followed (in ID order) by anyone who shows
// up in the records without being listed as a member.
func GroupNetBalances(members []string, expenses []*models.SharedExpense, settlements []*models.Settlement) []models.MemberBalance {
	balances := make([]models.MemberBalance, len(members))
	for i, m := range members {
		balances[i] = models.MemberBalance{UserID: m}
	}
	for _, e := range expenses {
		balances = ApplyDelta(balances, GroupContribution(e), 1)
	}
	for _, s := range settlements {
		balances = ApplyDelta(balances, SettlementGroupContribution(s), 1)
	}
	return balances
}

// CheckConservation verifies that the balances sum to zero. A non-zero sum
// means the ledger itself is inconsistent.
func CheckConservation(context string, balances []models.MemberBalance) error {
	var sum money.Amount
	for _, b := range balances {
		sum += b.NetBalance
	}
	if !sum.IsNegligible() {
		return &apperr.ConsistencyError{Context: context, Sum: sum.String()}
	}
	return nil
}

// PairwiseBalances computes the balance of every pair in participants
// (each unordered pair once, in participants order).
func PairwiseBalances(participants []string, expenses []*models.SharedExpense, settlements []*models.Settlement) []models.PairwiseBalance {
	var pairs []models.PairwiseBalance
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			a, b := participants[i], participants[j]
			amount := PairwiseBalance(expenses, settlements, a, b)
			pairs = append(pairs, models.PairwiseBalance{
				UserA:     a,
				UserB:     b,
				Amount:    amount,
				Direction: models.DirectionOf(amount),
			})
		}
	}
	return pairs
}

// DescribeBalance renders a pairwise balance for logs.
func DescribeBalance(b models.PairwiseBalance) string {
	switch b.Direction {
	case models.BOwesA:
		return fmt.Sprintf("%s owes %s %s", b.UserB, b.UserA, b.Amount)
	case models.AOwesB:
		return fmt.Sprintf("%s owes %s %s", b.UserA, b.UserB, b.Amount.Abs())
	default:
		return fmt.Sprintf("%s and %s are settled up", b.UserA, b.UserB)
	}
}
