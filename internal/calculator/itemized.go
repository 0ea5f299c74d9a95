package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/money"
)

// Item represents a single line item on a receipt.
type Item struct {
	Description string
	Amount      money.Amount
	AssignedTo  []string
}

// ItemizedShares turns line items plus tax into cent-exact shares, aligned
// with participants, that can be recorded as a CustomSplit.
//
// Algorithm:
//   - each item is split equally among the people assigned to it
//   - total (items + tax and fees) is then spread proportionally to each
//     person's item subtotal, using largest remainders so the shares sum
//     exactly to total
//   - with no items, total is split equally among all participants
func ItemizedShares(items []Item, total money.Amount, participants []string) ([]money.Amount, error) {
	if len(participants) == 0 {
		return nil, apperr.Invalid("", "participants", "0", "must have at least one participant")
	}
	if len(items) == 0 {
		return EqualSplit(total, len(participants))
	}

	index := make(map[string]int, len(participants))
	for i, p := range participants {
		index[p] = i
	}

	var errs apperr.ValidationErrors
	subtotals := make([]money.Amount, len(participants))
	for _, item := range items {
		if len(item.AssignedTo) == 0 {
			continue
		}
		if item.Amount < 0 {
			errs = append(errs, apperr.Invalid("", "item", item.Description, "item %q has negative amount %s", item.Description, item.Amount)...)
			continue
		}
		perPerson, _ := EqualSplit(item.Amount, len(item.AssignedTo))
		for j, person := range item.AssignedTo {
			i, ok := index[person]
			if !ok {
				errs = append(errs, apperr.Invalid(person, "item", item.Description, "assigned to %q but is not a participant", item.Description)...)
				continue
			}
			subtotals[i] += perPerson[j]
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	subtotal := money.Sum(subtotals...)
	if subtotal == 0 {
		return nil, apperr.Invalid("", "subtotal", "0.00", "subtotal cannot be zero")
	}

	return proportionalShares(total, subtotals, subtotal), nil
}

// proportionalShares distributes total in proportion to weights (which sum
// to weightSum) using the largest-remainder method. Leftover minor units go
// to the largest remainders, ties broken by list order. Products are taken
// in decimal so large totals cannot overflow.
func proportionalShares(total money.Amount, weights []money.Amount, weightSum money.Amount) []money.Amount {
	shares := make([]money.Amount, len(weights))
	remainders := make([]decimal.Decimal, len(weights))
	totalDec := decimal.NewFromInt(int64(total))
	sumDec := decimal.NewFromInt(int64(weightSum))
	var assigned money.Amount
	for i, w := range weights {
		q, r := totalDec.Mul(decimal.NewFromInt(int64(w))).QuoRem(sumDec, 0)
		shares[i] = money.Amount(q.IntPart())
		remainders[i] = r
		assigned += shares[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})

	// Floors lose less than one unit per weight, so one pass suffices.
	for k := 0; k < len(order) && assigned < total; k++ {
		shares[order[k]]++
		assigned++
	}
	return shares
}
