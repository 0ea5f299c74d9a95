package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

var (
	hundred          = decimal.NewFromInt(100)
	percentTolerance = decimal.New(1, -2) // 0.01
)

// SplitValidation is the outcome of ValidateSplit.
type SplitValidation struct {
	IsValid bool
	Errors  apperr.ValidationErrors
}

// EqualSplit returns n shares summing exactly to total.
//
// Algorithm: base = floor(total/n); the first (total - base*n) shares in list
// order get base+1. The tie-break is list order, never identity.
func EqualSplit(total money.Amount, n int) ([]money.Amount, error) {
	if n <= 0 {
		return nil, apperr.Invalid("", "participants", "0", "must have at least one participant")
	}
	if total < 0 {
		return nil, apperr.Invalid("", "amount", total.String(), "amount %s must not be negative", total)
	}

	base := total / money.Amount(n)
	remainder := int(total - base*money.Amount(n))

	shares := make([]money.Amount, n)
	for i := range shares {
		shares[i] = base
		if i < remainder {
			shares[i]++
		}
	}
	return shares, nil
}

// PercentageSplit returns share_i = round(total * pct_i / 100) to the minor
// unit, with the rounding residual assigned to the first participant.
// It fails when the percentages do not sum to 100 within 0.01, or when the
// residual is larger than rounding alone can produce.
func PercentageSplit(total money.Amount, percentages []decimal.Decimal) ([]money.Amount, error) {
	if len(percentages) == 0 {
		return nil, apperr.Invalid("", "participants", "0", "must have at least one participant")
	}
	if errs := percentageErrors(nil, percentages); len(errs) > 0 {
		return nil, errs
	}
	if errs := residualErrors(nil, total, percentages); len(errs) > 0 {
		return nil, errs
	}
	return percentageShares(total, percentages), nil
}

// CustomSplit checks explicit shares against total: each share must lie in
// [0, total] and the shares must sum to total.
func CustomSplit(total money.Amount, shares []money.Amount) ([]money.Amount, error) {
	if len(shares) == 0 {
		return nil, apperr.Invalid("", "participants", "0", "must have at least one participant")
	}
	if errs := customErrors(nil, total, shares); len(errs) > 0 {
		return nil, errs
	}
	return append([]money.Amount(nil), shares...), nil
}

// ValidateSplit runs every split check and returns the complete list of
// failures. It never stops at the first one.
func ValidateSplit(total money.Amount, strategy models.SplitStrategy, participants []string) SplitValidation {
	var errs apperr.ValidationErrors

	if total <= 0 {
		errs = append(errs, apperr.Invalid("", "amount", total.String(), "amount %s must be positive", total)...)
	}
	if len(participants) == 0 {
		errs = append(errs, apperr.Invalid("", "participants", "0", "must have at least one participant")...)
	}

	seen := make(map[string]bool, len(participants))
	for i, id := range participants {
		if id == "" {
			errs = append(errs, apperr.Invalid(label(participants, i), "participant", "", "participant id is empty")...)
			continue
		}
		if seen[id] {
			errs = append(errs, apperr.Invalid(id, "participant", id, "listed more than once")...)
		}
		seen[id] = true
	}

	switch s := strategy.(type) {
	case nil:
		errs = append(errs, apperr.Invalid("", "strategy", "", "split strategy is required")...)
	case models.EqualSplit:
	case models.PercentageSplit:
		if len(s.Percentages) != len(participants) {
			errs = append(errs, apperr.Invalid("", "percentages", fmt.Sprint(len(s.Percentages)),
				"got %d percentages for %d participants", len(s.Percentages), len(participants))...)
		} else if perrs := percentageErrors(participants, s.Percentages); len(perrs) > 0 {
			errs = append(errs, perrs...)
		} else if total > 0 {
			errs = append(errs, residualErrors(participants, total, s.Percentages)...)
		}
	case models.CustomSplit:
		if len(s.Shares) != len(participants) {
			errs = append(errs, apperr.Invalid("", "shares", fmt.Sprint(len(s.Shares)),
				"got %d shares for %d participants", len(s.Shares), len(participants))...)
		} else {
			errs = append(errs, customErrors(participants, total, s.Shares)...)
		}
	default:
		errs = append(errs, apperr.Invalid("", "strategy", string(strategy.Kind()), "unsupported split strategy")...)
	}

	return SplitValidation{IsValid: len(errs) == 0, Errors: errs}
}

// BuildSplit validates the split and returns the participants with their
// computed shares, ready to embed in a SharedExpense.
func BuildSplit(total money.Amount, strategy models.SplitStrategy, participants []string) ([]models.Participant, error) {
	if v := ValidateSplit(total, strategy, participants); !v.IsValid {
		return nil, v.Errors
	}

	var shares []money.Amount
	switch s := strategy.(type) {
	case models.EqualSplit:
		shares, _ = EqualSplit(total, len(participants))
	case models.PercentageSplit:
		shares = percentageShares(total, s.Percentages)
	case models.CustomSplit:
		shares = s.Shares
	}

	result := make([]models.Participant, len(participants))
	for i, id := range participants {
		result[i] = models.Participant{UserID: id, Share: shares[i]}
	}
	return result, nil
}

func percentageShares(total money.Amount, percentages []decimal.Decimal) []money.Amount {
	shares, residual := roundedShares(total, percentages)
	shares[0] += residual
	return shares
}

// roundedShares rounds each percentage share to the minor unit and returns
// what is left of total after rounding.
func roundedShares(total money.Amount, percentages []decimal.Decimal) ([]money.Amount, money.Amount) {
	totalDec := total.Decimal()
	shares := make([]money.Amount, len(percentages))
	var sum money.Amount
	for i, pct := range percentages {
		shares[i] = money.FromDecimal(totalDec.Mul(pct).Div(hundred))
		sum += shares[i]
	}
	return shares, total - sum
}

// residualErrors rejects percentages whose rounding residual exceeds half a
// minor unit per participant, and residuals that drive the first share
// below zero. Both happen when the 0.01 tolerance is applied to a large
// total.
func residualErrors(participants []string, total money.Amount, percentages []decimal.Decimal) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	shares, residual := roundedShares(total, percentages)
	if 2*residual.Abs() > money.Amount(len(percentages)) {
		sum := decimal.Sum(decimal.Zero, percentages...)
		errs = append(errs, apperr.Invalid("", "percentages", sum.String(),
			"percentages sum to %s, leaving %s unassigned on %s; must total exactly 100",
			sum.String(), residual, total)...)
	}
	if first := shares[0] + residual; first < 0 {
		errs = append(errs, apperr.Invalid(label(participants, 0), "percentage", percentages[0].String(),
			"share %s is negative after rounding", first)...)
	}
	return errs
}

func percentageErrors(participants []string, percentages []decimal.Decimal) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	sum := decimal.Zero
	for i, pct := range percentages {
		if pct.IsNegative() {
			errs = append(errs, apperr.Invalid(label(participants, i), "percentage", pct.String(),
				"percentage %s is negative", pct.StringFixed(2))...)
		} else if pct.GreaterThan(hundred) {
			errs = append(errs, apperr.Invalid(label(participants, i), "percentage", pct.String(),
				"percentage %s exceeds 100", pct.StringFixed(2))...)
		}
		sum = sum.Add(pct)
	}
	if sum.Sub(hundred).Abs().GreaterThan(percentTolerance) {
		errs = append(errs, apperr.Invalid("", "percentages", sum.String(),
			"percentages sum to %s, must total 100", sum.StringFixed(2))...)
	}
	return errs
}

func customErrors(participants []string, total money.Amount, shares []money.Amount) apperr.ValidationErrors {
	var errs apperr.ValidationErrors
	for i, share := range shares {
		if share < 0 {
			errs = append(errs, apperr.Invalid(label(participants, i), "share", share.String(),
				"share %s is negative", share)...)
		} else if share > total {
			errs = append(errs, apperr.Invalid(label(participants, i), "share", share.String(),
				"share %s exceeds total %s", share, total)...)
		}
	}
	if sum := money.Sum(shares...); !money.ApproxEqual(sum, total) {
		errs = append(errs, apperr.Invalid("", "shares", sum.String(),
			"shares sum to %s, must equal total %s", sum, total)...)
	}
	return errs
}

// label names the participant at index i for error messages.
func label(participants []string, i int) string {
	if i < len(participants) && participants[i] != "" {
		return participants[i]
	}
	return fmt.Sprintf("#%d", i+1)
}
