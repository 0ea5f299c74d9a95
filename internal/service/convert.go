package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/pkg/api"
)

// parseAmount reads a decimal amount in major units with at most two
// decimal places and a magnitude no larger than money.Max.
func parseAmount(participant, field, raw string) (money.Amount, apperr.ValidationErrors) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperr.Invalid(participant, field, raw, "%q is not a decimal amount", raw)
	}
	if !d.Round(2).Equal(d) {
		return 0, apperr.Invalid(participant, field, raw, "%s has more than two decimal places", raw)
	}
	if d.Abs().GreaterThan(money.Max.Decimal()) {
		return 0, apperr.Invalid(participant, field, raw, "%s exceeds maximum %s", raw, money.Max)
	}
	return money.FromDecimal(d), nil
}

// parseTotal is parseAmount for an amount that must be positive.
func parseTotal(field, raw string) (money.Amount, apperr.ValidationErrors) {
	total, errs := parseAmount("", field, raw)
	if errs != nil {
		return 0, errs
	}
	if total <= 0 {
		return 0, apperr.Invalid("", field, raw, "amount must be positive")
	}
	return total, nil
}

// parseSplit turns a wire split into a strategy. Every malformed value is
// reported, not just the first. The itemized strategy is resolved here into
// a custom split.
func parseSplit(total money.Amount, spec api.SplitSpec) (models.SplitStrategy, apperr.ValidationErrors) {
	var errs apperr.ValidationErrors
	label := func(i int) string {
		if i < len(spec.Participants) {
			return spec.Participants[i]
		}
		return fmt.Sprintf("#%d", i+1)
	}

	switch strings.ToLower(spec.Strategy) {
	case api.StrategyEqual, "":
		return newStrategy(models.StrategyEqual, placeholderPercentages(spec.Percentages), placeholderShares(spec.Shares))

	case api.StrategyPercentage:
		pcts := make([]decimal.Decimal, len(spec.Percentages))
		for i, raw := range spec.Percentages {
			d, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				errs = append(errs, apperr.Invalid(label(i), "percentage", raw, "%q is not a number", raw)...)
				continue
			}
			pcts[i] = d
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return newStrategy(models.StrategyPercentage, pcts, placeholderShares(spec.Shares))

	case api.StrategyCustom:
		shares := make([]money.Amount, len(spec.Shares))
		for i, raw := range spec.Shares {
			share, perrs := parseAmount(label(i), "share", raw)
			errs = append(errs, perrs...)
			shares[i] = share
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return newStrategy(models.StrategyCustom, placeholderPercentages(spec.Percentages), shares)

	case api.StrategyItemized:
		if len(spec.Percentages) > 0 || len(spec.Shares) > 0 {
			return nil, apperr.Invalid("", "strategy", spec.Strategy, "itemized split takes items, not percentages or shares")
		}
		items := make([]calculator.Item, len(spec.Items))
		for i, it := range spec.Items {
			amount, perrs := parseAmount("", "items["+fmt.Sprint(i)+"].amount", it.Amount)
			errs = append(errs, perrs...)
			items[i] = calculator.Item{Description: it.Description, Amount: amount, AssignedTo: it.AssignedTo}
		}
		if len(errs) > 0 {
			return nil, errs
		}
		shares, err := calculator.ItemizedShares(items, total, spec.Participants)
		if err != nil {
			return nil, validationList(err)
		}
		return models.CustomSplit{Shares: shares}, nil

	default:
		return nil, apperr.Invalid("", "strategy", spec.Strategy, "unknown split strategy %q", spec.Strategy)
	}
}

func newStrategy(kind models.StrategyKind, percentages []decimal.Decimal, shares []money.Amount) (models.SplitStrategy, apperr.ValidationErrors) {
	s, err := models.NewStrategy(kind, percentages, shares)
	if err != nil {
		return nil, validationList(err)
	}
	return s, nil
}

// placeholderPercentages and placeholderShares carry only how many values a
// request sent for a field its strategy does not parse, so NewStrategy can
// reject them.
func placeholderPercentages(raw []string) []decimal.Decimal {
	return make([]decimal.Decimal, len(raw))
}

func placeholderShares(raw []string) []money.Amount {
	return make([]money.Amount, len(raw))
}

func toFieldErrors(errs apperr.ValidationErrors) []api.FieldError {
	out := make([]api.FieldError, len(errs))
	for i, e := range errs {
		out[i] = api.FieldError{
			Participant: e.Participant,
			Field:       e.Field,
			Value:       e.Value,
			Message:     e.Message,
		}
	}
	return out
}

func toAPIShares(participants []models.Participant) []api.ParticipantShare {
	out := make([]api.ParticipantShare, len(participants))
	for i, p := range participants {
		out[i] = api.ParticipantShare{
			UserID:    p.UserID,
			Share:     p.Share.String(),
			Settled:   p.Settled,
			SettledAt: p.SettledAt,
		}
	}
	return out
}

func toAPIExpense(e *models.SharedExpense) api.Expense {
	return api.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		Payer:        e.Payer,
		Amount:       e.Amount.String(),
		Strategy:     string(e.Split.Kind()),
		Participants: toAPIShares(e.Participants),
		Category:     e.Category,
		Description:  e.Description,
		Date:         e.Date,
		Active:       e.Active,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toAPISettlement(s *models.Settlement) api.Settlement {
	return api.Settlement{
		ID:            s.ID,
		GroupID:       s.GroupID,
		Payer:         s.Payer,
		Recipient:     s.Recipient,
		Amount:        s.Amount.String(),
		Status:        string(s.Status),
		ExpenseIDs:    s.ExpenseIDs,
		Note:          s.Note,
		CreatedAt:     s.CreatedAt,
		ConfirmedAt:   s.ConfirmedAt,
		ConfirmedBy:   s.ConfirmedBy,
		DisputedAt:    s.DisputedAt,
		DisputedBy:    s.DisputedBy,
		DisputeReason: s.DisputeReason,
	}
}

func toAPIPair(b models.PairwiseBalance) api.PairwiseBalance {
	return api.PairwiseBalance{
		UserA:       b.UserA,
		UserB:       b.UserB,
		Amount:      b.Amount.String(),
		Direction:   string(b.Direction),
		Summary:     calculator.DescribeBalance(b),
		LastUpdated: b.LastUpdated,
	}
}

func toAPIMembers(members []models.MemberBalance) []api.MemberBalance {
	out := make([]api.MemberBalance, len(members))
	for i, m := range members {
		out[i] = api.MemberBalance{
			UserID:     m.UserID,
			NetBalance: m.NetBalance.String(),
			TotalPaid:  m.TotalPaid.String(),
			TotalOwed:  m.TotalOwed.String(),
		}
	}
	return out
}

func toAPITransfers(transfers []calculator.Transfer) []api.Transfer {
	out := make([]api.Transfer, len(transfers))
	for i, t := range transfers {
		out[i] = api.Transfer{From: t.From, To: t.To, Amount: t.Amount.String()}
	}
	return out
}

func toAPIStats(s calculator.SimplificationStats) api.SimplificationStats {
	return api.SimplificationStats{
		OriginalCount:     s.OriginalCount,
		SimplifiedCount:   s.SimplifiedCount,
		TransactionsSaved: s.TransactionsSaved,
	}
}
