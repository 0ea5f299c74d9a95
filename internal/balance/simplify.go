package balance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/storage"
)

// SimplifiedSettlements computes a settle-up plan among participants from
// the pairwise balances between them (expenses in any group count).
func (a *Aggregator) SimplifiedSettlements(ctx context.Context, participants []string) (calculator.SimplificationResult, error) {
	if err := validateParticipants(participants); err != nil {
		return calculator.SimplificationResult{}, err
	}

	expenses, err := a.store.FetchSharedExpenses(ctx, participants, storage.Filter{})
	if err != nil {
		return calculator.SimplificationResult{}, fmt.Errorf("failed to fetch expenses: %w", err)
	}
	settlements, err := a.store.FetchConfirmedSettlements(ctx, participants, storage.Filter{})
	if err != nil {
		return calculator.SimplificationResult{}, fmt.Errorf("failed to fetch settlements: %w", err)
	}

	pairs := calculator.PairwiseBalances(participants, expenses, settlements)
	simplified, err := calculator.Simplify(calculator.NetBalancesFromPairs(participants, pairs))
	if err != nil {
		return calculator.SimplificationResult{}, err
	}

	result := calculator.SimplificationResult{Original: calculator.OriginalDebts(pairs), Simplified: simplified}
	a.observe(result, "participants", participants)
	return result, nil
}

// GroupSimplifiedSettlements computes a settle-up plan for a group from its
// member balances. Original lists the pairwise debts from the group's own
// expenses and settlements.
func (a *Aggregator) GroupSimplifiedSettlements(ctx context.Context, groupID string) (calculator.SimplificationResult, error) {
	gb, err := a.GroupBalances(ctx, groupID)
	if err != nil {
		return calculator.SimplificationResult{}, err
	}
	_, expenses, settlements, err := a.groupSnapshot(ctx, groupID)
	if err != nil {
		return calculator.SimplificationResult{}, err
	}

	ids := make([]string, len(gb.Members))
	for i, m := range gb.Members {
		ids[i] = m.UserID
	}
	pairs := calculator.PairwiseBalances(ids, expenses, settlements)

	simplified, err := calculator.Simplify(calculator.NetBalancesFromMembers(gb.Members))
	if err != nil {
		return calculator.SimplificationResult{}, err
	}

	result := calculator.SimplificationResult{Original: calculator.OriginalDebts(pairs), Simplified: simplified}
	a.observe(result, "group_id", groupID)
	return result, nil
}

func (a *Aggregator) observe(result calculator.SimplificationResult, scopeKey string, scope any) {
	stats := calculator.Stats(result)
	a.metrics.Simplified(stats.TransactionsSaved)
	slog.Info("Debts simplified",
		scopeKey, scope,
		"original", stats.OriginalCount,
		"simplified", stats.SimplifiedCount,
		"saved", stats.TransactionsSaved,
	)
}

func validateParticipants(participants []string) error {
	var errs apperr.ValidationErrors
	if len(participants) < 2 {
		errs = append(errs, apperr.Invalid("", "participants", fmt.Sprint(len(participants)),
			"need at least two participants to settle up")...)
	}
	seen := make(map[string]bool, len(participants))
	for i, id := range participants {
		if id == "" {
			errs = append(errs, apperr.Invalid(fmt.Sprintf("#%d", i+1), "participant", "", "participant id is empty")...)
			continue
		}
		if seen[id] {
			errs = append(errs, apperr.Invalid(id, "participant", id, "listed more than once")...)
		}
		seen[id] = true
	}
	return errs.OrNil()
}
