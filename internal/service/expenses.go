package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/pkg/api"
)

// ValidateSplit checks a proposed split and returns either every failure or
// the computed shares. An invalid split is a normal response, not an error.
func (s *LedgerService) ValidateSplit(ctx context.Context, req *connect.Request[api.ValidateSplitRequest]) (*connect.Response[api.ValidateSplitResponse], error) {
	errs, shares := checkSplit(req.Msg.Total, req.Msg.Split)
	if len(errs) > 0 {
		return connect.NewResponse(&api.ValidateSplitResponse{Valid: false, Errors: toFieldErrors(errs)}), nil
	}
	return connect.NewResponse(&api.ValidateSplitResponse{Valid: true, Shares: toAPIShares(shares)}), nil
}

// checkSplit parses and validates a split, collecting every failure.
func checkSplit(rawTotal string, spec api.SplitSpec) (apperr.ValidationErrors, []models.Participant) {
	total, terrs := parseTotal("total", rawTotal)
	_, shares, errs := resolveSplit(total, terrs, spec)
	return errs, shares
}

// resolveSplit turns a wire split into shares of total. A total that failed
// to parse arrives as zero with its errors in totalErrs; the split is still
// checked so the caller sees every failure at once.
func resolveSplit(total money.Amount, totalErrs apperr.ValidationErrors, spec api.SplitSpec) (models.SplitStrategy, []models.Participant, apperr.ValidationErrors) {
	errs := append(apperr.ValidationErrors(nil), totalErrs...)

	strategy, serrs := parseSplit(total, spec)
	errs = append(errs, serrs...)

	// An equal split has no strategy checks of its own, so it stands in to
	// validate the participants when the strategy did not parse.
	check := strategy
	if check == nil {
		check = models.EqualSplit{}
	}
	seen := make(map[apperr.ValidationError]bool, len(errs))
	for _, e := range errs {
		seen[e] = true
	}
	for _, e := range calculator.ValidateSplit(total, check, spec.Participants).Errors {
		if seen[e] || (totalErrs != nil && e.Field == "amount") {
			continue
		}
		seen[e] = true
		errs = append(errs, e)
	}
	if len(errs) > 0 {
		return nil, nil, errs
	}

	participants, err := calculator.BuildSplit(total, strategy, spec.Participants)
	if err != nil {
		return nil, nil, validationList(err)
	}
	return strategy, participants, nil
}

// CreateExpense records an expense and updates cached balances.
func (s *LedgerService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	payer := req.Msg.Payer
	if payer == "" {
		payer = userID
	}
	e, err := s.buildExpense(ctx, req.Msg.GroupID, payer, req.Msg.Amount, req.Msg.Split)
	if err != nil {
		return nil, toConnectError("CreateExpense", err)
	}
	if !e.Involves(userID) {
		return nil, permissionDenied("you must be the payer or a participant to record this expense")
	}
	e.Category = req.Msg.Category
	e.Description = req.Msg.Description
	e.Active = true
	if req.Msg.Date != nil {
		e.Date = req.Msg.Date.UTC()
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return nil, toConnectError("CreateExpense", err)
	}
	if err := s.balances.ApplyExpenseChange(ctx, nil, e); err != nil {
		return nil, toConnectError("CreateExpense", err)
	}

	slog.Info("Expense created",
		"expense_id", e.ID,
		"group_id", e.GroupID,
		"payer", e.Payer,
		"amount", e.Amount.String(),
		"strategy", e.Split.Kind(),
		"participants", len(e.Participants),
	)
	return connect.NewResponse(&api.ExpenseResponse{Expense: toAPIExpense(e)}), nil
}

// UpdateExpense re-splits an active expense. The group is kept.
func (s *LedgerService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	old, err := s.store.GetExpense(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}
	if !old.Involves(userID) {
		return nil, permissionDenied("you are not part of this expense")
	}
	if !old.Active {
		return nil, toConnectError("UpdateExpense",
			apperr.Invalid("", "id", old.ID, "expense has been deleted"))
	}

	updated, err := s.buildExpense(ctx, old.GroupID, req.Msg.Payer, req.Msg.Amount, req.Msg.Split)
	if err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	updated.Category = req.Msg.Category
	updated.Description = req.Msg.Description
	updated.Active = true
	updated.Date = old.Date
	if req.Msg.Date != nil {
		updated.Date = req.Msg.Date.UTC()
	}

	if err := s.store.UpdateExpense(ctx, updated); err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}
	if err := s.balances.ApplyExpenseChange(ctx, old, updated); err != nil {
		return nil, toConnectError("UpdateExpense", err)
	}

	slog.Info("Expense updated",
		"expense_id", updated.ID,
		"old_amount", old.Amount.String(),
		"amount", updated.Amount.String(),
		"strategy", updated.Split.Kind(),
	)
	return connect.NewResponse(&api.ExpenseResponse{Expense: toAPIExpense(updated)}), nil
}

// DeleteExpense soft-deletes an expense. Deleting twice is a no-op.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	old, err := s.store.GetExpense(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("DeleteExpense", err)
	}
	if !old.Involves(userID) {
		return nil, permissionDenied("you are not part of this expense")
	}
	if !old.Active {
		return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
	}

	if err := s.store.SoftDeleteExpense(ctx, old.ID); err != nil {
		return nil, toConnectError("DeleteExpense", err)
	}
	deleted := old.Clone()
	deleted.Active = false
	if err := s.balances.ApplyExpenseChange(ctx, old, deleted); err != nil {
		return nil, toConnectError("DeleteExpense", err)
	}

	slog.Info("Expense deleted", "expense_id", old.ID, "deleted_by", userID)
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// GetExpense returns an expense, including deleted ones, to anyone involved.
func (s *LedgerService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.store.GetExpense(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError("GetExpense", err)
	}
	if !e.Involves(userID) {
		return nil, permissionDenied("you are not part of this expense")
	}
	return connect.NewResponse(&api.ExpenseResponse{Expense: toAPIExpense(e)}), nil
}

// buildExpense validates everything about an expense that does not depend
// on the caller: amount, split and group membership.
func (s *LedgerService) buildExpense(ctx context.Context, groupID, payer, rawAmount string, spec api.SplitSpec) (*models.SharedExpense, error) {
	var errs apperr.ValidationErrors
	if payer == "" {
		errs = append(errs, apperr.Invalid("", "payer", "", "payer is required")...)
	}

	total, aerrs := parseTotal("amount", rawAmount)
	strategy, participants, serrs := resolveSplit(total, aerrs, spec)
	errs = append(errs, serrs...)

	if groupID != "" {
		group, err := s.store.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, id := range append([]string{payer}, spec.Participants...) {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if !group.HasMember(id) {
				errs = append(errs, apperr.Invalid(id, "group_id", groupID, "is not a member of group %s", group.Name)...)
			}
		}
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return &models.SharedExpense{
		GroupID:      groupID,
		Payer:        payer,
		Amount:       total,
		Split:        strategy,
		Participants: participants,
	}, nil
}
