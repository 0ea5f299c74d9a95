package service

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
)

// RecordSettlement records a pending payment from the caller.
func (s *LedgerService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	amount, errs := parseTotal("amount", req.Msg.Amount)
	if errs != nil {
		return nil, toConnectError("RecordSettlement", errs.OrNil())
	}

	created, err := s.recorder.Create(ctx, userID, settlement.NewSettlement{
		GroupID:    req.Msg.GroupID,
		Payer:      userID,
		Recipient:  req.Msg.Recipient,
		Amount:     amount,
		ExpenseIDs: req.Msg.ExpenseIDs,
		Note:       req.Msg.Note,
	})
	if err != nil {
		return nil, toConnectError("RecordSettlement", err)
	}
	return connect.NewResponse(&api.SettlementResponse{Settlement: toAPISettlement(created)}), nil
}

// ConfirmSettlement is called by the recipient once the money arrived.
func (s *LedgerService) ConfirmSettlement(ctx context.Context, req *connect.Request[api.ConfirmSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.recorder.Confirm(ctx, req.Msg.ID, userID)
	if err != nil {
		return nil, toConnectError("ConfirmSettlement", err)
	}
	return connect.NewResponse(&api.SettlementResponse{Settlement: toAPISettlement(confirmed)}), nil
}

func (s *LedgerService) DisputeSettlement(ctx context.Context, req *connect.Request[api.DisputeSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	disputed, err := s.recorder.Dispute(ctx, req.Msg.ID, userID, req.Msg.Reason)
	if err != nil {
		return nil, toConnectError("DisputeSettlement", err)
	}
	return connect.NewResponse(&api.SettlementResponse{Settlement: toAPISettlement(disputed)}), nil
}

// ListSettlements lists settlements of a group the caller belongs to, or
// settlements the caller (or the requested participant) took part in.
func (s *LedgerService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	q := storage.SettlementQuery{
		Filter:      storage.Filter{GroupID: req.Msg.GroupID},
		Participant: req.Msg.Participant,
		Status:      models.SettlementStatus(req.Msg.Status),
	}
	switch q.Status {
	case "", models.SettlementPending, models.SettlementConfirmed, models.SettlementDisputed:
	default:
		return nil, toConnectError("ListSettlements",
			apperr.Invalid("", "status", req.Msg.Status, "unknown settlement status %q", req.Msg.Status))
	}
	if req.Msg.From != nil {
		q.From = req.Msg.From.UTC()
	}
	if req.Msg.To != nil {
		q.To = req.Msg.To.UTC()
	}

	if q.GroupID != "" {
		if err := s.requireMember(ctx, q.GroupID, userID); err != nil {
			return nil, err
		}
	} else {
		if q.Participant == "" {
			q.Participant = userID
		}
		if q.Participant != userID {
			return nil, permissionDenied("you can only list your own settlements outside a group")
		}
	}

	list, err := s.recorder.List(ctx, q)
	if err != nil {
		return nil, toConnectError("ListSettlements", err)
	}
	out := make([]api.Settlement, len(list))
	for i, st := range list {
		out[i] = toAPISettlement(st)
	}
	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: out}), nil
}

// requireMember loads a group and checks the caller belongs to it.
func (s *LedgerService) requireMember(ctx context.Context, groupID, userID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return toConnectError("GetGroup", err)
	}
	if !group.HasMember(userID) {
		return permissionDenied("you are not a member of group %s", group.Name)
	}
	return nil
}
