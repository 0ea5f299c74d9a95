package service

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/calculator"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/pkg/api"
)

// GetPairwiseBalance returns the balance between the caller and another
// user, from the cache unless a recompute is requested.
func (s *LedgerService) GetPairwiseBalance(ctx context.Context, req *connect.Request[api.GetPairwiseBalanceRequest]) (*connect.Response[api.GetPairwiseBalanceResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	userA := req.Msg.UserA
	if userA == "" {
		userA = userID
	}
	if userA != userID && req.Msg.UserB != userID {
		return nil, permissionDenied("you can only read balances you are part of")
	}

	var (
		b       models.PairwiseBalance
		drifted bool
	)
	if req.Msg.Recompute {
		b, drifted, err = s.balances.Verify(ctx, userA, req.Msg.UserB)
	} else {
		b, err = s.balances.PairwiseBalance(ctx, userA, req.Msg.UserB)
	}
	if err != nil {
		return nil, toConnectError("GetPairwiseBalance", err)
	}
	return connect.NewResponse(&api.GetPairwiseBalanceResponse{Balance: toAPIPair(b), Drifted: drifted}), nil
}

func (s *LedgerService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, req.Msg.GroupID, userID); err != nil {
		return nil, err
	}

	var (
		gb      models.GroupBalance
		drifted bool
	)
	if req.Msg.Recompute {
		gb, drifted, err = s.balances.VerifyGroup(ctx, req.Msg.GroupID)
	} else {
		gb, err = s.balances.GroupBalances(ctx, req.Msg.GroupID)
	}
	if err != nil {
		return nil, toConnectError("GetGroupBalances", err)
	}
	return connect.NewResponse(&api.GetGroupBalancesResponse{
		GroupID:     gb.GroupID,
		Members:     toAPIMembers(gb.Members),
		LastUpdated: gb.LastUpdated,
		Drifted:     drifted,
	}), nil
}

// GetSimplifiedSettlements returns the minimal set of transfers that settles
// a group or an explicit participant set.
func (s *LedgerService) GetSimplifiedSettlements(ctx context.Context, req *connect.Request[api.SimplifyRequest]) (*connect.Response[api.GetSimplifiedSettlementsResponse], error) {
	result, err := s.simplify(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetSimplifiedSettlementsResponse{
		Original:   toAPITransfers(result.Original),
		Simplified: toAPITransfers(result.Simplified),
		Stats:      toAPIStats(calculator.Stats(result)),
	}), nil
}

func (s *LedgerService) GetSimplificationStats(ctx context.Context, req *connect.Request[api.SimplifyRequest]) (*connect.Response[api.GetSimplificationStatsResponse], error) {
	result, err := s.simplify(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetSimplificationStatsResponse{Stats: toAPIStats(calculator.Stats(result))}), nil
}

func (s *LedgerService) simplify(ctx context.Context, msg *api.SimplifyRequest) (calculator.SimplificationResult, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return calculator.SimplificationResult{}, err
	}

	switch {
	case msg.GroupID != "" && len(msg.Participants) > 0:
		return calculator.SimplificationResult{}, toConnectError("Simplify",
			apperr.Invalid("", "group_id", msg.GroupID, "set either group_id or participants, not both"))

	case msg.GroupID != "":
		if err := s.requireMember(ctx, msg.GroupID, userID); err != nil {
			return calculator.SimplificationResult{}, err
		}
		result, err := s.balances.GroupSimplifiedSettlements(ctx, msg.GroupID)
		if err != nil {
			return calculator.SimplificationResult{}, toConnectError("Simplify", err)
		}
		return result, nil

	default:
		if len(msg.Participants) > 0 && !contains(msg.Participants, userID) {
			return calculator.SimplificationResult{}, permissionDenied("you must be one of the participants")
		}
		result, err := s.balances.SimplifiedSettlements(ctx, msg.Participants)
		if err != nil {
			return calculator.SimplificationResult{}, toConnectError("Simplify", err)
		}
		return result, nil
	}
}
