// Package apiconnect wires the api messages to Connect handlers and clients
// for settleup.v1.LedgerService.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/pkg/api"
)

// LedgerServiceHandler is implemented by the server.
type LedgerServiceHandler interface {
	ValidateSplit(context.Context, *connect.Request[api.ValidateSplitRequest]) (*connect.Response[api.ValidateSplitResponse], error)
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.ExpenseResponse], error)
	RecordSettlement(context.Context, *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.SettlementResponse], error)
	ConfirmSettlement(context.Context, *connect.Request[api.ConfirmSettlementRequest]) (*connect.Response[api.SettlementResponse], error)
	DisputeSettlement(context.Context, *connect.Request[api.DisputeSettlementRequest]) (*connect.Response[api.SettlementResponse], error)
	ListSettlements(context.Context, *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	GetPairwiseBalance(context.Context, *connect.Request[api.GetPairwiseBalanceRequest]) (*connect.Response[api.GetPairwiseBalanceResponse], error)
	GetGroupBalances(context.Context, *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error)
	GetSimplifiedSettlements(context.Context, *connect.Request[api.SimplifyRequest]) (*connect.Response[api.GetSimplifiedSettlementsResponse], error)
	GetSimplificationStats(context.Context, *connect.Request[api.SimplifyRequest]) (*connect.Response[api.GetSimplificationStatsResponse], error)
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error)
	SetRelationship(context.Context, *connect.Request[api.SetRelationshipRequest]) (*connect.Response[api.SetRelationshipResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler serving every procedure of
// svc, and returns the path prefix to mount it on.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)

	handlers := map[string]http.Handler{
		api.ValidateSplitProcedure:            connect.NewUnaryHandler(api.ValidateSplitProcedure, svc.ValidateSplit, opts...),
		api.CreateExpenseProcedure:            connect.NewUnaryHandler(api.CreateExpenseProcedure, svc.CreateExpense, opts...),
		api.UpdateExpenseProcedure:            connect.NewUnaryHandler(api.UpdateExpenseProcedure, svc.UpdateExpense, opts...),
		api.DeleteExpenseProcedure:            connect.NewUnaryHandler(api.DeleteExpenseProcedure, svc.DeleteExpense, opts...),
		api.GetExpenseProcedure:               connect.NewUnaryHandler(api.GetExpenseProcedure, svc.GetExpense, opts...),
		api.RecordSettlementProcedure:         connect.NewUnaryHandler(api.RecordSettlementProcedure, svc.RecordSettlement, opts...),
		api.ConfirmSettlementProcedure:        connect.NewUnaryHandler(api.ConfirmSettlementProcedure, svc.ConfirmSettlement, opts...),
		api.DisputeSettlementProcedure:        connect.NewUnaryHandler(api.DisputeSettlementProcedure, svc.DisputeSettlement, opts...),
		api.ListSettlementsProcedure:          connect.NewUnaryHandler(api.ListSettlementsProcedure, svc.ListSettlements, opts...),
		api.GetPairwiseBalanceProcedure:       connect.NewUnaryHandler(api.GetPairwiseBalanceProcedure, svc.GetPairwiseBalance, opts...),
		api.GetGroupBalancesProcedure:         connect.NewUnaryHandler(api.GetGroupBalancesProcedure, svc.GetGroupBalances, opts...),
		api.GetSimplifiedSettlementsProcedure: connect.NewUnaryHandler(api.GetSimplifiedSettlementsProcedure, svc.GetSimplifiedSettlements, opts...),
		api.GetSimplificationStatsProcedure:   connect.NewUnaryHandler(api.GetSimplificationStatsProcedure, svc.GetSimplificationStats, opts...),
		api.CreateGroupProcedure:              connect.NewUnaryHandler(api.CreateGroupProcedure, svc.CreateGroup, opts...),
		api.SetRelationshipProcedure:          connect.NewUnaryHandler(api.SetRelationshipProcedure, svc.SetRelationship, opts...),
	}

	prefix := "/" + api.ServiceName + "/"
	return prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// LedgerServiceClient calls settleup.v1.LedgerService.
type LedgerServiceClient struct {
	validateSplit            *connect.Client[api.ValidateSplitRequest, api.ValidateSplitResponse]
	createExpense            *connect.Client[api.CreateExpenseRequest, api.ExpenseResponse]
	updateExpense            *connect.Client[api.UpdateExpenseRequest, api.ExpenseResponse]
	deleteExpense            *connect.Client[api.DeleteExpenseRequest, api.DeleteExpenseResponse]
	getExpense               *connect.Client[api.GetExpenseRequest, api.ExpenseResponse]
	recordSettlement         *connect.Client[api.RecordSettlementRequest, api.SettlementResponse]
	confirmSettlement        *connect.Client[api.ConfirmSettlementRequest, api.SettlementResponse]
	disputeSettlement        *connect.Client[api.DisputeSettlementRequest, api.SettlementResponse]
	listSettlements          *connect.Client[api.ListSettlementsRequest, api.ListSettlementsResponse]
	getPairwiseBalance       *connect.Client[api.GetPairwiseBalanceRequest, api.GetPairwiseBalanceResponse]
	getGroupBalances         *connect.Client[api.GetGroupBalancesRequest, api.GetGroupBalancesResponse]
	getSimplifiedSettlements *connect.Client[api.SimplifyRequest, api.GetSimplifiedSettlementsResponse]
	getSimplificationStats   *connect.Client[api.SimplifyRequest, api.GetSimplificationStatsResponse]
	createGroup              *connect.Client[api.CreateGroupRequest, api.CreateGroupResponse]
	setRelationship          *connect.Client[api.SetRelationshipRequest, api.SetRelationshipResponse]
}

// NewLedgerServiceClient creates a client for the service at baseURL
// (e.g. http://localhost:8080).
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec{})}, opts...)
	return &LedgerServiceClient{
		validateSplit:            connect.NewClient[api.ValidateSplitRequest, api.ValidateSplitResponse](httpClient, baseURL+api.ValidateSplitProcedure, opts...),
		createExpense:            connect.NewClient[api.CreateExpenseRequest, api.ExpenseResponse](httpClient, baseURL+api.CreateExpenseProcedure, opts...),
		updateExpense:            connect.NewClient[api.UpdateExpenseRequest, api.ExpenseResponse](httpClient, baseURL+api.UpdateExpenseProcedure, opts...),
		deleteExpense:            connect.NewClient[api.DeleteExpenseRequest, api.DeleteExpenseResponse](httpClient, baseURL+api.DeleteExpenseProcedure, opts...),
		getExpense:               connect.NewClient[api.GetExpenseRequest, api.ExpenseResponse](httpClient, baseURL+api.GetExpenseProcedure, opts...),
		recordSettlement:         connect.NewClient[api.RecordSettlementRequest, api.SettlementResponse](httpClient, baseURL+api.RecordSettlementProcedure, opts...),
		confirmSettlement:        connect.NewClient[api.ConfirmSettlementRequest, api.SettlementResponse](httpClient, baseURL+api.ConfirmSettlementProcedure, opts...),
		disputeSettlement:        connect.NewClient[api.DisputeSettlementRequest, api.SettlementResponse](httpClient, baseURL+api.DisputeSettlementProcedure, opts...),
		listSettlements:          connect.NewClient[api.ListSettlementsRequest, api.ListSettlementsResponse](httpClient, baseURL+api.ListSettlementsProcedure, opts...),
		getPairwiseBalance:       connect.NewClient[api.GetPairwiseBalanceRequest, api.GetPairwiseBalanceResponse](httpClient, baseURL+api.GetPairwiseBalanceProcedure, opts...),
		getGroupBalances:         connect.NewClient[api.GetGroupBalancesRequest, api.GetGroupBalancesResponse](httpClient, baseURL+api.GetGroupBalancesProcedure, opts...),
		getSimplifiedSettlements: connect.NewClient[api.SimplifyRequest, api.GetSimplifiedSettlementsResponse](httpClient, baseURL+api.GetSimplifiedSettlementsProcedure, opts...),
		getSimplificationStats:   connect.NewClient[api.SimplifyRequest, api.GetSimplificationStatsResponse](httpClient, baseURL+api.GetSimplificationStatsProcedure, opts...),
		createGroup:              connect.NewClient[api.CreateGroupRequest, api.CreateGroupResponse](httpClient, baseURL+api.CreateGroupProcedure, opts...),
		setRelationship:          connect.NewClient[api.SetRelationshipRequest, api.SetRelationshipResponse](httpClient, baseURL+api.SetRelationshipProcedure, opts...),
	}
}

func (c *LedgerServiceClient) ValidateSplit(ctx context.Context, req *connect.Request[api.ValidateSplitRequest]) (*connect.Response[api.ValidateSplitResponse], error) {
	return c.validateSplit.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.ExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	return c.recordSettlement.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ConfirmSettlement(ctx context.Context, req *connect.Request[api.ConfirmSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	return c.confirmSettlement.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) DisputeSettlement(ctx context.Context, req *connect.Request[api.DisputeSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	return c.disputeSettlement.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetPairwiseBalance(ctx context.Context, req *connect.Request[api.GetPairwiseBalanceRequest]) (*connect.Response[api.GetPairwiseBalanceResponse], error) {
	return c.getPairwiseBalance.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetSimplifiedSettlements(ctx context.Context, req *connect.Request[api.SimplifyRequest]) (*connect.Response[api.GetSimplifiedSettlementsResponse], error) {
	return c.getSimplifiedSettlements.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetSimplificationStats(ctx context.Context, req *connect.Request[api.SimplifyRequest]) (*connect.Response[api.GetSimplificationStatsResponse], error) {
	return c.getSimplificationStats.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) SetRelationship(ctx context.Context, req *connect.Request[api.SetRelationshipRequest]) (*connect.Response[api.SetRelationshipResponse], error) {
	return c.setRelationship.CallUnary(ctx, req)
}

var _ LedgerServiceHandler = (*LedgerServiceClient)(nil)
