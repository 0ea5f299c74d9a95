package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/balance"
	"github.com/mmynk/settleup/internal/cache"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/api/apiconnect"
)

type testServer struct {
	client *apiconnect.LedgerServiceClient
	jwt    *auth.JWTManager
}

// setupTestServer serves the LedgerService over HTTP with the production
// interceptor chain and a throwaway SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	balances := balance.NewAggregator(store, cache.NewMemory())
	recorder := settlement.NewRecorder(store, balances)
	svc := NewLedgerService(store, balances, recorder)

	jwtManager := auth.NewJWTManager("test-secret-key-for-ledger", time.Hour)
	path, handler := apiconnect.NewLedgerServiceHandler(svc,
		connect.WithInterceptors(
			middleware.LoggingInterceptor(),
			middleware.RequireAuth(jwtManager, PublicProcedures()...),
		),
	)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{
		client: apiconnect.NewLedgerServiceClient(http.DefaultClient, server.URL),
		jwt:    jwtManager,
	}
}

// as builds a request authenticated as userID.
func as[T any](t *testing.T, ts *testServer, userID string, msg *T) *connect.Request[T] {
	t.Helper()
	token, err := ts.jwt.Generate(userID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}

func (ts *testServer) createGroup(t *testing.T, owner, name string, members ...string) string {
	t.Helper()
	resp, err := ts.client.CreateGroup(context.Background(), as(t, ts, owner, &api.CreateGroupRequest{
		Name:    name,
		Members: members,
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return resp.Msg.Group.ID
}

func (ts *testServer) createExpense(t *testing.T, payer string, req *api.CreateExpenseRequest) api.Expense {
	t.Helper()
	resp, err := ts.client.CreateExpense(context.Background(), as(t, ts, payer, req))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return resp.Msg.Expense
}

func (ts *testServer) pair(t *testing.T, caller, other string) api.PairwiseBalance {
	t.Helper()
	resp, err := ts.client.GetPairwiseBalance(context.Background(), as(t, ts, caller, &api.GetPairwiseBalanceRequest{
		UserB: other,
	}))
	if err != nil {
		t.Fatalf("GetPairwiseBalance failed: %v", err)
	}
	return resp.Msg.Balance
}

func TestValidateSplitIsPublic(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp, err := ts.client.ValidateSplit(ctx, connect.NewRequest(&api.ValidateSplitRequest{
		Total: "30.00",
		Split: api.SplitSpec{Strategy: api.StrategyEqual, Participants: []string{"alice", "bob", "carol"}},
	}))
	if err != nil {
		t.Fatalf("ValidateSplit failed: %v", err)
	}
	if !resp.Msg.Valid {
		t.Fatalf("expected valid split, got errors %v", resp.Msg.Errors)
	}
	if len(resp.Msg.Shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(resp.Msg.Shares))
	}
	for _, s := range resp.Msg.Shares {
		if s.Share != "10.00" {
			t.Errorf("expected share 10.00 for %s, got %s", s.UserID, s.Share)
		}
	}

	tests := []struct {
		name string
		req  *api.ValidateSplitRequest
	}{
		{
			name: "percentages not summing to 100",
			req: &api.ValidateSplitRequest{Total: "30.00", Split: api.SplitSpec{
				Strategy:     api.StrategyPercentage,
				Participants: []string{"alice", "bob"},
				Percentages:  []string{"60", "30"},
			}},
		},
		{
			name: "unparseable total",
			req: &api.ValidateSplitRequest{Total: "thirty", Split: api.SplitSpec{
				Participants: []string{"alice", "bob"},
			}},
		},
		{
			name: "unknown strategy",
			req: &api.ValidateSplitRequest{Total: "30.00", Split: api.SplitSpec{
				Strategy:     "by-vibes",
				Participants: []string{"alice", "bob"},
			}},
		},
		{
			name: "item above maximum amount",
			req: &api.ValidateSplitRequest{Total: "55000000.00", Split: api.SplitSpec{
				Strategy:     api.StrategyItemized,
				Participants: []string{"alice", "bob"},
				Items:        []api.Item{{Description: "Yacht", Amount: "5000000000.00", AssignedTo: []string{"alice", "bob"}}},
			}},
		},
		{
			name: "too many decimals",
			req: &api.ValidateSplitRequest{Total: "30.001", Split: api.SplitSpec{
				Participants: []string{"alice", "bob"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ts.client.ValidateSplit(ctx, connect.NewRequest(tt.req))
			if err != nil {
				t.Fatalf("ValidateSplit failed: %v", err)
			}
			if resp.Msg.Valid {
				t.Fatal("expected split to be invalid")
			}
			if len(resp.Msg.Errors) == 0 {
				t.Fatal("expected at least one field error")
			}
			if len(resp.Msg.Shares) != 0 {
				t.Errorf("expected no shares for an invalid split, got %d", len(resp.Msg.Shares))
			}
		})
	}
}

func TestUnauthenticatedCallsAreRejected(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	_, err := ts.client.CreateGroup(ctx, connect.NewRequest(&api.CreateGroupRequest{Name: "Roommates"}))
	assertCode(t, err, connect.CodeUnauthenticated)

	req := connect.NewRequest(&api.CreateGroupRequest{Name: "Roommates"})
	req.Header().Set("Authorization", "Bearer not-a-token")
	_, err = ts.client.CreateGroup(ctx, req)
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestCreateExpenseReportsEveryValidationFailure(t *testing.T) {
	ts := setupTestServer(t)
	groupID := ts.createGroup(t, "alice", "Trip", "bob")

	_, err := ts.client.CreateExpense(context.Background(), as(t, ts, "alice", &api.CreateExpenseRequest{
		GroupID: groupID,
		Amount:  "90.00",
		Split: api.SplitSpec{
			Strategy:     api.StrategyEqual,
			Participants: []string{"alice", "bob", "dave", "erin"},
		},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *connect.Error, got %T", err)
	}
	if got := cerr.Meta().Values(api.ValidationErrorHeader); len(got) != 2 {
		t.Fatalf("expected 2 validation errors (dave, erin), got %d: %v", len(got), got)
	}
}

func TestExpenseLifecycleUpdatesBalances(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	groupID := ts.createGroup(t, "alice", "Roommates", "bob", "carol")

	e := ts.createExpense(t, "alice", &api.CreateExpenseRequest{
		GroupID:     groupID,
		Amount:      "90.00",
		Split:       api.SplitSpec{Participants: []string{"alice", "bob", "carol"}},
		Category:    "groceries",
		Description: "Weekly shop",
	})
	if e.Payer != "alice" {
		t.Errorf("expected payer to default to caller, got %s", e.Payer)
	}
	if !e.Active {
		t.Error("expected new expense to be active")
	}

	groupResp, err := ts.client.GetGroupBalances(ctx, as(t, ts, "bob", &api.GetGroupBalancesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	nets := make(map[string]string)
	for _, m := range groupResp.Msg.Members {
		nets[m.UserID] = m.NetBalance
	}
	want := map[string]string{"alice": "60.00", "bob": "-30.00", "carol": "-30.00"}
	for user, net := range want {
		if nets[user] != net {
			t.Errorf("expected %s net balance %s, got %s", user, net, nets[user])
		}
	}

	b := ts.pair(t, "alice", "bob")
	if b.Amount != "30.00" || b.Direction != "b_owes_a" {
		t.Errorf("expected bob to owe alice 30.00, got %s (%s)", b.Amount, b.Direction)
	}
	if b.Summary != "bob owes alice 30.00" {
		t.Errorf("unexpected summary %q", b.Summary)
	}

	// Bob reads the same pair from the other side.
	flipped := ts.pair(t, "bob", "alice")
	if flipped.Amount != "-30.00" || flipped.Direction != "a_owes_b" {
		t.Errorf("expected -30.00 from bob's side, got %s (%s)", flipped.Amount, flipped.Direction)
	}

	_, err = ts.client.UpdateExpense(ctx, as(t, ts, "bob", &api.UpdateExpenseRequest{
		ID:     e.ID,
		Payer:  "alice",
		Amount: "60.00",
		Split:  api.SplitSpec{Participants: []string{"alice", "bob", "carol"}},
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if b := ts.pair(t, "alice", "bob"); b.Amount != "20.00" {
		t.Errorf("expected 20.00 after update, got %s", b.Amount)
	}

	if _, err := ts.client.DeleteExpense(ctx, as(t, ts, "carol", &api.DeleteExpenseRequest{ID: e.ID})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	// Deleting twice is a no-op.
	if _, err := ts.client.DeleteExpense(ctx, as(t, ts, "carol", &api.DeleteExpenseRequest{ID: e.ID})); err != nil {
		t.Fatalf("second DeleteExpense failed: %v", err)
	}

	verify, err := ts.client.GetPairwiseBalance(ctx, as(t, ts, "alice", &api.GetPairwiseBalanceRequest{
		UserB:     "bob",
		Recompute: true,
	}))
	if err != nil {
		t.Fatalf("GetPairwiseBalance failed: %v", err)
	}
	if verify.Msg.Drifted {
		t.Error("expected incremental updates to match a recompute")
	}
	if verify.Msg.Balance.Direction != "settled" {
		t.Errorf("expected settled after delete, got %s", verify.Msg.Balance.Direction)
	}

	got, err := ts.client.GetExpense(ctx, as(t, ts, "alice", &api.GetExpenseRequest{ID: e.ID}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.Msg.Expense.Active {
		t.Error("expected deleted expense to be inactive")
	}

	_, err = ts.client.UpdateExpense(ctx, as(t, ts, "alice", &api.UpdateExpenseRequest{
		ID:     e.ID,
		Payer:  "alice",
		Amount: "10.00",
		Split:  api.SplitSpec{Participants: []string{"alice", "bob"}},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestExpenseAccessIsLimitedToParticipants(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	e := ts.createExpense(t, "alice", &api.CreateExpenseRequest{
		Amount: "20.00",
		Split:  api.SplitSpec{Participants: []string{"alice", "bob"}},
	})

	_, err := ts.client.GetExpense(ctx, as(t, ts, "mallory", &api.GetExpenseRequest{ID: e.ID}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = ts.client.DeleteExpense(ctx, as(t, ts, "mallory", &api.DeleteExpenseRequest{ID: e.ID}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = ts.client.GetExpense(ctx, as(t, ts, "alice", &api.GetExpenseRequest{ID: "missing"}))
	assertCode(t, err, connect.CodeNotFound)

	// Recording an expense for other people only is not allowed.
	_, err = ts.client.CreateExpense(ctx, as(t, ts, "mallory", &api.CreateExpenseRequest{
		Payer:  "alice",
		Amount: "20.00",
		Split:  api.SplitSpec{Participants: []string{"alice", "bob"}},
	}))
	assertCode(t, err, connect.CodePermissionDenied)

	groupID := ts.createGroup(t, "alice", "Private", "bob")
	_, err = ts.client.GetGroupBalances(ctx, as(t, ts, "mallory", &api.GetGroupBalancesRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = ts.client.GetPairwiseBalance(ctx, as(t, ts, "mallory", &api.GetPairwiseBalanceRequest{
		UserA: "alice",
		UserB: "bob",
	}))
	assertCode(t, err, connect.CodePermissionDenied)
}

func TestSettlementFlow(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	if _, err := ts.client.SetRelationship(ctx, as(t, ts, "alice", &api.SetRelationshipRequest{
		Friend: "bob",
		Status: "accepted",
	})); err != nil {
		t.Fatalf("SetRelationship failed: %v", err)
	}
	ts.createExpense(t, "alice", &api.CreateExpenseRequest{
		Amount: "40.00",
		Split:  api.SplitSpec{Participants: []string{"alice", "bob"}},
	})

	recorded, err := ts.client.RecordSettlement(ctx, as(t, ts, "bob", &api.RecordSettlementRequest{
		Recipient: "alice",
		Amount:    "15.00",
		Note:      "cash",
	}))
	if err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}
	s := recorded.Msg.Settlement
	if s.Status != "pending" || s.Payer != "bob" || s.Recipient != "alice" {
		t.Fatalf("unexpected settlement %+v", s)
	}

	// Pending settlements do not move balances.
	if b := ts.pair(t, "alice", "bob"); b.Amount != "20.00" {
		t.Errorf("expected 20.00 while pending, got %s", b.Amount)
	}

	_, err = ts.client.ConfirmSettlement(ctx, as(t, ts, "bob", &api.ConfirmSettlementRequest{ID: s.ID}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	confirmed, err := ts.client.ConfirmSettlement(ctx, as(t, ts, "alice", &api.ConfirmSettlementRequest{ID: s.ID}))
	if err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}
	if confirmed.Msg.Settlement.Status != "confirmed" || confirmed.Msg.Settlement.ConfirmedBy != "alice" {
		t.Errorf("unexpected confirmed settlement %+v", confirmed.Msg.Settlement)
	}
	if b := ts.pair(t, "alice", "bob"); b.Amount != "5.00" {
		t.Errorf("expected 5.00 after confirmation, got %s", b.Amount)
	}

	// Confirming again is idempotent and does not apply the payment twice.
	if _, err := ts.client.ConfirmSettlement(ctx, as(t, ts, "alice", &api.ConfirmSettlementRequest{ID: s.ID})); err != nil {
		t.Fatalf("repeated ConfirmSettlement failed: %v", err)
	}
	if b := ts.pair(t, "alice", "bob"); b.Amount != "5.00" {
		t.Errorf("expected 5.00 after repeated confirmation, got %s", b.Amount)
	}

	_, err = ts.client.DisputeSettlement(ctx, as(t, ts, "bob", &api.DisputeSettlementRequest{ID: s.ID, Reason: "oops"}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	_, err = ts.client.ConfirmSettlement(ctx, as(t, ts, "alice", &api.ConfirmSettlementRequest{ID: "missing"}))
	assertCode(t, err, connect.CodeNotFound)

	list, err := ts.client.ListSettlements(ctx, as(t, ts, "bob", &api.ListSettlementsRequest{Status: "confirmed"}))
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(list.Msg.Settlements) != 1 || list.Msg.Settlements[0].ID != s.ID {
		t.Errorf("expected the confirmed settlement, got %+v", list.Msg.Settlements)
	}

	_, err = ts.client.ListSettlements(ctx, as(t, ts, "bob", &api.ListSettlementsRequest{Status: "lost"}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = ts.client.ListSettlements(ctx, as(t, ts, "mallory", &api.ListSettlementsRequest{Participant: "alice"}))
	assertCode(t, err, connect.CodePermissionDenied)
}

func TestDisputedSettlementLeavesBalances(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	groupID := ts.createGroup(t, "alice", "Flat", "bob")
	ts.createExpense(t, "alice", &api.CreateExpenseRequest{
		GroupID: groupID,
		Amount:  "50.00",
		Split:   api.SplitSpec{Participants: []string{"alice", "bob"}},
	})

	recorded, err := ts.client.RecordSettlement(ctx, as(t, ts, "bob", &api.RecordSettlementRequest{
		GroupID:   groupID,
		Recipient: "alice",
		Amount:    "25.00",
	}))
	if err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}

	disputed, err := ts.client.DisputeSettlement(ctx, as(t, ts, "alice", &api.DisputeSettlementRequest{
		ID:     recorded.Msg.Settlement.ID,
		Reason: "never arrived",
	}))
	if err != nil {
		t.Fatalf("DisputeSettlement failed: %v", err)
	}
	if disputed.Msg.Settlement.Status != "disputed" || disputed.Msg.Settlement.DisputeReason != "never arrived" {
		t.Errorf("unexpected disputed settlement %+v", disputed.Msg.Settlement)
	}

	_, err = ts.client.ConfirmSettlement(ctx, as(t, ts, "alice", &api.ConfirmSettlementRequest{ID: recorded.Msg.Settlement.ID}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	if b := ts.pair(t, "alice", "bob"); b.Amount != "25.00" {
		t.Errorf("expected 25.00 after dispute, got %s", b.Amount)
	}

	list, err := ts.client.ListSettlements(ctx, as(t, ts, "bob", &api.ListSettlementsRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(list.Msg.Settlements) != 1 {
		t.Errorf("expected 1 settlement in group, got %d", len(list.Msg.Settlements))
	}
}

func TestPeerSettlementNeedsRelationship(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	_, err := ts.client.RecordSettlement(ctx, as(t, ts, "carol", &api.RecordSettlementRequest{
		Recipient: "alice",
		Amount:    "10.00",
	}))
	assertCode(t, err, connect.CodeNotFound)

	if _, err := ts.client.SetRelationship(ctx, as(t, ts, "carol", &api.SetRelationshipRequest{
		Friend: "alice",
		Status: "pending",
	})); err != nil {
		t.Fatalf("SetRelationship failed: %v", err)
	}
	_, err = ts.client.RecordSettlement(ctx, as(t, ts, "carol", &api.RecordSettlementRequest{
		Recipient: "alice",
		Amount:    "10.00",
	}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	_, err = ts.client.RecordSettlement(ctx, as(t, ts, "carol", &api.RecordSettlementRequest{
		Recipient: "alice",
		Amount:    "-10.00",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestSimplification(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	groupID := ts.createGroup(t, "alice", "Chain", "bob", "carol")

	// bob owes alice 30, carol owes bob 30.
	ts.createExpense(t, "alice", &api.CreateExpenseRequest{
		GroupID: groupID,
		Amount:  "30.00",
		Split:   api.SplitSpec{Participants: []string{"bob"}},
	})
	ts.createExpense(t, "bob", &api.CreateExpenseRequest{
		GroupID: groupID,
		Amount:  "30.00",
		Split:   api.SplitSpec{Participants: []string{"carol"}},
	})

	resp, err := ts.client.GetSimplifiedSettlements(ctx, as(t, ts, "carol", &api.SimplifyRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetSimplifiedSettlements failed: %v", err)
	}
	if len(resp.Msg.Original) != 2 {
		t.Errorf("expected 2 original debts, got %d", len(resp.Msg.Original))
	}
	if len(resp.Msg.Simplified) != 1 {
		t.Fatalf("expected 1 simplified transfer, got %d", len(resp.Msg.Simplified))
	}
	tr := resp.Msg.Simplified[0]
	if tr.From != "carol" || tr.To != "alice" || tr.Amount != "30.00" {
		t.Errorf("expected carol -> alice 30.00, got %s -> %s %s", tr.From, tr.To, tr.Amount)
	}
	if resp.Msg.Stats.TransactionsSaved != 1 {
		t.Errorf("expected 1 transaction saved, got %d", resp.Msg.Stats.TransactionsSaved)
	}

	stats, err := ts.client.GetSimplificationStats(ctx, as(t, ts, "alice", &api.SimplifyRequest{
		Participants: []string{"alice", "bob", "carol"},
	}))
	if err != nil {
		t.Fatalf("GetSimplificationStats failed: %v", err)
	}
	if stats.Msg.Stats.OriginalCount != 2 || stats.Msg.Stats.SimplifiedCount != 1 {
		t.Errorf("unexpected stats %+v", stats.Msg.Stats)
	}

	_, err = ts.client.GetSimplifiedSettlements(ctx, as(t, ts, "alice", &api.SimplifyRequest{
		GroupID:      groupID,
		Participants: []string{"alice", "bob"},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = ts.client.GetSimplifiedSettlements(ctx, as(t, ts, "mallory", &api.SimplifyRequest{
		Participants: []string{"alice", "bob"},
	}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = ts.client.GetSimplifiedSettlements(ctx, as(t, ts, "alice", &api.SimplifyRequest{
		Participants: []string{"alice"},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestCreateGroupAndRelationship(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	_, err := ts.client.CreateGroup(ctx, as(t, ts, "alice", &api.CreateGroupRequest{Name: "   "}))
	assertCode(t, err, connect.CodeInvalidArgument)

	resp, err := ts.client.CreateGroup(ctx, as(t, ts, "alice", &api.CreateGroupRequest{
		Name:    "Roommates",
		Members: []string{"bob", "bob", "", "alice"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	g := resp.Msg.Group
	if g.ID == "" {
		t.Error("expected group ID to be set")
	}
	if len(g.Members) != 2 || g.Members[0] != "alice" || g.Members[1] != "bob" {
		t.Errorf("expected members [alice bob], got %v", g.Members)
	}

	_, err = ts.client.SetRelationship(ctx, as(t, ts, "bob", &api.SetRelationshipRequest{
		Friend: "bob",
		Status: "maybe",
	}))
	assertCode(t, err, connect.CodeInvalidArgument)
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		if got := cerr.Meta().Values(api.ValidationErrorHeader); len(got) != 2 {
			t.Errorf("expected 2 validation errors, got %v", got)
		}
	}

	rel, err := ts.client.SetRelationship(ctx, as(t, ts, "bob", &api.SetRelationshipRequest{
		Friend: "alice",
		Status: "accepted",
	}))
	if err != nil {
		t.Fatalf("SetRelationship failed: %v", err)
	}
	r := rel.Msg.Relationship
	if r.UserA != "alice" || r.UserB != "bob" || r.Status != "accepted" {
		t.Errorf("unexpected relationship %+v", r)
	}
}
