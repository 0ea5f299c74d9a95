package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/balance"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/api/apiconnect"
)

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// LedgerService implements the Connect LedgerService on top of the
// ledger store, the balance aggregator and the settlement recorder.
type LedgerService struct {
	store    storage.LedgerStore
	balances *balance.Aggregator
	recorder *settlement.Recorder
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(store storage.LedgerStore, balances *balance.Aggregator, recorder *settlement.Recorder) *LedgerService {
	return &LedgerService{store: store, balances: balances, recorder: recorder}
}

// PublicProcedures lists the procedures that need no authenticated caller.
func PublicProcedures() []string {
	return []string{api.ValidateSplitProcedure}
}

// requireUser returns the authenticated caller.
func requireUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("authentication required"))
	}
	return userID, nil
}

func permissionDenied(format string, args ...any) error {
	return connect.NewError(connect.CodePermissionDenied, fmt.Errorf(format, args...))
}

// toConnectError maps domain error kinds to Connect codes. Validation
// failures keep the complete list: in the message and one header value
// per failure.
func toConnectError(op string, err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	switch {
	case errors.Is(err, apperr.ErrValidation):
		cerr := connect.NewError(connect.CodeInvalidArgument, err)
		for _, msg := range validationMessages(err) {
			cerr.Meta().Add(api.ValidationErrorHeader, msg)
		}
		return cerr
	case errors.Is(err, apperr.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, apperr.ErrState):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, apperr.ErrConsistency):
		slog.Error(op+" hit a ledger inconsistency", "error", err)
		return connect.NewError(connect.CodeInternal, err)
	default:
		slog.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, err)
	}
}

func validationMessages(err error) []string {
	var list apperr.ValidationErrors
	if errors.As(err, &list) {
		return list.Messages()
	}
	var one apperr.ValidationError
	if errors.As(err, &one) {
		return []string{one.Error()}
	}
	return []string{err.Error()}
}

func validationList(err error) apperr.ValidationErrors {
	var list apperr.ValidationErrors
	if errors.As(err, &list) {
		return list
	}
	var one apperr.ValidationError
	if errors.As(err, &one) {
		return apperr.ValidationErrors{one}
	}
	return apperr.Invalid("", "request", "", "%s", err.Error())
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
