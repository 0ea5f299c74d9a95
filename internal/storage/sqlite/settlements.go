package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/internal/storage"
)

const settlementColumns = `id, group_id, payer, recipient, amount, status, expense_ids, note, created_at,
	confirmed_at, confirmed_by, disputed_at, disputed_by, dispute_reason`

// CreateSettlement persists a new settlement to the database.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	// Generate ID if not set
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = now()
	}

	expenseIDs, err := encodeIDs(settlement.ExpenseIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.GroupID, settlement.Payer, settlement.Recipient, int64(settlement.Amount),
		string(settlement.Status), expenseIDs, nullString(settlement.Note), settlement.CreatedAt.Unix(),
		nullUnix(settlement.ConfirmedAt), nullString(settlement.ConfirmedBy),
		nullUnix(settlement.DisputedAt), nullString(settlement.DisputedBy), nullString(settlement.DisputeReason),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, settlementID)
	settlement, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("settlement", settlementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// TransitionSettlement moves a pending settlement to its new status. The
// UPDATE only matches a pending row, so of two racing transitions exactly
// one succeeds.
func (s *SQLiteStore) TransitionSettlement(ctx context.Context, settlement *models.Settlement) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET status = ?, confirmed_at = ?, confirmed_by = ?,
		 disputed_at = ?, disputed_by = ?, dispute_reason = ?
		 WHERE id = ? AND status = ?`,
		string(settlement.Status),
		nullUnix(settlement.ConfirmedAt), nullString(settlement.ConfirmedBy),
		nullUnix(settlement.DisputedAt), nullString(settlement.DisputedBy), nullString(settlement.DisputeReason),
		settlement.ID, string(models.SettlementPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// Nothing matched: either the settlement is gone or it already moved on.
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM settlements WHERE id = ?", settlement.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("settlement", settlement.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to check settlement existence: %w", err)
	}
	return storage.ErrConflict
}

// FetchConfirmedSettlements returns confirmed settlements touching any of participants.
func (s *SQLiteStore) FetchConfirmedSettlements(ctx context.Context, participants []string, filter storage.Filter) ([]*models.Settlement, error) {
	where, args := settlementWhere(filter)
	where = append(where, "status = ?")
	args = append(args, string(models.SettlementConfirmed))
	if len(participants) > 0 {
		ph := placeholders(len(participants))
		where = append(where, "(payer IN ("+ph+") OR recipient IN ("+ph+"))")
		args = append(args, toAny(participants)...)
		args = append(args, toAny(participants)...)
	}
	return s.querySettlements(ctx, where, args)
}

// ListSettlements lists settlements in creation order.
func (s *SQLiteStore) ListSettlements(ctx context.Context, q storage.SettlementQuery) ([]*models.Settlement, error) {
	where, args := settlementWhere(q.Filter)
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Participant != "" {
		where = append(where, "(payer = ? OR recipient = ?)")
		args = append(args, q.Participant, q.Participant)
	}
	return s.querySettlements(ctx, where, args)
}

func settlementWhere(filter storage.Filter) ([]string, []any) {
	where := []string{"1 = 1"}
	var args []any
	if filter.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.Unix())
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, filter.To.Unix())
	}
	return where, args
}

func (s *SQLiteStore) querySettlements(ctx context.Context, where []string, args []any) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	settlements := make([]*models.Settlement, 0)
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

func scanSettlement(row rowScanner) (*models.Settlement, error) {
	var (
		settlement                            models.Settlement
		amount, createdAt                     int64
		status, expenseIDs                    string
		note, confirmedBy, disputedBy, reason sql.NullString
		confirmedAt, disputedAt               sql.NullInt64
	)
	if err := row.Scan(&settlement.ID, &settlement.GroupID, &settlement.Payer, &settlement.Recipient,
		&amount, &status, &expenseIDs, &note, &createdAt,
		&confirmedAt, &confirmedBy, &disputedAt, &disputedBy, &reason); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(expenseIDs), &settlement.ExpenseIDs); err != nil {
		return nil, fmt.Errorf("failed to decode expense ids: %w", err)
	}
	settlement.Amount = money.Amount(amount)
	settlement.Status = models.SettlementStatus(status)
	settlement.Note = note.String
	settlement.CreatedAt = fromUnix(createdAt)
	settlement.ConfirmedAt = scanNullUnix(confirmedAt)
	settlement.ConfirmedBy = confirmedBy.String
	settlement.DisputedAt = scanNullUnix(disputedAt)
	settlement.DisputedBy = disputedBy.String
	settlement.DisputeReason = reason.String
	return &settlement, nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode expense ids: %w", err)
	}
	return string(b), nil
}
