package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/internal/storage"
)

const expenseColumns = `id, group_id, payer, amount, split, category, description, date, active, created_at, updated_at`

// CreateExpense persists a new expense together with its participant index.
func (s *SQLiteStore) CreateExpense(ctx context.Context, e *models.SharedExpense) error {
	// Generate ID if not set
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	e.UpdatedAt = e.CreatedAt
	if e.Date.IsZero() {
		e.Date = e.CreatedAt
	}

	split, err := models.EncodeSplit(e.Split, e.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode split: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GroupID, e.Payer, int64(e.Amount), string(split), e.Category, e.Description,
		e.Date.Unix(), e.Active, e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertParticipants(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID, including soft-deleted ones.
func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (*models.SharedExpense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("expense", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// UpdateExpense overwrites an expense and rebuilds its participant index.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, e *models.SharedExpense) error {
	split, err := models.EncodeSplit(e.Split, e.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode split: %w", err)
	}
	e.UpdatedAt = now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET group_id = ?, payer = ?, amount = ?, split = ?, category = ?, description = ?,
		 date = ?, active = ?, updated_at = ? WHERE id = ?`,
		e.GroupID, e.Payer, int64(e.Amount), string(split), e.Category, e.Description,
		e.Date.Unix(), e.Active, e.UpdatedAt.Unix(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("expense", e.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_participants WHERE expense_id = ?", e.ID); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SoftDeleteExpense marks an expense inactive. The row is kept for history.
func (s *SQLiteStore) SoftDeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET active = 0, updated_at = ? WHERE id = ?",
		now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("expense", id)
	}
	return nil
}

// MarkParticipantSettled rewrites only the split column, and only while it
// still holds the value read, so a concurrent edit or soft delete is never
// overwritten. A lost race is retried against the new value.
func (s *SQLiteStore) MarkParticipantSettled(ctx context.Context, expenseID, userID string, at time.Time) error {
	for attempt := 0; attempt < maxMarkAttempts; attempt++ {
		var raw string
		err := s.db.QueryRowContext(ctx, "SELECT split FROM expenses WHERE id = ?", expenseID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("expense", expenseID)
		}
		if err != nil {
			return fmt.Errorf("failed to get expense: %w", err)
		}

		strategy, participants, err := models.DecodeSplit([]byte(raw))
		if err != nil {
			return fmt.Errorf("failed to decode split: %w", err)
		}
		e := models.SharedExpense{Split: strategy, Participants: participants}
		if !e.MarkSettled(userID, at) {
			return nil
		}
		split, err := models.EncodeSplit(e.Split, e.Participants)
		if err != nil {
			return fmt.Errorf("failed to encode split: %w", err)
		}

		res, err := s.db.ExecContext(ctx,
			"UPDATE expenses SET split = ?, updated_at = ? WHERE id = ? AND split = ?",
			string(split), now().Unix(), expenseID, raw,
		)
		if err != nil {
			return fmt.Errorf("failed to mark participant settled: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
	}
	return fmt.Errorf("expense %s: %w", expenseID, storage.ErrConflict)
}

const maxMarkAttempts = 3

// FetchSharedExpenses returns active expenses involving any of participants.
func (s *SQLiteStore) FetchSharedExpenses(ctx context.Context, participants []string, filter storage.Filter) ([]*models.SharedExpense, error) {
	where := []string{"active = 1"}
	var args []any

	if len(participants) > 0 {
		ph := placeholders(len(participants))
		where = append(where, `(payer IN (`+ph+`) OR id IN (SELECT expense_id FROM expense_participants WHERE user_id IN (`+ph+`)))`)
		args = append(args, toAny(participants)...)
		args = append(args, toAny(participants)...)
	}
	if filter.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if !filter.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.From.Unix())
	}
	if !filter.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, filter.To.Unix())
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE `+strings.Join(where, " AND ")+` ORDER BY date, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*models.SharedExpense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, e *models.SharedExpense) error {
	for _, p := range e.Participants {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, user_id) VALUES (?, ?)",
			e.ID, p.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.SharedExpense, error) {
	var (
		e                          models.SharedExpense
		amount                     int64
		split                      string
		date, createdAt, updatedAt int64
	)
	if err := row.Scan(&e.ID, &e.GroupID, &e.Payer, &amount, &split, &e.Category, &e.Description,
		&date, &e.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	strategy, participants, err := models.DecodeSplit([]byte(split))
	if err != nil {
		return nil, err
	}
	e.Amount = money.Amount(amount)
	e.Split = strategy
	e.Participants = participants
	e.Date = fromUnix(date)
	e.CreatedAt = fromUnix(createdAt)
	e.UpdatedAt = fromUnix(updatedAt)
	return &e, nil
}
