package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// CreateGoal persists a new savings goal.
func (s *SQLiteStorage) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGoal(goal); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.createGoalTx(ctx, tx, goal); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) createGoalTx(ctx context.Context, q queryable, goal *model.Goal) error {
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}
	if goal.StartDate.IsZero() {
		goal.StartDate = goal.CreatedAt
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO goals (
			id, user_id, name, target_amount, current_amount,
			reserved_amount, start_date, target_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		goal.ID,
		goal.UserID,
		goal.Name,
		goal.TargetAmount,
		goal.CurrentAmount,
		goal.ReservedAmount,
		goal.StartDate,
		goal.TargetDate,
		goal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal %q: %w", goal.Name, err)
	}
	return nil
}

// GetGoal retrieves a goal by ID scoped to a user.
func (s *SQLiteStorage) GetGoal(ctx context.Context, userID, id string) (*model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getGoalTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getGoalTx(ctx context.Context, q queryable, userID, id string) (*model.Goal, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount,
		       reserved_amount, start_date, target_date, created_at
		FROM goals
		WHERE user_id = ? AND id = ?
	`, userID, id)
	return scanGoal(row, id)
}

// GetGoalByName retrieves a goal by its unique per-user name.
func (s *SQLiteStorage) GetGoalByName(ctx context.Context, userID, name string) (*model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getGoalByNameTx(ctx, s.db, userID, name)
}

func (s *SQLiteStorage) getGoalByNameTx(ctx context.Context, q queryable, userID, name string) (*model.Goal, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount,
		       reserved_amount, start_date, target_date, created_at
		FROM goals
		WHERE user_id = ? AND name = ?
	`, userID, name)
	return scanGoal(row, name)
}

func scanGoal(row *sql.Row, key string) (*model.Goal, error) {
	var goal model.Goal
	err := row.Scan(
		&goal.ID,
		&goal.UserID,
		&goal.Name,
		&goal.TargetAmount,
		&goal.CurrentAmount,
		&goal.ReservedAmount,
		&goal.StartDate,
		&goal.TargetDate,
		&goal.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return &goal, nil
}

// ListGoals returns all goals for a user, newest target date last.
func (s *SQLiteStorage) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.listGoalsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) listGoalsTx(ctx context.Context, q queryable, userID string) ([]model.Goal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, name, target_amount, current_amount,
		       reserved_amount, start_date, target_date, created_at
		FROM goals
		WHERE user_id = ?
		ORDER BY target_date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []model.Goal
	for rows.Next() {
		var goal model.Goal
		if err := rows.Scan(
			&goal.ID,
			&goal.UserID,
			&goal.Name,
			&goal.TargetAmount,
			&goal.CurrentAmount,
			&goal.ReservedAmount,
			&goal.StartDate,
			&goal.TargetDate,
			&goal.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}
	return goals, nil
}

// UpdateGoalAmounts sets the current and reserved amounts for a goal.
func (s *SQLiteStorage) UpdateGoalAmounts(ctx context.Context, userID, id string, current, reserved float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateGoalAmountsTx(ctx, s.db, userID, id, current, reserved)
}

func (s *SQLiteStorage) updateGoalAmountsTx(ctx context.Context, q queryable, userID, id string, current, reserved float64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE goals SET current_amount = ?, reserved_amount = ?
		WHERE user_id = ? AND id = ?
	`, current, reserved, userID, id)
	if err != nil {
		return fmt.Errorf("failed to update goal amounts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("goal %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteGoal removes a goal.
func (s *SQLiteStorage) DeleteGoal(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deleteGoalTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) deleteGoalTx(ctx context.Context, q queryable, userID, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM goals WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("goal %s: %w", id, common.ErrNotFound)
	}
	return nil
}
