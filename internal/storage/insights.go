package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// SaveInsights persists a batch of insights in one transaction.
func (s *SQLiteStorage) SaveInsights(ctx context.Context, insights []model.Insight) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(insights) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveInsightsTx(ctx, tx, insights); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveInsightsTx(ctx context.Context, tx *sql.Tx, insights []model.Insight) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO insights (
			id, user_id, type, priority, title, message, category,
			amount, context, signal_at, is_read, is_dismissed, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range insights {
		insight := &insights[i]
		if err := validateInsight(insight); err != nil {
			return err
		}

		contextJSON := ""
		if len(insight.Context) > 0 {
			contextBytes, marshalErr := json.Marshal(insight.Context)
			if marshalErr != nil {
				return fmt.Errorf("failed to marshal insight context: %w", marshalErr)
			}
			contextJSON = string(contextBytes)
		}

		var amount any
		if insight.Amount != nil {
			amount = *insight.Amount
		}

		var signalAt any
		if !insight.SignalAt.IsZero() {
			signalAt = insight.SignalAt
		}

		_, err = stmt.ExecContext(ctx,
			insight.ID,
			insight.UserID,
			string(insight.Type),
			string(insight.Priority),
			insight.Title,
			insight.Message,
			insight.Category,
			amount,
			contextJSON,
			signalAt,
			insight.IsRead,
			insight.IsDismissed,
			insight.CreatedAt,
			insight.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert insight %s: %w", insight.ID, err)
		}
	}

	return nil
}

// GetActiveInsights returns unexpired, undismissed insights for a user,
// highest priority first.
func (s *SQLiteStorage) GetActiveInsights(ctx context.Context, userID string, now time.Time) ([]model.Insight, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getActiveInsightsTx(ctx, s.db, userID, now)
}

func (s *SQLiteStorage) getActiveInsightsTx(ctx context.Context, q queryable, userID string, now time.Time) ([]model.Insight, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, type, priority, title, message, category,
		       amount, context, signal_at, is_read, is_dismissed, created_at, expires_at
		FROM insights
		WHERE user_id = ? AND is_dismissed = 0 AND expires_at > ?
		ORDER BY created_at DESC
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanInsights(rows)
}

// GetInsightsSince returns all insights created at or after the given time,
// including read and dismissed ones. Used for dedup lookback.
func (s *SQLiteStorage) GetInsightsSince(ctx context.Context, userID string, since time.Time) ([]model.Insight, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getInsightsSinceTx(ctx, s.db, userID, since)
}

func (s *SQLiteStorage) getInsightsSinceTx(ctx context.Context, q queryable, userID string, since time.Time) ([]model.Insight, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, type, priority, title, message, category,
		       amount, context, signal_at, is_read, is_dismissed, created_at, expires_at
		FROM insights
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanInsights(rows)
}

// CountInsightsCreatedSince counts insights created at or after the given
// time. Used to enforce the daily cap across runs.
func (s *SQLiteStorage) CountInsightsCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	return s.countInsightsCreatedSinceTx(ctx, s.db, userID, since)
}

func (s *SQLiteStorage) countInsightsCreatedSinceTx(ctx context.Context, q queryable, userID string, since time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM insights WHERE user_id = ? AND created_at >= ?
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count insights: %w", err)
	}
	return count, nil
}

// MarkInsightRead flags an insight as read.
func (s *SQLiteStorage) MarkInsightRead(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.markInsightReadTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) markInsightReadTx(ctx context.Context, q queryable, userID, id string) error {
	return s.setInsightFlag(ctx, q, userID, id, "is_read")
}

// DismissInsight flags an insight as dismissed so it no longer surfaces.
func (s *SQLiteStorage) DismissInsight(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.dismissInsightTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) dismissInsightTx(ctx context.Context, q queryable, userID, id string) error {
	return s.setInsightFlag(ctx, q, userID, id, "is_dismissed")
}

func (s *SQLiteStorage) setInsightFlag(ctx context.Context, q queryable, userID, id, column string) error {
	// column comes from a fixed internal set, never user input
	result, err := q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE insights SET %s = 1 WHERE user_id = ? AND id = ?`, column),
		userID, id)
	if err != nil {
		return fmt.Errorf("failed to update insight: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("insight %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteExpiredInsights removes insights that expired before the given time.
func (s *SQLiteStorage) DeleteExpiredInsights(ctx context.Context, before time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.deleteExpiredInsightsTx(ctx, s.db, before)
}

func (s *SQLiteStorage) deleteExpiredInsightsTx(ctx context.Context, q queryable, before time.Time) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM insights WHERE expires_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired insights: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}
	return affected, nil
}

func scanInsights(rows *sql.Rows) ([]model.Insight, error) {
	var insights []model.Insight
	for rows.Next() {
		var insight model.Insight
		var insightType, priority string
		var amount sql.NullFloat64
		var contextJSON sql.NullString
		var signalAt sql.NullTime

		err := rows.Scan(
			&insight.ID,
			&insight.UserID,
			&insightType,
			&priority,
			&insight.Title,
			&insight.Message,
			&insight.Category,
			&amount,
			&contextJSON,
			&signalAt,
			&insight.IsRead,
			&insight.IsDismissed,
			&insight.CreatedAt,
			&insight.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}

		insight.Type = model.InsightType(insightType)
		insight.Priority = model.InsightPriority(priority)
		if amount.Valid {
			v := amount.Float64
			insight.Amount = &v
		}
		if signalAt.Valid {
			insight.SignalAt = signalAt.Time
		}
		if contextJSON.Valid && contextJSON.String != "" {
			if err := json.Unmarshal([]byte(contextJSON.String), &insight.Context); err != nil {
				// Log but don't fail on JSON parse error
				slog.Warn("Failed to parse insight context JSON", "error", err, "insight", insight.ID)
			}
		}

		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate insights: %w", err)
	}
	return insights, nil
}
