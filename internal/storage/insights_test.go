package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

func createTestInsight(userID, id string, insightType model.InsightType, category string, createdAt time.Time) model.Insight {
	return model.Insight{
		ID:        id,
		UserID:    userID,
		Type:      insightType,
		Priority:  model.PriorityNormal,
		Title:     "Test insight",
		Message:   "Something noteworthy happened.",
		Category:  category,
		SignalAt:  createdAt,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.AddDate(0, 0, 7),
	}
}

func TestSQLiteStorage_SaveInsights_RoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	amount := 15.99
	insight := createTestInsight("u1", "ins-1", model.InsightSubscriptionAlert, "Entertainment", now)
	insight.Amount = &amount
	insight.Context = map[string]any{"merchant": "Streamflix", "frequency": "monthly"}

	if err := store.SaveInsights(ctx, []model.Insight{insight}); err != nil {
		t.Fatalf("SaveInsights() error = %v", err)
	}

	active, err := store.GetActiveInsights(ctx, "u1", now)
	if err != nil {
		t.Fatalf("GetActiveInsights() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("Expected 1 active insight, got %d", len(active))
	}

	got := active[0]
	if got.Type != model.InsightSubscriptionAlert {
		t.Errorf("Expected subscription_alert, got %s", got.Type)
	}
	if got.Amount == nil || *got.Amount != 15.99 {
		t.Errorf("Expected amount 15.99, got %v", got.Amount)
	}
	if got.Context["merchant"] != "Streamflix" {
		t.Errorf("Expected context merchant Streamflix, got %v", got.Context["merchant"])
	}
}

func TestSQLiteStorage_GetActiveInsights_ExcludesExpiredAndDismissed(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	live := createTestInsight("u1", "ins-live", model.InsightAnomaly, "Dining", now.AddDate(0, 0, -1))
	expired := createTestInsight("u1", "ins-expired", model.InsightSpendingAlert, "Dining", now.AddDate(0, 0, -30))
	dismissed := createTestInsight("u1", "ins-dismissed", model.InsightGoalProgress, "", now.AddDate(0, 0, -2))

	if err := store.SaveInsights(ctx, []model.Insight{live, expired, dismissed}); err != nil {
		t.Fatalf("SaveInsights() error = %v", err)
	}
	if err := store.DismissInsight(ctx, "u1", "ins-dismissed"); err != nil {
		t.Fatalf("DismissInsight() error = %v", err)
	}

	active, err := store.GetActiveInsights(ctx, "u1", now)
	if err != nil {
		t.Fatalf("GetActiveInsights() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != "ins-live" {
		t.Errorf("Expected only ins-live to be active, got %d insights", len(active))
	}
}

func TestSQLiteStorage_CountInsightsCreatedSince(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	today := createTestInsight("u1", "ins-a", model.InsightAnomaly, "Dining", now.Add(-2*time.Hour))
	yesterday := createTestInsight("u1", "ins-b", model.InsightSpendingAlert, "Travel", now.Add(-26*time.Hour))
	otherUser := createTestInsight("u2", "ins-c", model.InsightAnomaly, "Dining", now.Add(-1*time.Hour))

	if err := store.SaveInsights(ctx, []model.Insight{today, yesterday, otherUser}); err != nil {
		t.Fatalf("SaveInsights() error = %v", err)
	}

	midnight := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	count, err := store.CountInsightsCreatedSince(ctx, "u1", midnight)
	if err != nil {
		t.Fatalf("CountInsightsCreatedSince() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 insight today for u1, got %d", count)
	}
}

func TestSQLiteStorage_MarkInsightRead(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	insight := createTestInsight("u1", "ins-1", model.InsightCelebration, "", now)
	if err := store.SaveInsights(ctx, []model.Insight{insight}); err != nil {
		t.Fatalf("SaveInsights() error = %v", err)
	}

	if err := store.MarkInsightRead(ctx, "u1", "ins-1"); err != nil {
		t.Fatalf("MarkInsightRead() error = %v", err)
	}

	active, err := store.GetActiveInsights(ctx, "u1", now)
	if err != nil {
		t.Fatalf("GetActiveInsights() error = %v", err)
	}
	if len(active) != 1 || !active[0].IsRead {
		t.Error("Expected insight to be marked read and still active")
	}

	// Unknown id and wrong user both report not found
	if err := store.MarkInsightRead(ctx, "u1", "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.MarkInsightRead(ctx, "u2", "ins-1"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for wrong user, got %v", err)
	}
}

func TestSQLiteStorage_DeleteExpiredInsights(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	old := createTestInsight("u1", "ins-old", model.InsightAnomaly, "Dining", now.AddDate(0, 0, -60))
	fresh := createTestInsight("u1", "ins-fresh", model.InsightAnomaly, "Travel", now)

	if err := store.SaveInsights(ctx, []model.Insight{old, fresh}); err != nil {
		t.Fatalf("SaveInsights() error = %v", err)
	}

	deleted, err := store.DeleteExpiredInsights(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredInsights() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted insight, got %d", deleted)
	}

	remaining, err := store.GetInsightsSince(ctx, "u1", now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("GetInsightsSince() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "ins-fresh" {
		t.Errorf("Expected only ins-fresh to remain, got %d insights", len(remaining))
	}
}

func TestSQLiteStorage_SaveInsights_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now()
	bad := createTestInsight("u1", "ins-bad", "made_up_type", "", now)
	if err := store.SaveInsights(ctx, []model.Insight{bad}); err == nil {
		t.Error("Expected unknown insight type to fail validation")
	}

	badPriority := createTestInsight("u1", "ins-bad2", model.InsightAnomaly, "", now)
	badPriority.Priority = "critical"
	if err := store.SaveInsights(ctx, []model.Insight{badPriority}); err == nil {
		t.Error("Expected unknown priority to fail validation")
	}
}
