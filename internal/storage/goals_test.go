package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

func createTestGoal(userID, id, name string) *model.Goal {
	return &model.Goal{
		ID:            id,
		UserID:        userID,
		Name:          name,
		TargetAmount:  5000,
		CurrentAmount: 1200,
		StartDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		TargetDate:    time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStorage_GoalCRUD(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	goal := createTestGoal("u1", "goal-1", "Emergency Fund")
	if err := store.CreateGoal(ctx, goal); err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	t.Run("get by id", func(t *testing.T) {
		got, err := store.GetGoal(ctx, "u1", "goal-1")
		if err != nil {
			t.Fatalf("GetGoal() error = %v", err)
		}
		if got.Name != "Emergency Fund" {
			t.Errorf("Expected name Emergency Fund, got %s", got.Name)
		}
		if got.TargetAmount != 5000 {
			t.Errorf("Expected target 5000, got %.2f", got.TargetAmount)
		}
	})

	t.Run("get by name", func(t *testing.T) {
		got, err := store.GetGoalByName(ctx, "u1", "Emergency Fund")
		if err != nil {
			t.Fatalf("GetGoalByName() error = %v", err)
		}
		if got.ID != "goal-1" {
			t.Errorf("Expected goal-1, got %s", got.ID)
		}
	})

	t.Run("wrong user cannot read", func(t *testing.T) {
		if _, err := store.GetGoal(ctx, "u2", "goal-1"); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		dup := createTestGoal("u1", "goal-2", "Emergency Fund")
		if err := store.CreateGoal(ctx, dup); err == nil {
			t.Error("Expected duplicate goal name to fail")
		}
	})

	t.Run("update amounts", func(t *testing.T) {
		if err := store.UpdateGoalAmounts(ctx, "u1", "goal-1", 2500, 300); err != nil {
			t.Fatalf("UpdateGoalAmounts() error = %v", err)
		}
		got, err := store.GetGoal(ctx, "u1", "goal-1")
		if err != nil {
			t.Fatalf("GetGoal() error = %v", err)
		}
		if got.CurrentAmount != 2500 || got.ReservedAmount != 300 {
			t.Errorf("Expected amounts 2500/300, got %.2f/%.2f", got.CurrentAmount, got.ReservedAmount)
		}
	})

	t.Run("list ordered by target date", func(t *testing.T) {
		later := createTestGoal("u1", "goal-3", "Vacation")
		later.TargetDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		if err := store.CreateGoal(ctx, later); err != nil {
			t.Fatalf("CreateGoal() error = %v", err)
		}

		goals, err := store.ListGoals(ctx, "u1")
		if err != nil {
			t.Fatalf("ListGoals() error = %v", err)
		}
		if len(goals) != 2 {
			t.Fatalf("Expected 2 goals, got %d", len(goals))
		}
		if goals[0].ID != "goal-1" || goals[1].ID != "goal-3" {
			t.Errorf("Goals out of order: %s, %s", goals[0].ID, goals[1].ID)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.DeleteGoal(ctx, "u1", "goal-1"); err != nil {
			t.Fatalf("DeleteGoal() error = %v", err)
		}
		if _, err := store.GetGoal(ctx, "u1", "goal-1"); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteGoal(ctx, "u1", "goal-1"); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on double delete, got %v", err)
		}
	})
}

func TestSQLiteStorage_CreateGoal_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.Goal)
		name   string
	}{
		{name: "missing id", mutate: func(g *model.Goal) { g.ID = "" }},
		{name: "missing user", mutate: func(g *model.Goal) { g.UserID = "" }},
		{name: "missing name", mutate: func(g *model.Goal) { g.Name = "  " }},
		{name: "non-positive target", mutate: func(g *model.Goal) { g.TargetAmount = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goal := createTestGoal("u1", "goal-x", "Test")
			tt.mutate(goal)
			if err := store.CreateGoal(ctx, goal); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
