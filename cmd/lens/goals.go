package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List savings goals and their feasibility",
		Long: `Show every savings goal with its progress and a feasibility check:
whether the current saving pace reaches the target by its date, and
what monthly amount would close the gap.`,
		RunE: runGoalsList,
	}

	cmd.AddCommand(goalsAddCmd())
	cmd.AddCommand(goalsSetCmd())
	cmd.AddCommand(goalsDeleteCmd())

	return cmd
}

func runGoalsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	det := buildDetectors()
	defer det.Close()

	insightEngine, err := buildEngine(store, det)
	if err != nil {
		return fmt.Errorf("failed to create insight engine: %w", err)
	}

	results, err := insightEngine.EvaluateGoals(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to evaluate goals: %w", err)
	}

	if len(results) == 0 {
		fmt.Println(cli.InfoStyle.Render("No savings goals yet. Create one with 'lens goals add'."))
		return nil
	}

	fmt.Println(cli.FormatTitle("Savings Goals"))
	fmt.Println()
	for i := range results {
		fmt.Println(formatGoalResult(&results[i]))
	}
	return nil
}

func formatGoalResult(result *engine.GoalResult) string {
	goal := result.Goal
	feasibility := result.Result

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s  %s of %s (%.0f%%)\n",
		cli.GoalIcon,
		cli.BoldStyle.Render(goal.Name),
		cli.FormatCurrency(goal.CurrentAmount),
		cli.FormatCurrency(goal.TargetAmount),
		feasibility.ProgressPct))

	status := cli.FormatError("Off track")
	if feasibility.OnTrack {
		status = cli.FormatSuccess("On track")
	}
	sb.WriteString(fmt.Sprintf("   %s · saving %s/mo · need %s/mo · due %s\n",
		status,
		cli.FormatCurrency(feasibility.CurrentMonthly),
		cli.FormatCurrency(feasibility.RequiredMonthly),
		goal.TargetDate.Format("2006-01-02")))

	if feasibility.ProjectedCompletion != nil {
		sb.WriteString(cli.SubtleStyle.Render(
			fmt.Sprintf("   Projected completion: %s", feasibility.ProjectedCompletion.Format("Jan 2, 2006"))) + "\n")
	}
	if feasibility.Note != "" {
		sb.WriteString(cli.SubtleStyle.Render("   "+feasibility.Note) + "\n")
	}
	return sb.String()
}

func goalsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a savings goal",
		Long: `Create a savings goal with a target amount and date.

Example:
  lens goals add --name "Vacation" --target 3000 --target-date 2026-06-01`,
		RunE: runGoalsAdd,
	}

	cmd.Flags().String("name", "", "Goal name (required)")
	cmd.Flags().Float64("target", 0, "Target amount in dollars (required)")
	cmd.Flags().String("target-date", "", "Target date (format: 2006-01-02, required)")
	cmd.Flags().Float64("current", 0, "Amount already saved")
	cmd.Flags().Float64("reserved", 0, "Amount committed from other accounts")

	return cmd
}

func runGoalsAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := currentUser()

	name, _ := cmd.Flags().GetString("name")
	target, _ := cmd.Flags().GetFloat64("target")
	targetDateStr, _ := cmd.Flags().GetString("target-date")
	current, _ := cmd.Flags().GetFloat64("current")
	reserved, _ := cmd.Flags().GetFloat64("reserved")

	if name == "" {
		return fmt.Errorf("goal name is required")
	}
	if target <= 0 {
		return fmt.Errorf("target amount must be positive")
	}
	targetDate, err := time.Parse("2006-01-02", targetDateStr)
	if err != nil {
		return fmt.Errorf("invalid target date format: %w", err)
	}

	now := time.Now()
	if !targetDate.After(now) {
		return fmt.Errorf("target date must be in the future")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	goal := &model.Goal{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		TargetAmount:   target,
		CurrentAmount:  current,
		ReservedAmount: reserved,
		TargetDate:     targetDate,
		StartDate:      now,
		CreatedAt:      now,
	}
	if err := store.CreateGoal(ctx, goal); err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Goal %q created", name)),
		"target", target,
		"target_date", targetDate.Format("2006-01-02"))
	return nil
}

func goalsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [name]",
		Short: "Update a goal's saved and reserved amounts",
		Args:  cobra.ExactArgs(1),
		RunE:  runGoalsSet,
	}

	cmd.Flags().Float64("current", 0, "Amount already saved")
	cmd.Flags().Float64("reserved", 0, "Amount committed from other accounts")

	return cmd
}

func runGoalsSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID := currentUser()
	name := args[0]

	if !cmd.Flags().Changed("current") && !cmd.Flags().Changed("reserved") {
		return fmt.Errorf("nothing to update: pass --current and/or --reserved")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	goal, err := store.GetGoalByName(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("failed to find goal %q: %w", name, err)
	}

	current := goal.CurrentAmount
	reserved := goal.ReservedAmount
	if cmd.Flags().Changed("current") {
		current, _ = cmd.Flags().GetFloat64("current")
	}
	if cmd.Flags().Changed("reserved") {
		reserved, _ = cmd.Flags().GetFloat64("reserved")
	}
	if current < 0 || reserved < 0 {
		return fmt.Errorf("amounts cannot be negative")
	}

	if err := store.UpdateGoalAmounts(ctx, userID, goal.ID, current, reserved); err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Goal %q updated", name)),
		"current", current,
		"reserved", reserved)
	return nil
}

func goalsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a savings goal",
		Args:  cobra.ExactArgs(1),
		RunE:  runGoalsDelete,
	}

	cmd.Flags().Bool("yes", false, "Skip the confirmation prompt")

	return cmd
}

func runGoalsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID := currentUser()
	name := args[0]
	skipConfirm, _ := cmd.Flags().GetBool("yes")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	goal, err := store.GetGoalByName(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("failed to find goal %q: %w", name, err)
	}

	if !skipConfirm {
		fmt.Print(cli.FormatPrompt(fmt.Sprintf("Delete goal %q? (y/n)", name)))
		reader := cli.NewLineReader(os.Stdin)
		answer, readErr := reader.ReadLine(ctx)
		if readErr != nil {
			return fmt.Errorf("failed to read confirmation: %w", readErr)
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
		default:
			slog.Info("Delete canceled")
			return nil
		}
	}

	if err := store.DeleteGoal(ctx, userID, goal.ID); err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Goal %q deleted", name)))
	return nil
}
