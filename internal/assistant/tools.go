package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

const (
	dateLayout = "2006-01-02"

	// savingRateWindowDays is the lookback used to estimate the current
	// monthly saving pace for feasibility checks.
	savingRateWindowDays = 90
	daysPerMonth         = 30.44

	defaultTransactionDays  = 30
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
	defaultSummaryDays      = 30
	defaultSubscriptionDays = 365
	maxSubscriptionDays     = 730
	defaultAnomalyDays      = 90
	maxWindowDays           = 365
)

// ToolDeps bundles what the built-in finance tools read from.
type ToolDeps struct {
	// Store provides read access to the persistence layer.
	Store Store
	// Subscriptions detects recurring billing patterns.
	Subscriptions SubscriptionDetector
	// Anomalies scores transactions for statistical outliers.
	Anomalies OutlierDetector
	// Goals evaluates savings goal feasibility.
	Goals FeasibilityEvaluator
}

// Validate ensures all required dependencies are provided.
func (d *ToolDeps) Validate() error {
	if d.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	if d.Subscriptions == nil {
		return fmt.Errorf("subscription detector dependency is required")
	}
	if d.Anomalies == nil {
		return fmt.Errorf("anomaly detector dependency is required")
	}
	if d.Goals == nil {
		return fmt.Errorf("goal evaluator dependency is required")
	}
	return nil
}

// NewFinanceRegistry builds a registry holding the built-in read-only
// finance tools.
func NewFinanceRegistry(deps ToolDeps) (*Registry, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	ft := &financeTools{deps: deps}
	registry := NewRegistry()
	tools := []Tool{
		{
			Name:        "list_transactions",
			Description: "List the user's recent transactions, newest first, optionally filtered by category or counterparty.",
			Schema: ObjectSchema(map[string]any{
				"days":         IntegerProperty("How many days back to look (default 30)"),
				"limit":        IntegerProperty("Maximum number of transactions to return (default 20, max 100)"),
				"category":     StringProperty("Only include transactions in this category"),
				"counterparty": StringProperty("Only include transactions from this merchant or payee"),
			}),
			Handler: ft.listTransactions,
		},
		{
			Name:        "spending_summary",
			Description: "Summarize inflows, outflows, and per-category spending over a period.",
			Schema: ObjectSchema(map[string]any{
				"days": IntegerProperty("How many days back to summarize (default 30)"),
			}),
			Handler: ft.spendingSummary,
		},
		{
			Name:        "detect_subscriptions",
			Description: "Detect recurring charges such as subscriptions and regular bills, with typical amount and cadence.",
			Schema: ObjectSchema(map[string]any{
				"days": IntegerProperty("How many days of history to scan (default 365)"),
			}),
			Handler: ft.detectSubscriptions,
		},
		{
			Name:        "find_anomalies",
			Description: "Find transactions that look unusual against the user's spending history, with reasons.",
			Schema: ObjectSchema(map[string]any{
				"days": IntegerProperty("How many days back to scan (default 90)"),
			}),
			Handler: ft.findAnomalies,
		},
		{
			Name:        "list_goals",
			Description: "List the user's savings goals with target amounts and progress.",
			Schema:      ObjectSchema(map[string]any{}),
			Handler:     ft.listGoals,
		},
		{
			Name:        "check_goal_feasibility",
			Description: "Check whether a savings goal is on track and what monthly saving it requires.",
			Schema: ObjectSchema(map[string]any{
				"goal": StringProperty("Exact name of the goal to check"),
			}, "goal"),
			Handler: ft.checkGoalFeasibility,
		},
		{
			Name:        "list_insights",
			Description: "List the current unexpired insights generated for the user.",
			Schema:      ObjectSchema(map[string]any{}),
			Handler:     ft.listInsights,
		},
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

type financeTools struct {
	deps ToolDeps
}

type transactionReport struct {
	Date         string  `json:"date"`
	Counterparty string  `json:"counterparty"`
	Category     string  `json:"category,omitempty"`
	Amount       float64 `json:"amount"`
	Pending      bool    `json:"pending,omitempty"`
}

func (t *financeTools) listTransactions(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args struct {
		Category     string `json:"category"`
		Counterparty string `json:"counterparty"`
		Days         int    `json:"days"`
		Limit        int    `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	days := windowDays(args.Days, defaultTransactionDays, maxWindowDays)
	limit := args.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}

	start := time.Now().AddDate(0, 0, -days)
	transactions, err := t.deps.Store.GetTransactions(ctx, userID, service.TransactionFilter{
		StartDate:    &start,
		Category:     args.Category,
		Counterparty: args.Counterparty,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	reports := make([]transactionReport, 0, len(transactions))
	for _, txn := range transactions {
		reports = append(reports, transactionReport{
			Date:         txn.Date.Format(dateLayout),
			Counterparty: counterpartyLabel(txn),
			Category:     txn.Category,
			Amount:       round2(txn.Amount),
			Pending:      txn.Pending,
		})
	}
	return struct {
		Transactions []transactionReport `json:"transactions"`
		Count        int                 `json:"count"`
	}{reports, len(reports)}, nil
}

type categoryBreakdown struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
}

func (t *financeTools) spendingSummary(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args struct {
		Days int `json:"days"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	days := windowDays(args.Days, defaultSummaryDays, maxWindowDays)

	now := time.Now()
	summary, err := t.deps.Store.GetSpendingSummary(ctx, userID, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize spending: %w", err)
	}

	categories := make([]categoryBreakdown, 0, len(summary.ByCategory))
	for name, entry := range summary.ByCategory {
		categories = append(categories, categoryBreakdown{
			Category: name,
			Amount:   round2(entry.Amount),
			Count:    entry.Count,
		})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Amount != categories[j].Amount {
			return categories[i].Amount > categories[j].Amount
		}
		return categories[i].Category < categories[j].Category
	})

	return struct {
		Start        string              `json:"start"`
		End          string              `json:"end"`
		Categories   []categoryBreakdown `json:"categories"`
		TotalInflow  float64             `json:"total_inflow"`
		TotalOutflow float64             `json:"total_outflow"`
		Net          float64             `json:"net"`
	}{
		Start:        summary.DateRange.Start.Format(dateLayout),
		End:          summary.DateRange.End.Format(dateLayout),
		Categories:   categories,
		TotalInflow:  round2(summary.TotalInflow),
		TotalOutflow: round2(summary.TotalOutflow),
		Net:          round2(summary.Net),
	}, nil
}

type subscriptionReport struct {
	Counterparty  string  `json:"counterparty"`
	Frequency     string  `json:"frequency"`
	NextExpected  string  `json:"next_expected"`
	TypicalAmount float64 `json:"typical_amount"`
	MonthlyCost   float64 `json:"monthly_cost"`
	Confidence    float64 `json:"confidence"`
	Occurrences   int     `json:"occurrences"`
}

func (t *financeTools) detectSubscriptions(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args struct {
		Days int `json:"days"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	days := windowDays(args.Days, defaultSubscriptionDays, maxSubscriptionDays)

	start := time.Now().AddDate(0, 0, -days)
	transactions, err := t.deps.Store.GetTransactions(ctx, userID, service.TransactionFilter{StartDate: &start})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	candidates := t.deps.Subscriptions.Detect(transactions)
	reports := make([]subscriptionReport, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		reports = append(reports, subscriptionReport{
			Counterparty:  candidate.Counterparty,
			Frequency:     string(candidate.Frequency),
			NextExpected:  candidate.NextExpected.Format(dateLayout),
			TypicalAmount: round2(candidate.TypicalAmount),
			MonthlyCost:   round2(candidate.MonthlyCost()),
			Confidence:    math.Round(candidate.Confidence*100) / 100,
			Occurrences:   len(candidate.Occurrences),
		})
	}
	return struct {
		Subscriptions []subscriptionReport `json:"subscriptions"`
		Count         int                  `json:"count"`
	}{reports, len(reports)}, nil
}

type anomalyReport struct {
	Date         string   `json:"date"`
	Counterparty string   `json:"counterparty"`
	Category     string   `json:"category,omitempty"`
	Reasons      []string `json:"reasons"`
	Amount       float64  `json:"amount"`
	Score        float64  `json:"score"`
}

func (t *financeTools) findAnomalies(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args struct {
		Days int `json:"days"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	days := windowDays(args.Days, defaultAnomalyDays, maxWindowDays)

	start := time.Now().AddDate(0, 0, -days)
	transactions, err := t.deps.Store.GetTransactions(ctx, userID, service.TransactionFilter{StartDate: &start})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	findings, err := t.deps.Anomalies.Detect(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to score anomalies: %w", err)
	}

	reports := make([]anomalyReport, 0, len(findings))
	for _, finding := range findings {
		reports = append(reports, anomalyReport{
			Date:         finding.Transaction.Date.Format(dateLayout),
			Counterparty: counterpartyLabel(finding.Transaction),
			Category:     finding.Transaction.Category,
			Reasons:      finding.Reasons,
			Amount:       round2(finding.Transaction.Amount),
			Score:        math.Round(finding.Score*100) / 100,
		})
	}
	return struct {
		Anomalies []anomalyReport `json:"anomalies"`
		Count     int             `json:"count"`
	}{reports, len(reports)}, nil
}

type goalReport struct {
	Name           string  `json:"name"`
	TargetDate     string  `json:"target_date"`
	TargetAmount   float64 `json:"target_amount"`
	CurrentAmount  float64 `json:"current_amount"`
	ReservedAmount float64 `json:"reserved_amount"`
	Remaining      float64 `json:"remaining"`
}

func (t *financeTools) listGoals(ctx context.Context, userID string, _ json.RawMessage) (any, error) {
	goals, err := t.deps.Store.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	reports := make([]goalReport, 0, len(goals))
	for i := range goals {
		snapshot := goals[i].Snapshot()
		reports = append(reports, goalReport{
			Name:           goals[i].Name,
			TargetDate:     goals[i].TargetDate.Format(dateLayout),
			TargetAmount:   round2(goals[i].TargetAmount),
			CurrentAmount:  round2(goals[i].CurrentAmount),
			ReservedAmount: round2(goals[i].ReservedAmount),
			Remaining:      round2(snapshot.Remaining()),
		})
	}
	return struct {
		Goals []goalReport `json:"goals"`
		Count int          `json:"count"`
	}{reports, len(reports)}, nil
}

func (t *financeTools) checkGoalFeasibility(ctx context.Context, userID string, raw json.RawMessage) (any, error) {
	var args struct {
		Goal string `json:"goal"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	goal, err := t.deps.Store.GetGoalByName(ctx, userID, args.Goal)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("no goal named %q; call list_goals to see available goals", args.Goal)
		}
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}

	now := time.Now()
	rate, err := t.monthlySavingRate(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	result := t.deps.Goals.Evaluate(goal.Snapshot(), now, rate)

	projected := ""
	if result.ProjectedCompletion != nil {
		projected = result.ProjectedCompletion.Format(dateLayout)
	}
	return struct {
		Goal                string  `json:"goal"`
		TargetDate          string  `json:"target_date"`
		ProjectedCompletion string  `json:"projected_completion,omitempty"`
		Note                string  `json:"note,omitempty"`
		TargetAmount        float64 `json:"target_amount"`
		Remaining           float64 `json:"remaining"`
		ProgressPct         float64 `json:"progress_pct"`
		ExpectedProgressPct float64 `json:"expected_progress_pct"`
		RequiredMonthly     float64 `json:"required_monthly"`
		CurrentMonthly      float64 `json:"current_monthly"`
		Gap                 float64 `json:"gap"`
		OnTrack             bool    `json:"on_track"`
	}{
		Goal:                goal.Name,
		TargetDate:          goal.TargetDate.Format(dateLayout),
		ProjectedCompletion: projected,
		Note:                result.Note,
		TargetAmount:        round2(goal.TargetAmount),
		Remaining:           round2(goal.Snapshot().Remaining()),
		ProgressPct:         math.Round(result.ProgressPct*10) / 10,
		ExpectedProgressPct: math.Round(result.ExpectedProgressPct*10) / 10,
		RequiredMonthly:     round2(result.RequiredMonthly),
		CurrentMonthly:      round2(result.CurrentMonthly),
		Gap:                 round2(result.Gap),
		OnTrack:             result.OnTrack,
	}, nil
}

type insightReport struct {
	Type      string `json:"type"`
	Priority  string `json:"priority"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (t *financeTools) listInsights(ctx context.Context, userID string, _ json.RawMessage) (any, error) {
	insights, err := t.deps.Store.GetActiveInsights(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}

	reports := make([]insightReport, 0, len(insights))
	for _, insight := range insights {
		reports = append(reports, insightReport{
			Type:      string(insight.Type),
			Priority:  string(insight.Priority),
			Title:     insight.Title,
			Message:   insight.Message,
			Category:  insight.Category,
			CreatedAt: insight.CreatedAt.Format(dateLayout),
		})
	}
	return struct {
		Insights []insightReport `json:"insights"`
		Count    int             `json:"count"`
	}{reports, len(reports)}, nil
}

// monthlySavingRate estimates the user's current saving pace from recent
// net cash flow. Negative flow clamps to zero.
func (t *financeTools) monthlySavingRate(ctx context.Context, userID string, now time.Time) (float64, error) {
	start := now.AddDate(0, 0, -savingRateWindowDays)
	summary, err := t.deps.Store.GetSpendingSummary(ctx, userID, start, now)
	if err != nil {
		return 0, fmt.Errorf("failed to summarize cash flow: %w", err)
	}
	rate := summary.Net / (savingRateWindowDays / daysPerMonth)
	if rate < 0 {
		return 0, nil
	}
	return rate, nil
}

func decodeArgs(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	return nil
}

func windowDays(requested, fallback, ceiling int) int {
	if requested <= 0 {
		return fallback
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

func counterpartyLabel(txn model.Transaction) string {
	if txn.MerchantName != "" {
		return txn.MerchantName
	}
	return txn.Name
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
