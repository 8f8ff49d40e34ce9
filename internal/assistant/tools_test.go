package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

type storeStub struct {
	spending     *service.SpendingSummary
	lastFilter   service.TransactionFilter
	transactions []model.Transaction
	goals        []model.Goal
	insights     []model.Insight
}

func (s *storeStub) GetTransactions(_ context.Context, _ string, filter service.TransactionFilter) ([]model.Transaction, error) {
	s.lastFilter = filter
	return s.transactions, nil
}

func (s *storeStub) GetSpendingSummary(_ context.Context, _ string, start, end time.Time) (*service.SpendingSummary, error) {
	if s.spending == nil {
		return &service.SpendingSummary{DateRange: service.DateRange{Start: start, End: end}}, nil
	}
	return s.spending, nil
}

func (s *storeStub) ListGoals(_ context.Context, _ string) ([]model.Goal, error) {
	return s.goals, nil
}

func (s *storeStub) GetGoalByName(_ context.Context, _ string, name string) (*model.Goal, error) {
	for i := range s.goals {
		if s.goals[i].Name == name {
			return &s.goals[i], nil
		}
	}
	return nil, fmt.Errorf("goal %s: %w", name, common.ErrNotFound)
}

func (s *storeStub) GetActiveInsights(_ context.Context, _ string, _ time.Time) ([]model.Insight, error) {
	return s.insights, nil
}

type stubSubscriptions struct {
	candidates []model.RecurringCandidate
	got        []model.Transaction
}

func (s *stubSubscriptions) Detect(transactions []model.Transaction) []model.RecurringCandidate {
	s.got = transactions
	return s.candidates
}

type stubAnomalies struct {
	findings []model.AnomalyFinding
}

func (s *stubAnomalies) Detect(_ context.Context, _ []model.Transaction) ([]model.AnomalyFinding, error) {
	return s.findings, nil
}

type stubFeasibility struct {
	result   model.FeasibilityResult
	lastRate float64
}

func (s *stubFeasibility) Evaluate(_ model.GoalSnapshot, _ time.Time, rate float64) model.FeasibilityResult {
	s.lastRate = rate
	return s.result
}

func testRegistry(t *testing.T, store *storeStub) (*Registry, *stubSubscriptions, *stubAnomalies, *stubFeasibility) {
	t.Helper()
	subs := &stubSubscriptions{}
	anomalies := &stubAnomalies{}
	goals := &stubFeasibility{}
	registry, err := NewFinanceRegistry(ToolDeps{
		Store:         store,
		Subscriptions: subs,
		Anomalies:     anomalies,
		Goals:         goals,
	})
	require.NoError(t, err)
	return registry, subs, anomalies, goals
}

func executeData(t *testing.T, registry *Registry, name, args string) json.RawMessage {
	t.Helper()
	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	}
	result := registry.Execute(context.Background(), "u1", llm.ToolCall{ID: "call", Name: name, Arguments: raw})
	require.False(t, result.IsError, "unexpected tool error: %s", result.Content)

	envelope, err := parseEnvelope(result.Content)
	require.NoError(t, err)
	require.True(t, envelope.OK)
	return envelope.Data
}

func TestNewFinanceRegistry(t *testing.T) {
	registry, _, _, _ := testRegistry(t, &storeStub{})
	assert.Equal(t, []string{
		"check_goal_feasibility",
		"detect_subscriptions",
		"find_anomalies",
		"list_goals",
		"list_insights",
		"list_transactions",
		"spending_summary",
	}, registry.Names())
}

func TestNewFinanceRegistry_ValidatesDeps(t *testing.T) {
	_, err := NewFinanceRegistry(ToolDeps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store dependency is required")

	_, err = NewFinanceRegistry(ToolDeps{Store: &storeStub{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription detector")
}

func TestListTransactionsTool(t *testing.T) {
	store := &storeStub{
		transactions: []model.Transaction{
			{
				Date:         time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC),
				MerchantName: "Golden Fork Bistro",
				Category:     "Dining",
				Amount:       86.4,
			},
			{
				Date:    time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
				Name:    "POS DEBIT 4417 CORNER CAFE",
				Amount:  12.5,
				Pending: true,
			},
		},
	}
	registry, _, _, _ := testRegistry(t, store)

	data := executeData(t, registry, "list_transactions", `{"days":60,"limit":5,"category":"Dining"}`)

	var payload struct {
		Transactions []transactionReport `json:"transactions"`
		Count        int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "2025-07-12", payload.Transactions[0].Date)
	assert.Equal(t, "Golden Fork Bistro", payload.Transactions[0].Counterparty)
	assert.InDelta(t, 86.4, payload.Transactions[0].Amount, 0.001)
	assert.Equal(t, "POS DEBIT 4417 CORNER CAFE", payload.Transactions[1].Counterparty, "falls back to the raw description")
	assert.True(t, payload.Transactions[1].Pending)

	assert.Equal(t, "Dining", store.lastFilter.Category)
	assert.Equal(t, 5, store.lastFilter.Limit)
	require.NotNil(t, store.lastFilter.StartDate)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -60), *store.lastFilter.StartDate, time.Minute)
}

func TestListTransactionsTool_Defaults(t *testing.T) {
	store := &storeStub{}
	registry, _, _, _ := testRegistry(t, store)

	executeData(t, registry, "list_transactions", "")

	assert.Equal(t, defaultTransactionLimit, store.lastFilter.Limit)
	require.NotNil(t, store.lastFilter.StartDate)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -defaultTransactionDays), *store.lastFilter.StartDate, time.Minute)
}

func TestSpendingSummaryTool(t *testing.T) {
	store := &storeStub{
		spending: &service.SpendingSummary{
			DateRange: service.DateRange{
				Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			},
			TotalInflow:  5000,
			TotalOutflow: 3200.456,
			Net:          1799.544,
			ByCategory: map[string]service.CategorySummary{
				"Dining": {Count: 12, Amount: 640.5},
				"Rent":   {Count: 1, Amount: 2400},
			},
		},
	}
	registry, _, _, _ := testRegistry(t, store)

	data := executeData(t, registry, "spending_summary", `{"days":30}`)

	var payload struct {
		Start        string              `json:"start"`
		End          string              `json:"end"`
		Categories   []categoryBreakdown `json:"categories"`
		TotalInflow  float64             `json:"total_inflow"`
		TotalOutflow float64             `json:"total_outflow"`
		Net          float64             `json:"net"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "2025-06-01", payload.Start)
	assert.InDelta(t, 3200.46, payload.TotalOutflow, 0.001)
	assert.InDelta(t, 1799.54, payload.Net, 0.001)

	require.Len(t, payload.Categories, 2)
	assert.Equal(t, "Rent", payload.Categories[0].Category, "largest category first")
	assert.Equal(t, "Dining", payload.Categories[1].Category)
	assert.Equal(t, 12, payload.Categories[1].Count)
}

func TestDetectSubscriptionsTool(t *testing.T) {
	store := &storeStub{transactions: make([]model.Transaction, 3)}
	registry, subs, _, _ := testRegistry(t, store)
	subs.candidates = []model.RecurringCandidate{
		{
			Counterparty:  "Streamflix",
			Frequency:     model.FrequencyMonthly,
			TypicalAmount: 15.8471,
			Confidence:    0.887,
			NextExpected:  time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC),
			Occurrences:   make([]model.Transaction, 7),
		},
	}

	data := executeData(t, registry, "detect_subscriptions", "")
	assert.Len(t, subs.got, 3, "detector sees the loaded window")

	var payload struct {
		Subscriptions []subscriptionReport `json:"subscriptions"`
		Count         int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Equal(t, 1, payload.Count)

	report := payload.Subscriptions[0]
	assert.Equal(t, "Streamflix", report.Counterparty)
	assert.Equal(t, "monthly", report.Frequency)
	assert.InDelta(t, 15.85, report.TypicalAmount, 0.001)
	assert.InDelta(t, 15.85, report.MonthlyCost, 0.001)
	assert.InDelta(t, 0.89, report.Confidence, 0.001)
	assert.Equal(t, "2025-08-10", report.NextExpected)
	assert.Equal(t, 7, report.Occurrences)
}

func TestFindAnomaliesTool(t *testing.T) {
	registry, _, anomalies, _ := testRegistry(t, &storeStub{})
	anomalies.findings = []model.AnomalyFinding{
		{
			Transaction: model.Transaction{
				Date:         time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC),
				MerchantName: "Golden Fork Bistro",
				Category:     "Dining",
				Amount:       412.4,
			},
			Score:   0.8734,
			Reasons: []string{"Amount is 5.2x the Dining average"},
		},
	}

	data := executeData(t, registry, "find_anomalies", `{"days":90}`)

	var payload struct {
		Anomalies []anomalyReport `json:"anomalies"`
		Count     int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, "Golden Fork Bistro", payload.Anomalies[0].Counterparty)
	assert.InDelta(t, 0.87, payload.Anomalies[0].Score, 0.001)
	assert.Equal(t, []string{"Amount is 5.2x the Dining average"}, payload.Anomalies[0].Reasons)
}

func TestListGoalsTool(t *testing.T) {
	store := &storeStub{
		goals: []model.Goal{
			{
				Name:           "House Fund",
				TargetAmount:   20000,
				CurrentAmount:  5000,
				ReservedAmount: 500,
				TargetDate:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	registry, _, _, _ := testRegistry(t, store)

	data := executeData(t, registry, "list_goals", "")

	var payload struct {
		Goals []goalReport `json:"goals"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, "House Fund", payload.Goals[0].Name)
	assert.Equal(t, "2026-06-01", payload.Goals[0].TargetDate)
	assert.InDelta(t, 14500, payload.Goals[0].Remaining, 0.001)
}

func TestCheckGoalFeasibilityTool(t *testing.T) {
	store := &storeStub{
		goals: []model.Goal{
			{
				Name:           "House Fund",
				TargetAmount:   20000,
				CurrentAmount:  5000,
				ReservedAmount: 500,
				TargetDate:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		spending: &service.SpendingSummary{Net: 3000},
	}
	registry, _, _, goals := testRegistry(t, store)
	goals.result = model.FeasibilityResult{
		OnTrack:             true,
		ProgressPct:         27.5,
		ExpectedProgressPct: 22.14,
		RequiredMonthly:     1056.1234,
		CurrentMonthly:      1014.67,
	}

	data := executeData(t, registry, "check_goal_feasibility", `{"goal":"House Fund"}`)

	expectedRate := 3000 / (90.0 / 30.44)
	assert.InDelta(t, expectedRate, goals.lastRate, 0.01)

	var payload struct {
		Goal                string  `json:"goal"`
		TargetDate          string  `json:"target_date"`
		ProjectedCompletion string  `json:"projected_completion"`
		TargetAmount        float64 `json:"target_amount"`
		Remaining           float64 `json:"remaining"`
		ExpectedProgressPct float64 `json:"expected_progress_pct"`
		RequiredMonthly     float64 `json:"required_monthly"`
		OnTrack             bool    `json:"on_track"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "House Fund", payload.Goal)
	assert.True(t, payload.OnTrack)
	assert.InDelta(t, 14500, payload.Remaining, 0.001)
	assert.InDelta(t, 22.1, payload.ExpectedProgressPct, 0.001)
	assert.InDelta(t, 1056.12, payload.RequiredMonthly, 0.001)
	assert.Empty(t, payload.ProjectedCompletion)
}

func TestCheckGoalFeasibilityTool_NegativeCashFlow(t *testing.T) {
	store := &storeStub{
		goals:    []model.Goal{{Name: "House Fund", TargetAmount: 20000}},
		spending: &service.SpendingSummary{Net: -800},
	}
	registry, _, _, goals := testRegistry(t, store)

	executeData(t, registry, "check_goal_feasibility", `{"goal":"House Fund"}`)
	assert.Zero(t, goals.lastRate, "negative cash flow clamps the rate to zero")
}

func TestCheckGoalFeasibilityTool_Errors(t *testing.T) {
	registry, _, _, _ := testRegistry(t, &storeStub{})

	result := registry.Execute(context.Background(), "u1", llm.ToolCall{
		ID:        "c1",
		Name:      "check_goal_feasibility",
		Arguments: json.RawMessage(`{"goal":"Boat"}`),
	})
	require.True(t, result.IsError)
	envelope, err := parseEnvelope(result.Content)
	require.NoError(t, err)
	assert.Equal(t, errKindExecutionFailed, envelope.ErrorKind)
	assert.Contains(t, envelope.Message, `no goal named "Boat"`)
	assert.Contains(t, envelope.Message, "list_goals", "points the model at the recovery path")

	result = registry.Execute(context.Background(), "u1", llm.ToolCall{
		ID:   "c2",
		Name: "check_goal_feasibility",
	})
	require.True(t, result.IsError)
	envelope, err = parseEnvelope(result.Content)
	require.NoError(t, err)
	assert.Equal(t, errKindInvalidArguments, envelope.ErrorKind)
}

func TestListInsightsTool(t *testing.T) {
	store := &storeStub{
		insights: []model.Insight{
			{
				Type:      model.InsightSubscriptionAlert,
				Priority:  model.PriorityNormal,
				Title:     "Recurring charge: Streamflix",
				Message:   "Streamflix bills about $15.85 monthly.",
				CreatedAt: time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC),
			},
		},
	}
	registry, _, _, _ := testRegistry(t, store)

	data := executeData(t, registry, "list_insights", "")

	var payload struct {
		Insights []insightReport `json:"insights"`
		Count    int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, "subscription_alert", payload.Insights[0].Type)
	assert.Equal(t, "normal", payload.Insights[0].Priority)
	assert.Equal(t, "2025-07-20", payload.Insights[0].CreatedAt)
}
