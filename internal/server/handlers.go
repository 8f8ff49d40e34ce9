package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// insightPayload is the wire form of an insight.
type insightPayload struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Category  string         `json:"category,omitempty"`
	Amount    *float64       `json:"amount,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	IsRead    bool           `json:"is_read"`
}

// subscriptionPayload is the wire form of a recurring charge candidate.
type subscriptionPayload struct {
	Counterparty  string    `json:"counterparty"`
	Frequency     string    `json:"frequency"`
	TypicalAmount float64   `json:"typical_amount"`
	MonthlyCost   float64   `json:"monthly_cost"`
	Confidence    float64   `json:"confidence"`
	NextExpected  time.Time `json:"next_expected"`
	Occurrences   int       `json:"occurrences"`
}

// goalPayload pairs a goal with its feasibility assessment.
type goalPayload struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	TargetAmount        float64    `json:"target_amount"`
	CurrentAmount       float64    `json:"current_amount"`
	ReservedAmount      float64    `json:"reserved_amount,omitempty"`
	TargetDate          time.Time  `json:"target_date"`
	OnTrack             bool       `json:"on_track"`
	ProgressPct         float64    `json:"progress_pct"`
	ExpectedProgressPct float64    `json:"expected_progress_pct"`
	RequiredMonthly     float64    `json:"required_monthly"`
	CurrentMonthly      float64    `json:"current_monthly"`
	Gap                 float64    `json:"gap"`
	ProjectedCompletion *time.Time `json:"projected_completion,omitempty"`
	Note                string     `json:"note,omitempty"`
}

// chatRequest is one conversational turn from the client.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// chatResponse is the assistant's answer to a chat turn.
type chatResponse struct {
	Text           string                     `json:"text"`
	ConversationID string                     `json:"conversation_id"`
	ToolsUsed      []string                   `json:"tools_used,omitempty"`
	Fallback       bool                       `json:"fallback"`
	StructuredData map[string]json.RawMessage `json:"structured_data,omitempty"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	insights, err := s.deps.Insights.GetActiveInsights(r.Context(), userID, time.Now())
	if err != nil {
		s.logger.Error("Failed to load insights", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load insights")
		return
	}

	payload := make([]insightPayload, 0, len(insights))
	for i := range insights {
		payload = append(payload, toInsightPayload(&insights[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": payload})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	candidates, err := s.deps.Analyzer.DetectSubscriptions(r.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to detect subscriptions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to detect subscriptions")
		return
	}

	payload := make([]subscriptionPayload, 0, len(candidates))
	var totalMonthly float64
	for i := range candidates {
		p := toSubscriptionPayload(&candidates[i])
		totalMonthly += p.MonthlyCost
		payload = append(payload, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": payload,
		"total_monthly": totalMonthly,
	})
}

func (s *Server) handleGoalFeasibility(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	results, err := s.deps.Analyzer.EvaluateGoals(r.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to evaluate goals", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to evaluate goals")
		return
	}

	payload := make([]goalPayload, 0, len(results))
	for i := range results {
		payload = append(payload, toGoalPayload(&results[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": payload})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.deps.Asker.Ask(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		s.logger.Error("Chat turn failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to answer")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Text:           resp.Text,
		ConversationID: resp.ConversationID,
		ToolsUsed:      resp.ToolsUsed,
		Fallback:       resp.Fallback,
		StructuredData: resp.StructuredData,
	})
}

func toInsightPayload(in *model.Insight) insightPayload {
	p := insightPayload{
		ID:        in.ID,
		Type:      string(in.Type),
		Priority:  string(in.Priority),
		Title:     in.Title,
		Message:   in.Message,
		Category:  in.Category,
		Amount:    in.Amount,
		Context:   in.Context,
		CreatedAt: in.CreatedAt,
		IsRead:    in.IsRead,
	}
	if !in.ExpiresAt.IsZero() {
		expires := in.ExpiresAt
		p.ExpiresAt = &expires
	}
	return p
}

func toSubscriptionPayload(c *model.RecurringCandidate) subscriptionPayload {
	return subscriptionPayload{
		Counterparty:  c.Counterparty,
		Frequency:     string(c.Frequency),
		TypicalAmount: c.TypicalAmount,
		MonthlyCost:   c.MonthlyCost(),
		Confidence:    c.Confidence,
		NextExpected:  c.NextExpected,
		Occurrences:   len(c.Occurrences),
	}
}

func toGoalPayload(r *engine.GoalResult) goalPayload {
	return goalPayload{
		ID:                  r.Goal.ID,
		Name:                r.Goal.Name,
		TargetAmount:        r.Goal.TargetAmount,
		CurrentAmount:       r.Goal.CurrentAmount,
		ReservedAmount:      r.Goal.ReservedAmount,
		TargetDate:          r.Goal.TargetDate,
		OnTrack:             r.Result.OnTrack,
		ProgressPct:         r.Result.ProgressPct,
		ExpectedProgressPct: r.Result.ExpectedProgressPct,
		RequiredMonthly:     r.Result.RequiredMonthly,
		CurrentMonthly:      r.Result.CurrentMonthly,
		Gap:                 r.Result.Gap,
		ProjectedCompletion: r.Result.ProjectedCompletion,
		Note:                r.Result.Note,
	}
}
