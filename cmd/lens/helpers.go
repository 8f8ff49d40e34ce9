package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/anomaly"
	"github.com/ledgerlens/ledgerlens/internal/assistant"
	"github.com/ledgerlens/ledgerlens/internal/config"
	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/goalcheck"
	"github.com/ledgerlens/ledgerlens/internal/history"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/recurring"
	"github.com/ledgerlens/ledgerlens/internal/storage"
)

// initStorage opens the database, runs migrations, and fronts it with the
// read-through history cache.
func initStorage(ctx context.Context) (*history.Provider, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/lens/lens.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	provider, err := history.NewProvider(store, history.Config{
		TTL: viper.GetDuration("cache.ttl"),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}
	return provider, nil
}

// currentUser resolves which user the command acts for. Everything is
// single-user by default.
func currentUser() string {
	if user := viper.GetString("user"); user != "" {
		return user
	}
	return "local"
}

// detectors bundles the analysis components shared by the engine, the
// assistant tools, and the standalone query commands.
type detectors struct {
	recurring *recurring.Detector
	pool      *anomaly.Pool
	goals     *goalcheck.Calculator
}

// Close stops the anomaly worker pool.
func (d *detectors) Close() {
	d.pool.Close()
}

func buildDetectors() *detectors {
	return &detectors{
		recurring: recurring.NewDetector(recurring.Config{}),
		pool: anomaly.NewPool(
			anomaly.NewDetector(anomaly.Config{Seed: viper.GetInt64("anomaly.seed")}),
			viper.GetInt("anomaly.workers"),
		),
		goals: goalcheck.NewCalculator(goalcheck.Config{}),
	}
}

func buildEngine(store *history.Provider, det *detectors) (*engine.InsightEngine, error) {
	synthesizer := engine.NewSynthesizer(engine.SynthesizerConfig{
		DailyCap:        viper.GetInt("insights.daily_cap"),
		DedupWindowDays: viper.GetInt("insights.dedup_window_days"),
		ExpiryDays:      viper.GetInt("insights.expiry_days"),
	})

	return engine.NewInsightEngine(engine.Deps{
		Store:       store,
		Recurring:   det.recurring,
		Anomaly:     det.pool,
		Goals:       det.goals,
		Synthesizer: synthesizer,
	}, engine.Config{
		HistoryWindowDays:         viper.GetInt("engine.history_window_days"),
		AnomalyWindowDays:         viper.GetInt("engine.anomaly_window_days"),
		SubscriptionMinConfidence: viper.GetFloat64("engine.min_confidence"),
	})
}

func buildOrchestrator(store *history.Provider, det *detectors) (*assistant.Orchestrator, error) {
	client, err := llm.NewChatter(llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	registry, err := assistant.NewFinanceRegistry(assistant.ToolDeps{
		Store:         store,
		Subscriptions: det.recurring,
		Anomalies:     det.pool,
		Goals:         det.goals,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	return assistant.NewOrchestrator(assistant.Deps{
		Client:        client,
		Registry:      registry,
		Conversations: store,
	}, assistant.Config{
		MaxToolRounds: viper.GetInt("assistant.max_tool_rounds"),
		ToolTimeout:   viper.GetDuration("assistant.tool_timeout"),
	})
}

// parseDateRange resolves the start/end window from explicit dates or a
// trailing-days count.
func parseDateRange(startStr, endStr string, days int) (startDate, endDate time.Time, err error) {
	if startStr != "" && endStr != "" {
		startDate, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date format: %w", err)
		}

		endDate, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date format: %w", err)
		}

		if startDate.After(endDate) {
			return time.Time{}, time.Time{}, fmt.Errorf("start date %s is after end date %s", startStr, endStr)
		}
		return startDate, endDate, nil
	}

	if days <= 0 {
		days = 30
	}
	endDate = time.Now()
	startDate = endDate.AddDate(0, 0, -days)
	return startDate, endDate, nil
}
