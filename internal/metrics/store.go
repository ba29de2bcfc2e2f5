package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budget-meal-planner/internal/shared"
)

const timeLayout = "2006-01-02 15:04:05"

// ExecutionMetric records metadata for a single LLM call.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// Store handles persistence of LLM usage to SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_metrics (agent_name, model, prompt_tokens, completion_tokens, latency_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, ts.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution metric: %w", err)
	}
	LLMTokensTotal.WithLabelValues(m.AgentName, "prompt").Add(float64(m.PromptTokens))
	LLMTokensTotal.WithLabelValues(m.AgentName, "completion").Add(float64(m.CompletionTokens))
	return nil
}

// RecordMeta records metrics directly from shared.AgentMeta. Calls that used
// no tokens are skipped.
func (s *Store) RecordMeta(ctx context.Context, meta shared.AgentMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(ctx, MapUsage(meta.AgentName, meta.Usage, meta.Latency))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
}

// GetDailyUsage retrieves usage for the last N days, most recent first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := s.now().AddDate(0, 0, -days).UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(recorded_at) AS day, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens)
		FROM execution_metrics
		WHERE recorded_at >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.TotalExecution, &u.TotalPrompt, &u.TotalCompletion); err != nil {
			return nil, fmt.Errorf("failed to read daily usage row: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and returns
// how many were removed.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_metrics WHERE recorded_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up execution metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage converts token usage to an ExecutionMetric.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
	}
}
