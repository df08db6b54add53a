package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"weekly-menu-planner/internal/backend"
)

// Outcomes of a remote call.
const (
	OutcomeSuccess  = "success"
	OutcomeAPIError = "api_error"
	OutcomeError    = "error"
)

const timestampLayout = "2006-01-02 15:04:05"

// CallMetric records metadata for a single call to the recipe service.
type CallMetric struct {
	Call       string
	Outcome    string
	StatusCode int
	RequestID  string
	LatencyMS  int64
	Timestamp  time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m CallMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_metrics (call, outcome, status_code, request_id, latency_ms, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		m.Call, m.Outcome, m.StatusCode, m.RequestID, m.LatencyMS, ts.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert call metric: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DailyUsage represents call totals for a single day.
type DailyUsage struct {
	Date         string
	TotalCalls   int
	Failures     int
	AvgLatencyMS int64
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day,
		       COUNT(*),
		       SUM(CASE WHEN outcome = ? THEN 0 ELSE 1 END),
		       CAST(AVG(latency_ms) AS INTEGER)
		FROM call_metrics
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, OutcomeSuccess, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		var day sql.NullString
		if err := rows.Scan(&day, &u.TotalCalls, &u.Failures, &u.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		u.Date = "Unknown"
		if day.Valid {
			u.Date = day.String
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// CallSummary aggregates one call name over a window.
type CallSummary struct {
	Call         string
	TotalCalls   int
	Failures     int
	AvgLatencyMS int64
}

// GetCallSummary groups the last N days by call name.
func (s *Store) GetCallSummary(ctx context.Context, days int) ([]CallSummary, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT call,
		       COUNT(*),
		       SUM(CASE WHEN outcome = ? THEN 0 ELSE 1 END),
		       CAST(AVG(latency_ms) AS INTEGER)
		FROM call_metrics
		WHERE timestamp >= ?
		GROUP BY call
		ORDER BY call`, OutcomeSuccess, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query call summary: %w", err)
	}
	defer rows.Close()

	var results []CallSummary
	for rows.Next() {
		var c CallSummary
		if err := rows.Scan(&c.Call, &c.TotalCalls, &c.Failures, &c.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan call summary: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(timestampLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM call_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up call metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapCall converts the outcome of a backend call into a CallMetric.
func MapCall(call, requestID string, latency time.Duration, err error) CallMetric {
	m := CallMetric{
		Call:      call,
		Outcome:   OutcomeSuccess,
		RequestID: requestID,
		LatencyMS: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		m.Outcome = OutcomeAPIError
		m.StatusCode = apiErr.StatusCode
	case err != nil:
		m.Outcome = OutcomeError
	}
	return m
}
