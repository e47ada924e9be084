// Package monitor tracks per-transaction timing and outcome and derives
// windowed health, percentile latency, failure and throughput reports
// for the transaction pipeline. The monitor is a passive observer: it
// never affects orchestration control flow.
package monitor

import (
	"time"
)

// Transaction status vocabulary.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

/*
 * Timing/outcome record for one transaction. Created on start with
 * status in_progress and finalized once on completion; later completions
 * for the same id are rejected rather than overwriting.
 */
type TransactionMetrics struct {
	TransactionID   string     `json:"transaction_id"`
	UserID          string     `json:"user_id"`
	TransactionType string     `json:"transaction_type"`
	Amount          float64    `json:"amount"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
}

// DurationMs returns the transaction duration in milliseconds, false if
// the transaction has not completed.
func (m *TransactionMetrics) DurationMs() (float64, bool) {
	if m.CompletedAt == nil {
		return 0, false
	}
	return float64(m.CompletedAt.Sub(m.StartedAt)) / float64(time.Millisecond), true
}

// One entry in the failure log.
type FailureRecord struct {
	TransactionID   string    `json:"transaction_id"`
	Timestamp       time.Time `json:"timestamp"`
	Error           string    `json:"error"`
	TransactionType string    `json:"transaction_type"`
}

/*
 * Point-in-time view of pipeline health over a trailing window.
 * Snapshots are appended to a bounded history purely for trend queries;
 * they never feed back into computation.
 */
type HealthSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	WindowSeconds  float64   `json:"window_seconds"`
	QueueSize      int       `json:"queue_size"`
	ProcessingRate float64   `json:"processing_rate"`
	FailureRate    float64   `json:"failure_rate"`
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
	P95LatencyMs   float64   `json:"p95_latency_ms"`
	P99LatencyMs   float64   `json:"p99_latency_ms"`
	DeadletterSize int       `json:"deadletter_size"`
	ActiveSagas    int       `json:"active_sagas"`
}

type FailureReport struct {
	WindowHours   float64        `json:"window_hours"`
	TotalFailures int            `json:"total_failures"`
	ByType        map[string]int `json:"by_type"`
	// Windowed failures over windowed started transactions, as a
	// percentage. Both sides of the ratio use the same window.
	FailureRate float64 `json:"failure_rate"`
}

// Latency summary over all-time duration samples (unwindowed).
type PerformanceReport struct {
	SampleCount int     `json:"sample_count"`
	MinMs       float64 `json:"min_ms"`
	MaxMs       float64 `json:"max_ms"`
	AvgMs       float64 `json:"avg_ms"`
	MedianMs    float64 `json:"median_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
}

type ThroughputReport struct {
	TotalProcessed  int            `json:"total_processed"`
	HourlyBreakdown map[string]int `json:"hourly_breakdown"`
	CurrentTPS      float64        `json:"current_tps"`
}

type DashboardData struct {
	Health      HealthSnapshot    `json:"health"`
	Performance PerformanceReport `json:"performance"`
	Throughput  ThroughputReport  `json:"throughput"`
	Failures    FailureReport     `json:"failures"`
}
