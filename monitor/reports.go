package monitor

import (
	"sort"
	"time"
)

// Minimum windowed sample counts before tail percentiles are reported.
// Below the floor the percentile is 0: a p99 over a handful of samples
// is noise, not signal.
const (
	p95SampleFloor = 20
	p99SampleFloor = 100
)

/*
 * Computes pipeline health over the trailing window: queue size and
 * processing rate from transactions started within the window, failure
 * rate among them, and latency percentiles from the sorted windowed
 * durations. The snapshot is appended to history and returned.
 */
func (m *Monitor) GetHealthSnapshot(window time.Duration) HealthSnapshot {
	now := m.clock.Now()
	cutoff := now.Add(-window)

	var windowed, failed int
	var durations []float64
	for _, txn := range m.snapshotMetrics() {
		if txn.StartedAt.Before(cutoff) {
			continue
		}
		windowed++
		if txn.Status == StatusFailed {
			failed++
		}
		if d, ok := txn.DurationMs(); ok {
			durations = append(durations, d)
		}
	}
	sort.Float64s(durations)

	snapshot := HealthSnapshot{
		Timestamp:      now,
		WindowSeconds:  window.Seconds(),
		QueueSize:      windowed,
		ProcessingRate: float64(windowed) / window.Seconds(),
		AvgLatencyMs:   mean(durations),
	}
	if windowed > 0 {
		snapshot.FailureRate = float64(failed) / float64(windowed) * 100
	}
	if len(durations) >= p95SampleFloor {
		snapshot.P95LatencyMs = percentile(durations, 0.95)
	}
	if len(durations) >= p99SampleFloor {
		snapshot.P99LatencyMs = percentile(durations, 0.99)
	}

	m.mutex.Lock()
	if m.activeSagas != nil {
		snapshot.ActiveSagas = m.activeSagas()
	}
	if m.deadletterSize != nil {
		snapshot.DeadletterSize = m.deadletterSize()
	}
	m.history = append(m.history, snapshot)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.mutex.Unlock()

	m.stat.GaugeFloat("failureRate").Update(snapshot.FailureRate)
	m.stat.Gauge("queueSize").Update(int64(snapshot.QueueSize))
	return snapshot
}

// History returns the most recent n health snapshots, oldest first.
func (m *Monitor) History(n int) []HealthSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if n > len(m.history) {
		n = len(m.history)
	}
	out := make([]HealthSnapshot, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

/*
 * Failures within the trailing window, grouped by transaction type. The
 * failure rate uses the same window for both sides of the ratio:
 * windowed failures over transactions started within the window.
 */
func (m *Monitor) GetFailureReport(window time.Duration) FailureReport {
	now := m.clock.Now()
	cutoff := now.Add(-window)

	report := FailureReport{
		WindowHours: window.Hours(),
		ByType:      make(map[string]int),
	}

	// One lock acquisition for both sides of the ratio so the numerator
	// and denominator describe the same population.
	m.mutex.RLock()
	for _, f := range m.failures {
		if f.Timestamp.Before(cutoff) {
			continue
		}
		report.TotalFailures++
		report.ByType[f.TransactionType]++
	}
	var windowedStarts int
	for _, txn := range m.metrics {
		if !txn.StartedAt.Before(cutoff) {
			windowedStarts++
		}
	}
	m.mutex.RUnlock()

	if windowedStarts > 0 {
		report.FailureRate = float64(report.TotalFailures) / float64(windowedStarts) * 100
	}
	return report
}

// Latency summary over every duration sample ever recorded.
func (m *Monitor) GetPerformanceReport() PerformanceReport {
	m.mutex.RLock()
	durations := make([]float64, len(m.durations))
	copy(durations, m.durations)
	m.mutex.RUnlock()

	if len(durations) == 0 {
		return PerformanceReport{}
	}
	sort.Float64s(durations)

	return PerformanceReport{
		SampleCount: len(durations),
		MinMs:       durations[0],
		MaxMs:       durations[len(durations)-1],
		AvgMs:       mean(durations),
		MedianMs:    percentile(durations, 0.5),
		P95Ms:       percentile(durations, 0.95),
		P99Ms:       percentile(durations, 0.99),
	}
}

/*
 * Buckets all recorded transactions by wall-clock hour of start time and
 * reports instantaneous throughput as starts in the trailing 60 seconds
 * divided by 60.
 */
func (m *Monitor) GetThroughputReport() ThroughputReport {
	now := m.clock.Now()
	tpsCutoff := now.Add(-time.Minute)

	report := ThroughputReport{
		HourlyBreakdown: make(map[string]int),
	}

	var lastMinute int
	for _, txn := range m.snapshotMetrics() {
		report.TotalProcessed++
		hour := txn.StartedAt.Truncate(time.Hour).Format("2006-01-02 15:00")
		report.HourlyBreakdown[hour]++
		if !txn.StartedAt.Before(tpsCutoff) {
			lastMinute++
		}
	}
	report.CurrentTPS = float64(lastMinute) / 60

	return report
}

// Bundles a fresh health snapshot, performance report, throughput report
// and a 24-hour failure report for dashboard polling.
func (m *Monitor) GetDashboardData() DashboardData {
	return DashboardData{
		Health:      m.GetHealthSnapshot(DefaultWindow),
		Performance: m.GetPerformanceReport(),
		Throughput:  m.GetThroughputReport(),
		Failures:    m.GetFailureReport(24 * time.Hour),
	}
}

// percentile of a sorted sample using the nearest-rank-above method:
// index p*N clamped to the last element.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
