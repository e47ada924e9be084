package monitor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wavelet/txnflow/common/stats"
)

func makeTestMonitor() (*Monitor, *stats.ManualTime) {
	clock := stats.NewManualTime(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	return NewMonitor(clock, nil), clock
}

// record a transaction that takes d and ends with the given status.
func recordTxn(m *Monitor, clock *stats.ManualTime, id string, txnType string, status string, d time.Duration) {
	m.RecordTransactionStart(id, "user1", txnType, 100)
	clock.Advance(d)
	m.RecordTransactionComplete(id, status, "")
}

func TestHealthSnapshotBeforeAnyCompletion(t *testing.T) {
	m, _ := makeTestMonitor()
	m.RecordTransactionStart("t1", "user1", "transfer", 100)

	snapshot := m.GetHealthSnapshot(DefaultWindow)
	if snapshot.QueueSize < 1 {
		t.Error("Expected queue size >= 1, got", snapshot.QueueSize)
	}
	if snapshot.FailureRate != 0 {
		t.Error("Expected zero failure rate, got", snapshot.FailureRate)
	}
	if snapshot.ProcessingRate <= 0 {
		t.Error("Expected a positive processing rate, got", snapshot.ProcessingRate)
	}
}

func TestCompleteUnknownTransactionIsNoop(t *testing.T) {
	m, _ := makeTestMonitor()
	m.RecordTransactionComplete("never-started", StatusCompleted, "")

	if m.GetPerformanceReport().SampleCount != 0 {
		t.Error("Expected no duration samples for an unknown completion")
	}
}

func TestDuplicateCompletionIsRejected(t *testing.T) {
	m, clock := makeTestMonitor()
	m.RecordTransactionStart("t1", "user1", "transfer", 100)
	clock.Advance(10 * time.Millisecond)
	m.RecordTransactionComplete("t1", StatusCompleted, "")

	clock.Advance(time.Second)
	m.RecordTransactionComplete("t1", StatusFailed, "late duplicate")

	txn, _ := m.GetTransaction("t1")
	if txn.Status != StatusCompleted {
		t.Error("Expected the first completion to win, got", txn.Status)
	}
	if d, _ := txn.DurationMs(); d != 10 {
		t.Error("Expected the original 10ms duration, got", d)
	}
	if m.GetPerformanceReport().SampleCount != 1 {
		t.Error("Expected exactly one duration sample")
	}
}

func TestLastStartWins(t *testing.T) {
	m, clock := makeTestMonitor()
	m.RecordTransactionStart("t1", "user1", "transfer", 100)
	clock.Advance(time.Minute)
	m.RecordTransactionStart("t1", "user1", "transfer", 200)

	txn, _ := m.GetTransaction("t1")
	if txn.Amount != 200 {
		t.Error("Expected the later start to overwrite, got amount", txn.Amount)
	}
	if txn.CompletedAt != nil {
		t.Error("Expected the rewritten record to be in progress again")
	}
}

func TestP95RequiresTwentySamples(t *testing.T) {
	m, clock := makeTestMonitor()

	for i := 0; i < 19; i++ {
		recordTxn(m, clock, fmt.Sprintf("t%d", i), "transfer", StatusCompleted, 10*time.Millisecond)
	}
	snapshot := m.GetHealthSnapshot(DefaultWindow)
	if snapshot.P95LatencyMs != 0 {
		t.Error("Expected p95 to be 0 with 19 samples, got", snapshot.P95LatencyMs)
	}
	if snapshot.AvgLatencyMs != 10 {
		t.Error("Expected 10ms average latency, got", snapshot.AvgLatencyMs)
	}

	recordTxn(m, clock, "t19", "transfer", StatusCompleted, 10*time.Millisecond)
	snapshot = m.GetHealthSnapshot(DefaultWindow)
	if snapshot.P95LatencyMs == 0 {
		t.Error("Expected a non-zero p95 with 20 samples")
	}
}

func TestP99RequiresHundredSamples(t *testing.T) {
	m, clock := makeTestMonitor()

	for i := 0; i < 99; i++ {
		recordTxn(m, clock, fmt.Sprintf("t%d", i), "transfer", StatusCompleted, 5*time.Millisecond)
	}
	snapshot := m.GetHealthSnapshot(DefaultWindow)
	if snapshot.P99LatencyMs != 0 {
		t.Error("Expected p99 to be 0 with 99 samples, got", snapshot.P99LatencyMs)
	}

	recordTxn(m, clock, "t99", "transfer", StatusCompleted, 5*time.Millisecond)
	snapshot = m.GetHealthSnapshot(DefaultWindow)
	if snapshot.P99LatencyMs == 0 {
		t.Error("Expected a non-zero p99 with 100 samples")
	}
}

func TestHealthSnapshotWindowing(t *testing.T) {
	m, clock := makeTestMonitor()

	recordTxn(m, clock, "old", "transfer", StatusFailed, time.Millisecond)
	clock.Advance(2 * time.Hour)
	recordTxn(m, clock, "recent", "transfer", StatusCompleted, time.Millisecond)

	snapshot := m.GetHealthSnapshot(time.Hour)
	if snapshot.QueueSize != 1 {
		t.Error("Expected only the recent transaction in the window, got", snapshot.QueueSize)
	}
	if snapshot.FailureRate != 0 {
		t.Error("Expected the old failure to be outside the window, got", snapshot.FailureRate)
	}
}

func TestHealthSnapshotGaugeCallbacks(t *testing.T) {
	m, _ := makeTestMonitor()
	m.SetActiveSagasFn(func() int { return 7 })
	m.SetDeadletterSizeFn(func() int { return 2 })

	snapshot := m.GetHealthSnapshot(DefaultWindow)
	if snapshot.ActiveSagas != 7 || snapshot.DeadletterSize != 2 {
		t.Error("Expected gauge callbacks in the snapshot, got",
			snapshot.ActiveSagas, snapshot.DeadletterSize)
	}
}

func TestFailureRateWithinWindow(t *testing.T) {
	m, clock := makeTestMonitor()

	recordTxn(m, clock, "t1", "transfer", StatusCompleted, time.Millisecond)
	recordTxn(m, clock, "t2", "transfer", StatusFailed, time.Millisecond)
	recordTxn(m, clock, "t3", "payment", StatusFailed, time.Millisecond)
	recordTxn(m, clock, "t4", "payment", StatusCompleted, time.Millisecond)

	snapshot := m.GetHealthSnapshot(DefaultWindow)
	if snapshot.FailureRate != 50 {
		t.Error("Expected a 50% failure rate, got", snapshot.FailureRate)
	}
}

func TestFailureReport(t *testing.T) {
	m, clock := makeTestMonitor()

	m.RecordTransactionStart("old", "user1", "transfer", 100)
	m.RecordTransactionComplete("old", StatusFailed, "stale failure")
	clock.Advance(25 * time.Hour)

	recordTxn(m, clock, "t1", "transfer", StatusFailed, time.Millisecond)
	recordTxn(m, clock, "t2", "transfer", StatusFailed, time.Millisecond)
	recordTxn(m, clock, "t3", "payment", StatusFailed, time.Millisecond)
	recordTxn(m, clock, "t4", "payment", StatusCompleted, time.Millisecond)

	report := m.GetFailureReport(24 * time.Hour)
	if report.TotalFailures != 3 {
		t.Error("Expected 3 failures within the window, got", report.TotalFailures)
	}
	if report.ByType["transfer"] != 2 || report.ByType["payment"] != 1 {
		t.Error("Expected failures grouped by type, got", report.ByType)
	}
	// 3 failures among the 4 transactions started within the window.
	if report.FailureRate != 75 {
		t.Error("Expected a 75% windowed failure rate, got", report.FailureRate)
	}
}

func TestFailureReportConsistentUnderConcurrentRecording(t *testing.T) {
	m, _ := makeTestMonitor()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// The numerator and denominator are sampled together, so the
			// rate can never report more failures than started
			// transactions.
			if report := m.GetFailureReport(DefaultWindow); report.FailureRate > 100 {
				t.Error("Expected a failure rate <= 100%, got", report.FailureRate)
				return
			}
		}
	}()

	const n = 200
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("t%d", i)
		m.RecordTransactionStart(id, "user1", "transfer", 100)
		m.RecordTransactionComplete(id, StatusFailed, "declined")
	}
	close(stop)
	wg.Wait()

	report := m.GetFailureReport(DefaultWindow)
	if report.TotalFailures != n {
		t.Error("Expected", n, "failures, got", report.TotalFailures)
	}
	if report.FailureRate != 100 {
		t.Error("Expected a 100% failure rate once all completed, got", report.FailureRate)
	}
}

func TestPerformanceReport(t *testing.T) {
	m, clock := makeTestMonitor()

	durations := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
	}
	for i, d := range durations {
		recordTxn(m, clock, fmt.Sprintf("t%d", i), "transfer", StatusCompleted, d)
	}

	report := m.GetPerformanceReport()
	if report.SampleCount != 4 {
		t.Fatal("Expected 4 samples, got", report.SampleCount)
	}
	if report.MinMs != 10 || report.MaxMs != 40 {
		t.Error("Expected min 10 and max 40, got", report.MinMs, report.MaxMs)
	}
	if report.AvgMs != 25 {
		t.Error("Expected average 25, got", report.AvgMs)
	}
	if report.MedianMs != 30 {
		t.Error("Expected median 30, got", report.MedianMs)
	}
}

func TestThroughputReport(t *testing.T) {
	m, clock := makeTestMonitor()

	// two in the first hour bucket
	m.RecordTransactionStart("t1", "user1", "transfer", 100)
	m.RecordTransactionStart("t2", "user1", "transfer", 100)
	clock.Advance(time.Hour)
	// one in the next bucket, started within the trailing minute
	m.RecordTransactionStart("t3", "user1", "payment", 100)

	report := m.GetThroughputReport()
	if report.TotalProcessed != 3 {
		t.Error("Expected 3 transactions processed, got", report.TotalProcessed)
	}
	if report.HourlyBreakdown["2024-03-01 10:00"] != 2 {
		t.Error("Expected 2 transactions in the 10:00 bucket, got", report.HourlyBreakdown)
	}
	if report.HourlyBreakdown["2024-03-01 11:00"] != 1 {
		t.Error("Expected 1 transaction in the 11:00 bucket, got", report.HourlyBreakdown)
	}
	if want := 1.0 / 60; report.CurrentTPS != want {
		t.Error("Expected tps of one start in the trailing minute, got", report.CurrentTPS)
	}
}

func TestDashboardData(t *testing.T) {
	m, clock := makeTestMonitor()
	recordTxn(m, clock, "t1", "transfer", StatusCompleted, 10*time.Millisecond)
	recordTxn(m, clock, "t2", "payment", StatusFailed, 20*time.Millisecond)

	dashboard := m.GetDashboardData()
	if dashboard.Health.QueueSize != 2 {
		t.Error("Expected both transactions in the health window, got", dashboard.Health.QueueSize)
	}
	if dashboard.Performance.SampleCount != 2 {
		t.Error("Expected 2 performance samples, got", dashboard.Performance.SampleCount)
	}
	if dashboard.Failures.TotalFailures != 1 {
		t.Error("Expected 1 failure in the report, got", dashboard.Failures.TotalFailures)
	}
	if dashboard.Throughput.TotalProcessed != 2 {
		t.Error("Expected 2 processed in throughput, got", dashboard.Throughput.TotalProcessed)
	}
}

func TestHistory(t *testing.T) {
	m, _ := makeTestMonitor()

	m.GetHealthSnapshot(DefaultWindow)
	m.GetHealthSnapshot(DefaultWindow)
	m.GetHealthSnapshot(DefaultWindow)

	if got := len(m.History(2)); got != 2 {
		t.Error("Expected the 2 most recent snapshots, got", got)
	}
	if got := len(m.History(10)); got != 3 {
		t.Error("Expected all 3 snapshots, got", got)
	}
}
