package stats

import (
	"sync"
	"time"
)

// wraps the stdlib time.Ticker struct, allows for mocking in tests
type StatsTicker interface {
	C() <-chan time.Time
	Stop()
}

type statsTicker struct {
	*time.Ticker
}

func (s *statsTicker) C() <-chan time.Time { return s.Ticker.C }

func NewStatsTicker(dur time.Duration) StatsTicker {
	return &statsTicker{time.NewTicker(dur)}
}

// Defines the calls we make to the stdlib time package. Allows for
// overriding in tests.
type StatsTime interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) StatsTicker
}

type defaultStatsTime struct{}

func (defaultStatsTime) Now() time.Time                        { return time.Now() }
func (defaultStatsTime) Since(t time.Time) time.Duration       { return time.Since(t) }
func (defaultStatsTime) NewTicker(d time.Duration) StatsTicker { return NewStatsTicker(d) }

var stdlibStatsTime = defaultStatsTime{}

// Returns a StatsTime instance backed by the stdlib 'time' package
func DefaultStatsTime() StatsTime { return stdlibStatsTime }

// ManualTime is a StatsTime whose clock only moves when the test says so.
type ManualTime struct {
	mu  sync.Mutex
	now time.Time
	ch  <-chan time.Time
}

type manualTicker struct {
	ch <-chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func NewManualTime(start time.Time) *ManualTime {
	return &ManualTime{now: start, ch: make(chan time.Time)}
}

func (t *ManualTime) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

func (t *ManualTime) Since(since time.Time) time.Duration {
	return t.Now().Sub(since)
}

func (t *ManualTime) NewTicker(time.Duration) StatsTicker {
	return &manualTicker{ch: t.ch}
}

// Advance moves the clock forward by d.
func (t *ManualTime) Advance(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = t.now.Add(d)
}

// Set jumps the clock to the given instant.
func (t *ManualTime) Set(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}
