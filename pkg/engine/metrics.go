package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/analyzers"
)

// RunMetrics tracks per-analyzer timings and failures for one run
type RunMetrics struct {
	mu                sync.Mutex
	logger            *zap.Logger
	StartTime         time.Time
	EndTime           time.Time
	AnalyzerDurations map[analyzers.Kind]time.Duration
	Failures          []FailureRecord
	FailureCounts     map[FailureCategory]int
}

// NewRunMetrics creates a metrics tracker for a run starting now
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:            logger,
		StartTime:         time.Now(),
		AnalyzerDurations: make(map[analyzers.Kind]time.Duration),
		FailureCounts:     make(map[FailureCategory]int),
	}
}

// RecordAnalyzer records a completed analyzer, successful or not
func (m *RunMetrics) RecordAnalyzer(kind analyzers.Kind, duration time.Duration, failure *FailureRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AnalyzerDurations[kind] = duration
	if failure != nil {
		m.Failures = append(m.Failures, *failure)
		m.FailureCounts[failure.Category]++
	}

	if m.logger != nil {
		fields := []zap.Field{
			zap.String("analyzer", string(kind)),
			zap.Duration("duration", duration),
		}
		if failure != nil {
			fields = append(fields,
				zap.String("failureCategory", failure.Category.String()),
				zap.String("error", failure.Message))
			m.logger.Warn("Analyzer failed", fields...)
		} else {
			m.logger.Debug("Analyzer completed", fields...)
		}
	}
}

// Finish stamps the end of the run
func (m *RunMetrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

// Duration returns the total run duration
func (m *RunMetrics) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// FailedCount returns how many analyzers failed in this run
func (m *RunMetrics) FailedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Failures)
}

// LogSummary emits one structured line summarizing the run
func (m *RunMetrics) LogSummary() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.logger == nil {
		return
	}

	duration := time.Since(m.StartTime)
	if !m.EndTime.IsZero() {
		duration = m.EndTime.Sub(m.StartTime)
	}

	m.logger.Info("Run completed",
		zap.Duration("duration", duration),
		zap.Int("analyzers", len(m.AnalyzerDurations)),
		zap.Int("failed", len(m.Failures)),
		zap.Int("timeouts", m.FailureCounts[FailureCategoryTimeout]),
		zap.Int("runtimeFailures", m.FailureCounts[FailureCategoryRuntime]))
}
