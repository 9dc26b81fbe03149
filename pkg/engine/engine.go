// Package engine orchestrates the six analyzers over one dataset, isolates
// their failures, optionally anonymizes detected PII, and assembles the
// consolidated analysis consumed downstream.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/analyzers"
	"github.com/cuidar-analytics/evaluator/pkg/anonymizer"
	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Engine runs the full evaluation pipeline. Construct one per configuration;
// it is safe for concurrent runs.
type Engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry map[analyzers.Kind]analyzers.Analyzer
	strategy anonymizer.Strategy
}

// RunResult is everything one orchestration run produces
type RunResult struct {
	RunID               uuid.UUID              `json:"run_id"`
	Consolidated        *ConsolidatedAnalysis  `json:"consolidated"`
	SchemaWarnings      []string               `json:"schema_warnings,omitempty"`
	AnonymizedTable     *dataset.Table         `json:"-"`
	AnonymizationReport *anonymizer.Report     `json:"anonymization_report,omitempty"`
	ResidualValidation  *anonymizer.Validation `json:"residual_validation,omitempty"`
	Metrics             *RunMetrics            `json:"-"`
}

// New builds an engine with the six standard analyzers
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "engine")),
		registry: make(map[analyzers.Kind]analyzers.Analyzer, 6),
		strategy: anonymizer.StrategyHash,
	}

	completeness, err := analyzers.NewCompleteness(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building completeness analyzer: %w", err)
	}
	typology, err := analyzers.NewTypology(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building typology analyzer: %w", err)
	}
	semantic, err := analyzers.NewSemantic(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building semantic analyzer: %w", err)
	}
	geospatial, err := analyzers.NewGeospatial(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building geospatial analyzer: %w", err)
	}
	pii, err := analyzers.NewPII(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building pii analyzer: %w", err)
	}
	ml, err := analyzers.NewMLReadiness(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building ml analyzer: %w", err)
	}

	for _, a := range []analyzers.Analyzer{completeness, typology, semantic, geospatial, pii, ml} {
		e.registry[a.Kind()] = a
	}
	return e, nil
}

// WithAnalyzer replaces one analyzer in the registry. Used to inject
// instrumented or failing analyzers in tests.
func (e *Engine) WithAnalyzer(a analyzers.Analyzer) *Engine {
	e.registry[a.Kind()] = a
	return e
}

// WithAnonymizationStrategy sets the strategy used by auto-anonymization
func (e *Engine) WithAnonymizationStrategy(strategy anonymizer.Strategy) *Engine {
	e.strategy = strategy
	return e
}

// task pairs an analyzer with its slot kind
type task struct {
	kind     analyzers.Kind
	analyzer analyzers.Analyzer
}

// taskResult carries one resolved slot back to the collector
type taskResult struct {
	kind     analyzers.Kind
	result   analyzers.Result
	duration time.Duration
	failure  *FailureRecord
}

// Run executes all six analyzers concurrently, consolidates their results,
// and conditionally anonymizes the table when PII was detected. Analyzer
// failures fill their slot with an error placeholder; they never abort the
// run.
func (e *Engine) Run(ctx context.Context, t *dataset.Table, filename string, autoAnonymize bool) (*RunResult, error) {
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("running analysis: %w", dataset.ErrEmptyDataset)
	}

	runID := uuid.New()
	logger := e.logger.With(zap.String("runID", runID.String()))
	metrics := NewRunMetrics(logger)

	logger.Info("Starting analysis run",
		zap.String("filename", filename),
		zap.Int("rows", t.Rows()),
		zap.Int("columns", t.Cols()),
		zap.Bool("autoAnonymize", autoAnonymize))

	jobs := make(chan task, len(e.registry))
	results := make(chan taskResult, len(e.registry))

	workers := e.cfg.Workers
	if workers > len(e.registry) {
		workers = len(e.registry)
	}
	for i := 0; i < workers; i++ {
		go e.worker(ctx, i, logger, t, jobs, results)
	}

	for kind, a := range e.registry {
		jobs <- task{kind: kind, analyzer: a}
	}
	close(jobs)

	consolidated := &ConsolidatedAnalysis{
		Metadata: Metadata{
			Filename:     filename,
			TotalRows:    t.Rows(),
			TotalColumns: t.Cols(),
			ColumnNames:  t.ColumnNames(),
			AnalysisDate: analyzers.Timestamp(),
		},
	}

	for i := 0; i < len(e.registry); i++ {
		tr := <-results
		metrics.RecordAnalyzer(tr.kind, tr.duration, tr.failure)
		if err := consolidated.Set(tr.kind, tr.result); err != nil {
			logger.Error("Failed to store analyzer result", zap.Error(err))
		}
	}

	run := &RunResult{
		RunID:        runID,
		Consolidated: consolidated,
		Metrics:      metrics,
	}

	if autoAnonymize {
		if err := e.anonymize(t, run, logger); err != nil {
			logger.Error("Anonymization failed", zap.Error(err))
		}
	}

	if warnings := consolidated.Validate(); len(warnings) > 0 {
		run.SchemaWarnings = warnings
		for _, w := range warnings {
			logger.Warn("Consolidated schema warning", zap.String("warning", w))
		}
	}

	metrics.Finish()
	metrics.LogSummary()
	return run, nil
}

// worker drains the job channel, running each analyzer in isolation
func (e *Engine) worker(ctx context.Context, id int, logger *zap.Logger, t *dataset.Table, jobs <-chan task, results chan<- taskResult) {
	workerLogger := logger.With(zap.Int("workerID", id))
	for job := range jobs {
		workerLogger.Debug("Received analyzer job", zap.String("analyzer", string(job.kind)))
		results <- e.execute(ctx, job, t)
	}
}

// execute runs one analyzer with panic recovery and an individual timeout.
// Whatever goes wrong, it returns a structurally valid result.
func (e *Engine) execute(ctx context.Context, job task, t *dataset.Table) taskResult {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalyzerTimeout)
	defer cancel()

	type outcome struct {
		result analyzers.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("analyzer panicked: %v", r)}
			}
		}()
		result, err := job.analyzer.Analyze(runCtx, t)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(start)
		if out.err != nil {
			failure := NewFailureRecord(job.kind, out.err, FailureCategoryRuntime)
			return taskResult{
				kind:     job.kind,
				result:   analyzers.NewErrorResult(job.kind, out.err),
				duration: duration,
				failure:  &failure,
			}
		}
		return taskResult{kind: job.kind, result: out.result, duration: duration}

	case <-runCtx.Done():
		duration := time.Since(start)
		err := fmt.Errorf("analyzer %s exceeded timeout of %s", job.kind, e.cfg.AnalyzerTimeout)
		failure := NewFailureRecord(job.kind, err, FailureCategoryTimeout)
		return taskResult{
			kind:     job.kind,
			result:   analyzers.NewErrorResult(job.kind, err),
			duration: duration,
			failure:  &failure,
		}
	}
}

// anonymize runs the anonymizer against the original table when the PII
// analyzer flagged columns. The PII result is reused, never recomputed.
func (e *Engine) anonymize(t *dataset.Table, run *RunResult, logger *zap.Logger) error {
	piiResult, ok := run.Consolidated.PII.(*analyzers.PIIResult)
	if !ok || !piiResult.Summary.PIIDetected {
		return nil
	}

	anon, err := anonymizer.New(e.strategy, logger)
	if err != nil {
		return fmt.Errorf("building anonymizer: %w", err)
	}

	anonymized, transformations, err := anon.Anonymize(t, piiResult.ColumnsWithPII)
	if err != nil {
		return fmt.Errorf("anonymizing table: %w", err)
	}

	report := anonymizer.BuildReport(t, anonymized, transformations)
	validation := anonymizer.Validate(anonymized)

	run.AnonymizedTable = anonymized
	run.AnonymizationReport = &report
	run.ResidualValidation = &validation
	run.Consolidated.Metadata.Anonymized = true

	logger.Info("Table anonymized",
		zap.Int("columnsTransformed", report.TransformationsApplied),
		zap.Int("columnsRemoved", len(report.ColumnsRemoved)),
		zap.Bool("residualSafe", validation.IsSafe))
	return nil
}

// RunAnalyzer executes one analyzer by kind, outside the pool. Useful for
// re-running a failed dimension in isolation.
func (e *Engine) RunAnalyzer(ctx context.Context, kind analyzers.Kind, t *dataset.Table) (analyzers.Result, error) {
	a, ok := e.registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown analyzer kind %q", kind)
	}
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("running analyzer %s: %w", kind, dataset.ErrEmptyDataset)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalyzerTimeout)
	defer cancel()
	return a.Analyze(runCtx, t)
}
