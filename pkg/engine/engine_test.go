package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/analyzers"
	"github.com/cuidar-analytics/evaluator/pkg/anonymizer"
	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

func mustTable(t *testing.T, cols []dataset.Column) *dataset.Table {
	t.Helper()
	table, err := dataset.New(cols)
	require.NoError(t, err)
	return table
}

func cleanTable(t *testing.T) *dataset.Table {
	return mustTable(t, []dataset.Column{
		{Name: "edad", Values: []dataset.Value{dataset.Int(34), dataset.Int(52), dataset.Int(27)}},
		{Name: "sexo", Values: []dataset.Value{
			dataset.String("M"), dataset.String("F"), dataset.String("M")}},
		{Name: "metodo", Values: []dataset.Value{
			dataset.String("ahorcamiento"), dataset.String("intoxicacion"), dataset.String("precipitacion")}},
		{Name: "municipio", Values: []dataset.Value{
			dataset.String("Sevilla"), dataset.String("Granada"), dataset.String("Sevilla")}},
	})
}

func newEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	e, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return e
}

// failingAnalyzer always returns an error
type failingAnalyzer struct {
	kind analyzers.Kind
}

func (f *failingAnalyzer) Kind() analyzers.Kind { return f.kind }

func (f *failingAnalyzer) Analyze(ctx context.Context, t *dataset.Table) (analyzers.Result, error) {
	return nil, errors.New("synthetic failure")
}

// panickingAnalyzer crashes mid-analysis
type panickingAnalyzer struct {
	kind analyzers.Kind
}

func (p *panickingAnalyzer) Kind() analyzers.Kind { return p.kind }

func (p *panickingAnalyzer) Analyze(ctx context.Context, t *dataset.Table) (analyzers.Result, error) {
	panic("index out of range")
}

// stuckAnalyzer ignores its context and never finishes in time
type stuckAnalyzer struct {
	kind  analyzers.Kind
	delay time.Duration
}

func (s *stuckAnalyzer) Kind() analyzers.Kind { return s.kind }

func (s *stuckAnalyzer) Analyze(ctx context.Context, t *dataset.Table) (analyzers.Result, error) {
	time.Sleep(s.delay)
	return nil, errors.New("too late")
}

func TestEngineRunHappyPath(t *testing.T) {
	table := cleanTable(t)

	run, err := newEngine(t, nil).Run(context.Background(), table, "datos.csv", false)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, run.RunID)
	assert.Empty(t, run.SchemaWarnings)
	assert.Nil(t, run.AnonymizedTable)

	c := run.Consolidated
	assert.Equal(t, "datos.csv", c.Metadata.Filename)
	assert.Equal(t, 3, c.Metadata.TotalRows)
	assert.Equal(t, 4, c.Metadata.TotalColumns)
	assert.False(t, c.Metadata.Anonymized)
	assert.NotEmpty(t, c.Metadata.AnalysisDate)

	for _, kind := range analyzers.Kinds() {
		result := c.Get(kind)
		require.NotNil(t, result, "slot %s", kind)
		assert.Equal(t, kind, result.AnalyzerKind())
		assert.False(t, result.IsError(), "slot %s", kind)
	}
	assert.Empty(t, c.FailedAnalyzers())
	assert.Equal(t, 0, run.Metrics.FailedCount())
	assert.Len(t, run.Metrics.AnalyzerDurations, 6)

	s := Summarize(c)
	assert.Equal(t, 6, s.AnalyzersRun)
	assert.Equal(t, 0, s.AnalyzersFailed)
	assert.False(t, s.PIIDetected)
	assert.False(t, s.Anonymized)
	assert.Len(t, s.Scores, 5, "five quality scores, pii reported via level")

	mean := 0.0
	for _, score := range s.Scores {
		mean += score
	}
	mean /= float64(len(s.Scores))
	assert.InDelta(t, mean, s.OverallScore, 1e-9)
}

func TestEngineIsolatesFailingAnalyzer(t *testing.T) {
	table := cleanTable(t)
	e := newEngine(t, nil).WithAnalyzer(&failingAnalyzer{kind: analyzers.KindTypology})

	run, err := e.Run(context.Background(), table, "datos.csv", false)
	require.NoError(t, err)

	c := run.Consolidated
	placeholder, ok := c.Typology.(*analyzers.ErrorResult)
	require.True(t, ok, "failed slot holds an error placeholder")
	assert.True(t, placeholder.Summary.Error)
	assert.Contains(t, placeholder.Summary.ErrorMessage, "synthetic failure")
	assert.Equal(t, analyzers.KindTypology, placeholder.AnalyzerKind())

	// The other five dimensions are unaffected
	for _, kind := range analyzers.Kinds() {
		if kind == analyzers.KindTypology {
			continue
		}
		result := c.Get(kind)
		require.NotNil(t, result)
		assert.False(t, result.IsError(), "slot %s", kind)
	}

	assert.Equal(t, []analyzers.Kind{analyzers.KindTypology}, c.FailedAnalyzers())
	assert.Empty(t, run.SchemaWarnings, "error placeholders satisfy the schema")
	assert.Equal(t, 1, run.Metrics.FailedCount())
	assert.Equal(t, 1, run.Metrics.FailureCounts[FailureCategoryRuntime])

	s := Summarize(c)
	assert.Equal(t, 1, s.AnalyzersFailed)
	require.NotEmpty(t, s.CriticalAlerts)
	assert.Contains(t, s.CriticalAlerts[0], "tipos")
}

func TestEngineRecoversFromPanic(t *testing.T) {
	table := cleanTable(t)
	e := newEngine(t, nil).WithAnalyzer(&panickingAnalyzer{kind: analyzers.KindML})

	run, err := e.Run(context.Background(), table, "datos.csv", false)
	require.NoError(t, err)

	placeholder, ok := run.Consolidated.ML.(*analyzers.ErrorResult)
	require.True(t, ok)
	assert.Contains(t, placeholder.Summary.ErrorMessage, "panicked")
	assert.Equal(t, 1, run.Metrics.FailureCounts[FailureCategoryRuntime])
}

func TestEngineTimesOutStuckAnalyzer(t *testing.T) {
	cfg := config.Default()
	cfg.AnalyzerTimeout = 50 * time.Millisecond
	e := newEngine(t, cfg).WithAnalyzer(&stuckAnalyzer{kind: analyzers.KindSemantic, delay: 2 * time.Second})

	run, err := e.Run(context.Background(), cleanTable(t), "datos.csv", false)
	require.NoError(t, err)

	placeholder, ok := run.Consolidated.Semantic.(*analyzers.ErrorResult)
	require.True(t, ok)
	assert.Contains(t, placeholder.Summary.ErrorMessage, "timeout")
	assert.Equal(t, 1, run.Metrics.FailureCounts[FailureCategoryTimeout])
}

func TestEngineAutoAnonymizes(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "nombre", Values: []dataset.Value{
			dataset.String("Juan García"), dataset.String("Ana López")}},
		{Name: "edad", Values: []dataset.Value{dataset.Int(34), dataset.Int(52)}},
	})

	run, err := newEngine(t, nil).Run(context.Background(), table, "datos.csv", true)
	require.NoError(t, err)

	piiResult, ok := run.Consolidated.PII.(*analyzers.PIIResult)
	require.True(t, ok)
	assert.True(t, piiResult.Summary.PIIDetected)

	require.NotNil(t, run.AnonymizedTable)
	assert.True(t, run.Consolidated.Metadata.Anonymized)
	assert.Equal(t, 2, run.AnonymizedTable.Rows())

	col, ok := run.AnonymizedTable.Column("nombre")
	require.True(t, ok)
	assert.Equal(t, anonymizer.HashValue("Juan García"), col.Values[0].Text())

	require.NotNil(t, run.AnonymizationReport)
	assert.Equal(t, anonymizer.TransformHashed, run.AnonymizationReport.TransformationDetails["nombre"])
	require.NotNil(t, run.ResidualValidation)
	assert.True(t, run.ResidualValidation.IsSafe)

	// The input table itself is never modified
	original, _ := table.Column("nombre")
	assert.Equal(t, "Juan García", original.Values[0].Text())
}

func TestEngineSkipsAnonymizationWhenClean(t *testing.T) {
	run, err := newEngine(t, nil).Run(context.Background(), cleanTable(t), "datos.csv", true)
	require.NoError(t, err)

	assert.Nil(t, run.AnonymizedTable)
	assert.Nil(t, run.AnonymizationReport)
	assert.False(t, run.Consolidated.Metadata.Anonymized)
}

func TestEngineRejectsEmptyTable(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.Run(context.Background(), nil, "datos.csv", false)
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)

	empty := mustTable(t, []dataset.Column{{Name: "a"}})
	_, err = e.Run(context.Background(), empty, "datos.csv", false)
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)
}

func TestRunAnalyzerSingle(t *testing.T) {
	e := newEngine(t, nil)
	table := cleanTable(t)

	result, err := e.RunAnalyzer(context.Background(), analyzers.KindCompleteness, table)
	require.NoError(t, err)
	assert.IsType(t, &analyzers.CompletenessResult{}, result)

	_, err = e.RunAnalyzer(context.Background(), analyzers.Kind("inexistente"), table)
	assert.Error(t, err)
}

func TestConsolidatedValidate(t *testing.T) {
	c := &ConsolidatedAnalysis{}
	warnings := c.Validate()
	assert.Len(t, warnings, 9, "three metadata warnings plus six missing slots")

	c.Metadata = Metadata{TotalRows: 1, TotalColumns: 1, AnalysisDate: analyzers.Timestamp()}
	for _, kind := range analyzers.Kinds() {
		require.NoError(t, c.Set(kind, analyzers.NewErrorResult(kind, errors.New("x"))))
	}
	assert.Empty(t, c.Validate())

	// A result stored under the wrong key is flagged
	require.NoError(t, c.Set(analyzers.KindTypology,
		analyzers.NewErrorResult(analyzers.KindSemantic, errors.New("x"))))
	warnings = c.Validate()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "tipos")
}
