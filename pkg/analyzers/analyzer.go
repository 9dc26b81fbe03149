// Package analyzers implements the six statistical analyzers that inspect a
// dataset: completeness, typology, semantics, geospatial readiness, PII risk,
// and ML readiness. Each analyzer is independent, reads the table without
// mutating it, and returns a typed result.
package analyzers

import (
	"context"
	"time"

	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Kind identifies an analyzer. Values double as the consolidated report keys.
type Kind string

const (
	KindCompleteness  Kind = "completitud"
	KindTypology      Kind = "tipos"
	KindSemantic      Kind = "semantica"
	KindGeospatial    Kind = "geoespacial"
	KindAnonymization Kind = "anonimizacion"
	KindML            Kind = "ml"
)

// Kinds returns all analyzer kinds in consolidation order
func Kinds() []Kind {
	return []Kind{
		KindCompleteness,
		KindTypology,
		KindSemantic,
		KindGeospatial,
		KindAnonymization,
		KindML,
	}
}

// Priority grades a recommendation
type Priority string

const (
	PriorityCritical Priority = "critica"
	PriorityHigh     Priority = "alta"
	PriorityMedium   Priority = "media"
	PriorityLow      Priority = "baja"
	PriorityInfo     Priority = "informacion"
)

// Recommendation is a prioritized remediation suggestion attached to a result
type Recommendation struct {
	Priority Priority `json:"priority"`
	Field    string   `json:"field"`
	Issue    string   `json:"issue"`
	Action   string   `json:"action"`
	Impact   string   `json:"impact"`
}

// Result is the common surface of every analyzer output
type Result interface {
	// AnalyzerKind identifies which analyzer produced the result
	AnalyzerKind() Kind
	// IsError reports whether the result is a failure placeholder
	IsError() bool
}

// Analyzer inspects a table and returns a typed result
type Analyzer interface {
	Kind() Kind
	Analyze(ctx context.Context, t *dataset.Table) (Result, error)
}

// ErrorSummary is the scorecard of a failure placeholder
type ErrorSummary struct {
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
	Analyzer     string `json:"analyzer"`
}

// ErrorResult stands in for an analyzer that failed or timed out. It is
// structurally valid so consolidation never sees a missing slot.
type ErrorResult struct {
	Kind              Kind             `json:"-"`
	Summary           ErrorSummary     `json:"summary"`
	Recommendations   []Recommendation `json:"recommendations"`
	AnalysisTimestamp string           `json:"analysis_timestamp"`
}

// NewErrorResult builds the placeholder for a failed analyzer
func NewErrorResult(kind Kind, err error) *ErrorResult {
	return &ErrorResult{
		Kind: kind,
		Summary: ErrorSummary{
			Error:        true,
			ErrorMessage: err.Error(),
			Analyzer:     string(kind),
		},
		Recommendations: []Recommendation{{
			Priority: PriorityCritical,
			Field:    string(kind),
			Issue:    "El analizador falló: " + err.Error(),
			Action:   "Revisar los datos de entrada y volver a ejecutar el análisis",
			Impact:   "Alto - Esta dimensión del diagnóstico no está disponible",
		}},
		AnalysisTimestamp: Timestamp(),
	}
}

// AnalyzerKind implements Result
func (r *ErrorResult) AnalyzerKind() Kind { return r.Kind }

// IsError implements Result
func (r *ErrorResult) IsError() bool { return true }

// Timestamp returns the analysis timestamp in ISO-8601 UTC
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
