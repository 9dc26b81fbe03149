package engine

import (
	"fmt"

	"github.com/cuidar-analytics/evaluator/pkg/analyzers"
)

// Metadata describes the analyzed dataset
type Metadata struct {
	Filename     string   `json:"filename"`
	TotalRows    int      `json:"total_rows"`
	TotalColumns int      `json:"total_columns"`
	ColumnNames  []string `json:"column_names"`
	AnalysisDate string   `json:"analysis_date"`
	Anonymized   bool     `json:"anonymized"`
}

// ConsolidatedAnalysis aggregates the six analyzer results under fixed keys.
// Every slot is always populated; a failed analyzer contributes an
// ErrorResult, never a missing key.
type ConsolidatedAnalysis struct {
	Metadata     Metadata         `json:"metadata"`
	Completeness analyzers.Result `json:"completitud"`
	Typology     analyzers.Result `json:"tipos"`
	Semantic     analyzers.Result `json:"semantica"`
	Geospatial   analyzers.Result `json:"geoespacial"`
	PII          analyzers.Result `json:"anonimizacion"`
	ML           analyzers.Result `json:"ml"`
}

// Set assigns a result to its slot by kind
func (c *ConsolidatedAnalysis) Set(kind analyzers.Kind, result analyzers.Result) error {
	switch kind {
	case analyzers.KindCompleteness:
		c.Completeness = result
	case analyzers.KindTypology:
		c.Typology = result
	case analyzers.KindSemantic:
		c.Semantic = result
	case analyzers.KindGeospatial:
		c.Geospatial = result
	case analyzers.KindAnonymization:
		c.PII = result
	case analyzers.KindML:
		c.ML = result
	default:
		return fmt.Errorf("unknown analyzer kind %q", kind)
	}
	return nil
}

// Get returns the result stored under a kind, nil if the slot is unset
func (c *ConsolidatedAnalysis) Get(kind analyzers.Kind) analyzers.Result {
	switch kind {
	case analyzers.KindCompleteness:
		return c.Completeness
	case analyzers.KindTypology:
		return c.Typology
	case analyzers.KindSemantic:
		return c.Semantic
	case analyzers.KindGeospatial:
		return c.Geospatial
	case analyzers.KindAnonymization:
		return c.PII
	case analyzers.KindML:
		return c.ML
	default:
		return nil
	}
}

// Validate checks the fixed six-key schema. Violations come back as warnings;
// a partially populated structure is still returned to callers.
func (c *ConsolidatedAnalysis) Validate() []string {
	var warnings []string

	if c.Metadata.TotalRows <= 0 {
		warnings = append(warnings, "metadata: total_rows is not positive")
	}
	if c.Metadata.TotalColumns <= 0 {
		warnings = append(warnings, "metadata: total_columns is not positive")
	}
	if c.Metadata.AnalysisDate == "" {
		warnings = append(warnings, "metadata: analysis_date is empty")
	}

	for _, kind := range analyzers.Kinds() {
		result := c.Get(kind)
		if result == nil {
			warnings = append(warnings, fmt.Sprintf("missing analyzer slot %q", kind))
			continue
		}
		if result.AnalyzerKind() != kind {
			warnings = append(warnings, fmt.Sprintf(
				"slot %q holds a result of kind %q", kind, result.AnalyzerKind()))
		}
	}

	return warnings
}

// FailedAnalyzers returns the kinds whose slots hold error placeholders
func (c *ConsolidatedAnalysis) FailedAnalyzers() []analyzers.Kind {
	var failed []analyzers.Kind
	for _, kind := range analyzers.Kinds() {
		if result := c.Get(kind); result != nil && result.IsError() {
			failed = append(failed, kind)
		}
	}
	return failed
}
