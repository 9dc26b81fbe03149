package engine

import (
	"fmt"

	"github.com/cuidar-analytics/evaluator/pkg/analyzers"
)

// Summary is the executive roll-up of a consolidated analysis
type Summary struct {
	Filename        string             `json:"filename"`
	TotalRows       int                `json:"total_rows"`
	TotalColumns    int                `json:"total_columns"`
	AnalyzersRun    int                `json:"analyzers_run"`
	AnalyzersFailed int                `json:"analyzers_failed"`
	Scores          map[string]float64 `json:"scores"`
	OverallScore    float64            `json:"overall_score"`
	PIIDetected     bool               `json:"pii_detected"`
	PIIRiskLevel    string             `json:"pii_risk_level,omitempty"`
	RequiresAction  bool               `json:"requires_action"`
	MLViable        bool               `json:"ml_viable"`
	Anonymized      bool               `json:"anonymized"`
	CriticalAlerts  []string           `json:"critical_alerts"`
}

// Summarize condenses a consolidated analysis into the executive summary.
// Quality scores are on a 0-100 scale; the PII risk score (0-10) is reported
// through its level, not mixed into the overall mean.
func Summarize(c *ConsolidatedAnalysis) Summary {
	s := Summary{
		Filename:     c.Metadata.Filename,
		TotalRows:    c.Metadata.TotalRows,
		TotalColumns: c.Metadata.TotalColumns,
		Anonymized:   c.Metadata.Anonymized,
		Scores:       make(map[string]float64),
	}

	var alerts []string

	for _, kind := range analyzers.Kinds() {
		result := c.Get(kind)
		if result == nil {
			continue
		}
		s.AnalyzersRun++
		if result.IsError() {
			s.AnalyzersFailed++
			alerts = append(alerts, fmt.Sprintf("El análisis de %s no está disponible", kind))
		}
	}

	if r, ok := c.Completeness.(*analyzers.CompletenessResult); ok {
		s.Scores[string(analyzers.KindCompleteness)] = r.Evaluation.Score
		if len(r.CriticalFieldsMissing) > 0 {
			alerts = append(alerts, fmt.Sprintf(
				"%d campos críticos con datos faltantes", len(r.CriticalFieldsMissing)))
		}
	}
	if r, ok := c.Typology.(*analyzers.TypologyResult); ok {
		s.Scores[string(analyzers.KindTypology)] = r.Summary.QualityScore
	}
	if r, ok := c.Semantic.(*analyzers.SemanticResult); ok {
		s.Scores[string(analyzers.KindSemantic)] = r.Summary.Score
		if r.Summary.CriticalIssues > 0 {
			alerts = append(alerts, fmt.Sprintf(
				"%d problemas semánticos críticos detectados", r.Summary.CriticalIssues))
		}
	}
	if r, ok := c.Geospatial.(*analyzers.GeospatialResult); ok {
		s.Scores[string(analyzers.KindGeospatial)] = r.Summary.Score
	}
	if r, ok := c.PII.(*analyzers.PIIResult); ok {
		s.PIIDetected = r.Summary.PIIDetected
		s.PIIRiskLevel = r.Summary.RiskLevel
		s.RequiresAction = r.Summary.RequiresAction
		if r.Summary.RequiresAction {
			alerts = append(alerts, fmt.Sprintf(
				"Riesgo de privacidad %s: anonimización requerida", r.Summary.RiskLevel))
		}
	}
	if r, ok := c.ML.(*analyzers.MLResult); ok {
		s.Scores[string(analyzers.KindML)] = r.Summary.Score
		s.MLViable = r.Summary.Viable
	}

	if len(s.Scores) > 0 {
		total := 0.0
		for _, score := range s.Scores {
			total += score
		}
		s.OverallScore = total / float64(len(s.Scores))
	}

	s.CriticalAlerts = alerts
	return s
}
