package analyzers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/columns"
	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Missingness patterns per column
const (
	PatternNoMissing   = "no_missing"
	PatternFullyEmpty  = "fully_empty"
	PatternTemporal    = "temporal_concentration"
	PatternConsecutive = "consecutive_blocks"
	PatternRandom      = "random"
)

// CompletenessSummary is the scorecard of the completeness analysis
type CompletenessSummary struct {
	TotalCells        int     `json:"total_cells"`
	MissingCells      int     `json:"missing_cells"`
	MissingPercentage float64 `json:"missing_percentage"`
	TotalColumns      int     `json:"total_columns"`
	TotalRows         int     `json:"total_rows"`
}

// ColumnCompleteness describes missingness of one column
type ColumnCompleteness struct {
	MissingCount int     `json:"missing_count"`
	MissingRate  float64 `json:"missing_rate"`
	TotalRecords int     `json:"total_records"`
	Pattern      string  `json:"pattern"`
	IsCritical   bool    `json:"is_critical"`
}

// MissingColumn names a column and its missing rate, for rankings
type MissingColumn struct {
	Column      string  `json:"column"`
	MissingRate float64 `json:"missing_rate"`
}

// CompletenessEvaluation is the flattened quality verdict
type CompletenessEvaluation struct {
	Score          float64 `json:"score"`
	Level          string  `json:"level"`
	Message        string  `json:"message"`
	CriticalIssues int     `json:"critical_issues_count"`
	MeetsThreshold bool    `json:"meets_threshold"`
}

// CompletenessResult is the full output of the completeness analyzer
type CompletenessResult struct {
	Summary               CompletenessSummary           `json:"summary"`
	Columns               map[string]ColumnCompleteness `json:"columns_analysis"`
	CriticalFieldsMissing []string                      `json:"critical_fields_missing"`
	TopMissingColumns     []MissingColumn               `json:"top_missing_columns"`
	Evaluation            CompletenessEvaluation        `json:"evaluation"`
	Recommendations       []Recommendation              `json:"recommendations"`
	AnalysisTimestamp     string                        `json:"analysis_timestamp"`
}

// AnalyzerKind implements Result
func (r *CompletenessResult) AnalyzerKind() Kind { return KindCompleteness }

// IsError implements Result
func (r *CompletenessResult) IsError() bool { return false }

// Completeness measures missing values, missingness patterns and critical
// field coverage.
type Completeness struct {
	cfg        *config.Config
	classifier *columns.Classifier
	logger     *zap.Logger
}

// NewCompleteness builds the completeness analyzer
func NewCompleteness(cfg *config.Config, logger *zap.Logger) (*Completeness, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Completeness{
		cfg:        cfg,
		classifier: columns.NewClassifier(cfg.Rules),
		logger:     logger.With(zap.String("analyzer", string(KindCompleteness))),
	}, nil
}

// Kind implements Analyzer
func (a *Completeness) Kind() Kind { return KindCompleteness }

// Analyze implements Analyzer
func (a *Completeness) Analyze(ctx context.Context, t *dataset.Table) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("analyzing completeness: %w", dataset.ErrEmptyDataset)
	}

	rows := t.Rows()
	totalCells := rows * t.Cols()
	missingCells := 0

	// Month buckets of the first date column drive temporal pattern detection.
	dateBuckets := a.dateBuckets(t)

	colAnalysis := make(map[string]ColumnCompleteness, t.Cols())
	var criticalMissing []string
	for _, col := range t.Columns() {
		missing := rows - col.NonNull()
		missingCells += missing
		rate := float64(missing) / float64(rows)

		entry := ColumnCompleteness{
			MissingCount: missing,
			MissingRate:  rate,
			TotalRecords: rows,
			Pattern:      classifyMissingPattern(col, dateBuckets),
			IsCritical:   a.isCriticalField(col.Name),
		}
		colAnalysis[col.Name] = entry

		if entry.IsCritical && rate > a.cfg.CompletenessCritical {
			criticalMissing = append(criticalMissing, col.Name)
		}
	}

	missingPct := float64(missingCells) / float64(totalCells) * 100

	top := topMissing(colAnalysis, 5)
	eval := a.evaluate(missingPct, len(criticalMissing))

	a.logger.Debug("completeness analysis finished",
		zap.Float64("missing_percentage", missingPct),
		zap.Int("critical_fields_missing", len(criticalMissing)),
		zap.Float64("score", eval.Score))

	return &CompletenessResult{
		Summary: CompletenessSummary{
			TotalCells:        totalCells,
			MissingCells:      missingCells,
			MissingPercentage: missingPct,
			TotalColumns:      t.Cols(),
			TotalRows:         rows,
		},
		Columns:               colAnalysis,
		CriticalFieldsMissing: criticalMissing,
		TopMissingColumns:     top,
		Evaluation:            eval,
		Recommendations:       a.recommendations(missingPct, criticalMissing, colAnalysis),
		AnalysisTimestamp:     Timestamp(),
	}, nil
}

// dateBuckets maps row index to a month bucket from the first date column,
// or nil when the table has none.
func (a *Completeness) dateBuckets(t *dataset.Table) []string {
	dateCol := a.classifier.Find(t.ColumnNames(), columns.RoleDate)
	if dateCol == "" {
		return nil
	}
	col, _ := t.Column(dateCol)
	buckets := make([]string, len(col.Values))
	for i, v := range col.Values {
		if ts, ok := v.AsTime(); ok {
			buckets[i] = ts.Format("2006-01")
		}
	}
	return buckets
}

func classifyMissingPattern(col dataset.Column, dateBuckets []string) string {
	missing := 0
	for _, v := range col.Values {
		if v.IsNull() {
			missing++
		}
	}
	switch missing {
	case 0:
		return PatternNoMissing
	case len(col.Values):
		return PatternFullyEmpty
	}

	if dateBuckets != nil {
		perBucket := make(map[string]int)
		maxBucket := 0
		for i, v := range col.Values {
			if v.IsNull() && dateBuckets[i] != "" {
				perBucket[dateBuckets[i]]++
				if perBucket[dateBuckets[i]] > maxBucket {
					maxBucket = perBucket[dateBuckets[i]]
				}
			}
		}
		if float64(maxBucket)/float64(missing) > 0.5 {
			return PatternTemporal
		}
	}

	// Few long runs of missing values point at systematic gaps.
	runs := 0
	inRun := false
	for _, v := range col.Values {
		if v.IsNull() {
			if !inRun {
				runs++
				inRun = true
			}
		} else {
			inRun = false
		}
	}
	if runs < 5 && missing > 10 {
		return PatternConsecutive
	}

	return PatternRandom
}

func (a *Completeness) isCriticalField(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, kw := range a.cfg.CriticalFieldKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func topMissing(cols map[string]ColumnCompleteness, n int) []MissingColumn {
	all := make([]MissingColumn, 0, len(cols))
	for name, data := range cols {
		all = append(all, MissingColumn{Column: name, MissingRate: data.MissingRate})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].MissingRate != all[j].MissingRate {
			return all[i].MissingRate > all[j].MissingRate
		}
		return all[i].Column < all[j].Column
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func (a *Completeness) evaluate(missingPct float64, criticalCount int) CompletenessEvaluation {
	score := 100 - missingPct
	if score < 0 {
		score = 0
	}
	if criticalCount > 0 {
		penalty := float64(criticalCount * 10)
		if penalty > 30 {
			penalty = 30
		}
		score -= penalty
		if score < 0 {
			score = 0
		}
	}

	var level, message string
	switch {
	case score >= 90:
		level, message = "excelente", "La base tiene excelente completitud"
	case score >= 75:
		level, message = "bueno", "La completitud es buena pero mejorable"
	case score >= 60:
		level, message = "aceptable", "La completitud es aceptable pero requiere atención"
	case score >= 40:
		level, message = "deficiente", "La completitud es deficiente"
	default:
		level, message = "critico", "La completitud es crítica - datos no confiables"
	}

	return CompletenessEvaluation{
		Score:          score,
		Level:          level,
		Message:        message,
		CriticalIssues: criticalCount,
		MeetsThreshold: score >= a.cfg.CompletenessThreshold*100,
	}
}

func (a *Completeness) recommendations(missingPct float64, criticalFields []string, cols map[string]ColumnCompleteness) []Recommendation {
	var recs []Recommendation

	if len(criticalFields) > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityCritical,
			Field:    strings.Join(criticalFields, ", "),
			Issue:    "Campo(s) crítico(s) con alta proporción de datos faltantes",
			Action:   "Recuperar estos datos de fuentes primarias (registros hospitalarios, policiales, registro civil)",
			Impact:   "Alto - Sin estos datos, análisis de riesgo y patrones serán poco confiables",
		})
	}

	if missingPct > 20 {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Field:    "general",
			Issue:    fmt.Sprintf("Completitud general del %.1f%% (objetivo: >%.0f%%)", 100-missingPct, a.cfg.CompletenessThreshold*100),
			Action:   "Implementar protocolos de registro obligatorio en el punto de captura",
			Impact:   "Medio - Limita análisis estadísticos robustos",
		})
	}

	var temporal, empty []string
	for name, data := range cols {
		if data.Pattern == PatternTemporal && data.MissingRate > 0.1 {
			temporal = append(temporal, name)
		}
		if data.Pattern == PatternFullyEmpty {
			empty = append(empty, name)
		}
	}
	sort.Strings(temporal)
	sort.Strings(empty)

	if len(temporal) > 0 {
		if len(temporal) > 3 {
			temporal = temporal[:3]
		}
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Field:    strings.Join(temporal, ", "),
			Issue:    "Datos faltantes concentrados en períodos específicos",
			Action:   "Revisar cambios en protocolos de registro o problemas sistémicos en esos períodos",
			Impact:   "Medio - Puede sesgar análisis de tendencias temporales",
		})
	}

	if len(empty) > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Field:    strings.Join(empty, ", "),
			Issue:    "Columna(s) sin ningún dato registrado",
			Action:   "Eliminar estas columnas o iniciar su captura sistemática",
			Impact:   "Bajo - No aportan información actualmente",
		})
	}

	return recs
}
