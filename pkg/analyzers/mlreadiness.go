package analyzers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Class balance tiers
const (
	BalanceBalanced = "balanceado"
	BalanceSlight   = "ligeramente_desbalanceado"
	BalanceModerate = "moderadamente_desbalanceado"
	BalanceSevere   = "severamente_desbalanceado"
)

// MLSummary is the scorecard of the ML readiness analysis
type MLSummary struct {
	Viable         bool    `json:"viable"`
	Confidence     string  `json:"confidence"`
	Score          float64 `json:"score"`
	UsableFeatures int     `json:"usable_features"`
	HasTarget      bool    `json:"has_target"`
	BalanceLevel   string  `json:"balance_level,omitempty"`
	CriticalIssues int     `json:"critical_issues"`
}

// FeaturesAnalysis classifies the columns usable as model inputs
type FeaturesAnalysis struct {
	TotalColumns         int                `json:"total_columns"`
	PotentialFeatures    int                `json:"potential_features"`
	UsableFeatures       int                `json:"usable_features"`
	NumericFeatures      []string           `json:"numeric_features"`
	CategoricalFeatures  []string           `json:"categorical_features"`
	DatetimeFeatures     []string           `json:"datetime_features"`
	TextFeatures         []string           `json:"text_features"`
	FeaturesCompleteness map[string]float64 `json:"features_completeness"`
	MeetsMinimum         bool               `json:"meets_minimum"`
}

// BalanceAnalysis describes the class distribution of the target column
type BalanceAnalysis struct {
	Column             string             `json:"column"`
	NClasses           int                `json:"n_classes"`
	ClassDistribution  map[string]int     `json:"class_distribution"`
	ClassProportions   map[string]float64 `json:"class_proportions"`
	MinClassProportion float64            `json:"min_class_proportion"`
	MaxClassProportion float64            `json:"max_class_proportion"`
	BalanceLevel       string             `json:"balance_level"`
	RequiresBalancing  bool               `json:"requires_balancing"`
}

// LeakageRisk is one predictor suspected of encoding the outcome
type LeakageRisk struct {
	Column      string   `json:"column"`
	Reason      string   `json:"reason"`
	Severity    string   `json:"severity"`
	PValue      *float64 `json:"p_value,omitempty"`
	Correlation *float64 `json:"correlation,omitempty"`
}

// CorrelationPair is a strongly correlated numeric feature pair
type CorrelationPair struct {
	Feature1    string  `json:"feature1"`
	Feature2    string  `json:"feature2"`
	Correlation float64 `json:"correlation"`
}

// CorrelationAnalysis summarizes numeric feature interdependence
type CorrelationAnalysis struct {
	HasCorrelations       bool              `json:"has_correlations"`
	NumericFeaturesCount  int               `json:"numeric_features_count,omitempty"`
	HighCorrelations      []CorrelationPair `json:"high_correlations,omitempty"`
	MulticollinearityRisk bool              `json:"multicollinearity_risk"`
}

// MLViability is the aggregate verdict on model feasibility
type MLViability struct {
	Viable     bool     `json:"viable"`
	Confidence string   `json:"confidence"`
	Blockers   []string `json:"blockers"`
	Warnings   []string `json:"warnings"`
	Score      float64  `json:"score"`
}

// ModelSuggestion proposes a model family for a task
type ModelSuggestion struct {
	Task   string   `json:"task"`
	Models []string `json:"models"`
	Reason string   `json:"reason"`
}

// MLResult is the full output of the ML readiness analyzer
type MLResult struct {
	Summary           MLSummary           `json:"summary"`
	TargetColumn      string              `json:"target_column"`
	Features          FeaturesAnalysis    `json:"features_analysis"`
	Balance           *BalanceAnalysis    `json:"balance_analysis"`
	LeakageRisks      []LeakageRisk       `json:"leakage_risks"`
	Correlations      CorrelationAnalysis `json:"correlation_analysis"`
	Viability         MLViability         `json:"ml_viability"`
	ModelSuggestions  []ModelSuggestion   `json:"model_suggestions"`
	Recommendations   []Recommendation    `json:"recommendations"`
	AnalysisTimestamp string              `json:"analysis_timestamp"`
}

// AnalyzerKind implements Result
func (r *MLResult) AnalyzerKind() Kind { return KindML }

// IsError implements Result
func (r *MLResult) IsError() bool { return false }

// MLReadiness evaluates whether the dataset can support predictive modeling:
// target inference, feature usability, class balance, leakage and
// multicollinearity.
type MLReadiness struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMLReadiness builds the ML readiness analyzer
func NewMLReadiness(cfg *config.Config, logger *zap.Logger) (*MLReadiness, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &MLReadiness{
		cfg:    cfg,
		logger: logger.With(zap.String("analyzer", string(KindML))),
	}, nil
}

// Kind implements Analyzer
func (a *MLReadiness) Kind() Kind { return KindML }

// Analyze implements Analyzer
func (a *MLReadiness) Analyze(ctx context.Context, t *dataset.Table) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("analyzing ml readiness: %w", dataset.ErrEmptyDataset)
	}

	targetCol := identifyTarget(t)
	features := a.analyzeFeatures(t, targetCol)

	var balance *BalanceAnalysis
	if targetCol != "" {
		balance = a.analyzeClassBalance(t, targetCol)
	}

	leakage := detectLeakage(t, targetCol)
	correlations := analyzeCorrelations(t)
	viability := a.assessViability(t.Rows(), features, balance, leakage)
	suggestions := suggestModels(targetCol, balance, features, t.Rows())

	balanceLevel := ""
	if balance != nil {
		balanceLevel = balance.BalanceLevel
	}

	a.logger.Debug("ml readiness analysis finished",
		zap.String("target", targetCol),
		zap.Bool("viable", viability.Viable),
		zap.Float64("score", viability.Score))

	return &MLResult{
		Summary: MLSummary{
			Viable:         viability.Viable,
			Confidence:     viability.Confidence,
			Score:          viability.Score,
			UsableFeatures: features.UsableFeatures,
			HasTarget:      balance != nil,
			BalanceLevel:   balanceLevel,
			CriticalIssues: len(viability.Blockers),
		},
		TargetColumn:      targetCol,
		Features:          features,
		Balance:           balance,
		LeakageRisks:      leakage,
		Correlations:      correlations,
		Viability:         viability,
		ModelSuggestions:  suggestions,
		Recommendations:   mlRecommendations(viability, balance, leakage),
		AnalysisTimestamp: Timestamp(),
	}, nil
}

// Names that typically hold the outcome of an event
var targetKeywords = []string{
	"tipo_evento", "tipo", "resultado", "consumado",
	"intento", "desenlace", "outcome", "target", "label",
}

var binaryTokens = map[string]bool{
	"si": true, "no": true, "true": true, "false": true, "1": true, "0": true,
}

func identifyTarget(t *dataset.Table) string {
	for _, col := range t.Columns() {
		lower := strings.ToLower(col.Name)
		for _, kw := range targetKeywords {
			if strings.Contains(lower, kw) {
				if distinctCount(col) <= 10 {
					return col.Name
				}
				break
			}
		}
	}

	// Fall back to binary columns whose values look boolean
	for _, col := range t.Columns() {
		values := distinctValues(col)
		if len(values) != 2 {
			continue
		}
		for _, v := range values {
			if binaryTokens[strings.ToLower(v)] {
				return col.Name
			}
		}
	}

	return ""
}

func distinctValues(col dataset.Column) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		s := v.Text()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func distinctCount(col dataset.Column) int {
	return len(distinctValues(col))
}

// Columns that must never feed a model
var idKeywords = []string{"id", "identificador", "codigo"}
var piiKeywords = []string{"nombre", "apellido", "direccion", "email"}

func isNonFeature(t *dataset.Table, col dataset.Column) bool {
	if distinctCount(col) == t.Rows() {
		return true
	}
	lower := strings.ToLower(col.Name)
	for _, kw := range idKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range piiKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (a *MLReadiness) analyzeFeatures(t *dataset.Table, targetCol string) FeaturesAnalysis {
	fa := FeaturesAnalysis{
		TotalColumns:         t.Cols(),
		NumericFeatures:      []string{},
		CategoricalFeatures:  []string{},
		DatetimeFeatures:     []string{},
		TextFeatures:         []string{},
		FeaturesCompleteness: make(map[string]float64),
	}

	for _, col := range t.Columns() {
		if col.Name == targetCol || isNonFeature(t, col) {
			continue
		}
		fa.PotentialFeatures++

		switch featureClass(t, col) {
		case "numeric":
			fa.NumericFeatures = append(fa.NumericFeatures, col.Name)
		case "datetime":
			fa.DatetimeFeatures = append(fa.DatetimeFeatures, col.Name)
		case "text":
			fa.TextFeatures = append(fa.TextFeatures, col.Name)
		default:
			fa.CategoricalFeatures = append(fa.CategoricalFeatures, col.Name)
		}

		completeness := float64(col.NonNull()) / float64(t.Rows())
		fa.FeaturesCompleteness[col.Name] = completeness
		if completeness >= 0.7 {
			fa.UsableFeatures++
		}
	}

	fa.MeetsMinimum = fa.UsableFeatures >= a.cfg.MLMinFeatures
	return fa
}

func featureClass(t *dataset.Table, col dataset.Column) string {
	switch analyzeColumnType(col).InferredType {
	case TypeInteger, TypeFloat:
		return "numeric"
	case TypeDatetime, TypeStringDatetime:
		return "datetime"
	case TypeBoolean, TypeStringBoolean:
		return "categorical"
	}
	uniqueRatio := float64(distinctCount(col)) / float64(t.Rows())
	if uniqueRatio < 0.5 {
		return "categorical"
	}
	return "text"
}

func (a *MLReadiness) analyzeClassBalance(t *dataset.Table, targetCol string) *BalanceAnalysis {
	col, _ := t.Column(targetCol)

	counts := make(map[string]int)
	total := 0
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		counts[v.Text()]++
		total++
	}
	if total == 0 {
		return nil
	}

	proportions := make(map[string]float64, len(counts))
	minProp, maxProp := 1.0, 0.0
	for class, n := range counts {
		p := float64(n) / float64(total)
		proportions[class] = p
		minProp = math.Min(minProp, p)
		maxProp = math.Max(maxProp, p)
	}

	var level string
	switch {
	case minProp >= 0.4:
		level = BalanceBalanced
	case minProp >= 0.2:
		level = BalanceSlight
	case minProp >= 0.1:
		level = BalanceModerate
	default:
		level = BalanceSevere
	}

	return &BalanceAnalysis{
		Column:             targetCol,
		NClasses:           len(counts),
		ClassDistribution:  counts,
		ClassProportions:   proportions,
		MinClassProportion: minProp,
		MaxClassProportion: maxProp,
		BalanceLevel:       level,
		RequiresBalancing:  minProp < a.cfg.MLImbalanceThreshold,
	}
}

// Date columns recorded after the event leak the outcome by construction
var postEventKeywords = []string{"notificacion", "reporte", "registro", "ingreso"}
var temporalKeywords = []string{"fecha", "date", "timestamp"}

// detectLeakage flags predictors statistically dependent on the target. The
// chi-square heuristic (p<0.001 with matching cardinality) carries no
// multiple-comparison correction and can over-flag small samples; it is kept
// as a known limitation.
func detectLeakage(t *dataset.Table, targetCol string) []LeakageRisk {
	risks := []LeakageRisk{}

	if targetCol != "" {
		target, _ := t.Column(targetCol)
		targetCard := distinctCount(target)

		for _, col := range t.Columns() {
			if col.Name == targetCol {
				continue
			}

			if featureClass(t, col) == "numeric" {
				if corr, ok := targetCorrelation(col, target); ok && math.Abs(corr) > 0.95 {
					c := corr
					risks = append(risks, LeakageRisk{
						Column:      col.Name,
						Reason:      fmt.Sprintf("Correlación muy alta con target (r=%.3f)", corr),
						Severity:    SeverityHigh,
						Correlation: &c,
					})
				}
				continue
			}

			if distinctCount(col) < 20 {
				p := contingencyP(col, target)
				if p < 0.001 && distinctCount(col) == targetCard {
					pv := p
					risks = append(risks, LeakageRisk{
						Column:   col.Name,
						Reason:   "Correlación perfecta con target (posible proxy o consecuencia)",
						Severity: SeverityHigh,
						PValue:   &pv,
					})
				}
			}
		}
	}

	for _, col := range t.Columns() {
		lower := strings.ToLower(col.Name)
		if !matchAnyKeyword(lower, temporalKeywords) {
			continue
		}
		if matchAnyKeyword(lower, postEventKeywords) {
			risks = append(risks, LeakageRisk{
				Column:   col.Name,
				Reason:   "Fecha posterior al evento (no disponible al momento de predicción)",
				Severity: SeverityCritical,
			})
		}
	}

	return risks
}

func matchAnyKeyword(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// targetCorrelation label-encodes the target and correlates it with the
// numeric column over rows where both are present.
func targetCorrelation(col, target dataset.Column) (float64, bool) {
	classes := distinctValues(target)
	sort.Strings(classes)
	encoding := make(map[string]float64, len(classes))
	for i, class := range classes {
		encoding[class] = float64(i)
	}

	var xs, ys []float64
	for i := range col.Values {
		x, ok := col.Values[i].Numeric()
		if !ok || target.Values[i].IsNull() {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, encoding[target.Values[i].Text()])
	}
	if len(xs) <= 10 {
		return 0, false
	}
	corr := pearson(xs, ys)
	if math.IsNaN(corr) {
		return 0, false
	}
	return corr, true
}

// contingencyP runs a chi-square independence test between two categorical
// columns over rows where both are present.
func contingencyP(col, target dataset.Column) float64 {
	rowClasses := distinctValues(col)
	colClasses := distinctValues(target)
	sort.Strings(rowClasses)
	sort.Strings(colClasses)

	rowIdx := make(map[string]int, len(rowClasses))
	for i, c := range rowClasses {
		rowIdx[c] = i
	}
	colIdx := make(map[string]int, len(colClasses))
	for i, c := range colClasses {
		colIdx[c] = i
	}

	observed := make([][]float64, len(rowClasses))
	for i := range observed {
		observed[i] = make([]float64, len(colClasses))
	}
	for i := range col.Values {
		if col.Values[i].IsNull() || target.Values[i].IsNull() {
			continue
		}
		observed[rowIdx[col.Values[i].Text()]][colIdx[target.Values[i].Text()]]++
	}

	return chiSquareP(observed)
}

func analyzeCorrelations(t *dataset.Table) CorrelationAnalysis {
	var numeric []dataset.Column
	for _, col := range t.Columns() {
		switch analyzeColumnType(col).InferredType {
		case TypeInteger, TypeFloat:
			numeric = append(numeric, col)
		}
	}
	if len(numeric) < 2 {
		return CorrelationAnalysis{HasCorrelations: false}
	}

	var high []CorrelationPair
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			var xs, ys []float64
			for k := range numeric[i].Values {
				x, okX := numeric[i].Values[k].Numeric()
				y, okY := numeric[j].Values[k].Numeric()
				if okX && okY {
					xs = append(xs, x)
					ys = append(ys, y)
				}
			}
			if len(xs) < 2 {
				continue
			}
			corr := pearson(xs, ys)
			if !math.IsNaN(corr) && math.Abs(corr) > 0.8 {
				high = append(high, CorrelationPair{
					Feature1:    numeric[i].Name,
					Feature2:    numeric[j].Name,
					Correlation: corr,
				})
			}
		}
	}

	risk := len(high) > 5
	if len(high) > 10 {
		high = high[:10]
	}

	return CorrelationAnalysis{
		HasCorrelations:       true,
		NumericFeaturesCount:  len(numeric),
		HighCorrelations:      high,
		MulticollinearityRisk: risk,
	}
}

func (a *MLReadiness) assessViability(nSamples int, features FeaturesAnalysis, balance *BalanceAnalysis, leakage []LeakageRisk) MLViability {
	v := MLViability{
		Viable:     true,
		Confidence: "alta",
		Blockers:   []string{},
		Warnings:   []string{},
		Score:      100,
	}

	if nSamples < a.cfg.MLMinSamples {
		v.Viable = false
		v.Confidence = "nula"
		v.Blockers = append(v.Blockers,
			fmt.Sprintf("Insuficientes muestras: %d < %d requeridas", nSamples, a.cfg.MLMinSamples))
		v.Score -= 50
	}

	if !features.MeetsMinimum {
		v.Viable = false
		v.Blockers = append(v.Blockers,
			fmt.Sprintf("Insuficientes features útiles: %d < %d", features.UsableFeatures, a.cfg.MLMinFeatures))
		v.Score -= 30
	}

	if balance != nil && balance.BalanceLevel == BalanceSevere {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("Desbalance severo de clases (%.1f%% clase minoritaria)", balance.MinClassProportion*100))
		if v.Confidence == "alta" {
			v.Confidence = "media"
		}
		v.Score -= 15
	}

	criticalLeakage := 0
	for _, r := range leakage {
		if r.Severity == SeverityCritical {
			criticalLeakage++
		}
	}
	if criticalLeakage > 0 {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("%d columnas con riesgo crítico de leakage", criticalLeakage))
		v.Score -= 20
	}

	if v.Score < 0 {
		v.Score = 0
	}
	return v
}

func suggestModels(targetCol string, balance *BalanceAnalysis, features FeaturesAnalysis, nSamples int) []ModelSuggestion {
	var suggestions []ModelSuggestion

	if targetCol == "" {
		return []ModelSuggestion{{
			Task:   "clustering",
			Models: []string{"K-means", "DBSCAN", "Hierarchical Clustering"},
			Reason: "No hay variable target - análisis no supervisado",
		}}
	}

	if balance != nil {
		switch {
		case balance.NClasses == 2:
			if nSamples < 1000 {
				suggestions = append(suggestions, ModelSuggestion{
					Task:   "clasificacion_binaria",
					Models: []string{"Logistic Regression", "Random Forest", "XGBoost"},
					Reason: "Dataset pequeño - modelos interpretables recomendados",
				})
			} else {
				suggestions = append(suggestions, ModelSuggestion{
					Task:   "clasificacion_binaria",
					Models: []string{"Random Forest", "XGBoost", "LightGBM", "Redes Neuronales"},
					Reason: "Dataset grande - modelos complejos viables",
				})
			}
			if balance.RequiresBalancing {
				suggestions = append(suggestions, ModelSuggestion{
					Task:   "manejo_desbalance",
					Models: []string{"SMOTE", "Class weights", "Undersampling"},
					Reason: fmt.Sprintf("Clases desbalanceadas (%.1f%% minoritaria)", balance.MinClassProportion*100),
				})
			}
		case balance.NClasses <= 10:
			suggestions = append(suggestions, ModelSuggestion{
				Task:   "clasificacion_multiclase",
				Models: []string{"Random Forest", "XGBoost", "Multi-class Logistic Regression"},
				Reason: fmt.Sprintf("%d clases - clasificación multiclase", balance.NClasses),
			})
		}
	}

	if len(features.DatetimeFeatures) > 0 {
		suggestions = append(suggestions, ModelSuggestion{
			Task:   "series_temporales",
			Models: []string{"ARIMA", "Prophet", "LSTM"},
			Reason: "Datos con componente temporal - análisis de tendencias posible",
		})
	}

	return suggestions
}

func mlRecommendations(viability MLViability, balance *BalanceAnalysis, leakage []LeakageRisk) []Recommendation {
	var recs []Recommendation

	for _, blocker := range viability.Blockers {
		recs = append(recs, Recommendation{
			Priority: PriorityCritical,
			Field:    "general",
			Issue:    blocker,
			Action:   "Resolver antes de intentar ML",
			Impact:   "Crítico - ML no viable sin esto",
		})
	}

	topLeakage := leakage
	if len(topLeakage) > 3 {
		topLeakage = topLeakage[:3]
	}
	for _, risk := range topLeakage {
		priority := PriorityMedium
		if risk.Severity == SeverityCritical {
			priority = PriorityHigh
		}
		recs = append(recs, Recommendation{
			Priority: priority,
			Field:    risk.Column,
			Issue:    "Riesgo de leakage: " + risk.Reason,
			Action:   "Eliminar columna o verificar que esté disponible al momento de predicción",
			Impact:   "Alto - Resultados optimistas pero inútiles en producción",
		})
	}

	if balance != nil && balance.RequiresBalancing {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Field:    balance.Column,
			Issue:    fmt.Sprintf("Desbalance de clases: %.1f%% minoritaria", balance.MinClassProportion*100),
			Action:   "Aplicar SMOTE, ajustar pesos de clase o usar métricas apropiadas (F1, AUC-ROC)",
			Impact:   "Medio - Modelos pueden ignorar clase minoritaria",
		})
	}

	return recs
}
