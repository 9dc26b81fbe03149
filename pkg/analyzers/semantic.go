package analyzers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/columns"
	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Issue severities used by the semantic analyzer
const (
	SeverityCritical = "critica"
	SeverityHigh     = "alta"
	SeverityMedium   = "media"
	SeverityLow      = "baja"
	SeverityWarning  = "advertencia"
)

// AgeIssue is one implausible age value
type AgeIssue struct {
	Row      int     `json:"row"`
	Value    float64 `json:"value"`
	Issue    string  `json:"issue"`
	Severity string  `json:"severity"`
}

// DateIssue is one temporal incoherence between or within date columns
type DateIssue struct {
	Row      int      `json:"row"`
	Columns  []string `json:"columns"`
	Issue    string   `json:"issue"`
	Severity string   `json:"severity"`
}

// MethodIssue is one categorical method value outside the standard vocabulary
type MethodIssue struct {
	Value      string `json:"value"`
	Count      int    `json:"count"`
	Suggestion string `json:"suggestion"`
	Severity   string `json:"severity"`
}

// DistributionIssue flags an anomalous statistical distribution
type DistributionIssue struct {
	Variable string `json:"variable"`
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
}

// ImpossibleValue flags semantically impossible values in a numeric column
type ImpossibleValue struct {
	Column   string `json:"column"`
	Issue    string `json:"issue"`
	Severity string `json:"severity"`
}

// SemanticSummary is the scorecard of the semantic analysis
type SemanticSummary struct {
	TotalIssues    int     `json:"total_issues"`
	CriticalIssues int     `json:"critical_issues"`
	Score          float64 `json:"score"`
	QualityLevel   string  `json:"quality_level"`
}

// SemanticResult is the full output of the semantic analyzer
type SemanticResult struct {
	Summary            SemanticSummary     `json:"summary"`
	InvalidAges        []AgeIssue          `json:"edad_invalida"`
	IncoherentDates    []DateIssue         `json:"fechas_incoherentes"`
	NonStandardMethods []MethodIssue       `json:"metodos_no_estandarizados"`
	AtypicalDists      []DistributionIssue `json:"distribuciones_atipicas"`
	ImpossibleValues   []ImpossibleValue   `json:"valores_imposibles"`
	Recommendations    []Recommendation    `json:"recommendations"`
	AnalysisTimestamp  string              `json:"analysis_timestamp"`
}

// AnalyzerKind implements Result
func (r *SemanticResult) AnalyzerKind() Kind { return KindSemantic }

// IsError implements Result
func (r *SemanticResult) IsError() bool { return false }

// Semantic checks domain rules: age plausibility, date ordering, method
// vocabulary conformance and distribution shape.
type Semantic struct {
	cfg        *config.Config
	classifier *columns.Classifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewSemantic builds the semantic analyzer
func NewSemantic(cfg *config.Config, logger *zap.Logger) (*Semantic, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Semantic{
		cfg:        cfg,
		classifier: columns.NewClassifier(cfg.Rules),
		logger:     logger.With(zap.String("analyzer", string(KindSemantic))),
		now:        time.Now,
	}, nil
}

// Kind implements Analyzer
func (a *Semantic) Kind() Kind { return KindSemantic }

// Analyze implements Analyzer
func (a *Semantic) Analyze(ctx context.Context, t *dataset.Table) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("analyzing semantics: %w", dataset.ErrEmptyDataset)
	}

	names := t.ColumnNames()
	ageCol := a.classifier.Find(names, columns.RoleAge)
	dateCols := a.classifier.FindAll(names, columns.RoleDate)
	methodCol := a.classifier.Find(names, columns.RoleMethod)
	sexCol := a.classifier.Find(names, columns.RoleSex)

	result := &SemanticResult{
		InvalidAges:        []AgeIssue{},
		IncoherentDates:    []DateIssue{},
		NonStandardMethods: []MethodIssue{},
		AtypicalDists:      []DistributionIssue{},
		ImpossibleValues:   []ImpossibleValue{},
	}

	if ageCol != "" {
		result.InvalidAges = a.analyzeAges(t, ageCol)
		result.AtypicalDists = a.analyzeDistributions(t, ageCol, sexCol)
	}
	if len(dateCols) >= 1 {
		result.IncoherentDates = a.analyzeDates(t, dateCols)
	}
	if methodCol != "" {
		result.NonStandardMethods = a.analyzeMethods(t, methodCol)
	}
	result.ImpossibleValues = analyzeImpossibleValues(t)

	total := len(result.InvalidAges) + len(result.IncoherentDates) +
		len(result.NonStandardMethods) + len(result.AtypicalDists) +
		len(result.ImpossibleValues)
	critical := 0
	for _, iss := range result.InvalidAges {
		if iss.Severity == SeverityCritical {
			critical++
		}
	}
	for _, iss := range result.IncoherentDates {
		if iss.Severity == SeverityCritical {
			critical++
		}
	}

	score := 100 - float64(critical)*10 - float64(total)*2
	if score < 0 {
		score = 0
	}
	var level string
	switch {
	case score > 90:
		level = "excelente"
	case score > 70:
		level = "bueno"
	case score > 50:
		level = "aceptable"
	default:
		level = "deficiente"
	}

	result.Summary = SemanticSummary{
		TotalIssues:    total,
		CriticalIssues: critical,
		Score:          score,
		QualityLevel:   level,
	}
	result.Recommendations = a.recommendations(result)
	result.AnalysisTimestamp = Timestamp()

	a.logger.Debug("semantic analysis finished",
		zap.Int("total_issues", total),
		zap.Int("critical_issues", critical),
		zap.Float64("score", score))

	return result, nil
}

func (a *Semantic) analyzeAges(t *dataset.Table, name string) []AgeIssue {
	col, _ := t.Column(name)
	issues := []AgeIssue{}
	for i, v := range col.Values {
		age, ok := v.Numeric()
		if !ok {
			continue
		}
		switch {
		case age < float64(a.cfg.AgeMin):
			issues = append(issues, AgeIssue{
				Row: i, Value: age,
				Issue:    "Edad negativa",
				Severity: SeverityCritical,
			})
		case age > float64(a.cfg.AgeMax):
			issues = append(issues, AgeIssue{
				Row: i, Value: age,
				Issue:    fmt.Sprintf("Edad superior a %d años", a.cfg.AgeMax),
				Severity: SeverityCritical,
			})
		case age > 100:
			issues = append(issues, AgeIssue{
				Row: i, Value: age,
				Issue:    "Edad muy alta (>100 años) - verificar",
				Severity: SeverityWarning,
			})
		}
	}
	return issues
}

func (a *Semantic) analyzeDates(t *dataset.Table, dateCols []string) []DateIssue {
	issues := []DateIssue{}

	parsed := make(map[string][]*time.Time, len(dateCols))
	for _, name := range dateCols {
		col, _ := t.Column(name)
		times := make([]*time.Time, len(col.Values))
		for i, v := range col.Values {
			if ts, ok := v.AsTime(); ok {
				tsCopy := ts
				times[i] = &tsCopy
			}
		}
		parsed[name] = times
	}

	if len(dateCols) >= 2 {
		for i, col1 := range dateCols {
			for _, col2 := range dateCols[i+1:] {
				l1, l2 := strings.ToLower(col1), strings.ToLower(col2)
				switch {
				case strings.Contains(l1, "nacimiento") && strings.Contains(l2, "defuncion"):
					issues = append(issues, checkBirthDeath(col1, col2, parsed)...)
				case strings.Contains(l2, "nacimiento") && strings.Contains(l1, "defuncion"):
					issues = append(issues, checkBirthDeath(col2, col1, parsed)...)
				case strings.Contains(l1, "evento") && strings.Contains(l2, "notificacion"):
					issues = append(issues, checkEventNotification(col1, col2, parsed)...)
				case strings.Contains(l2, "evento") && strings.Contains(l1, "notificacion"):
					issues = append(issues, checkEventNotification(col2, col1, parsed)...)
				}
			}
		}
	}

	now := a.now()
	for _, name := range dateCols {
		for i, ts := range parsed[name] {
			if ts != nil && ts.After(now) {
				issues = append(issues, DateIssue{
					Row:      i,
					Columns:  []string{name},
					Issue:    fmt.Sprintf("Fecha futura en '%s': %s", name, ts.Format("2006-01-02")),
					Severity: SeverityHigh,
				})
			}
		}
	}

	return issues
}

func checkBirthDeath(birthCol, deathCol string, parsed map[string][]*time.Time) []DateIssue {
	var issues []DateIssue
	births, deaths := parsed[birthCol], parsed[deathCol]
	for i := range births {
		if births[i] == nil || deaths[i] == nil {
			continue
		}
		if deaths[i].Before(*births[i]) {
			issues = append(issues, DateIssue{
				Row:      i,
				Columns:  []string{birthCol, deathCol},
				Issue:    "Fecha de muerte anterior a fecha de nacimiento",
				Severity: SeverityCritical,
			})
		}
	}
	return issues
}

func checkEventNotification(eventCol, notifCol string, parsed map[string][]*time.Time) []DateIssue {
	var issues []DateIssue
	events, notifs := parsed[eventCol], parsed[notifCol]
	for i := range events {
		if events[i] == nil || notifs[i] == nil {
			continue
		}
		switch {
		case notifs[i].Before(*events[i]):
			issues = append(issues, DateIssue{
				Row:      i,
				Columns:  []string{eventCol, notifCol},
				Issue:    "Notificación anterior al evento",
				Severity: SeverityHigh,
			})
		case notifs[i].Sub(*events[i]) > 180*24*time.Hour:
			days := int(notifs[i].Sub(*events[i]).Hours() / 24)
			issues = append(issues, DateIssue{
				Row:      i,
				Columns:  []string{eventCol, notifCol},
				Issue:    fmt.Sprintf("Notificación muy tardía (%d días)", days),
				Severity: SeverityWarning,
			})
		}
	}
	return issues
}

// analyzeMethods maps each distinct method value against the standard
// vocabulary. Non-standard values get a deterministic suggestion: exact
// synonym table first, then bidirectional containment against the vocabulary
// in declared order.
func (a *Semantic) analyzeMethods(t *dataset.Table, name string) []MethodIssue {
	col, _ := t.Column(name)

	counts := make(map[string]int)
	var order []string
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		method := strings.ToLower(strings.TrimSpace(v.Text()))
		if method == "" {
			continue
		}
		if _, seen := counts[method]; !seen {
			order = append(order, method)
		}
		counts[method]++
	}
	sort.Slice(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i] < order[j]
	})

	standard := make(map[string]bool, len(a.cfg.MethodVocabulary))
	for _, m := range a.cfg.MethodVocabulary {
		standard[strings.ToLower(m)] = true
	}

	issues := []MethodIssue{}
	for _, method := range order {
		if standard[method] {
			continue
		}

		suggestion := suggestMethod(method, a.cfg.MethodVocabulary)
		severity := SeverityLow
		if counts[method] > 5 {
			severity = SeverityMedium
		}
		issues = append(issues, MethodIssue{
			Value:      method,
			Count:      counts[method],
			Suggestion: suggestion,
			Severity:   severity,
		})
	}
	return issues
}

// Known variants of the standard method nomenclature
var methodSynonyms = []struct{ variant, standard string }{
	{"ahorcadura", "ahorcamiento"},
	{"colgamiento", "ahorcamiento"},
	{"arma fuego", "arma de fuego"},
	{"disparo", "arma de fuego"},
	{"envenenamiento", "intoxicacion"},
	{"sobredosis", "intoxicacion"},
	{"salto", "precipitacion"},
	{"caida", "precipitacion"},
	{"arma blanka", "arma blanca"},
	{"cuchillo", "arma blanca"},
}

func suggestMethod(method string, vocabulary []string) string {
	for _, syn := range methodSynonyms {
		if strings.Contains(method, syn.variant) || strings.Contains(syn.variant, method) {
			return syn.standard
		}
	}
	for _, std := range vocabulary {
		lower := strings.ToLower(std)
		if strings.Contains(method, lower) || strings.Contains(lower, method) {
			return lower
		}
	}
	return "otro"
}

func (a *Semantic) analyzeDistributions(t *dataset.Table, ageCol, sexCol string) []DistributionIssue {
	issues := []DistributionIssue{}

	col, _ := t.Column(ageCol)
	var ages []float64
	for _, v := range col.Values {
		if age, ok := v.Numeric(); ok {
			ages = append(ages, age)
		}
	}
	if len(ages) < 30 {
		return issues
	}

	q1 := quantile(0.25, ages)
	q3 := quantile(0.75, ages)
	iqr := q3 - q1
	lower, upper := q1-3*iqr, q3+3*iqr

	outliers := 0
	for _, age := range ages {
		if age < lower || age > upper {
			outliers++
		}
	}
	if float64(outliers) > float64(len(ages))*0.05 {
		issues = append(issues, DistributionIssue{
			Variable: ageCol,
			Issue: fmt.Sprintf("%d outliers extremos en edad (%.1f%%)",
				outliers, float64(outliers)/float64(len(ages))*100),
			Severity: SeverityWarning,
		})
	}

	if sexCol != "" {
		sc, _ := t.Column(sexCol)
		counts := make(map[string]int)
		total := 0
		for _, v := range sc.Values {
			if v.IsNull() {
				continue
			}
			counts[strings.ToLower(strings.TrimSpace(v.Text()))]++
			total++
		}
		if len(counts) >= 2 && total > 0 {
			maxShare := 0.0
			for _, n := range counts {
				if share := float64(n) / float64(total); share > maxShare {
					maxShare = share
				}
			}
			if maxShare > 0.95 {
				issues = append(issues, DistributionIssue{
					Variable: sexCol,
					Issue: fmt.Sprintf("Distribución muy desequilibrada: %.1f%% en una categoría",
						maxShare*100),
					Severity: SeverityWarning,
				})
			}
		}
	}

	return issues
}

// Numeric columns whose name implies counts must not hold negative values
var nonNegativeKeywords = []string{"cantidad", "numero", "count", "total"}

func analyzeImpossibleValues(t *dataset.Table) []ImpossibleValue {
	issues := []ImpossibleValue{}
	for _, col := range t.Columns() {
		lower := strings.ToLower(col.Name)
		matched := false
		for _, kw := range nonNegativeKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		negatives := 0
		for _, v := range col.Values {
			if v.Kind() != dataset.KindInt && v.Kind() != dataset.KindFloat {
				continue
			}
			if n, ok := v.Numeric(); ok && n < 0 {
				negatives++
			}
		}
		if negatives > 0 {
			issues = append(issues, ImpossibleValue{
				Column:   col.Name,
				Issue:    fmt.Sprintf("%d valores negativos en columna que debería ser positiva", negatives),
				Severity: SeverityMedium,
			})
		}
	}
	return issues
}

func (a *Semantic) recommendations(r *SemanticResult) []Recommendation {
	var recs []Recommendation

	criticalAges := 0
	for _, iss := range r.InvalidAges {
		if iss.Severity == SeverityCritical {
			criticalAges++
		}
	}
	if criticalAges > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityCritical,
			Field:    "edad",
			Issue:    fmt.Sprintf("%d registros con edades imposibles", criticalAges),
			Action:   fmt.Sprintf("Revisar y corregir edades negativas o superiores a %d años", a.cfg.AgeMax),
			Impact:   "Alto - Invalida análisis demográficos",
		})
	}

	if len(r.IncoherentDates) > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Field:    "fechas",
			Issue:    fmt.Sprintf("%d incoherencias temporales", len(r.IncoherentDates)),
			Action:   "Validar secuencia lógica de fechas (nacimiento < muerte < notificación)",
			Impact:   "Alto - Genera errores en análisis temporales",
		})
	}

	if len(r.NonStandardMethods) > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Field:    "metodo",
			Issue:    fmt.Sprintf("%d métodos sin estandarizar", len(r.NonStandardMethods)),
			Action:   "Mapear a códigos CIE-10 o lista estandarizada",
			Impact:   "Medio - Dificulta comparaciones y agregaciones",
		})
	}

	return recs
}
