package analyzers

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Value-level types detected by the typology analyzer
const (
	TypeNull              = "null"
	TypeInteger           = "integer"
	TypeFloat             = "float"
	TypeBoolean           = "boolean"
	TypeDatetime          = "datetime"
	TypeStringInteger     = "string_integer"
	TypeStringFloat       = "string_float"
	TypeStringBoolean     = "string_boolean"
	TypeStringDatetime    = "string_datetime"
	TypeStringCategorical = "string_categorical"
	TypeStringText        = "string_text"
	TypeEmpty             = "empty"
)

// TypologySummary is the scorecard of the typology analysis
type TypologySummary struct {
	TotalColumns     int            `json:"total_columns"`
	InconsistenciesN int            `json:"inconsistencies_count"`
	EncodingIssuesN  int            `json:"encoding_issues_count"`
	TypeDistribution map[string]int `json:"type_distribution"`
	QualityScore     float64        `json:"quality_score"`
}

// ColumnTypology describes the inferred type of one column
type ColumnTypology struct {
	DeclaredType         string         `json:"declared_type"`
	InferredType         string         `json:"inferred_type"`
	DetectedTypes        []string       `json:"detected_types"`
	TypeDistribution     map[string]int `json:"type_distribution"`
	HasInconsistency     bool           `json:"has_inconsistency"`
	InconsistencyRate    float64        `json:"inconsistency_rate"`
	InconsistentExamples []TypeExample  `json:"inconsistent_examples"`
	TotalNonNull         int            `json:"total_non_null"`
}

// TypeExample is one value whose detected type disagrees with the column mode
type TypeExample struct {
	Row          int    `json:"row"`
	Value        string `json:"value"`
	DetectedType string `json:"detected_type"`
}

// TypeInconsistency summarizes one column with mixed value types
type TypeInconsistency struct {
	Column            string        `json:"column"`
	Expected          string        `json:"expected"`
	Found             []string      `json:"found"`
	InconsistencyRate float64       `json:"inconsistency_rate"`
	Examples          []TypeExample `json:"examples"`
}

// EncodingIssue summarizes corruption signatures found in one column
type EncodingIssue struct {
	Column   string            `json:"column"`
	Issue    string            `json:"issue"`
	Examples []EncodingExample `json:"examples"`
}

// EncodingExample is one corrupted value
type EncodingExample struct {
	Row   int    `json:"row"`
	Value string `json:"value"`
	Issue string `json:"issue"`
}

// TypologyResult is the full output of the typology analyzer
type TypologyResult struct {
	Summary           TypologySummary           `json:"summary"`
	Columns           map[string]ColumnTypology `json:"columns_typology"`
	Inconsistencies   []TypeInconsistency       `json:"inconsistencies"`
	EncodingIssues    []EncodingIssue           `json:"encoding_issues"`
	Recommendations   []Recommendation          `json:"recommendations"`
	AnalysisTimestamp string                    `json:"analysis_timestamp"`
}

// AnalyzerKind implements Result
func (r *TypologyResult) AnalyzerKind() Kind { return KindTypology }

// IsError implements Result
func (r *TypologyResult) IsError() bool { return false }

// Typology infers value-level types per column and flags mixed typing and
// encoding corruption.
type Typology struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTypology builds the typology analyzer
func NewTypology(cfg *config.Config, logger *zap.Logger) (*Typology, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Typology{
		cfg:    cfg,
		logger: logger.With(zap.String("analyzer", string(KindTypology))),
	}, nil
}

// Kind implements Analyzer
func (a *Typology) Kind() Kind { return KindTypology }

// Analyze implements Analyzer
func (a *Typology) Analyze(ctx context.Context, t *dataset.Table) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("analyzing typology: %w", dataset.ErrEmptyDataset)
	}

	colTypology := make(map[string]ColumnTypology, t.Cols())
	var inconsistencies []TypeInconsistency
	var encodingIssues []EncodingIssue

	for _, col := range t.Columns() {
		analysis := analyzeColumnType(col)
		colTypology[col.Name] = analysis

		if analysis.HasInconsistency {
			examples := analysis.InconsistentExamples
			if len(examples) > 3 {
				examples = examples[:3]
			}
			inconsistencies = append(inconsistencies, TypeInconsistency{
				Column:            col.Name,
				Expected:          analysis.InferredType,
				Found:             analysis.DetectedTypes,
				InconsistencyRate: analysis.InconsistencyRate,
				Examples:          examples,
			})
		}

		if issue := detectEncodingIssues(col); issue != nil {
			encodingIssues = append(encodingIssues, *issue)
		}
	}

	typeDist := make(map[string]int)
	for _, data := range colTypology {
		typeDist[data.InferredType]++
	}

	score := typologyScore(t.Cols(), len(inconsistencies), len(encodingIssues))

	a.logger.Debug("typology analysis finished",
		zap.Int("inconsistencies", len(inconsistencies)),
		zap.Int("encoding_issues", len(encodingIssues)),
		zap.Float64("score", score))

	return &TypologyResult{
		Summary: TypologySummary{
			TotalColumns:     t.Cols(),
			InconsistenciesN: len(inconsistencies),
			EncodingIssuesN:  len(encodingIssues),
			TypeDistribution: typeDist,
			QualityScore:     score,
		},
		Columns:           colTypology,
		Inconsistencies:   inconsistencies,
		EncodingIssues:    encodingIssues,
		Recommendations:   typologyRecommendations(inconsistencies, encodingIssues, colTypology),
		AnalysisTimestamp: Timestamp(),
	}, nil
}

func analyzeColumnType(col dataset.Column) ColumnTypology {
	typeCounts := make(map[string]int)
	detected := make([]string, 0, len(col.Values))
	nonNull := 0
	for _, v := range col.Values {
		if v.IsNull() {
			detected = append(detected, TypeNull)
			continue
		}
		nonNull++
		dt := detectValueType(v)
		typeCounts[dt]++
		detected = append(detected, dt)
	}

	if nonNull == 0 {
		return ColumnTypology{
			DeclaredType: declaredType(col),
			InferredType: TypeEmpty,
		}
	}

	inferred := ""
	for dt, count := range typeCounts {
		if inferred == "" || count > typeCounts[inferred] ||
			(count == typeCounts[inferred] && dt < inferred) {
			inferred = dt
		}
	}

	var examples []TypeExample
	for i, dt := range detected {
		if dt == TypeNull || dt == inferred {
			continue
		}
		if len(examples) < 5 {
			examples = append(examples, TypeExample{
				Row:          i,
				Value:        truncate(col.Values[i].Text(), 50),
				DetectedType: dt,
			})
		}
	}

	types := make([]string, 0, len(typeCounts))
	for dt := range typeCounts {
		types = append(types, dt)
	}
	sort.Strings(types)

	rate := 1 - float64(typeCounts[inferred])/float64(nonNull)

	return ColumnTypology{
		DeclaredType:         declaredType(col),
		InferredType:         inferred,
		DetectedTypes:        types,
		TypeDistribution:     typeCounts,
		HasInconsistency:     rate > 0.05,
		InconsistencyRate:    rate,
		InconsistentExamples: examples,
		TotalNonNull:         nonNull,
	}
}

// declaredType is the dominant storage kind of the column as loaded
func declaredType(col dataset.Column) string {
	counts := make(map[dataset.Kind]int)
	for _, v := range col.Values {
		if !v.IsNull() {
			counts[v.Kind()]++
		}
	}
	best := dataset.KindString
	bestN := -1
	for k, n := range counts {
		if n > bestN {
			best, bestN = k, n
		}
	}
	if bestN < 0 {
		return dataset.KindNull.String()
	}
	return best.String()
}

var (
	stringIntegerRe = regexp.MustCompile(`^-?\d+$`)
	stringFloatRe   = regexp.MustCompile(`^-?\d+[.,]\d+$`)
	datePrefixRes   = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`),
		regexp.MustCompile(`^\d{2}-\d{2}-\d{4}`),
	}
	booleanTokens = map[string]bool{
		"true": true, "false": true, "verdadero": true, "falso": true,
		"sí": true, "si": true, "no": true, "t": true, "f": true,
	}
)

func detectValueType(v dataset.Value) string {
	switch v.Kind() {
	case dataset.KindTime:
		return TypeDatetime
	case dataset.KindBool:
		return TypeBoolean
	case dataset.KindInt:
		return TypeInteger
	case dataset.KindFloat:
		if v.Float() == float64(int64(v.Float())) {
			return TypeInteger
		}
		return TypeFloat
	}

	s := strings.TrimSpace(v.Str())
	if booleanTokens[strings.ToLower(s)] {
		return TypeStringBoolean
	}
	if stringIntegerRe.MatchString(s) {
		return TypeStringInteger
	}
	if stringFloatRe.MatchString(s) {
		return TypeStringFloat
	}
	if looksLikeDate(s) {
		return TypeStringDatetime
	}
	if len(s) < 50 {
		return TypeStringCategorical
	}
	return TypeStringText
}

func looksLikeDate(s string) bool {
	for _, re := range datePrefixRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Mojibake signatures of UTF-8 text decoded as Latin-1
var mojibakeSigns = []string{"Ã±", "Ã©", "Ã³", "Ã¡", "Ãº"}

func detectEncodingIssues(col dataset.Column) *EncodingIssue {
	issues := make(map[string]bool)
	var examples []EncodingExample

	for i, v := range col.Values {
		if v.Kind() != dataset.KindString {
			continue
		}
		s := v.Str()

		for _, sig := range mojibakeSigns {
			if strings.Contains(s, sig) {
				issues["utf8_latin1_mix"] = true
				if len(examples) < 5 {
					examples = append(examples, EncodingExample{
						Row:   i,
						Value: truncate(s, 50),
						Issue: "Posible mezcla UTF-8/Latin-1",
					})
				}
				break
			}
		}

		if strings.Contains(s, `\x`) || strings.Contains(s, `\u`) {
			issues["escaped_characters"] = true
			if len(examples) < 5 {
				examples = append(examples, EncodingExample{
					Row:   i,
					Value: truncate(s, 50),
					Issue: "Caracteres de escape sin procesar",
				})
			}
		}
	}

	if len(issues) == 0 {
		return nil
	}

	names := make([]string, 0, len(issues))
	for name := range issues {
		names = append(names, name)
	}
	sort.Strings(names)

	return &EncodingIssue{
		Column:   col.Name,
		Issue:    strings.Join(names, ", "),
		Examples: examples,
	}
}

func typologyScore(totalCols, inconsistencies, encodingIssues int) float64 {
	score := 100.0
	if totalCols > 0 {
		score -= float64(inconsistencies) / float64(totalCols) * 40
		score -= float64(encodingIssues) / float64(totalCols) * 30
	}
	if score < 0 {
		return 0
	}
	return score
}

func typologyRecommendations(inconsistencies []TypeInconsistency, encodingIssues []EncodingIssue, colTypology map[string]ColumnTypology) []Recommendation {
	var recs []Recommendation

	top := inconsistencies
	if len(top) > 3 {
		top = top[:3]
	}
	for _, inc := range top {
		action := "Estandarizar tipo de dato y limpiar valores inconsistentes"
		switch {
		case contains(inc.Found, TypeStringInteger) && inc.Expected == TypeInteger:
			action = "Convertir valores de texto a enteros durante la ingesta"
		case contains(inc.Found, TypeStringFloat) && (inc.Expected == TypeFloat || inc.Expected == TypeInteger):
			action = "Convertir valores de texto a numéricos, considerar separador decimal regional"
		case contains(inc.Found, TypeStringDatetime):
			action = "Convertir valores de texto a fechas con un formato explícito"
		}
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Field:    inc.Column,
			Issue:    fmt.Sprintf("Tipo inconsistente: %.1f%% de valores no coinciden", inc.InconsistencyRate*100),
			Action:   action,
			Impact:   "Alto - Impide análisis cuantitativos correctos",
		})
	}

	topEnc := encodingIssues
	if len(topEnc) > 3 {
		topEnc = topEnc[:3]
	}
	for _, enc := range topEnc {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Field:    enc.Column,
			Issue:    "Problemas de codificación de caracteres: " + enc.Issue,
			Action:   "Recodificar la columna a UTF-8 desde la fuente original",
			Impact:   "Medio - Afecta análisis de texto y búsquedas",
		})
	}

	var categorical []string
	for name, data := range colTypology {
		if (data.InferredType == TypeStringCategorical || data.InferredType == TypeStringText) &&
			data.TotalNonNull > 50 {
			categorical = append(categorical, name)
		}
	}
	sort.Strings(categorical)
	if len(categorical) > 0 {
		if len(categorical) > 3 {
			categorical = categorical[:3]
		}
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Field:    strings.Join(categorical, ", "),
			Issue:    "Columnas de texto que parecen categóricas",
			Action:   "Normalizar a un catálogo cerrado de categorías",
			Impact:   "Bajo - Mejora eficiencia y claridad",
		})
	}

	return recs
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
