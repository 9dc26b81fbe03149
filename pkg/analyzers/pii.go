package analyzers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/columns"
	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// PII entity types, a closed set
const (
	EntityPerson     = "PERSON"
	EntityEmail      = "EMAIL_ADDRESS"
	EntityPhone      = "PHONE_NUMBER"
	EntityLocation   = "LOCATION"
	EntityIDNumber   = "ID_NUMBER"
	EntityIBAN       = "IBAN_CODE"
	EntityCreditCard = "CREDIT_CARD"
)

// PIIEntity is one detected kind of sensitive data in a column
type PIIEntity struct {
	Type             string   `json:"type"`
	Column           string   `json:"column"`
	Count            int      `json:"count"`
	Examples         []string `json:"examples"`
	RiskContribution float64  `json:"risk_contribution"`
	Confidence       string   `json:"confidence"`
}

// PIISummary is the scorecard of the PII analysis
type PIISummary struct {
	PIIDetected         bool    `json:"pii_detected"`
	RiskScore           float64 `json:"risk_score"`
	RiskLevel           string  `json:"risk_level"`
	ColumnsWithPIICount int     `json:"columns_with_pii_count"`
	EntityTypesFound    int     `json:"entity_types_found"`
	TotalPIIInstances   int     `json:"total_pii_instances"`
	RequiresAction      bool    `json:"requires_action"`
}

// RiskAssessment restates the aggregate risk against the action threshold
type RiskAssessment struct {
	Score     float64 `json:"score"`
	Level     string  `json:"level"`
	Threshold float64 `json:"threshold"`
	Critical  bool    `json:"critical"`
}

// PIIResult is the full output of the PII analyzer
type PIIResult struct {
	Summary           PIISummary       `json:"summary"`
	EntitiesFound     []PIIEntity      `json:"entities_found"`
	ColumnsWithPII    []string         `json:"columns_with_pii"`
	RiskAssessment    RiskAssessment   `json:"risk_assessment"`
	Recommendations   []Recommendation `json:"recommendations"`
	AnalysisTimestamp string           `json:"analysis_timestamp"`
}

// AnalyzerKind implements Result
func (r *PIIResult) AnalyzerKind() Kind { return KindAnonymization }

// IsError implements Result
func (r *PIIResult) IsError() bool { return false }

// PII scans every column with the full entity detector registry and scores
// the aggregate re-identification risk on a 0-10 scale.
type PII struct {
	cfg        *config.Config
	classifier *columns.Classifier
	logger     *zap.Logger
}

// NewPII builds the PII analyzer
func NewPII(cfg *config.Config, logger *zap.Logger) (*PII, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &PII{
		cfg:        cfg,
		classifier: columns.NewClassifier(cfg.Rules),
		logger:     logger.With(zap.String("analyzer", string(KindAnonymization))),
	}, nil
}

// Kind implements Analyzer
func (a *PII) Kind() Kind { return KindAnonymization }

// Analyze implements Analyzer
func (a *PII) Analyze(ctx context.Context, t *dataset.Table) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("analyzing pii: %w", dataset.ErrEmptyDataset)
	}

	var entities []PIIEntity
	var columnsWithPII []string
	riskScore := 0.0

	for _, col := range t.Columns() {
		found, colRisk := a.analyzeColumn(col)
		if len(found) == 0 {
			continue
		}
		columnsWithPII = append(columnsWithPII, col.Name)
		entities = append(entities, found...)
		riskScore += colRisk
	}

	if t.Cols() > 0 {
		riskScore = riskScore / float64(t.Cols()) * 10
		if riskScore > 10 {
			riskScore = 10
		}
	}

	riskLevel := a.riskLevel(riskScore)

	entityTypes := make(map[string]bool)
	totalInstances := 0
	for _, e := range entities {
		entityTypes[e.Type] = true
		totalInstances += e.Count
	}

	piiDetected := len(columnsWithPII) > 0
	requiresAction := riskScore >= a.cfg.PIIRiskThreshold

	a.logger.Debug("pii analysis finished",
		zap.Bool("pii_detected", piiDetected),
		zap.Float64("risk_score", riskScore),
		zap.String("risk_level", riskLevel))

	return &PIIResult{
		Summary: PIISummary{
			PIIDetected:         piiDetected,
			RiskScore:           riskScore,
			RiskLevel:           riskLevel,
			ColumnsWithPIICount: len(columnsWithPII),
			EntityTypesFound:    len(entityTypes),
			TotalPIIInstances:   totalInstances,
			RequiresAction:      requiresAction,
		},
		EntitiesFound:  entities,
		ColumnsWithPII: columnsWithPII,
		RiskAssessment: RiskAssessment{
			Score:     riskScore,
			Level:     riskLevel,
			Threshold: a.cfg.PIIRiskThreshold,
			Critical:  requiresAction,
		},
		Recommendations:   a.recommendations(piiDetected, riskLevel, entities, columnsWithPII),
		AnalysisTimestamp: Timestamp(),
	}, nil
}

// analyzeColumn runs the full detector registry against one column
func (a *PII) analyzeColumn(col dataset.Column) ([]PIIEntity, float64) {
	var values []string
	for _, v := range col.Values {
		if !v.IsNull() {
			values = append(values, v.Text())
		}
	}
	if len(values) == 0 {
		return nil, 0
	}

	detectors := []func(values []string, col dataset.Column) *PIIEntity{
		a.detectPersons,
		a.detectEmails,
		a.detectPhones,
		a.detectAddresses,
		a.detectIDNumbers,
		a.detectIBANs,
		a.detectCreditCards,
	}

	var found []PIIEntity
	colRisk := 0.0
	for _, detect := range detectors {
		if entity := detect(values, col); entity != nil {
			found = append(found, *entity)
			colRisk += entity.RiskContribution
		}
	}
	return found, colRisk
}

var (
	namePattern  = regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(\s[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+){1,3}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?\d{1,3}[\s-]?\(?\d{2,3}\)?[\s-]?\d{3,4}[\s-]?\d{3,4}`),
		regexp.MustCompile(`\d{9,15}`),
	}
	streetPattern = regexp.MustCompile(`(?i)(calle|c/|av\.|avenida|nº|piso|planta|puerta)`)
	dniPattern    = regexp.MustCompile(`^\d{8}[A-Z]$`)
	ibanPattern   = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{4}\d{7}([A-Z0-9]?){0,16}$`)
	ccPattern     = regexp.MustCompile(`^\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4,7}$`)
)

func (a *PII) weight(entityType string) float64 {
	return a.cfg.PIIEntityWeights[entityType]
}

func (a *PII) detectPersons(values []string, col dataset.Column) *PIIEntity {
	// A name-like column header is a high-confidence shortcut
	if a.classifier.Matches(col.Name, columns.RoleName) {
		return &PIIEntity{
			Type:             EntityPerson,
			Column:           col.Name,
			Count:            len(values),
			Examples:         sampleValues(values, 2),
			RiskContribution: a.weight(EntityPerson),
			Confidence:       "alta",
		}
	}

	var matches []string
	for _, v := range values {
		if namePattern.MatchString(v) {
			matches = append(matches, v)
		}
	}
	if float64(len(matches)) > float64(len(values))*0.3 {
		return &PIIEntity{
			Type:             EntityPerson,
			Column:           col.Name,
			Count:            len(matches),
			Examples:         sampleValues(matches, 2),
			RiskContribution: a.weight(EntityPerson) - 0.5,
			Confidence:       "media",
		}
	}
	return nil
}

func (a *PII) detectEmails(values []string, col dataset.Column) *PIIEntity {
	var matches []string
	for _, v := range values {
		if emailPattern.MatchString(v) {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	return &PIIEntity{
		Type:             EntityEmail,
		Column:           col.Name,
		Count:            len(matches),
		Examples:         sampleValues(matches, 2),
		RiskContribution: a.weight(EntityEmail),
		Confidence:       "alta",
	}
}

func (a *PII) detectPhones(values []string, col dataset.Column) *PIIEntity {
	var matches []string
	for _, v := range values {
		for _, re := range phonePatterns {
			if re.MatchString(v) {
				matches = append(matches, v)
				break
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}
	return &PIIEntity{
		Type:             EntityPhone,
		Column:           col.Name,
		Count:            len(matches),
		Examples:         sampleValues(matches, 2),
		RiskContribution: a.weight(EntityPhone),
		Confidence:       "media",
	}
}

func (a *PII) detectAddresses(values []string, col dataset.Column) *PIIEntity {
	if !a.classifier.Matches(col.Name, columns.RoleAddress) {
		return nil
	}
	var matches []string
	for _, v := range values {
		if streetPattern.MatchString(v) {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	// Street-level addresses allow re-identification
	return &PIIEntity{
		Type:             EntityLocation,
		Column:           col.Name,
		Count:            len(matches),
		Examples:         sampleValues(matches, 2),
		RiskContribution: a.weight(EntityLocation),
		Confidence:       "alta",
	}
}

func (a *PII) detectIDNumbers(values []string, col dataset.Column) *PIIEntity {
	if a.classifier.Matches(col.Name, columns.RoleIdentifier) {
		return &PIIEntity{
			Type:             EntityIDNumber,
			Column:           col.Name,
			Count:            len(values),
			Examples:         sampleValues(values, 2),
			RiskContribution: a.weight(EntityIDNumber),
			Confidence:       "alta",
		}
	}

	var matches []string
	for _, v := range values {
		if dniPattern.MatchString(v) {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	return &PIIEntity{
		Type:             EntityIDNumber,
		Column:           col.Name,
		Count:            len(matches),
		Examples:         sampleValues(matches, 2),
		RiskContribution: a.weight(EntityIDNumber),
		Confidence:       "alta",
	}
}

func (a *PII) detectIBANs(values []string, col dataset.Column) *PIIEntity {
	count := 0
	for _, v := range values {
		if ibanPattern.MatchString(v) {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return &PIIEntity{
		Type:             EntityIBAN,
		Column:           col.Name,
		Count:            count,
		Examples:         redacted(count, 2),
		RiskContribution: a.weight(EntityIBAN),
		Confidence:       "alta",
	}
}

func (a *PII) detectCreditCards(values []string, col dataset.Column) *PIIEntity {
	count := 0
	for _, v := range values {
		if ccPattern.MatchString(v) {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return &PIIEntity{
		Type:             EntityCreditCard,
		Column:           col.Name,
		Count:            count,
		Examples:         redacted(count, 2),
		RiskContribution: a.weight(EntityCreditCard),
		Confidence:       "media",
	}
}

// sampleValues keeps at most n truncated examples, privacy first
func sampleValues(values []string, n int) []string {
	if len(values) < n {
		n = len(values)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = truncate(values[i], 30)
	}
	return out
}

func redacted(count, n int) []string {
	if count < n {
		n = count
	}
	out := make([]string, n)
	for i := range out {
		out[i] = "REDACTED"
	}
	return out
}

func (a *PII) riskLevel(score float64) string {
	for _, band := range a.cfg.PIIRiskBands {
		if score >= band.Min && score < band.Max {
			return band.Level
		}
	}
	return "critico"
}

func (a *PII) recommendations(piiDetected bool, riskLevel string, entities []PIIEntity, columnsWithPII []string) []Recommendation {
	if !piiDetected {
		return []Recommendation{{
			Priority: PriorityInfo,
			Field:    "general",
			Issue:    "No se detectó PII en la base de datos",
			Action:   "Mantener buenas prácticas de privacidad en registros futuros",
			Impact:   "Ninguno - La base cumple con estándares de privacidad",
		}}
	}

	var recs []Recommendation

	if riskLevel == "critico" || riskLevel == "alto" {
		cols := columnsWithPII
		if len(cols) > 3 {
			cols = cols[:3]
		}
		recs = append(recs, Recommendation{
			Priority: PriorityCritical,
			Field:    strings.Join(cols, ", "),
			Issue:    fmt.Sprintf("Riesgo %s - PII detectada en %d columnas", riskLevel, len(columnsWithPII)),
			Action:   "ELIMINAR estas columnas inmediatamente o aplicar hash SHA-256 irreversible",
			Impact:   "Crítico - Violación de RGPD/LOPD, riesgo legal y ético",
		})
	}

	highRisk := make([]PIIEntity, 0, len(entities))
	for _, e := range entities {
		if e.RiskContribution >= 2.0 {
			highRisk = append(highRisk, e)
		}
	}
	if len(highRisk) > 3 {
		highRisk = highRisk[:3]
	}
	for _, entity := range highRisk {
		var action string
		switch entity.Type {
		case EntityPerson:
			action = "Reemplazar nombres con IDs anonimizados: hash(nombre) o pseudónimo secuencial"
		case EntityLocation:
			action = "Agregar a nivel de municipio/región, eliminar direcciones exactas"
		case EntityIDNumber:
			action = "Aplicar hash SHA-256 o eliminar columna si no es esencial"
		case EntityEmail, EntityPhone:
			action = "Eliminar columna - no es necesaria para análisis epidemiológico"
		default:
			action = "Eliminar o enmascarar datos sensibles"
		}
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Field:    entity.Column,
			Issue:    fmt.Sprintf("%d instancias de %s", entity.Count, entity.Type),
			Action:   action,
			Impact:   "Alto - Riesgo de re-identificación",
		})
	}

	return recs
}
