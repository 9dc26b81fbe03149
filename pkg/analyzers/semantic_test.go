package analyzers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

func newSemantic(t *testing.T) *Semantic {
	t.Helper()
	a, err := NewSemantic(config.Default(), zap.NewNop())
	require.NoError(t, err)
	a.now = func() time.Time {
		return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return a
}

func TestSemanticInvalidAges(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "edad", Values: []dataset.Value{
			dataset.Int(-5), dataset.Int(34), dataset.Int(150), dataset.Int(45)}},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.InvalidAges, 2)
	assert.Equal(t, 0, r.InvalidAges[0].Row)
	assert.Equal(t, "Edad negativa", r.InvalidAges[0].Issue)
	assert.Equal(t, SeverityCritical, r.InvalidAges[0].Severity)
	assert.Equal(t, 2, r.InvalidAges[1].Row)
	assert.Equal(t, SeverityCritical, r.InvalidAges[1].Severity)

	assert.Equal(t, 2, r.Summary.CriticalIssues)
	// 100 - 2*10 critical - 2*2 total
	assert.InDelta(t, 76.0, r.Summary.Score, 1e-9)
	assert.Equal(t, "bueno", r.Summary.QualityLevel)

	require.NotEmpty(t, r.Recommendations)
	assert.Equal(t, PriorityCritical, r.Recommendations[0].Priority)
	assert.Equal(t, "edad", r.Recommendations[0].Field)
}

func TestSemanticVeryHighAgeIsWarning(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "edad", Values: []dataset.Value{dataset.Int(105), dataset.Int(40)}},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.InvalidAges, 1)
	assert.Equal(t, SeverityWarning, r.InvalidAges[0].Severity)
	assert.Equal(t, 0, r.Summary.CriticalIssues)
}

func TestSemanticBirthBeforeDeath(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "fecha_nacimiento", Values: []dataset.Value{
			dataset.String("1990-05-01"), dataset.String("1985-02-10")}},
		{Name: "fecha_defuncion", Values: []dataset.Value{
			dataset.String("1989-01-01"), dataset.String("2024-03-01")}},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.IncoherentDates, 1)
	issue := r.IncoherentDates[0]
	assert.Equal(t, 0, issue.Row)
	assert.Equal(t, SeverityCritical, issue.Severity)
	assert.Equal(t, []string{"fecha_nacimiento", "fecha_defuncion"}, issue.Columns)
}

func TestSemanticLateNotification(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "fecha_evento", Values: []dataset.Value{dataset.String("2024-01-01")}},
		{Name: "fecha_notificacion", Values: []dataset.Value{dataset.String("2024-12-01")}},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.IncoherentDates, 1)
	assert.Equal(t, SeverityWarning, r.IncoherentDates[0].Severity)
	assert.Contains(t, r.IncoherentDates[0].Issue, "335 días")
}

func TestSemanticFutureDate(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "fecha_evento", Values: []dataset.Value{
			dataset.String("2030-06-01"), dataset.String("2024-06-01")}},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.IncoherentDates, 1)
	assert.Equal(t, SeverityHigh, r.IncoherentDates[0].Severity)
	assert.Contains(t, r.IncoherentDates[0].Issue, "Fecha futura")
}

func TestSemanticMethodVocabulary(t *testing.T) {
	values := []dataset.Value{
		dataset.String("ahorcamiento"),
		dataset.String("ahorcadura"),
		dataset.String("sobredosis"),
		dataset.String("salto al vacio"),
		dataset.String("desconocido"),
	}
	table := mustTable(t, []dataset.Column{{Name: "metodo", Values: values}})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.NonStandardMethods, 4)

	suggestions := make(map[string]string, len(r.NonStandardMethods))
	for _, iss := range r.NonStandardMethods {
		suggestions[iss.Value] = iss.Suggestion
		assert.Equal(t, SeverityLow, iss.Severity, "single occurrences stay low severity")
	}
	assert.Equal(t, "ahorcamiento", suggestions["ahorcadura"])
	assert.Equal(t, "intoxicacion", suggestions["sobredosis"])
	assert.Equal(t, "precipitacion", suggestions["salto al vacio"])
	assert.Equal(t, "otro", suggestions["desconocido"])
}

func TestSemanticMethodsOrderedByFrequency(t *testing.T) {
	var values []dataset.Value
	for i := 0; i < 7; i++ {
		values = append(values, dataset.String("disparo"))
	}
	values = append(values, dataset.String("cuchillo"))
	table := mustTable(t, []dataset.Column{{Name: "metodo", Values: values}})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.NonStandardMethods, 2)
	assert.Equal(t, "disparo", r.NonStandardMethods[0].Value)
	assert.Equal(t, 7, r.NonStandardMethods[0].Count)
	assert.Equal(t, SeverityMedium, r.NonStandardMethods[0].Severity)
	assert.Equal(t, "cuchillo", r.NonStandardMethods[1].Value)
	assert.Equal(t, SeverityLow, r.NonStandardMethods[1].Severity)
}

func TestSemanticSexImbalance(t *testing.T) {
	ages := make([]dataset.Value, 40)
	sexes := make([]dataset.Value, 40)
	for i := range ages {
		ages[i] = dataset.Int(int64(30 + i%20))
		if i == 0 {
			sexes[i] = dataset.String("F")
		} else {
			sexes[i] = dataset.String("M")
		}
	}
	table := mustTable(t, []dataset.Column{
		{Name: "edad", Values: ages},
		{Name: "sexo", Values: sexes},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.AtypicalDists, 1)
	assert.Equal(t, "sexo", r.AtypicalDists[0].Variable)
	assert.Equal(t, SeverityWarning, r.AtypicalDists[0].Severity)
}

func TestSemanticImpossibleNegativeCounts(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "numero_intentos", Values: []dataset.Value{
			dataset.Int(2), dataset.Int(-1), dataset.Int(0)}},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	require.Len(t, r.ImpossibleValues, 1)
	assert.Equal(t, "numero_intentos", r.ImpossibleValues[0].Column)
	assert.Equal(t, SeverityMedium, r.ImpossibleValues[0].Severity)
}

func TestSemanticCleanTable(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "edad", Values: []dataset.Value{dataset.Int(34), dataset.Int(52)}},
		{Name: "metodo", Values: []dataset.Value{
			dataset.String("ahorcamiento"), dataset.String("intoxicacion")}},
	})

	result, err := newSemantic(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*SemanticResult)

	assert.Equal(t, 0, r.Summary.TotalIssues)
	assert.InDelta(t, 100.0, r.Summary.Score, 1e-9)
	assert.Equal(t, "excelente", r.Summary.QualityLevel)
	assert.Empty(t, r.Recommendations)
}
