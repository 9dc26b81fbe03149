package anonymizer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

func mustTable(t *testing.T, cols []dataset.Column) *dataset.Table {
	t.Helper()
	table, err := dataset.New(cols)
	require.NoError(t, err)
	return table
}

func newAnonymizer(t *testing.T, strategy Strategy) *Anonymizer {
	t.Helper()
	a, err := New(strategy, zap.NewNop())
	require.NoError(t, err)
	return a
}

func columnTexts(t *testing.T, table *dataset.Table, name string) []string {
	t.Helper()
	col, ok := table.Column(name)
	require.True(t, ok, "column %q", name)
	out := make([]string, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = "<null>"
		} else {
			out[i] = v.Text()
		}
	}
	return out
}

func TestNewRejectsBadInputs(t *testing.T) {
	_, err := New(Strategy("scramble"), zap.NewNop())
	assert.Error(t, err)

	_, err = New(StrategyHash, nil)
	assert.Error(t, err)
}

func TestHashValueStability(t *testing.T) {
	h := HashValue("Juan García")
	assert.Len(t, h, 16)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), h)
	assert.Equal(t, h, HashValue("Juan García"))
	assert.NotEqual(t, h, HashValue("Ana López"))

	// Hashing a hash stays in the same value space
	assert.Len(t, HashValue(h), 16)
	assert.NotEqual(t, h, HashValue(h))
}

func TestAnonymizeHashStrategy(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "nombre", Values: []dataset.Value{
			dataset.String("Juan García"), dataset.Null(), dataset.String("Ana López")}},
		{Name: "dni", Values: []dataset.Value{
			dataset.String("12345678Z"), dataset.String("87654321X"), dataset.Null()}},
		{Name: "edad", Values: []dataset.Value{
			dataset.Int(30), dataset.Int(45), dataset.Int(52)}},
	})

	out, transformations, err := newAnonymizer(t, StrategyHash).Anonymize(table, []string{"nombre", "dni"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"nombre": TransformHashed,
		"dni":    TransformHashed,
	}, transformations)

	names := columnTexts(t, out, "nombre")
	assert.Equal(t, HashValue("Juan García"), names[0])
	assert.Equal(t, "<null>", names[1])
	assert.Equal(t, HashValue("Ana López"), names[2])

	// Untouched columns and the original table stay intact
	assert.Equal(t, []string{"30", "45", "52"}, columnTexts(t, out, "edad"))
	assert.Equal(t, "Juan García", columnTexts(t, table, "nombre")[0])
}

func TestAnonymizeMaskNames(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "nombre", Values: []dataset.Value{
			dataset.String("Juan García"), dataset.String("Ana López"),
			dataset.String("Juan García"), dataset.Null()}},
	})

	out, transformations, err := newAnonymizer(t, StrategyMask).Anonymize(table, []string{"nombre"})
	require.NoError(t, err)

	assert.Equal(t, TransformMasked, transformations["nombre"])
	assert.Equal(t, []string{"PERSONA_1", "PERSONA_2", "PERSONA_1", "<null>"},
		columnTexts(t, out, "nombre"))
}

func TestAnonymizeEmailsPreserveDomain(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "email", Values: []dataset.Value{
			dataset.String("juan@dominio.com"), dataset.String("sin arroba"), dataset.Null()}},
	})

	out, transformations, err := newAnonymizer(t, StrategyMask).Anonymize(table, []string{"email"})
	require.NoError(t, err)

	assert.Equal(t, TransformMaskedDomain, transformations["email"])
	assert.Equal(t, []string{"usuario_anonimo@dominio.com", "email_invalido", "<null>"},
		columnTexts(t, out, "email"))
}

func TestAnonymizePhonesKeepPrefix(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "telefono", Values: []dataset.Value{
			dataset.String("+34 612 345 678"), dataset.String("1234")}},
	})

	out, transformations, err := newAnonymizer(t, StrategyHash).Anonymize(table, []string{"telefono"})
	require.NoError(t, err)

	assert.Equal(t, TransformMaskedPartial, transformations["telefono"])
	assert.Equal(t, []string{"346XXXXXXXX", "XXX"}, columnTexts(t, out, "telefono"))
}

func TestAnonymizeAddressesKeepLocality(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "direccion", Values: []dataset.Value{
			dataset.String("Calle Mayor 12 Sevilla"), dataset.String("Madrid")}},
	})

	out, transformations, err := newAnonymizer(t, StrategyHash).Anonymize(table, []string{"direccion"})
	require.NoError(t, err)

	assert.Equal(t, TransformAggregated, transformations["direccion"])
	assert.Equal(t, []string{"Sevilla", "LOCALIDAD_ANONIMA"}, columnTexts(t, out, "direccion"))
}

func TestAnonymizeRemoveStrategy(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "nombre", Values: []dataset.Value{dataset.String("Juan García")}},
		{Name: "comentario", Values: []dataset.Value{dataset.String("habló con su vecino")}},
		{Name: "edad", Values: []dataset.Value{dataset.Int(30)}},
	})

	out, transformations, err := newAnonymizer(t, StrategyRemove).Anonymize(table, []string{"nombre", "comentario"})
	require.NoError(t, err)

	// Keyword-routed columns are nulled, generic ones dropped outright
	assert.Equal(t, TransformRemoved, transformations["nombre"])
	assert.Equal(t, TransformColumnRemoved, transformations["comentario"])
	assert.False(t, out.HasColumn("comentario"))
	assert.Equal(t, []string{"<null>"}, columnTexts(t, out, "nombre"))

	report := BuildReport(table, out, transformations)
	assert.Equal(t, 3, report.OriginalColumns)
	assert.Equal(t, 2, report.AnonymizedColumns)
	assert.Equal(t, []string{"comentario"}, report.ColumnsRemoved)
	assert.Equal(t, 2, report.TransformationsApplied)
	assert.Equal(t, 1, report.DataPreserved.Rows)
	assert.Equal(t, 2, report.DataPreserved.UsableColumns)
}

func TestAnonymizeSkipsAbsentColumns(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "edad", Values: []dataset.Value{dataset.Int(30)}},
	})

	out, transformations, err := newAnonymizer(t, StrategyHash).Anonymize(table, []string{"ausente"})
	require.NoError(t, err)
	assert.Empty(t, transformations)
	assert.Equal(t, []string{"30"}, columnTexts(t, out, "edad"))
}

func TestValidateFlagsResidualEmails(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "contacto", Values: []dataset.Value{
			dataset.String("juan@dominio.com"), dataset.Null()}},
	})

	v := Validate(table)
	assert.False(t, v.IsSafe)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "contacto")
	assert.InDelta(t, 1.0, v.ResidualPIIRisk, 1e-9)
}

func TestValidateLongDigitsAreWarningOnly(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "referencia", Values: []dataset.Value{dataset.String("612345678901")}},
	})

	v := Validate(table)
	assert.True(t, v.IsSafe)
	require.Len(t, v.Warnings, 1)
	assert.InDelta(t, 0.5, v.ResidualPIIRisk, 1e-9)
}

func TestValidateFlagsManyNameLikeValues(t *testing.T) {
	values := make([]dataset.Value, 12)
	for i := range values {
		values[i] = dataset.String("Juan García")
	}
	table := mustTable(t, []dataset.Column{{Name: "texto", Values: values}})

	v := Validate(table)
	assert.False(t, v.IsSafe)
	assert.InDelta(t, 2.0, v.ResidualPIIRisk, 1e-9)
}

func TestValidateHashedTableIsSafe(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "nombre", Values: []dataset.Value{
			dataset.String(HashValue("Juan García")), dataset.String(HashValue("Ana López"))}},
	})

	v := Validate(table)
	assert.True(t, v.IsSafe)
	assert.Empty(t, v.Warnings)
	assert.InDelta(t, 0.0, v.ResidualPIIRisk, 1e-9)
}
