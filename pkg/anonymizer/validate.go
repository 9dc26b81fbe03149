package anonymizer

import (
	"fmt"
	"regexp"

	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Validation is the residual-risk check run after anonymization
type Validation struct {
	IsSafe          bool     `json:"is_safe"`
	Warnings        []string `json:"warnings"`
	ResidualPIIRisk float64  `json:"residual_pii_risk"`
}

var (
	residualEmail  = regexp.MustCompile(`@.+\.`)
	residualDigits = regexp.MustCompile(`\d{9,}`)
	residualName   = regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+\s[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(\s[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?$`)
)

// validation sample per column
const validateSampleSize = 100

// Validate scans an anonymized table for values that still look like PII.
// Only the first values of each column are sampled.
func Validate(t *dataset.Table) Validation {
	result := Validation{IsSafe: true, Warnings: []string{}}

	for _, name := range t.ColumnNames() {
		col, ok := t.Column(name)
		if !ok {
			continue
		}

		var sampled, emails, longDigits, nameLike int
		for _, v := range col.Values {
			if v.IsNull() {
				continue
			}
			text := v.Text()
			if residualEmail.MatchString(text) {
				emails++
			}
			if residualDigits.MatchString(text) {
				longDigits++
			}
			if residualName.MatchString(text) {
				nameLike++
			}
			sampled++
			if sampled >= validateSampleSize {
				break
			}
		}

		if emails > 0 {
			result.IsSafe = false
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Posibles emails sin anonimizar en columna '%s'", name))
			result.ResidualPIIRisk += 1.0
		}
		if longDigits > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Posibles números largos (teléfonos/IDs) en columna '%s'", name))
			result.ResidualPIIRisk += 0.5
		}
		if nameLike > 10 {
			result.IsSafe = false
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Posibles nombres sin anonimizar en columna '%s'", name))
			result.ResidualPIIRisk += 2.0
		}
	}

	if result.ResidualPIIRisk > 10 {
		result.ResidualPIIRisk = 10
	}
	return result
}
