// Package anonymizer transforms PII-flagged columns of a dataset. The input
// table is never mutated; every run produces a new copy plus a record of the
// transformation applied to each column.
package anonymizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Strategy selects how PII columns are transformed
type Strategy string

const (
	StrategyHash   Strategy = "hash"
	StrategyMask   Strategy = "mask"
	StrategyRemove Strategy = "remove"
)

// Transformation types recorded per column
const (
	TransformHashed        = "hashed"
	TransformMasked        = "masked"
	TransformMaskedDomain  = "masked_preserving_domain"
	TransformMaskedPartial = "masked_partial"
	TransformAggregated    = "aggregated_to_municipality"
	TransformRemoved       = "removed"
	TransformColumnRemoved = "column_removed"
)

// Anonymizer applies an anonymization strategy to PII columns
type Anonymizer struct {
	strategy Strategy
	logger   *zap.Logger
}

// New builds an anonymizer with the given strategy
func New(strategy Strategy, logger *zap.Logger) (*Anonymizer, error) {
	switch strategy {
	case StrategyHash, StrategyMask, StrategyRemove:
	default:
		return nil, fmt.Errorf("unknown anonymization strategy %q", strategy)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Anonymizer{
		strategy: strategy,
		logger:   logger.With(zap.String("component", "anonymizer")),
	}, nil
}

// Anonymize returns a transformed copy of the table and the per-column
// transformation map. Columns absent from the table are skipped.
func (a *Anonymizer) Anonymize(t *dataset.Table, piiColumns []string) (*dataset.Table, map[string]string, error) {
	if t == nil {
		return nil, nil, fmt.Errorf("table is required")
	}

	out := t.Clone()
	transformations := make(map[string]string)

	for _, name := range piiColumns {
		col, ok := out.Column(name)
		if !ok {
			continue
		}

		lower := strings.ToLower(name)
		var values []dataset.Value
		var transform string

		switch {
		case containsAny(lower, "nombre", "apellido", "person"):
			values, transform = a.anonymizeNames(col.Values)
		case containsAny(lower, "email", "correo"):
			values, transform = anonymizeEmails(col.Values)
		case containsAny(lower, "telefono", "phone"):
			values, transform = anonymizePhones(col.Values)
		case containsAny(lower, "direccion", "address", "domicilio"):
			values, transform = anonymizeAddresses(col.Values)
		case containsAny(lower, "dni", "rut", "cedula", "id"):
			values, transform = a.anonymizeIDs(col.Values)
		default:
			if a.strategy == StrategyRemove {
				dropped, err := out.DropColumn(name)
				if err != nil {
					return nil, nil, fmt.Errorf("dropping column %q: %w", name, err)
				}
				out = dropped
				transformations[name] = TransformColumnRemoved
				continue
			}
			values, transform = a.anonymizeGeneric(col.Values)
		}

		replaced, err := out.ReplaceColumn(name, values)
		if err != nil {
			return nil, nil, fmt.Errorf("replacing column %q: %w", name, err)
		}
		out = replaced
		transformations[name] = transform

		a.logger.Debug("column anonymized",
			zap.String("column", name),
			zap.String("transformation", transform))
	}

	return out, transformations, nil
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func (a *Anonymizer) anonymizeNames(values []dataset.Value) ([]dataset.Value, string) {
	switch a.strategy {
	case StrategyHash:
		return hashValues(values), TransformHashed
	case StrategyMask:
		// Stable sequential pseudonyms in order of first appearance
		mapping := make(map[string]string)
		out := make([]dataset.Value, len(values))
		for i, v := range values {
			if v.IsNull() {
				out[i] = v
				continue
			}
			key := v.Text()
			pseudo, ok := mapping[key]
			if !ok {
				pseudo = fmt.Sprintf("PERSONA_%d", len(mapping)+1)
				mapping[key] = pseudo
			}
			out[i] = dataset.String(pseudo)
		}
		return out, TransformMasked
	default:
		return nullValues(len(values)), TransformRemoved
	}
}

func anonymizeEmails(values []dataset.Value) ([]dataset.Value, string) {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		parts := strings.SplitN(v.Text(), "@", 2)
		if len(parts) == 2 {
			out[i] = dataset.String("usuario_anonimo@" + parts[1])
		} else {
			out[i] = dataset.String("email_invalido")
		}
	}
	return out, TransformMaskedDomain
}

var nonDigits = regexp.MustCompile(`\D`)

func anonymizePhones(values []dataset.Value) ([]dataset.Value, string) {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		digits := nonDigits.ReplaceAllString(v.Text(), "")
		if len(digits) >= 6 {
			out[i] = dataset.String(digits[:3] + strings.Repeat("X", len(digits)-3))
		} else {
			out[i] = dataset.String("XXX")
		}
	}
	return out, TransformMaskedPartial
}

func anonymizeAddresses(values []dataset.Value) ([]dataset.Value, string) {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		// Keep the last token, usually the municipality
		words := strings.Fields(v.Text())
		if len(words) > 1 {
			out[i] = dataset.String(words[len(words)-1])
		} else {
			out[i] = dataset.String("LOCALIDAD_ANONIMA")
		}
	}
	return out, TransformAggregated
}

func (a *Anonymizer) anonymizeIDs(values []dataset.Value) ([]dataset.Value, string) {
	if a.strategy == StrategyHash {
		return hashValues(values), TransformHashed
	}
	return nullValues(len(values)), TransformRemoved
}

func (a *Anonymizer) anonymizeGeneric(values []dataset.Value) ([]dataset.Value, string) {
	if a.strategy == StrategyHash {
		return hashValues(values), TransformHashed
	}
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		out[i] = dataset.String("[REDACTADO]")
	}
	return out, TransformMasked
}

func hashValues(values []dataset.Value) []dataset.Value {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		out[i] = dataset.String(HashValue(v.Text()))
	}
	return out
}

func nullValues(n int) []dataset.Value {
	out := make([]dataset.Value, n)
	for i := range out {
		out[i] = dataset.Null()
	}
	return out
}

// HashValue returns the SHA-256 hex digest of a value truncated to 16
// characters. Re-hashing a hash yields another stable 16-char hex string.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}
