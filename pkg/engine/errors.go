package engine

import (
	"fmt"
	"time"

	"github.com/cuidar-analytics/evaluator/pkg/analyzers"
)

// FailureCategory classifies how an analyzer run went wrong
type FailureCategory int

const (
	FailureCategoryNone FailureCategory = iota
	FailureCategoryInput
	FailureCategoryRuntime
	FailureCategoryTimeout
	FailureCategoryValidation
)

// String returns a string representation of the failure category
func (fc FailureCategory) String() string {
	switch fc {
	case FailureCategoryNone:
		return "None"
	case FailureCategoryInput:
		return "Input"
	case FailureCategoryRuntime:
		return "Runtime"
	case FailureCategoryTimeout:
		return "Timeout"
	case FailureCategoryValidation:
		return "Validation"
	default:
		return fmt.Sprintf("Unknown(%d)", fc)
	}
}

// FailureRecord captures one analyzer failure inside a run
type FailureRecord struct {
	Category  FailureCategory
	Analyzer  analyzers.Kind
	Error     error
	Message   string
	Timestamp time.Time
}

// NewFailureRecord creates a failure record with the current timestamp
func NewFailureRecord(kind analyzers.Kind, err error, category FailureCategory) FailureRecord {
	record := FailureRecord{
		Category:  category,
		Analyzer:  kind,
		Error:     err,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}
	return record
}
