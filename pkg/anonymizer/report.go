package anonymizer

import (
	"sort"

	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Report summarizes what a run changed and what survived
type Report struct {
	OriginalColumns        int               `json:"original_columns"`
	AnonymizedColumns      int               `json:"anonymized_columns"`
	ColumnsRemoved         []string          `json:"columns_removed"`
	TransformationsApplied int               `json:"transformations_applied"`
	TransformationDetails  map[string]string `json:"transformation_details"`
	DataPreserved          DataPreserved     `json:"data_preserved"`
}

// DataPreserved records how much of the dataset remains usable
type DataPreserved struct {
	Rows          int `json:"rows"`
	UsableColumns int `json:"usable_columns"`
}

// BuildReport compares the original table against the anonymized one
func BuildReport(original, anonymized *dataset.Table, transformations map[string]string) Report {
	var removed []string
	for _, name := range original.ColumnNames() {
		if !anonymized.HasColumn(name) {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)

	details := make(map[string]string, len(transformations))
	for col, transform := range transformations {
		details[col] = transform
	}

	return Report{
		OriginalColumns:        original.Cols(),
		AnonymizedColumns:      anonymized.Cols(),
		ColumnsRemoved:         removed,
		TransformationsApplied: len(transformations),
		TransformationDetails:  details,
		DataPreserved: DataPreserved{
			Rows:          anonymized.Rows(),
			UsableColumns: anonymized.Cols(),
		},
	}
}
