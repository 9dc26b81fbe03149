package analyzers

import (
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// quantile returns the p-quantile of xs with linear interpolation,
// matching the convention of common dataframe libraries. xs may be unsorted.
func quantile(p float64, xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// pearson returns the Pearson correlation of two equal-length series
func pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// chiSquareP returns the p-value of a chi-square independence test over a
// contingency table (rows x cols of observed counts). Returns 1 when the
// table is degenerate.
func chiSquareP(observed [][]float64) float64 {
	rows := len(observed)
	if rows < 2 {
		return 1
	}
	cols := len(observed[0])
	if cols < 2 {
		return 1
	}

	rowTotals := make([]float64, rows)
	colTotals := make([]float64, cols)
	var grand float64
	for i, row := range observed {
		for j, v := range row {
			rowTotals[i] += v
			colTotals[j] += v
			grand += v
		}
	}
	if grand == 0 {
		return 1
	}

	var statistic float64
	for i := range observed {
		for j := range observed[i] {
			expected := rowTotals[i] * colTotals[j] / grand
			if expected == 0 {
				continue
			}
			diff := observed[i][j] - expected
			statistic += diff * diff / expected
		}
	}

	dof := float64((rows - 1) * (cols - 1))
	dist := distuv.ChiSquared{K: dof}
	return dist.Survival(statistic)
}

// mean returns the arithmetic mean of xs, zero when empty
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
