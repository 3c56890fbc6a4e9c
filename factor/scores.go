package factor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/qmethod/qfactor/qmatrix"
)

// scoreFallbackCount is how many top-|loading| participants define a factor's
// score set when nobody clears the loading threshold.
const scoreFallbackCount = 3

// Scores is the statement × factor Z-score matrix plus the bookkeeping the
// caller needs for warnings: factors whose weighted-average vector had zero
// variance (emitted mean-centered, not unit-scaled) and factors that had to
// fall back to the top-loaded participants.
type Scores struct {
	Matrix            *mat.Dense // S×nFactors, every cell finite
	DegenerateFactors []int
	FallbackFactors   []int
}

// FactorScores computes per-statement Z-scores for every factor. For factor f
// the participants with |loading| ≥ minLoading are selected (top-3 by
// |loading| when none clear the bar, so the score set is never empty), each
// statement's raw sort scores are averaged weighted by |loading|, and the
// resulting statement vector is re-standardized to zero mean and unit
// variance across statements.
func FactorScores(m *qmatrix.SortMatrix, loadings *mat.Dense, minLoading float64) *Scores {
	p, nf := loadings.Dims()
	s := m.Statements()

	out := mat.NewDense(s, nf, nil)
	result := &Scores{Matrix: out}

	weighted := make([]float64, s)
	for f := 0; f < nf; f++ {
		selected := selectParticipants(loadings, f, minLoading)
		if selected == nil {
			selected = topLoaded(loadings, f, scoreFallbackCount, p)
			result.FallbackFactors = append(result.FallbackFactors, f)
		}

		totalWeight := 0.0
		for _, idx := range selected {
			totalWeight += math.Abs(loadings.At(idx, f))
		}

		for stmt := 0; stmt < s; stmt++ {
			if totalWeight == 0 {
				weighted[stmt] = 0
				continue
			}
			sum := 0.0
			for _, idx := range selected {
				sum += math.Abs(loadings.At(idx, f)) * m.Score(idx, stmt)
			}
			weighted[stmt] = sum / totalWeight
		}

		mean := stat.Mean(weighted, nil)
		std := stat.PopStdDev(weighted, nil)
		if std == 0 {
			// All statements tied: emit mean-centered values rather than
			// dividing by zero.
			result.DegenerateFactors = append(result.DegenerateFactors, f)
			for stmt := 0; stmt < s; stmt++ {
				out.Set(stmt, f, weighted[stmt]-mean)
			}
			continue
		}
		for stmt := 0; stmt < s; stmt++ {
			out.Set(stmt, f, (weighted[stmt]-mean)/std)
		}
	}

	return result
}

// selectParticipants returns the row indices with |loading| ≥ minLoading on
// factor f, or nil when no participant clears the threshold.
func selectParticipants(loadings *mat.Dense, f int, minLoading float64) []int {
	p, _ := loadings.Dims()
	var selected []int
	for i := 0; i < p; i++ {
		if math.Abs(loadings.At(i, f)) >= minLoading {
			selected = append(selected, i)
		}
	}
	return selected
}

// topLoaded returns the n participants with the largest |loading| on factor f.
func topLoaded(loadings *mat.Dense, f, n, p int) []int {
	if n > p {
		n = p
	}
	idx := make([]int, p)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(loadings.At(idx[a], f)) > math.Abs(loadings.At(idx[b], f))
	})
	return idx[:n]
}
