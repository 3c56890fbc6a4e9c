package factor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/qmethod/qfactor/qmatrix"
)

func sortMatrix(t *testing.T, rows [][]int) *qmatrix.SortMatrix {
	t.Helper()
	pids := make([]string, len(rows))
	for i := range pids {
		pids[i] = "P" + string(rune('1'+i))
	}
	sids := make([]string, len(rows[0]))
	for j := range sids {
		sids[j] = "Q" + string(rune('1'+j))
	}
	m, err := qmatrix.New(pids, sids, rows)
	require.NoError(t, err)
	return m
}

func TestFactorScores_WeightedAverageAndZScore(t *testing.T) {
	m := sortMatrix(t, [][]int{
		{4, 0, -4},
		{2, 0, -2},
		{0, 0, 0}, // below threshold, excluded
	})
	loadings := mat.NewDense(3, 1, []float64{0.9, 0.6, 0.1})

	out := FactorScores(m, loadings, 0.4)
	require.Empty(t, out.FallbackFactors)
	require.Empty(t, out.DegenerateFactors)

	// Weighted averages: (0.9·4 + 0.6·2)/1.5 = 3.2, 0, -3.2. After
	// standardization the symmetric pattern maps to ±√(3/2), 0.
	want := math.Sqrt(1.5)
	assert.InDelta(t, want, out.Matrix.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, out.Matrix.At(1, 0), 1e-12)
	assert.InDelta(t, -want, out.Matrix.At(2, 0), 1e-12)
}

func TestFactorScores_TopThreeFallbackWhenNobodySignificant(t *testing.T) {
	m := sortMatrix(t, [][]int{
		{3, 1, -1, -3},
		{1, 3, -3, -1},
		{2, 2, -2, -2},
		{-1, 1, 2, -2},
	})
	// Everyone below the 0.4 bar on both factors.
	loadings := mat.NewDense(4, 2, []float64{
		0.30, 0.05,
		0.20, 0.10,
		0.25, 0.35,
		0.10, 0.20,
	})

	out := FactorScores(m, loadings, 0.4)
	assert.ElementsMatch(t, []int{0, 1}, out.FallbackFactors,
		"both factors should fall back to the top-3 loaded participants")

	s, nf := out.Matrix.Dims()
	assert.Equal(t, 4, s)
	assert.Equal(t, 2, nf)
	for stmt := 0; stmt < s; stmt++ {
		for f := 0; f < nf; f++ {
			v := out.Matrix.At(stmt, f)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0),
				"every factor score must be a finite real number")
		}
	}
}

func TestFactorScores_ZeroVarianceEmitsMeanCenteredOnly(t *testing.T) {
	// Flat-lined participants: every statement gets the same weighted
	// average, so the score vector has zero variance.
	m := sortMatrix(t, [][]int{
		{3, 3, 3},
		{1, 1, 1},
	})
	loadings := mat.NewDense(2, 1, []float64{0.8, 0.6})

	out := FactorScores(m, loadings, 0.4)
	require.Equal(t, []int{0}, out.DegenerateFactors)

	for stmt := 0; stmt < 3; stmt++ {
		assert.Equal(t, 0.0, out.Matrix.At(stmt, 0), "mean-centered constant vector is all zeros")
	}
}

func TestFactorScores_ColumnStandardizedPerFactor(t *testing.T) {
	m := sortMatrix(t, [][]int{
		{5, 2, -1, -2, -4},
		{4, 1, 0, -1, -4},
		{3, 2, 1, -2, -4},
	})
	loadings := mat.NewDense(3, 2, []float64{
		0.9, 0.1,
		0.8, 0.2,
		0.1, 0.9,
	})

	out := FactorScores(m, loadings, 0.4)
	require.Empty(t, out.DegenerateFactors)

	s, nf := out.Matrix.Dims()
	col := make([]float64, s)
	for f := 0; f < nf; f++ {
		mat.Col(col, f, out.Matrix)
		mean, sumSq := 0.0, 0.0
		for _, v := range col {
			mean += v
		}
		mean /= float64(s)
		for _, v := range col {
			sumSq += (v - mean) * (v - mean)
		}
		assert.InDelta(t, 0.0, mean, 1e-12, "factor column mean must be zero")
		assert.InDelta(t, 1.0, math.Sqrt(sumSq/float64(s)), 1e-12, "factor column std must be one")
	}
}
