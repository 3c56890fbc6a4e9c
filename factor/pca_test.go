package factor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// standardizedRandom builds an S×P matrix with each column at zero mean and
// unit population variance, the shape Decompose expects.
func standardizedRandom(t *testing.T, s, p int, seed int64) *mat.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	z := mat.NewDense(s, p, nil)
	col := make([]float64, s)
	for c := 0; c < p; c++ {
		for r := range col {
			col[r] = rng.NormFloat64()
		}
		mean, sumSq := 0.0, 0.0
		for _, v := range col {
			mean += v
		}
		mean /= float64(s)
		for _, v := range col {
			sumSq += (v - mean) * (v - mean)
		}
		std := math.Sqrt(sumSq / float64(s))
		for r := range col {
			z.Set(r, c, (col[r]-mean)/std)
		}
	}
	return z
}

func TestDecompose_EigenvalueSumEqualsParticipantCount(t *testing.T) {
	const s, p = 40, 12
	z := standardizedRandom(t, s, p, 7)

	pca, err := Decompose(z)
	require.NoError(t, err)
	require.Len(t, pca.Eigenvalues, p)

	sum := 0.0
	for _, v := range pca.Eigenvalues {
		sum += v
	}
	assert.InEpsilon(t, float64(p), sum, 1e-6, "eigenvalues must sum to the participant count")
	assert.NoError(t, pca.CheckEigenSum())
}

func TestDecompose_EigenvaluesDescendingAndNonNegative(t *testing.T) {
	z := standardizedRandom(t, 30, 8, 11)

	pca, err := Decompose(z)
	require.NoError(t, err)

	for i, v := range pca.Eigenvalues {
		assert.GreaterOrEqual(t, v, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, v, pca.Eigenvalues[i-1], "eigenvalues must be descending")
		}
	}

	assert.InDelta(t, 1.0, pca.CumulativeVar[len(pca.CumulativeVar)-1], 1e-9,
		"cumulative variance must reach 1")
}

func TestDecompose_ComponentsMatchEigenvalues(t *testing.T) {
	z := standardizedRandom(t, 25, 6, 3)

	pca, err := Decompose(z)
	require.NoError(t, err)

	// C·v_k = λ_k·v_k for the correlation-equivalent covariance.
	s, p := z.Dims()
	cov := mat.NewDense(p, p, nil)
	var zt mat.Dense
	zt.Mul(z.T(), z)
	cov.Scale(1/float64(s), &zt)

	for k := 0; k < p; k++ {
		for row := 0; row < p; row++ {
			cv := 0.0
			for j := 0; j < p; j++ {
				cv += cov.At(row, j) * pca.Components.At(j, k)
			}
			assert.InDelta(t, pca.Eigenvalues[k]*pca.Components.At(row, k), cv, 1e-8)
		}
	}
}

func TestFactorCount_KaiserRuleWithFloor(t *testing.T) {
	tests := []struct {
		name        string
		eigenvalues []float64
		threshold   float64
		want        int
	}{
		{"three clear threshold", []float64{3.2, 1.8, 1.1, 0.6, 0.3}, 1.0, 3},
		{"floor of two applies", []float64{4.5, 0.3, 0.1, 0.1}, 1.0, 2},
		{"nothing clears still two", []float64{0.9, 0.8, 0.3}, 1.0, 2},
		{"capped at participant count", []float64{2.0, 1.5}, 1.0, 2},
		{"custom threshold", []float64{3.0, 2.0, 1.2, 0.8}, 1.5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FactorCount(tt.eigenvalues, tt.threshold))
		})
	}
}

func TestKMO_WellConditionedData(t *testing.T) {
	z := standardizedRandom(t, 50, 6, 19)

	kmo, err := KMO(z)
	require.NoError(t, err)
	assert.Greater(t, kmo, 0.0)
	assert.LessOrEqual(t, kmo, 1.0)
}

func TestKMO_SingularCorrelationUnavailable(t *testing.T) {
	// Two identical participant columns make the correlation matrix singular.
	z := standardizedRandom(t, 20, 4, 23)
	for r := 0; r < 20; r++ {
		z.Set(r, 3, z.At(r, 2))
	}

	_, err := KMO(z)
	assert.Error(t, err, "perfectly collinear participants have no defined KMO")
}
