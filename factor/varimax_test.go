package factor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomLoadings(seed int64, p, nf int) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	l := mat.NewDense(p, nf, nil)
	for r := 0; r < p; r++ {
		for c := 0; c < nf; c++ {
			l.Set(r, c, rng.Float64()*1.6-0.8)
		}
	}
	return l
}

func TestVarimax_RotationIsOrthogonal(t *testing.T) {
	loadings := randomLoadings(5, 12, 3)
	rot := Varimax(loadings, 100, 1e-5)
	require.True(t, rot.Converged)

	var rtr mat.Dense
	rtr.Mul(rot.Matrix.T(), rot.Matrix)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, rtr.At(i, j), 1e-9, "RᵀR must be the identity")
		}
	}
}

func TestVarimax_RotatedEqualsInputTimesRotation(t *testing.T) {
	loadings := randomLoadings(9, 10, 4)
	rot := Varimax(loadings, 100, 1e-5)

	var reconstructed mat.Dense
	reconstructed.Mul(loadings, rot.Matrix)
	assert.True(t, mat.EqualApprox(&reconstructed, rot.Loadings, 1e-9),
		"rotated loadings must equal input·R")
}

func TestVarimax_PreservesCommunalities(t *testing.T) {
	loadings := randomLoadings(13, 15, 3)
	rot := Varimax(loadings, 100, 1e-5)

	p, nf := loadings.Dims()
	for r := 0; r < p; r++ {
		before, after := 0.0, 0.0
		for c := 0; c < nf; c++ {
			before += loadings.At(r, c) * loadings.At(r, c)
			after += rot.Loadings.At(r, c) * rot.Loadings.At(r, c)
		}
		assert.InDelta(t, before, after, 1e-9, "row communality must survive rotation")
	}
}

func TestVarimax_ConvergedMatrixIsFixedPoint(t *testing.T) {
	const tol = 1e-5
	loadings := randomLoadings(21, 20, 3)

	first := Varimax(loadings, 100, tol)
	require.True(t, first.Converged)

	second := Varimax(first.Loadings, 100, tol)
	assert.True(t, second.Converged)
	assert.Less(t, maxDelta(second.Loadings, first.Loadings), tol,
		"re-rotating a converged matrix must change it less than the tolerance")
}

func TestVarimax_SingleFactorIsIdentityNoOp(t *testing.T) {
	loadings := randomLoadings(30, 8, 1)
	rot := Varimax(loadings, 100, 1e-5)

	assert.True(t, rot.Converged)
	assert.Equal(t, 0, rot.Iterations)
	assert.True(t, mat.EqualApprox(loadings, rot.Loadings, 0), "single factor must not be rotated")
	assert.Equal(t, 1.0, rot.Matrix.At(0, 0))
}

func TestVarimax_SharpensSimpleStructure(t *testing.T) {
	// Two clean clusters mixed by a known 30° rotation: varimax should
	// recover loadings close to the unmixed simple structure.
	p := 8
	clean := mat.NewDense(p, 2, nil)
	for i := 0; i < 4; i++ {
		clean.Set(i, 0, 0.8)
		clean.Set(i+4, 1, 0.8)
	}

	theta := math.Pi / 6
	mix := mat.NewDense(2, 2, []float64{
		math.Cos(theta), -math.Sin(theta),
		math.Sin(theta), math.Cos(theta),
	})
	var mixed mat.Dense
	mixed.Mul(clean, mix)

	rot := Varimax(&mixed, 100, 1e-6)
	require.True(t, rot.Converged)

	// Each row should load on exactly one factor again (up to sign and
	// column order).
	for r := 0; r < p; r++ {
		big := math.Max(math.Abs(rot.Loadings.At(r, 0)), math.Abs(rot.Loadings.At(r, 1)))
		small := math.Min(math.Abs(rot.Loadings.At(r, 0)), math.Abs(rot.Loadings.At(r, 1)))
		assert.InDelta(t, 0.8, big, 1e-6)
		assert.InDelta(t, 0.0, small, 1e-6)
	}
}

func TestVarimax_IterationCapReportsNonConvergence(t *testing.T) {
	loadings := randomLoadings(33, 25, 5)
	rot := Varimax(loadings, 1, 1e-12)

	assert.False(t, rot.Converged, "one sweep at an extreme tolerance should not converge")
	assert.Equal(t, 1, rot.Iterations)

	// Even without convergence the rotation must stay orthogonal.
	var rtr mat.Dense
	rtr.Mul(rot.Matrix.T(), rot.Matrix)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, 1.0, rtr.At(i, i), 1e-9)
	}
}
