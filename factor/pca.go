// Package factor implements the numerical core of the Q-methodology analysis:
// principal-component decomposition of standardized sort data, varimax
// rotation of factor loadings, per-statement factor Z-scores, and
// significance classification of participants against factors.
package factor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDecomposition marks an eigendecomposition that could not be computed at
// all. There is no fallback basis without it, so callers escalate this to an
// analysis failure.
var ErrDecomposition = errors.New("eigendecomposition failed")

// eigenSumTolerance bounds the relative deviation allowed between the
// eigenvalue sum and the participant count. Standardization makes the two
// equal in exact arithmetic; a larger gap means the decomposition went wrong.
const eigenSumTolerance = 1e-6

// PCA holds the full principal-component decomposition of a standardized
// S×P sort matrix: all P eigenvalues in descending order, the matching
// eigenvectors, and the variance they explain.
type PCA struct {
	Eigenvalues   []float64 // length P, descending, non-negative
	ProportionVar []float64 // eigenvalue_i / P
	CumulativeVar []float64
	Components    *mat.Dense // P×P, column k pairs with Eigenvalues[k]
	Observations  int        // S, the number of statements

	// Trace of the decomposed covariance. Equals P for fully standardized
	// input; a flagged zero-variance participant column lowers it by one.
	Trace float64
}

// Decompose computes the principal components of the standardized matrix z
// (S×P, participant columns at zero mean and unit variance). The covariance
// structure ZᵀZ/S is the participant correlation matrix, so the eigenvalues
// sum to P.
func Decompose(z *mat.Dense) (*PCA, error) {
	s, p := z.Dims()

	cov := mat.NewSymDense(p, nil)
	trace := 0.0
	ci := make([]float64, s)
	cj := make([]float64, s)
	for i := 0; i < p; i++ {
		mat.Col(ci, i, z)
		for j := i; j < p; j++ {
			mat.Col(cj, j, z)
			v := dot(ci, cj) / float64(s)
			cov.SetSym(i, j, v)
			if i == j {
				trace += v
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil, fmt.Errorf("%w: symmetric eigensolver did not converge", ErrDecomposition)
	}

	ascending := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Reorder descending; tiny negative eigenvalues are floating-point noise
	// from a positive semi-definite matrix and clamp to zero.
	values := make([]float64, p)
	components := mat.NewDense(p, p, nil)
	for k := 0; k < p; k++ {
		src := p - 1 - k
		v := ascending[src]
		if v < 0 {
			v = 0
		}
		values[k] = v
		for row := 0; row < p; row++ {
			components.Set(row, k, vecs.At(row, src))
		}
	}

	proportion := make([]float64, p)
	cumulative := make([]float64, p)
	running := 0.0
	for k, v := range values {
		proportion[k] = v / float64(p)
		running += proportion[k]
		cumulative[k] = running
	}

	return &PCA{
		Eigenvalues:   values,
		ProportionVar: proportion,
		CumulativeVar: cumulative,
		Components:    components,
		Observations:  s,
		Trace:         trace,
	}, nil
}

// CheckEigenSum verifies the eigenvalue-sum invariant: the eigenvalues must
// sum to the covariance trace within floating-point tolerance. For fully
// standardized input the trace is the participant count, so this is the
// correlation-matrix property that the eigenvalues sum to P; a larger gap
// means the decomposition itself went wrong.
func (p *PCA) CheckEigenSum() error {
	if p.Trace <= 0 {
		return fmt.Errorf("covariance trace %.9f is not positive", p.Trace)
	}
	sum := 0.0
	for _, v := range p.Eigenvalues {
		sum += v
	}
	if math.Abs(sum-p.Trace)/p.Trace > eigenSumTolerance {
		return fmt.Errorf("eigenvalue sum %.9f deviates from covariance trace %.9f beyond tolerance", sum, p.Trace)
	}
	return nil
}

// FactorCount applies the Kaiser retention rule: keep every component whose
// eigenvalue clears the threshold, with a hard floor of 2 so callers always
// get at least a bipolar analysis, capped at the participant count.
func FactorCount(eigenvalues []float64, threshold float64) int {
	n := 0
	for _, v := range eigenvalues {
		if v >= threshold {
			n++
		}
	}
	if n < 2 {
		n = 2
	}
	if n > len(eigenvalues) {
		n = len(eigenvalues)
	}
	return n
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
