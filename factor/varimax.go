package factor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Rotation is the outcome of a varimax pass: the rotated loadings, the
// accumulated orthogonal rotation matrix R (so rotated = input·R), and
// whether the pairwise sweeps reached the convergence tolerance before the
// iteration cap.
type Rotation struct {
	Loadings   *mat.Dense // P×n, rotated in the same shape as the input
	Matrix     *mat.Dense // n×n orthogonal rotation
	Converged  bool
	Iterations int
}

// Varimax rotates the loading matrix (participants × factors) with the
// classical pairwise-plane criterion: for every factor pair the closed-form
// angle φ = ¼·atan2(D − 2AB/n, C − (A²−B²)/n) is applied in the pair's 2-D
// plane, sweeping all pairs once per iteration until the largest loading
// change in a sweep drops below tol or maxIter sweeps have run. The rotation
// stays strictly orthogonal; communalities are preserved.
//
// A single-factor matrix has no pair to rotate and returns immediately as an
// identity rotation.
func Varimax(loadings *mat.Dense, maxIter int, tol float64) *Rotation {
	p, nf := loadings.Dims()

	work := mat.DenseCopyOf(loadings)
	rot := identity(nf)

	if nf < 2 {
		return &Rotation{Loadings: work, Matrix: rot, Converged: true, Iterations: 0}
	}

	n := float64(p)
	x := make([]float64, p)
	y := make([]float64, p)
	prev := mat.NewDense(p, nf, nil)

	iterations := 0
	converged := false
	for iter := 0; iter < maxIter; iter++ {
		iterations = iter + 1
		prev.Copy(work)

		for i := 0; i < nf-1; i++ {
			for j := i + 1; j < nf; j++ {
				mat.Col(x, i, work)
				mat.Col(y, j, work)

				var a, b, c, d float64
				for k := 0; k < p; k++ {
					u := x[k]*x[k] - y[k]*y[k]
					v := 2 * x[k] * y[k]
					a += u
					b += v
					c += u*u - v*v
					d += 2 * u * v
				}

				phi := 0.25 * math.Atan2(d-2*a*b/n, c-(a*a-b*b)/n)
				if phi == 0 {
					continue
				}

				rotatePair(work, i, j, phi)
				rotatePair(rot, i, j, phi)
			}
		}

		if maxDelta(work, prev) < tol {
			converged = true
			break
		}
	}

	return &Rotation{Loadings: work, Matrix: rot, Converged: converged, Iterations: iterations}
}

// rotatePair applies the plane rotation to columns i and j of m:
// x' = x·cosφ + y·sinφ, y' = −x·sinφ + y·cosφ.
func rotatePair(m *mat.Dense, i, j int, phi float64) {
	rows, _ := m.Dims()
	cos := math.Cos(phi)
	sin := math.Sin(phi)
	for r := 0; r < rows; r++ {
		xi := m.At(r, i)
		yj := m.At(r, j)
		m.Set(r, i, xi*cos+yj*sin)
		m.Set(r, j, -xi*sin+yj*cos)
	}
}

func maxDelta(a, b *mat.Dense) float64 {
	rows, cols := a.Dims()
	delta := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if d := math.Abs(a.At(r, c) - b.At(r, c)); d > delta {
				delta = d
			}
		}
	}
	return delta
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
