package factor

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// VarianceDecomposition reports, per rotated factor, the sum of squared
// loadings and the proportion of total variance it accounts for.
type VarianceDecomposition struct {
	SSLoadings    []float64 `json:"ss_loadings"`
	ProportionVar []float64 `json:"proportion_var"`
	CumulativeVar []float64 `json:"cumulative_var"`
}

// Extraction is a rotated loading matrix together with its variance
// decomposition and provenance: whether the primary principal-factor path
// produced it or the raw-component fallback had to be taken.
type Extraction struct {
	Loadings *mat.Dense // P×nFactors, varimax-rotated
	Variance VarianceDecomposition

	Converged  bool
	Iterations int

	UsedFallback   bool
	FallbackReason string
}

// Extract runs the two-stage extraction strategy. The primary path scales the
// first nFactors eigenvector columns by √eigenvalue (principal-factor
// loadings) and varimax-rotates them; its variance decomposition is recomputed
// from the rotated loadings so the reported percentages match the matrix
// callers actually receive. If the primary path fails a structural check
// (eigenvalue-sum invariant, non-finite loadings), the fallback rotates the
// raw unscaled component columns instead and reports the PCA
// explained-variance ratios, logged as a degraded-path event.
//
// Extract returns an error only when the fallback path itself produces a
// non-finite matrix, which callers escalate as a failed analysis.
func Extract(pca *PCA, nFactors, maxIter int, tol float64) (*Extraction, error) {
	ext, err := extractPrincipal(pca, nFactors, maxIter, tol)
	if err == nil {
		return ext, nil
	}

	log.Warn().
		Err(err).
		Int("n_factors", nFactors).
		Msg("Principal factor extraction failed, falling back to raw component rotation")

	ext, fbErr := extractRawComponents(pca, nFactors, maxIter, tol)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback extraction failed: %w", fbErr)
	}
	ext.UsedFallback = true
	ext.FallbackReason = err.Error()
	return ext, nil
}

// extractPrincipal builds principal-factor loadings (eigenvector·√eigenvalue)
// and rotates them.
func extractPrincipal(pca *PCA, nFactors, maxIter int, tol float64) (*Extraction, error) {
	if err := pca.CheckEigenSum(); err != nil {
		return nil, err
	}

	p := len(pca.Eigenvalues)
	loadings := mat.NewDense(p, nFactors, nil)
	for k := 0; k < nFactors; k++ {
		scale := math.Sqrt(pca.Eigenvalues[k])
		for row := 0; row < p; row++ {
			loadings.Set(row, k, pca.Components.At(row, k)*scale)
		}
	}
	if !allFinite(loadings) {
		return nil, fmt.Errorf("principal loadings contain non-finite values")
	}

	rot := Varimax(loadings, maxIter, tol)
	if !allFinite(rot.Loadings) {
		return nil, fmt.Errorf("rotated loadings contain non-finite values")
	}

	return &Extraction{
		Loadings:   rot.Loadings,
		Variance:   varianceFromLoadings(rot.Loadings),
		Converged:  rot.Converged,
		Iterations: rot.Iterations,
	}, nil
}

// extractRawComponents rotates the unscaled eigenvector columns directly. The
// squared loadings of unit eigenvectors carry no variance information, so this
// path reports the PCA explained-variance ratios instead.
func extractRawComponents(pca *PCA, nFactors, maxIter int, tol float64) (*Extraction, error) {
	p := len(pca.Eigenvalues)
	loadings := mat.NewDense(p, nFactors, nil)
	for k := 0; k < nFactors; k++ {
		for row := 0; row < p; row++ {
			loadings.Set(row, k, pca.Components.At(row, k))
		}
	}

	rot := Varimax(loadings, maxIter, tol)
	if !allFinite(rot.Loadings) {
		return nil, fmt.Errorf("rotated component loadings contain non-finite values")
	}

	ss := make([]float64, nFactors)
	proportion := make([]float64, nFactors)
	cumulative := make([]float64, nFactors)
	running := 0.0
	for k := 0; k < nFactors; k++ {
		ss[k] = pca.Eigenvalues[k]
		proportion[k] = pca.ProportionVar[k]
		running += proportion[k]
		cumulative[k] = running
	}

	return &Extraction{
		Loadings:   rot.Loadings,
		Variance:   VarianceDecomposition{SSLoadings: ss, ProportionVar: proportion, CumulativeVar: cumulative},
		Converged:  rot.Converged,
		Iterations: rot.Iterations,
	}, nil
}

// varianceFromLoadings recomputes SS loadings and variance proportions from a
// rotated matrix. Total variance is the participant count, the trace of the
// correlation matrix the loadings were extracted from.
func varianceFromLoadings(loadings *mat.Dense) VarianceDecomposition {
	p, nf := loadings.Dims()

	ss := make([]float64, nf)
	for k := 0; k < nf; k++ {
		for row := 0; row < p; row++ {
			v := loadings.At(row, k)
			ss[k] += v * v
		}
	}

	proportion := make([]float64, nf)
	cumulative := make([]float64, nf)
	running := 0.0
	for k := 0; k < nf; k++ {
		proportion[k] = ss[k] / float64(p)
		running += proportion[k]
		cumulative[k] = running
	}

	return VarianceDecomposition{SSLoadings: ss, ProportionVar: proportion, CumulativeVar: cumulative}
}

func allFinite(m *mat.Dense) bool {
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := m.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
