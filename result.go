package qfactor

import (
	"errors"
	"time"

	"github.com/qmethod/qfactor/factor"
	"github.com/qmethod/qfactor/qmatrix"
)

// ErrInvalidInput marks sort data that was rejected before decomposition.
var ErrInvalidInput = qmatrix.ErrInvalidInput

// ErrAnalysisFailed marks an analysis that could not produce a result even
// through the fallback extraction path.
var ErrAnalysisFailed = errors.New("factor analysis failed")

// WarningKind classifies the recoverable conditions an analysis can surface.
type WarningKind string

const (
	// WarnDegenerateVariance: a participant or factor-weighted statement
	// vector had zero variance and the clamp/skip policy was applied.
	WarnDegenerateVariance WarningKind = "degenerate_variance"
	// WarnRotationNonConvergence: varimax hit the iteration cap; the best
	// matrix obtained at cap expiry was kept.
	WarnRotationNonConvergence WarningKind = "rotation_non_convergence"
	// WarnDecompositionFallback: the primary extraction failed and the
	// raw-component fallback produced the loadings.
	WarnDecompositionFallback WarningKind = "decomposition_fallback"
	// WarnScoreRange: a participant had some (not all) cells outside the
	// configured score range.
	WarnScoreRange WarningKind = "score_range"
	// WarnForcedDistribution: a participant row deviates from the canonical
	// forced distribution.
	WarnForcedDistribution WarningKind = "forced_distribution"
	// WarnKMOUnavailable: the sampling-adequacy measure could not be computed
	// (singular correlation structure).
	WarnKMOUnavailable WarningKind = "kmo_unavailable"
)

// Warning is a non-fatal, inspectable annotation attached to the result.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// Re-exported factor types so callers only import this package.
type (
	SignificantLoading      = factor.SignificantLoading
	VarianceDecomposition   = factor.VarianceDecomposition
	ConsensusStatement      = factor.ConsensusStatement
	DistinguishingStatement = factor.DistinguishingStatement
	Interpretation          = factor.Interpretation
	StatementScore          = factor.StatementScore
)

// Result is the complete analysis bundle handed to downstream interpretation
// and report logic. All slices are freshly allocated per call; the bundle has
// no identity beyond the invocation that produced it.
type Result struct {
	NFactors     int      `json:"n_factors"`
	FactorLabels []string `json:"factor_labels"`

	ParticipantIDs []string `json:"participant_ids"`
	StatementIDs   []string `json:"statement_ids"`

	// Eigenvalues of the participant correlation structure, descending,
	// length = participant count, with the variance proportions they explain.
	Eigenvalues   []float64 `json:"eigenvalues"`
	ProportionVar []float64 `json:"proportion_var"`
	CumulativeVar []float64 `json:"cumulative_var"`

	// Loadings is participant × factor; FactorScores is statement × factor.
	Loadings     [][]float64           `json:"loadings"`
	Variance     VarianceDecomposition `json:"variance"`
	FactorScores [][]float64           `json:"factor_scores"`

	SignificantLoadings map[string][]SignificantLoading `json:"significant_loadings"`

	Consensus      []ConsensusStatement                 `json:"consensus_statements"`
	Distinguishing map[string][]DistinguishingStatement `json:"distinguishing_statements"`
	Interpretation map[string]Interpretation            `json:"interpretation"`

	// KMO is the overall sampling-adequacy measure; zero with a
	// WarnKMOUnavailable warning when it could not be computed.
	KMO float64 `json:"kmo"`

	UsedFallback       bool `json:"used_fallback"`
	RotationConverged  bool `json:"rotation_converged"`
	RotationIterations int  `json:"rotation_iterations"`

	Warnings []Warning     `json:"warnings"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// HasWarning reports whether any warning of the given kind is attached.
func (r *Result) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}
