// Package qfactor orchestrates the factor analysis of simulated Q-sort data:
// standardization of the participant-by-statement score matrix,
// principal-component extraction with an eigenvalue-based factor count,
// varimax rotation, per-statement factor Z-scores, and significance
// classification of participants against factors.
//
// The engine is a single synchronous, CPU-bound computation over in-memory
// matrices. It holds no shared mutable state, so independent analyses may run
// concurrently; internal/runner provides a worker pool for that serving
// pattern.
package qfactor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/qmethod/qfactor/factor"
	"github.com/qmethod/qfactor/qmatrix"
)

// Analyze runs the full analysis over a validated sort matrix under an
// immutable configuration snapshot. Recoverable conditions (degenerate
// variance, rotation non-convergence, extraction fallback) come back as
// warnings on the Result; only invalid input and a failed fallback abort with
// no partial result.
func Analyze(ctx context.Context, m *qmatrix.SortMatrix, cfg Config) (*Result, error) {
	started := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: nil sort matrix", ErrInvalidInput)
	}

	p := m.Participants()
	s := m.Statements()
	if cfg.NFactors > p {
		return nil, fmt.Errorf("%w: n_factors override %d exceeds participant count %d", ErrInvalidInput, cfg.NFactors, p)
	}

	warnings := []Warning{}

	// Input-quality pass: range violations and, optionally, forced
	// distribution deviations.
	partial, err := m.ValidateRange(cfg.ScoreMin, cfg.ScoreMax)
	if err != nil {
		return nil, err
	}
	for _, pid := range partial {
		warnings = append(warnings, Warning{
			Kind:    WarnScoreRange,
			Message: fmt.Sprintf("participant %s has scores outside range [%d, %d]", pid, cfg.ScoreMin, cfg.ScoreMax),
		})
	}
	if cfg.CheckForcedDistribution {
		for _, pid := range m.CheckForcedDistribution(qmatrix.DefaultForcedDistribution()) {
			warnings = append(warnings, Warning{
				Kind:    WarnForcedDistribution,
				Message: fmt.Sprintf("participant %s deviates from the forced distribution", pid),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Standardize: transpose to statements × participants, z-score each
	// participant column.
	z, zeroVariance := m.Standardize()
	for _, idx := range zeroVariance {
		pid := m.ParticipantIDs[idx]
		log.Warn().Str("participant", pid).Msg("Zero-variance participant column, passing through zero-centered")
		warnings = append(warnings, Warning{
			Kind:    WarnDegenerateVariance,
			Message: fmt.Sprintf("participant %s gave every statement the same score", pid),
		})
	}

	pca, err := factor.Decompose(z)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	nFactors := cfg.NFactors
	if nFactors == 0 {
		nFactors = factor.FactorCount(pca.Eigenvalues, cfg.EigenvalueThreshold)
	}
	log.Debug().
		Int("participants", p).
		Int("statements", s).
		Int("n_factors", nFactors).
		Float64("top_eigenvalue", pca.Eigenvalues[0]).
		Msg("Decomposition complete")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext, err := factor.Extract(pca, nFactors, cfg.RotationMaxIterations, cfg.RotationTolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	if ext.UsedFallback {
		warnings = append(warnings, Warning{
			Kind:    WarnDecompositionFallback,
			Message: fmt.Sprintf("primary extraction failed (%s), rotated raw components instead", ext.FallbackReason),
		})
	}
	if !ext.Converged {
		log.Warn().
			Int("iterations", ext.Iterations).
			Float64("tolerance", cfg.RotationTolerance).
			Msg("Varimax rotation hit iteration cap before converging")
		warnings = append(warnings, Warning{
			Kind:    WarnRotationNonConvergence,
			Message: fmt.Sprintf("varimax did not converge within %d iterations", ext.Iterations),
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := factor.FactorScores(m, ext.Loadings, cfg.MinFactorLoading)
	for _, f := range scores.DegenerateFactors {
		warnings = append(warnings, Warning{
			Kind:    WarnDegenerateVariance,
			Message: fmt.Sprintf("%s weighted scores had zero variance, emitted mean-centered only", factor.FactorLabel(f)),
		})
	}

	significant := factor.SignificantLoadings(ext.Loadings, m.ParticipantIDs, cfg.MinFactorLoading)
	consensus := factor.Consensus(scores.Matrix, m.StatementIDs, cfg.ConsensusThreshold)
	distinguishing := factor.Distinguishing(scores.Matrix, m.StatementIDs, cfg.DistinguishingThreshold)
	interpretation := factor.InterpretationData(scores.Matrix, m.StatementIDs, cfg.InterpretationTopN)

	kmo, kmoErr := factor.KMO(z)
	if kmoErr != nil {
		warnings = append(warnings, Warning{
			Kind:    WarnKMOUnavailable,
			Message: fmt.Sprintf("sampling adequacy unavailable: %v", kmoErr),
		})
	}

	result := &Result{
		NFactors:            nFactors,
		FactorLabels:        factor.FactorLabels(nFactors),
		ParticipantIDs:      append([]string(nil), m.ParticipantIDs...),
		StatementIDs:        append([]string(nil), m.StatementIDs...),
		Eigenvalues:         append([]float64(nil), pca.Eigenvalues...),
		ProportionVar:       append([]float64(nil), pca.ProportionVar...),
		CumulativeVar:       append([]float64(nil), pca.CumulativeVar...),
		Loadings:            denseToRows(ext.Loadings),
		Variance:            ext.Variance,
		FactorScores:        denseToRows(scores.Matrix),
		SignificantLoadings: significant,
		Consensus:           consensus,
		Distinguishing:      distinguishing,
		Interpretation:      interpretation,
		KMO:                 kmo,
		UsedFallback:        ext.UsedFallback,
		RotationConverged:   ext.Converged,
		RotationIterations:  ext.Iterations,
		Warnings:            warnings,
		Elapsed:             time.Since(started),
	}

	log.Info().
		Int("n_factors", nFactors).
		Float64("cumulative_var", lastOrZero(result.Variance.CumulativeVar)).
		Bool("fallback", result.UsedFallback).
		Int("warnings", len(warnings)).
		Dur("elapsed", result.Elapsed).
		Msg("Factor analysis complete")

	return result, nil
}

// Summary renders a short human-readable digest of the analysis, mirroring
// what downstream report generators lead with.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d factors over %d participants × %d statements\n",
		r.NFactors, len(r.ParticipantIDs), len(r.StatementIDs))
	for f, label := range r.FactorLabels {
		fmt.Fprintf(&b, "  %s: %.1f%% variance (SS loading %.2f), %d significant participants\n",
			label, r.Variance.ProportionVar[f]*100, r.Variance.SSLoadings[f], len(r.SignificantLoadings[label]))
	}
	fmt.Fprintf(&b, "  total explained: %.1f%%", lastOrZero(r.Variance.CumulativeVar)*100)
	return b.String()
}

func denseToRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			out[r][c] = m.At(r, c)
		}
	}
	return out
}

func lastOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
