package factor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ConsensusStatement is a statement all factors score about the same: its
// Z-score spread across factors stays within the consensus threshold.
type ConsensusStatement struct {
	StatementID   string             `json:"statement_id"`
	AvgZScore     float64            `json:"avg_z_score"`
	MaxDifference float64            `json:"max_difference"`
	FactorScores  map[string]float64 `json:"factor_scores"`
}

// DistinguishingStatement is a statement that sets one factor apart: its
// Z-score differs from every other factor by at least the distinguishing
// threshold.
type DistinguishingStatement struct {
	StatementID       string  `json:"statement_id"`
	ZScore            float64 `json:"z_score"`
	MinDiffFromOthers float64 `json:"min_diff_from_others"`
	Direction         string  `json:"direction"` // "high" or "low"
}

// StatementScore pairs a statement with its Z-score on one factor.
type StatementScore struct {
	StatementID string  `json:"statement_id"`
	ZScore      float64 `json:"z_score"`
}

// Interpretation carries the per-factor material downstream interpretation
// consumers work from: the strongest-agree and strongest-disagree statements
// plus the column's score distribution.
type Interpretation struct {
	TopStatements    []StatementScore `json:"top_statements"`
	BottomStatements []StatementScore `json:"bottom_statements"` // most negative first
	MeanScore        float64          `json:"mean_score"`
	StdScore         float64          `json:"std_score"`
}

// Consensus identifies statements whose max pairwise Z-score difference across
// factors is at most threshold, sorted by |average Z| descending so the
// strongest shared opinions come first.
func Consensus(scores *mat.Dense, statementIDs []string, threshold float64) []ConsensusStatement {
	s, nf := scores.Dims()
	consensus := []ConsensusStatement{}

	for stmt := 0; stmt < s; stmt++ {
		lo, hi := scores.At(stmt, 0), scores.At(stmt, 0)
		sum := 0.0
		for f := 0; f < nf; f++ {
			v := scores.At(stmt, f)
			sum += v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi-lo > threshold {
			continue
		}

		perFactor := make(map[string]float64, nf)
		for f := 0; f < nf; f++ {
			perFactor[FactorLabel(f)] = scores.At(stmt, f)
		}
		consensus = append(consensus, ConsensusStatement{
			StatementID:   statementIDs[stmt],
			AvgZScore:     sum / float64(nf),
			MaxDifference: hi - lo,
			FactorScores:  perFactor,
		})
	}

	sort.SliceStable(consensus, func(a, b int) bool {
		return math.Abs(consensus[a].AvgZScore) > math.Abs(consensus[b].AvgZScore)
	})
	return consensus
}

// Distinguishing identifies, per factor, the statements standing at least
// threshold away from every other factor's Z-score, sorted by that minimum
// distance descending.
func Distinguishing(scores *mat.Dense, statementIDs []string, threshold float64) map[string][]DistinguishingStatement {
	s, nf := scores.Dims()
	result := make(map[string][]DistinguishingStatement, nf)

	for f := 0; f < nf; f++ {
		items := []DistinguishingStatement{}
		for stmt := 0; stmt < s; stmt++ {
			this := scores.At(stmt, f)
			minDiff := math.Inf(1)
			for other := 0; other < nf; other++ {
				if other == f {
					continue
				}
				if d := math.Abs(this - scores.At(stmt, other)); d < minDiff {
					minDiff = d
				}
			}
			if minDiff < threshold {
				continue
			}
			direction := "low"
			if this > 0 {
				direction = "high"
			}
			items = append(items, DistinguishingStatement{
				StatementID:       statementIDs[stmt],
				ZScore:            this,
				MinDiffFromOthers: minDiff,
				Direction:         direction,
			})
		}
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].MinDiffFromOthers > items[b].MinDiffFromOthers
		})
		result[FactorLabel(f)] = items
	}

	return result
}

// InterpretationData prepares the top-N and bottom-N statements per factor.
func InterpretationData(scores *mat.Dense, statementIDs []string, topN int) map[string]Interpretation {
	s, nf := scores.Dims()
	if topN > s {
		topN = s
	}
	result := make(map[string]Interpretation, nf)

	col := make([]float64, s)
	for f := 0; f < nf; f++ {
		mat.Col(col, f, scores)

		idx := make([]int, s)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return col[idx[a]] > col[idx[b]] })

		top := make([]StatementScore, topN)
		for i := 0; i < topN; i++ {
			top[i] = StatementScore{StatementID: statementIDs[idx[i]], ZScore: col[idx[i]]}
		}
		bottom := make([]StatementScore, topN)
		for i := 0; i < topN; i++ {
			j := idx[s-1-i]
			bottom[i] = StatementScore{StatementID: statementIDs[j], ZScore: col[j]}
		}

		result[FactorLabel(f)] = Interpretation{
			TopStatements:    top,
			BottomStatements: bottom,
			MeanScore:        stat.Mean(col, nil),
			StdScore:         stat.StdDev(col, nil),
		}
	}

	return result
}
