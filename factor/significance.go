package factor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Loading polarity directions.
const (
	DirectionPositive = "positive"
	DirectionNegative = "negative"
)

// SignificantLoading tags one participant's association with a factor.
type SignificantLoading struct {
	ParticipantID string  `json:"participant_id"`
	Loading       float64 `json:"loading"`
	Direction     string  `json:"direction"`
}

// FactorLabel names factor column f (zero-based) as Factor1..FactorN.
func FactorLabel(f int) string {
	return fmt.Sprintf("Factor%d", f+1)
}

// FactorLabels returns the Factor1..FactorN labels for nFactors columns.
func FactorLabels(nFactors int) []string {
	labels := make([]string, nFactors)
	for f := range labels {
		labels[f] = FactorLabel(f)
	}
	return labels
}

// SignificantLoadings classifies, per factor, the participants whose absolute
// loading clears the threshold, ordered by |loading| descending. An empty list
// is a valid result for a factor nobody loads on.
func SignificantLoadings(loadings *mat.Dense, participantIDs []string, threshold float64) map[string][]SignificantLoading {
	p, nf := loadings.Dims()
	result := make(map[string][]SignificantLoading, nf)

	for f := 0; f < nf; f++ {
		significant := []SignificantLoading{}
		for i := 0; i < p; i++ {
			v := loadings.At(i, f)
			if math.Abs(v) < threshold {
				continue
			}
			direction := DirectionNegative
			if v > 0 {
				direction = DirectionPositive
			}
			significant = append(significant, SignificantLoading{
				ParticipantID: participantIDs[i],
				Loading:       v,
				Direction:     direction,
			})
		}
		sort.SliceStable(significant, func(a, b int) bool {
			return math.Abs(significant[a].Loading) > math.Abs(significant[b].Loading)
		})
		result[FactorLabel(f)] = significant
	}

	return result
}
