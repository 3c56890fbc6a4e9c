package factor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// KMO computes the overall Kaiser-Meyer-Olkin measure of sampling adequacy
// for the standardized S×P matrix: the ratio of squared correlations to
// squared correlations plus squared partial correlations across participant
// pairs. Values near 1 mean the correlation structure is compact enough for
// factoring; below ~0.5 is conventionally inadequate.
//
// The partial correlations come from the inverse of the correlation matrix,
// so a singular correlation structure (perfectly collinear participants)
// makes the measure unavailable; that is reported as an error the caller
// downgrades to a warning, never a failed analysis.
func KMO(z *mat.Dense) (float64, error) {
	s, p := z.Dims()

	corr := mat.NewDense(p, p, nil)
	ci := make([]float64, s)
	cj := make([]float64, s)
	for i := 0; i < p; i++ {
		mat.Col(ci, i, z)
		for j := i; j < p; j++ {
			mat.Col(cj, j, z)
			v := dot(ci, cj) / float64(s)
			corr.Set(i, j, v)
			corr.Set(j, i, v)
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(corr); err != nil {
		return 0, fmt.Errorf("correlation matrix not invertible: %w", err)
	}

	var sumCorr, sumPartial float64
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			if i == j {
				continue
			}
			r := corr.At(i, j)
			sumCorr += r * r

			denom := inv.At(i, i) * inv.At(j, j)
			if denom <= 0 {
				return 0, fmt.Errorf("correlation matrix inverse has non-positive diagonal")
			}
			partial := -inv.At(i, j) / math.Sqrt(denom)
			sumPartial += partial * partial
		}
	}

	total := sumCorr + sumPartial
	if total == 0 {
		return 0, fmt.Errorf("no off-diagonal correlation structure")
	}
	return sumCorr / total, nil
}
