package qmatrix

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Standardize transposes the P×S sort matrix and z-scores each participant
// column to zero mean and unit variance, so that the downstream
// eigendecomposition operates on a correlation-equivalent basis. The returned
// matrix is S×P: rows are statements (observations), columns are participants
// (variables).
//
// A participant who gave every statement the same score has zero variance; the
// column is passed through zero-centered (all zeros) instead of dividing by
// zero, and the participant's index is reported so the caller can flag the
// data-quality issue.
func (m *SortMatrix) Standardize() (*mat.Dense, []int) {
	p := m.Participants()
	s := m.Statements()

	z := mat.NewDense(s, p, nil)
	var zeroVariance []int

	for col := 0; col < p; col++ {
		row := m.scores[col]
		mean := stat.Mean(row, nil)
		std := stat.PopStdDev(row, nil)

		if std == 0 {
			zeroVariance = append(zeroVariance, col)
			for obs := 0; obs < s; obs++ {
				z.Set(obs, col, 0)
			}
			continue
		}

		for obs := 0; obs < s; obs++ {
			z.Set(obs, col, (row[obs]-mean)/std)
		}
	}

	return z, zeroVariance
}
