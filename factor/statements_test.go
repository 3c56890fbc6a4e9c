package factor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// scores: 4 statements × 2 factors.
func exampleScores() (*mat.Dense, []string) {
	return mat.NewDense(4, 2, []float64{
		1.8, 1.7, // near-agreement, strong positive
		-0.2, 0.1, // near-agreement, weak
		1.5, -0.9, // factor 1 high, factor 2 low
		-1.6, 0.3, // factor 1 low
	}), []string{"Q1", "Q2", "Q3", "Q4"}
}

func TestConsensus_SpreadThresholdAndOrdering(t *testing.T) {
	scores, ids := exampleScores()

	consensus := Consensus(scores, ids, 0.5)
	require.Len(t, consensus, 2)

	// Strongest shared opinion first.
	assert.Equal(t, "Q1", consensus[0].StatementID)
	assert.InDelta(t, 1.75, consensus[0].AvgZScore, 1e-12)
	assert.InDelta(t, 0.1, consensus[0].MaxDifference, 1e-12)
	assert.Equal(t, "Q2", consensus[1].StatementID)
	assert.InDelta(t, 1.8, consensus[0].FactorScores["Factor1"], 1e-12)
}

func TestDistinguishing_MinDiffAndDirection(t *testing.T) {
	scores, ids := exampleScores()

	dist := Distinguishing(scores, ids, 1.0)
	require.Len(t, dist, 2)

	f1 := dist["Factor1"]
	require.Len(t, f1, 2)
	assert.Equal(t, "Q3", f1[0].StatementID, "largest separation first")
	assert.InDelta(t, 2.4, f1[0].MinDiffFromOthers, 1e-12)
	assert.Equal(t, "high", f1[0].Direction)
	assert.Equal(t, "Q4", f1[1].StatementID)
	assert.Equal(t, "low", f1[1].Direction)

	f2 := dist["Factor2"]
	require.Len(t, f2, 2)
	assert.Equal(t, "Q3", f2[0].StatementID)
	assert.Equal(t, "low", f2[0].Direction)
}

func TestInterpretationData_TopAndBottomOrdering(t *testing.T) {
	scores, ids := exampleScores()

	interp := InterpretationData(scores, ids, 2)
	require.Contains(t, interp, "Factor1")

	f1 := interp["Factor1"]
	require.Len(t, f1.TopStatements, 2)
	assert.Equal(t, "Q1", f1.TopStatements[0].StatementID)
	assert.Equal(t, "Q3", f1.TopStatements[1].StatementID)

	require.Len(t, f1.BottomStatements, 2)
	assert.Equal(t, "Q4", f1.BottomStatements[0].StatementID, "most negative first")
	assert.Equal(t, "Q2", f1.BottomStatements[1].StatementID)
}

func TestInterpretationData_TopNClampedToStatementCount(t *testing.T) {
	scores, ids := exampleScores()

	interp := InterpretationData(scores, ids, 10)
	assert.Len(t, interp["Factor1"].TopStatements, 4)
	assert.Len(t, interp["Factor2"].BottomStatements, 4)
}
