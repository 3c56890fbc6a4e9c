// Package qmatrix holds the typed sort-data boundary of the analysis engine:
// raw participant-by-statement score matrices, their validation, and the
// transpose-and-standardize step that precedes factor extraction.
package qmatrix

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ErrInvalidInput marks sort data that must not reach the numerical routines:
// too few participants or statements, ragged rows, duplicate identifiers, or
// a participant row entirely outside the agreed score range.
var ErrInvalidInput = errors.New("invalid sort matrix")

// SortMatrix is a validated participant-by-statement score table. Rows are
// participants, columns are statements, cells are integer Q-sort scores.
type SortMatrix struct {
	ParticipantIDs []string
	StatementIDs   []string

	scores [][]float64 // P×S, integer-valued by construction
}

// New builds a SortMatrix from explicit row data. Participant and statement
// identifiers must be unique and there must be at least 2 of each.
func New(participantIDs, statementIDs []string, rows [][]int) (*SortMatrix, error) {
	if len(participantIDs) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 participants, got %d", ErrInvalidInput, len(participantIDs))
	}
	if len(statementIDs) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 statements, got %d", ErrInvalidInput, len(statementIDs))
	}
	if len(rows) != len(participantIDs) {
		return nil, fmt.Errorf("%w: %d rows for %d participants", ErrInvalidInput, len(rows), len(participantIDs))
	}
	if err := checkUnique("participant", participantIDs); err != nil {
		return nil, err
	}
	if err := checkUnique("statement", statementIDs); err != nil {
		return nil, err
	}

	scores := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(statementIDs) {
			return nil, fmt.Errorf("%w: participant %s has %d scores, expected %d",
				ErrInvalidInput, participantIDs[i], len(row), len(statementIDs))
		}
		scores[i] = make([]float64, len(row))
		for j, v := range row {
			scores[i][j] = float64(v)
		}
	}

	return &SortMatrix{
		ParticipantIDs: append([]string(nil), participantIDs...),
		StatementIDs:   append([]string(nil), statementIDs...),
		scores:         scores,
	}, nil
}

// FromScoreTable converts a loosely-typed participant→statement→score table
// (the shape upstream sorting simulators emit) into a validated SortMatrix.
// Every participant must carry scores for the exact same statement set.
// Participants are ordered lexicographically; statements are ordered by their
// Q-number when all identifiers follow the Q1..Qn convention.
func FromScoreTable(table map[string]map[string]int) (*SortMatrix, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: empty score table", ErrInvalidInput)
	}

	participants := make([]string, 0, len(table))
	for id := range table {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	var statements []string
	for id := range table[participants[0]] {
		statements = append(statements, id)
	}
	sortStatements(statements)

	rows := make([][]int, len(participants))
	for i, pid := range participants {
		row := table[pid]
		if len(row) != len(statements) {
			return nil, fmt.Errorf("%w: participant %s has %d statements, expected %d",
				ErrInvalidInput, pid, len(row), len(statements))
		}
		rows[i] = make([]int, len(statements))
		for j, sid := range statements {
			score, ok := row[sid]
			if !ok {
				return nil, fmt.Errorf("%w: participant %s missing statement %s", ErrInvalidInput, pid, sid)
			}
			rows[i][j] = score
		}
	}

	return New(participants, statements, rows)
}

// Participants returns the number of rows.
func (m *SortMatrix) Participants() int { return len(m.ParticipantIDs) }

// Statements returns the number of columns.
func (m *SortMatrix) Statements() int { return len(m.StatementIDs) }

// Score returns the raw sort score for participant row p and statement column s.
func (m *SortMatrix) Score(p, s int) float64 { return m.scores[p][s] }

// Row returns participant p's raw scores across all statements.
func (m *SortMatrix) Row(p int) []float64 { return m.scores[p] }

// ValidateRange checks cells against the agreed score range [min, max].
// A participant row that falls entirely outside the range is fatal; rows with
// only some out-of-range cells are returned as data-quality findings for the
// caller to surface as warnings.
func (m *SortMatrix) ValidateRange(min, max int) ([]string, error) {
	lo, hi := float64(min), float64(max)
	var partial []string
	for i, row := range m.scores {
		outside := 0
		for _, v := range row {
			if v < lo || v > hi {
				outside++
			}
		}
		switch {
		case outside == len(row):
			return nil, fmt.Errorf("%w: participant %s scored entirely outside range [%d, %d]",
				ErrInvalidInput, m.ParticipantIDs[i], min, max)
		case outside > 0:
			partial = append(partial, m.ParticipantIDs[i])
		}
	}
	return partial, nil
}

// DefaultForcedDistribution is the canonical -5..+5 forced Q-sort shape used
// by the upstream sorting simulator: value → required count per row.
func DefaultForcedDistribution() map[int]int {
	return map[int]int{
		-5: 2, -4: 3, -3: 5, -2: 7, -1: 8,
		0: 10,
		1: 8, 2: 7, 3: 5, 4: 3, 5: 2,
	}
}

// CheckForcedDistribution returns the participants whose rows do not match
// the given value→count multiset. The engine never enforces the forced
// distribution; deviations are data-quality findings only.
func (m *SortMatrix) CheckForcedDistribution(dist map[int]int) []string {
	var violators []string
	for i, row := range m.scores {
		counts := make(map[int]int, len(dist))
		for _, v := range row {
			counts[int(v)]++
		}
		if !countsMatch(counts, dist) {
			violators = append(violators, m.ParticipantIDs[i])
		}
	}
	return violators
}

func countsMatch(got, want map[int]int) bool {
	if len(got) != len(want) {
		return false
	}
	for v, n := range want {
		if got[v] != n {
			return false
		}
	}
	return true
}

func checkUnique(kind string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty %s identifier", ErrInvalidInput, kind)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate %s identifier %q", ErrInvalidInput, kind, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

var qNumberPattern = regexp.MustCompile(`^Q([0-9]+)$`)

// sortStatements orders Q1..Qn identifiers numerically, anything else
// lexicographically.
func sortStatements(ids []string) {
	allQ := true
	for _, id := range ids {
		if !qNumberPattern.MatchString(id) {
			allQ = false
			break
		}
	}
	if !allQ {
		sort.Strings(ids)
		return
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(qNumberPattern.FindStringSubmatch(ids[i])[1])
		b, _ := strconv.Atoi(qNumberPattern.FindStringSubmatch(ids[j])[1])
		return a < b
	})
}
