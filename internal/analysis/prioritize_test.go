package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opp(t OpportunityType, subject string, score float64) Opportunity {
	o := Opportunity{Type: t, Score: score}
	switch t {
	case TypeContentGap:
		o.ClusterID = subject
	case TypeContentExpansion:
		o.Page = subject
	default:
		o.Query = subject
	}
	return o
}

func TestPrioritize_SortsByScore(t *testing.T) {
	ranked := Prioritize([]Opportunity{
		opp(TypeQuickWin, "middle", 50),
		opp(TypeDeclining, "top", 90),
		opp(TypeContentExpansion, "/bottom", 10),
	}, 25)

	require.Len(t, ranked, 3)
	assert.Equal(t, "top", ranked[0].Query)
	assert.Equal(t, "middle", ranked[1].Query)
	assert.Equal(t, "/bottom", ranked[2].Page)
}

func TestPrioritize_TruncatesToTopN(t *testing.T) {
	var all []Opportunity
	for _, q := range []string{"a", "b", "c", "d", "e"} {
		all = append(all, opp(TypeQuickWin, q, float64(len(all)+1)))
	}

	ranked := Prioritize(all, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, "e", ranked[0].Query)

	// A cap of zero or more entries than exist keeps everything
	assert.Len(t, Prioritize(all, 0), 5)
	assert.Len(t, Prioritize(all, 100), 5)
}

func TestPrioritize_DeduplicatesWithinType(t *testing.T) {
	ranked := Prioritize([]Opportunity{
		opp(TypeQuickWin, "repeated query", 30),
		opp(TypeQuickWin, "repeated query", 70),
		opp(TypeQuickWin, "other query", 50),
	}, 25)

	require.Len(t, ranked, 2)
	assert.Equal(t, "repeated query", ranked[0].Query)
	assert.InDelta(t, 70, ranked[0].Score, 1e-9)
	assert.Equal(t, "other query", ranked[1].Query)
}

func TestPrioritize_SameSubjectAcrossTypesKept(t *testing.T) {
	// A query can legitimately be both a quick win and a CTR target
	ranked := Prioritize([]Opportunity{
		opp(TypeQuickWin, "dual query", 60),
		opp(TypeCTROptimization, "dual query", 40),
	}, 25)

	require.Len(t, ranked, 2)
	assert.Equal(t, TypeQuickWin, ranked[0].Type)
	assert.Equal(t, TypeCTROptimization, ranked[1].Type)
}

func TestPrioritize_ScoreTieBreaksByTypeUrgency(t *testing.T) {
	ranked := Prioritize([]Opportunity{
		opp(TypeContentExpansion, "/page", 50),
		opp(TypeQuickWin, "query", 50),
		opp(TypeContentGap, "cluster:topic", 50),
		opp(TypeDeclining, "slipping", 50),
		opp(TypeCTROptimization, "snippet", 50),
	}, 25)

	require.Len(t, ranked, 5)
	assert.Equal(t, TypeContentGap, ranked[0].Type)
	assert.Equal(t, TypeDeclining, ranked[1].Type)
	assert.Equal(t, TypeQuickWin, ranked[2].Type)
	assert.Equal(t, TypeCTROptimization, ranked[3].Type)
	assert.Equal(t, TypeContentExpansion, ranked[4].Type)
}

func TestPrioritize_FullTieBreaksBySubject(t *testing.T) {
	ranked := Prioritize([]Opportunity{
		opp(TypeQuickWin, "zeta", 50),
		opp(TypeQuickWin, "alpha", 50),
	}, 25)

	require.Len(t, ranked, 2)
	assert.Equal(t, "alpha", ranked[0].Query)
	assert.Equal(t, "zeta", ranked[1].Query)
}

func TestPrioritize_EmptyInput(t *testing.T) {
	assert.Empty(t, Prioritize(nil, 25))
}
