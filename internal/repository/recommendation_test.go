package repository

import (
	"context"
	"testing"

	"cftracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceSwapsTheWholeList(t *testing.T) {
	db := newTestDB(t)
	seedStudent(t, db, "s1", "alice")
	repo := NewRecommendationRepository(db, zerolog.Nop())
	ctx := context.Background()

	first := []domain.RecommendedProblem{
		{ProblemID: "1-A", ProblemName: "Old A", ProblemIndex: "A", ProblemRating: 1200, Tags: []string{"dp"}},
		{ProblemID: "1-B", ProblemName: "Old B", ProblemIndex: "B", ProblemRating: 1300, Tags: []string{"math"}},
	}
	require.NoError(t, repo.Replace(ctx, "s1", first))

	second := []domain.RecommendedProblem{
		{ProblemID: "2-C", ProblemName: "New C", ProblemIndex: "C", ProblemRating: 1400, Tags: []string{"graphs"}},
	}
	require.NoError(t, repo.Replace(ctx, "s1", second))

	got, err := repo.ListForStudent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2-C", got[0].ProblemID)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, []string{"graphs"}, got[0].Tags)
}

func TestListForStudentReturnsRankOrder(t *testing.T) {
	db := newTestDB(t)
	seedStudent(t, db, "s1", "alice")
	repo := NewRecommendationRepository(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "s1", []domain.RecommendedProblem{
		{ProblemID: "1-A", ProblemName: "First", ProblemIndex: "A", Tags: []string{}},
		{ProblemID: "1-B", ProblemName: "Second", ProblemIndex: "B", Tags: []string{}},
		{ProblemID: "1-C", ProblemName: "Third", ProblemIndex: "C", Tags: []string{}},
	}))

	got, err := repo.ListForStudent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.Equal(t, i, rec.Position)
	}
	assert.Equal(t, "1-A", got[0].ProblemID)
	assert.Equal(t, "1-C", got[2].ProblemID)
}

func TestReplaceIsolatedPerStudent(t *testing.T) {
	db := newTestDB(t)
	seedStudent(t, db, "s1", "alice")
	seedStudent(t, db, "s2", "bob")
	repo := NewRecommendationRepository(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "s1", []domain.RecommendedProblem{
		{ProblemID: "1-A", ProblemName: "Alice pick", ProblemIndex: "A", Tags: []string{}},
	}))
	require.NoError(t, repo.Replace(ctx, "s2", []domain.RecommendedProblem{
		{ProblemID: "1-B", ProblemName: "Bob pick", ProblemIndex: "B", Tags: []string{}},
	}))
	require.NoError(t, repo.Replace(ctx, "s1", nil))

	s1, err := repo.ListForStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, s1)

	s2, err := repo.ListForStudent(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, s2, 1)
}
