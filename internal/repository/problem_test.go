package repository

import (
	"context"
	"testing"

	"cftracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertBatchOverwritesRatingAndTags(t *testing.T) {
	db := newTestDB(t)
	repo := NewProblemRepository(db, zerolog.Nop())
	ctx := context.Background()

	p := domain.Problem{ID: "1900-A", ContestID: 1900, Index: "A", Name: "Cover in Water", Tags: []string{}}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Problem{p}))

	// ratings and tags show up later, the refresh overwrites
	p.Rating = 800
	p.Tags = []string{"constructive algorithms"}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Problem{p}))

	found, err := repo.FindCandidates(ctx, []string{"constructive algorithms"}, 700, 900, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "1900-A", found[0].ID)
	assert.Equal(t, 800, found[0].Rating)
	assert.Equal(t, []string{"constructive algorithms"}, found[0].Tags)
}

func TestFindCandidatesFiltersByTagAndRating(t *testing.T) {
	db := newTestDB(t)
	repo := NewProblemRepository(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []domain.Problem{
		{ID: "1-A", ContestID: 1, Index: "A", Name: "In band, right tag", Rating: 1500, Tags: []string{"dp"}},
		{ID: "1-B", ContestID: 1, Index: "B", Name: "In band, wrong tag", Rating: 1500, Tags: []string{"strings"}},
		{ID: "1-C", ContestID: 1, Index: "C", Name: "Out of band", Rating: 2400, Tags: []string{"dp"}},
		{ID: "1-D", ContestID: 1, Index: "D", Name: "Two tags", Rating: 1600, Tags: []string{"dp", "graphs"}},
	}))

	found, err := repo.FindCandidates(ctx, []string{"dp", "graphs"}, 1300, 1700, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(found))
	for _, p := range found {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"1-A", "1-D"}, ids)
}

func TestFindCandidatesEmptyTagList(t *testing.T) {
	db := newTestDB(t)
	repo := NewProblemRepository(db, zerolog.Nop())

	found, err := repo.FindCandidates(context.Background(), nil, 0, 3400, 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}
