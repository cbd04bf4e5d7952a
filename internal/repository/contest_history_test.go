package repository

import (
	"context"
	"testing"

	"cftracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContestInsertBatchIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedStudent(t, db, "s1", "alice")
	repo := NewContestHistoryRepository(db, zerolog.Nop())
	ctx := context.Background()

	records := []domain.ContestRecord{
		{
			StudentID: "s1", ContestID: 1900, ContestName: "Round 900",
			OldRating: 1400, NewRating: 1450, RatingChange: 50, Rank: 512,
			ContestTime:   mustTime(t, "2024-05-01T17:35:00Z"),
			TotalProblems: 6, UnsolvedCount: 3,
		},
		{
			StudentID: "s1", ContestID: 1901, ContestName: "Round 901",
			ContestTime: mustTime(t, "2024-05-08T17:35:00Z"),
		},
	}

	inserted, err := repo.InsertBatch(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	inserted, err = repo.InsertBatch(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM contest_history WHERE student_id = 's1'`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestContestInsertBatchScopedToStudent(t *testing.T) {
	db := newTestDB(t)
	seedStudent(t, db, "s1", "alice")
	seedStudent(t, db, "s2", "bob")
	repo := NewContestHistoryRepository(db, zerolog.Nop())
	ctx := context.Background()

	rec := domain.ContestRecord{
		ContestID: 1900, ContestName: "Round 900",
		ContestTime: mustTime(t, "2024-05-01T17:35:00Z"),
	}
	rec.StudentID = "s1"
	inserted, err := repo.InsertBatch(ctx, []domain.ContestRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	// the same contest for another student is a distinct identity
	rec.StudentID = "s2"
	inserted, err = repo.InsertBatch(ctx, []domain.ContestRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}
