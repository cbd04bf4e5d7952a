package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cftracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type ContestHistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewContestHistoryRepository(db *sql.DB, logger zerolog.Logger) *ContestHistoryRepository {
	return &ContestHistoryRepository{db: db, logger: logger}
}

// InsertBatch persists contest records, ignoring rows whose
// (student_id, contest_id) pair already exists.
func (r *ContestHistoryRepository) InsertBatch(ctx context.Context, records []domain.ContestRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO contest_history
			(id, student_id, contest_id, contest_name, old_rating, new_rating,
			 rating_change, contest_rank, contest_time, total_problems, unsolved_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	now := time.Now()
	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return inserted, fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}

		res, err := stmt.ExecContext(ctx,
			id, rec.StudentID, rec.ContestID, rec.ContestName, rec.OldRating, rec.NewRating,
			rec.RatingChange, rec.Rank, rec.ContestTime, rec.TotalProblems, rec.UnsolvedCount, now)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert contest %d: %w", rec.ContestID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit contest history: %w", err)
	}

	if skipped := len(records) - inserted; skipped > 0 {
		r.logger.Warn().
			Str("student_id", records[0].StudentID).
			Int("skipped", skipped).
			Msg("duplicate contest records skipped, data already present")
	}
	return inserted, nil
}
