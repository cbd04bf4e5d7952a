package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cftracker/internal/domain"

	"github.com/rs/zerolog"
)

type RecommendationRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRecommendationRepository(db *sql.DB, logger zerolog.Logger) *RecommendationRepository {
	return &RecommendationRepository{db: db, logger: logger}
}

// Replace swaps the student's recommendation set atomically.
func (r *RecommendationRepository) Replace(ctx context.Context, studentID string, problems []domain.RecommendedProblem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recommended_problems WHERE student_id = ?`, studentID); err != nil {
		return fmt.Errorf("failed to clear recommendations: %w", err)
	}

	now := time.Now()
	for i, p := range problems {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO recommended_problems
				(student_id, position, problem_id, problem_name, problem_index, problem_rating, tags, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			studentID, i, p.ProblemID, p.ProblemName, p.ProblemIndex, p.ProblemRating, string(tags), now)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation %s: %w", p.ProblemID, err)
		}
	}

	return tx.Commit()
}

// ListForStudent returns the current recommendation set in rank order.
func (r *RecommendationRepository) ListForStudent(ctx context.Context, studentID string) ([]domain.RecommendedProblem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, position, problem_id, problem_name, problem_index, problem_rating, tags, updated_at
		FROM recommended_problems WHERE student_id = ? ORDER BY position`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var recs []domain.RecommendedProblem
	for rows.Next() {
		var rec domain.RecommendedProblem
		var rawTags string
		if err := rows.Scan(&rec.StudentID, &rec.Position, &rec.ProblemID, &rec.ProblemName,
			&rec.ProblemIndex, &rec.ProblemRating, &rawTags, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rawTags), &rec.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
