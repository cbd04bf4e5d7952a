package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cftracker/internal/domain"

	"github.com/rs/zerolog"
)

type ProblemRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewProblemRepository(db *sql.DB, logger zerolog.Logger) *ProblemRepository {
	return &ProblemRepository{db: db, logger: logger}
}

// UpsertBatch refreshes the problem catalog. Ratings and tags of existing
// rows are overwritten since Codeforces assigns ratings after the fact.
func (r *ProblemRepository) UpsertBatch(ctx context.Context, problems []domain.Problem) error {
	if len(problems) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO problems (id, contest_id, problem_index, name, rating, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			rating = excluded.rating,
			tags = excluded.tags,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range problems {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.ContestID, p.Index, p.Name, p.Rating, string(tags), now); err != nil {
			return fmt.Errorf("failed to upsert problem %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// FindCandidates samples problems within the rating band that carry at least
// one of the given tags.
func (r *ProblemRepository) FindCandidates(ctx context.Context, tags []string, minRating, maxRating, limit int) ([]domain.Problem, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(tags))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(tags)+3)
	for _, t := range tags {
		args = append(args, t)
	}
	args = append(args, minRating, maxRating, limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT p.id, p.contest_id, p.problem_index, p.name, p.rating, p.tags
		FROM problems p, json_each(p.tags) je
		WHERE je.value IN (`+placeholders+`) AND p.rating BETWEEN ? AND ?
		ORDER BY RANDOM()
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate problems: %w", err)
	}
	defer rows.Close()

	var problems []domain.Problem
	for rows.Next() {
		var p domain.Problem
		var rawTags string
		if err := rows.Scan(&p.ID, &p.ContestID, &p.Index, &p.Name, &p.Rating, &rawTags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rawTags), &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %s: %w", p.ID, err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}
