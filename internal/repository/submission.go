package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cftracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type SubmissionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSubmissionRepository(db *sql.DB, logger zerolog.Logger) *SubmissionRepository {
	return &SubmissionRepository{db: db, logger: logger}
}

// InsertBatch persists submissions with insert-or-ignore semantics: a row
// whose (student_id, submission_id) already exists is skipped, which is
// expected after a partial earlier run. Returns the number actually inserted.
func (r *SubmissionRepository) InsertBatch(ctx context.Context, subs []domain.Submission) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO submissions
			(id, student_id, submission_id, problem_id, problem_index, problem_name,
			 problem_rating, verdict, solved, tags, submitted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	now := time.Now()
	for _, sub := range subs {
		id := sub.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return inserted, fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		tags, err := json.Marshal(sub.Tags)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode tags: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			id, sub.StudentID, sub.SubmissionID, sub.ProblemID, sub.ProblemIndex, sub.ProblemName,
			sub.ProblemRating, sub.Verdict, sub.Solved, string(tags), sub.SubmittedAt, now)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert submission %d: %w", sub.SubmissionID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit submissions: %w", err)
	}

	if skipped := len(subs) - inserted; skipped > 0 {
		r.logger.Warn().
			Str("student_id", subs[0].StudentID).
			Int("skipped", skipped).
			Msg("duplicate submissions skipped, data already present")
	}
	return inserted, nil
}

// SolvedProblemIDs returns the problem ids of a contest the student has an
// accepted submission for anywhere in the stored history.
func (r *SubmissionRepository) SolvedProblemIDs(ctx context.Context, studentID string, contestID int64) (map[string]struct{}, error) {
	pattern := fmt.Sprintf("%d-%%", contestID)
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT problem_id FROM submissions
		WHERE student_id = ? AND solved = 1 AND problem_id LIKE ?`,
		studentID, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query solved problems: %w", err)
	}
	defer rows.Close()

	solved := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		solved[id] = struct{}{}
	}
	return solved, rows.Err()
}

// AttemptedProblemIDs returns every problem the student has submitted to,
// regardless of verdict.
func (r *SubmissionRepository) AttemptedProblemIDs(ctx context.Context, studentID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT problem_id FROM submissions WHERE student_id = ?`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempted problems: %w", err)
	}
	defer rows.Close()

	attempted := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		attempted[id] = struct{}{}
	}
	return attempted, rows.Err()
}

// WeakTags returns up to limit tags where the student's failed attempts
// outnumber accepted ones since the given time, weakest first.
func (r *SubmissionRepository) WeakTags(ctx context.Context, studentID string, since time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT je.value AS tag,
		       SUM(CASE WHEN s.verdict = ? THEN 1 ELSE 0 END) AS ok_count,
		       SUM(CASE WHEN s.verdict <> ? THEN 1 ELSE 0 END) AS fail_count
		FROM submissions s, json_each(s.tags) je
		WHERE s.student_id = ? AND s.submitted_at >= ?
		GROUP BY je.value
		HAVING fail_count > ok_count
		ORDER BY fail_count DESC
		LIMIT ?`,
		domain.AcceptedVerdict, domain.AcceptedVerdict, studentID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate weak tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		var okCount, failCount int
		if err := rows.Scan(&tag, &okCount, &failCount); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
