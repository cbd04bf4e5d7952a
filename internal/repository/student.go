package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cftracker/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStudentNotFound is returned when a student id does not exist.
var ErrStudentNotFound = errors.New("student not found")

type StudentRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStudentRepository(db *sql.DB, logger zerolog.Logger) *StudentRepository {
	return &StudentRepository{db: db, logger: logger}
}

const studentColumns = `id, name, email, phone_number, handle, rating, max_rating, cf_rank,
	last_submission_time, last_contest_time, last_data_sync, sync_status,
	auto_email_enabled, reminder_count, last_reminder_sent, created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (*domain.Student, error) {
	var st domain.Student
	var status string
	var reminderSent sql.NullTime
	err := row.Scan(
		&st.ID, &st.Name, &st.Email, &st.PhoneNumber, &st.Handle,
		&st.Rating, &st.MaxRating, &st.Rank,
		&st.LastSubmissionTime, &st.LastContestTime, &st.LastDataSync, &status,
		&st.AutoEmailEnabled, &st.ReminderCount, &reminderSent,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.SyncStatus = domain.SyncStatus(status)
	if reminderSent.Valid {
		st.LastReminderSent = reminderSent.Time
	}
	return &st, nil
}

func (r *StudentRepository) Get(ctx context.Context, id string) (*domain.Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load student %s: %w", id, err)
	}
	return st, nil
}

func (r *StudentRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM students ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *StudentRepository) Create(ctx context.Context, st *domain.Student) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	if st.SyncStatus == "" {
		st.SyncStatus = domain.SyncPending
	}

	var reminderSent any
	if !st.LastReminderSent.IsZero() {
		reminderSent = st.LastReminderSent
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Email, st.PhoneNumber, st.Handle,
		st.Rating, st.MaxRating, st.Rank,
		st.LastSubmissionTime, st.LastContestTime, st.LastDataSync, string(st.SyncStatus),
		st.AutoEmailEnabled, st.ReminderCount, reminderSent,
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

func (r *StudentRepository) SetSyncStatus(ctx context.Context, id string, status domain.SyncStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE students SET sync_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// RecordSyncAttempt stamps last_data_sync regardless of the attempt outcome.
func (r *StudentRepository) RecordSyncAttempt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE students SET last_data_sync = ?, updated_at = ? WHERE id = ?`,
		at, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record sync attempt: %w", err)
	}
	return nil
}

// AdvanceWatermarks moves the per-kind watermarks forward. MAX() keeps them
// monotonically non-decreasing even if a caller passes a stale value.
func (r *StudentRepository) AdvanceWatermarks(ctx context.Context, id string, submission, contest *time.Time) error {
	now := time.Now()
	if submission != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE students SET last_submission_time = MAX(last_submission_time, ?), updated_at = ? WHERE id = ?`,
			*submission, now, id)
		if err != nil {
			return fmt.Errorf("failed to advance submission watermark: %w", err)
		}
	}
	if contest != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE students SET last_contest_time = MAX(last_contest_time, ?), updated_at = ? WHERE id = ?`,
			*contest, now, id)
		if err != nil {
			return fmt.Errorf("failed to advance contest watermark: %w", err)
		}
	}
	return nil
}

func (r *StudentRepository) UpdateRatings(ctx context.Context, id string, rating, maxRating int, rank string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE students SET rating = ?, max_rating = ?, cf_rank = ?, updated_at = ? WHERE id = ?`,
		rating, maxRating, rank, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update ratings: %w", err)
	}
	return nil
}

func (r *StudentRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE students SET reminder_count = reminder_count + 1, last_reminder_sent = ?, updated_at = ? WHERE id = ?`,
		at, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}
