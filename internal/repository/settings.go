package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cftracker/internal/domain"

	"github.com/rs/zerolog"
)

// SettingsRepository stores the single system-wide settings row, including
// the batch sync cooldown timestamp.
type SettingsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSettingsRepository(db *sql.DB, logger zerolog.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

func (r *SettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	var lastSync sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT cron_schedule, schedule_input, auto_sync_enabled, last_sync_time, updated_at
		FROM system_settings WHERE id = 1`).
		Scan(&s.CronSchedule, &s.ScheduleInput, &s.AutoSyncEnabled, &lastSync, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if lastSync.Valid {
		s.LastSyncTime = lastSync.Time
	}
	return &s, nil
}

func (r *SettingsRepository) SetLastSyncTime(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE system_settings SET last_sync_time = ?, updated_at = ? WHERE id = 1`,
		at, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}
	return nil
}

func (r *SettingsRepository) UpdateSchedule(ctx context.Context, cronExpr, input string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE system_settings SET cron_schedule = ?, schedule_input = ?, updated_at = ? WHERE id = 1`,
		cronExpr, input, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return nil
}
