package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"cftracker/internal/domain"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type ScheduleStore interface {
	Get(ctx context.Context) (*domain.Settings, error)
	UpdateSchedule(ctx context.Context, cronExpr, input string) error
}

type StudentLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// BatchSyncer is the slice of SyncService the scheduler drives.
type BatchSyncer interface {
	SyncAllProfiles(ctx context.Context, studentIDs []string) (*domain.BatchResult, error)
}

// Scheduler runs the full-fleet sync on the configured cron schedule.
// Rescheduling swaps the single registered job under a lock.
type Scheduler struct {
	cron     *cron.Cron
	settings ScheduleStore
	students StudentLister
	syncer   BatchSyncer
	logger   zerolog.Logger

	mu    sync.Mutex
	entry cron.EntryID
}

func NewScheduler(settings ScheduleStore, students StudentLister, syncer BatchSyncer, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		settings: settings,
		students: students,
		syncer:   syncer,
		logger:   logger,
	}
}

// Start loads the persisted schedule and begins ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedule settings: %w", err)
	}
	if settings.AutoSyncEnabled && settings.CronSchedule != "" {
		if err := s.schedule(settings.CronSchedule); err != nil {
			return err
		}
		s.logger.Info().Str("cron", settings.CronSchedule).Msg("automatic sync scheduled")
	}
	s.cron.Start()
	return nil
}

// Stop halts the ticker and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// UpdateSchedule compiles a human phrase into a cron expression, persists
// both, and reschedules the running job.
func (s *Scheduler) UpdateSchedule(ctx context.Context, input string) (string, error) {
	expr, err := GenerateCronExpression(input)
	if err != nil {
		return "", err
	}
	if err := s.settings.UpdateSchedule(ctx, expr, input); err != nil {
		return "", err
	}
	if err := s.schedule(expr); err != nil {
		return "", err
	}
	s.logger.Info().Str("input", input).Str("cron", expr).Msg("sync schedule updated")
	return expr, nil
}

func (s *Scheduler) schedule(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(expr, s.run)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	return nil
}

func (s *Scheduler) run() {
	ctx := context.Background()
	ids, err := s.students.ListIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled sync failed to list students")
		return
	}

	result, err := s.syncer.SyncAllProfiles(ctx, ids)
	if err != nil {
		if errors.Is(err, ErrSyncTooSoon) {
			s.logger.Warn().Msg("scheduled sync skipped, cooldown still active")
			return
		}
		s.logger.Error().Err(err).Msg("scheduled sync failed")
		return
	}
	s.logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("scheduled sync finished")
}

var (
	everyMinutesRe = regexp.MustCompile(`^every\s+(\d+)\s+min(?:ute)?s?$`)
	everyHoursRe   = regexp.MustCompile(`^every\s+(\d+)\s+hours?$`)
	dailyAtRe      = regexp.MustCompile(`^(?:every\s+day|daily)\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	weekdayAtRe    = regexp.MustCompile(`^every\s+weekday\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	weeklyAtRe     = regexp.MustCompile(`^every\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

var weekdays = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
}

// GenerateCronExpression compiles a small set of human phrases into standard
// five-field cron expressions. A string that already looks like a cron
// expression passes through after validation.
func GenerateCronExpression(input string) (string, error) {
	phrase := strings.ToLower(strings.TrimSpace(input))
	if phrase == "" {
		return "", fmt.Errorf("empty schedule")
	}

	if fields := strings.Fields(phrase); len(fields) == 5 {
		if _, err := cron.ParseStandard(phrase); err == nil {
			return phrase, nil
		}
	}

	switch phrase {
	case "every minute":
		return "* * * * *", nil
	case "every hour", "hourly":
		return "0 * * * *", nil
	case "every day", "daily":
		return "0 0 * * *", nil
	case "every week", "weekly":
		return "0 0 * * 0", nil
	}

	if m := everyMinutesRe.FindStringSubmatch(phrase); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > 59 {
			return "", fmt.Errorf("minute interval out of range: %d", n)
		}
		return fmt.Sprintf("*/%d * * * *", n), nil
	}
	if m := everyHoursRe.FindStringSubmatch(phrase); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > 23 {
			return "", fmt.Errorf("hour interval out of range: %d", n)
		}
		return fmt.Sprintf("0 */%d * * *", n), nil
	}
	if m := dailyAtRe.FindStringSubmatch(phrase); m != nil {
		hour, minute, err := clockTime(m[1], m[2], m[3])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}
	if m := weekdayAtRe.FindStringSubmatch(phrase); m != nil {
		hour, minute, err := clockTime(m[1], m[2], m[3])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}
	if m := weeklyAtRe.FindStringSubmatch(phrase); m != nil {
		hour, minute, err := clockTime(m[2], m[3], m[4])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, weekdays[m[1]]), nil
	}

	return "", fmt.Errorf("cannot interpret schedule %q", input)
}

func clockTime(hourStr, minuteStr, meridiem string) (int, int, error) {
	hour, _ := strconv.Atoi(hourStr)
	minute := 0
	if minuteStr != "" {
		minute, _ = strconv.Atoi(minuteStr)
	}
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %s:%s%s", hourStr, minuteStr, meridiem)
	}
	return hour, minute, nil
}
