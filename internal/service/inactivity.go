package service

import (
	"context"
	"fmt"
	"time"

	"cftracker/internal/constants"
	"cftracker/internal/domain"

	"github.com/rs/zerolog"
)

// Mailer delivers reminder emails. The SMTP implementation lives in
// internal/email; tests substitute a recorder.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type ReminderStore interface {
	Get(ctx context.Context, id string) (*domain.Student, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

// InactivityService nudges students whose last submission is older than the
// inactivity threshold. A recent reminder suppresses the next one so a
// student syncing daily is not emailed daily.
type InactivityService struct {
	students ReminderStore
	mailer   Mailer
	logger   zerolog.Logger

	now func() time.Time
}

func NewInactivityService(students ReminderStore, mailer Mailer, logger zerolog.Logger) *InactivityService {
	return &InactivityService{
		students: students,
		mailer:   mailer,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckStudent evaluates one student after a sync and sends a reminder when
// they have gone quiet. Opt-outs and recently reminded students are skipped.
func (s *InactivityService) CheckStudent(ctx context.Context, studentID string) error {
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return err
	}
	if !student.AutoEmailEnabled {
		return nil
	}

	now := s.now()
	threshold := now.AddDate(0, 0, -constants.InactivityThresholdDays)
	if student.LastSubmissionTime.After(threshold) {
		return nil
	}

	floor := now.AddDate(0, 0, -constants.ReminderFloorDays)
	if student.LastReminderSent.After(floor) {
		s.logger.Debug().Str("student_id", studentID).Msg("reminder sent recently, skipping")
		return nil
	}

	days := int(now.Sub(student.LastSubmissionTime).Hours() / 24)
	subject := "Time to get back to problem solving!"
	body := fmt.Sprintf(
		"Hi %s,\n\nWe noticed you haven't submitted anything on Codeforces in %d days. "+
			"Keeping a regular practice streak is the best way to improve. "+
			"Log in and pick up a problem today!\n",
		student.Name, days,
	)
	if err := s.mailer.Send(ctx, student.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send reminder to %s: %w", student.Email, err)
	}
	if err := s.students.MarkReminderSent(ctx, studentID, now); err != nil {
		return err
	}

	s.logger.Info().
		Str("student_id", studentID).
		Str("email", student.Email).
		Int("inactive_days", days).
		Msg("inactivity reminder sent")
	return nil
}
