package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cftracker/internal/api"
	"cftracker/internal/constants"
	"cftracker/internal/domain"
	"cftracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrSyncTooSoon guards the shared rate budget against repeated full-fleet
// syncs.
var ErrSyncTooSoon = errors.New("a full profile sync ran recently, try again after the cooldown")

// ErrNoHandle marks a configuration problem, not a sync failure.
var ErrNoHandle = errors.New("student has no codeforces handle configured")

// CodeforcesAPI is the slice of the API client the sync engine consumes.
type CodeforcesAPI interface {
	UserStatus(ctx context.Context, handle string, from, count int) ([]api.SubmissionEntry, error)
	UserRating(ctx context.Context, handle string) ([]api.RatingChange, error)
	ContestStandings(ctx context.Context, contestID int64) (*api.Standings, error)
	UserInfo(ctx context.Context, handle string) (*api.UserInfo, error)
	ProblemsetProblems(ctx context.Context) (*api.ProblemsetResult, error)
}

type StudentStore interface {
	Get(ctx context.Context, id string) (*domain.Student, error)
	SetSyncStatus(ctx context.Context, id string, status domain.SyncStatus) error
	RecordSyncAttempt(ctx context.Context, id string, at time.Time) error
	AdvanceWatermarks(ctx context.Context, id string, submission, contest *time.Time) error
	UpdateRatings(ctx context.Context, id string, rating, maxRating int, rank string) error
}

type SubmissionStore interface {
	InsertBatch(ctx context.Context, subs []domain.Submission) (int, error)
	SolvedProblemIDs(ctx context.Context, studentID string, contestID int64) (map[string]struct{}, error)
}

type ContestStore interface {
	InsertBatch(ctx context.Context, records []domain.ContestRecord) (int, error)
}

type ProblemStore interface {
	UpsertBatch(ctx context.Context, problems []domain.Problem) error
}

type SettingsStore interface {
	Get(ctx context.Context) (*domain.Settings, error)
	SetLastSyncTime(ctx context.Context, at time.Time) error
}

// Recommender and InactivityChecker are the downstream triggers fired after a
// successful single-profile sync. Their failures never fail the sync.
type Recommender interface {
	GeneratePostSync(ctx context.Context, studentID string, newSubmissions []domain.Submission, rating int) error
}

type InactivityChecker interface {
	CheckStudent(ctx context.Context, studentID string) error
}

// SyncService drives one profile end-to-end and batches strictly
// sequentially. The contest problem cache lives on the service so repeated
// contests across profiles cost one standings call per process.
type SyncService struct {
	cf          CodeforcesAPI
	students    StudentStore
	submissions SubmissionStore
	contests    ContestStore
	problems    ProblemStore
	settings    SettingsStore
	recommender Recommender
	inactivity  InactivityChecker
	logger      zerolog.Logger

	contestProblems map[int64][]api.ProblemEntry
	now             func() time.Time
}

func NewSyncService(
	cf CodeforcesAPI,
	students StudentStore,
	submissions SubmissionStore,
	contests ContestStore,
	problems ProblemStore,
	settings SettingsStore,
	recommender Recommender,
	inactivity InactivityChecker,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		cf:              cf,
		students:        students,
		submissions:     submissions,
		contests:        contests,
		problems:        problems,
		settings:        settings,
		recommender:     recommender,
		inactivity:      inactivity,
		logger:          logger,
		contestProblems: make(map[int64][]api.ProblemEntry),
		now:             time.Now,
	}
}

// cutoff bounds incremental fetches: never before the watermark, never older
// than the retention floor.
func (s *SyncService) cutoff(watermark time.Time) time.Time {
	floor := s.now().AddDate(0, 0, -constants.MaxDataAgeDays)
	if watermark.After(floor) {
		return watermark
	}
	return floor
}

// fetchNewSubmissions pages backward through the activity log and keeps only
// records newer than the cutoff. The service returns newest first, so the
// first record at or older than the cutoff ends pagination entirely.
func (s *SyncService) fetchNewSubmissions(ctx context.Context, handle string, lastSubmissionTime time.Time) ([]api.SubmissionEntry, error) {
	cutoff := s.cutoff(lastSubmissionTime)
	s.logger.Info().Str("handle", handle).Time("cutoff", cutoff).Msg("fetching submissions newer than cutoff")

	var all []api.SubmissionEntry
	from := 1
	for {
		page, err := s.cf.UserStatus(ctx, handle, from, constants.SubmissionPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		kept := 0
		for _, entry := range page {
			submitted := time.Unix(entry.CreationTimeSeconds, 0)
			if !submitted.After(cutoff) {
				break
			}
			all = append(all, entry)
			kept++
		}

		// anything short of a fully kept page means we crossed the cutoff
		// or hit the end of the account's history
		if kept < constants.SubmissionPageSize {
			break
		}
		from += constants.SubmissionPageSize
	}

	s.logger.Info().Str("handle", handle).Int("count", len(all)).Msg("fetched new submissions")
	return all, nil
}

func (s *SyncService) buildSubmissions(studentID string, entries []api.SubmissionEntry) []domain.Submission {
	subs := make([]domain.Submission, 0, len(entries))
	for _, e := range entries {
		subs = append(subs, domain.Submission{
			StudentID:     studentID,
			SubmissionID:  e.ID,
			ProblemID:     fmt.Sprintf("%d-%s", e.Problem.ContestID, e.Problem.Index),
			ProblemIndex:  e.Problem.Index,
			ProblemName:   e.Problem.Name,
			ProblemRating: e.Problem.Rating,
			Verdict:       e.Verdict,
			Solved:        e.Verdict == domain.AcceptedVerdict,
			Tags:          e.Problem.Tags,
			SubmittedAt:   time.Unix(e.CreationTimeSeconds, 0),
		})
	}
	return subs
}

// contestProblemSet resolves a contest's problem list through the
// process-wide cache; a miss costs exactly one standings call per contest id
// for the lifetime of the process.
func (s *SyncService) contestProblemSet(ctx context.Context, contestID int64) ([]api.ProblemEntry, error) {
	if problems, ok := s.contestProblems[contestID]; ok {
		s.logger.Debug().Int64("contest_id", contestID).Msg("contest problem cache hit")
		return problems, nil
	}
	s.logger.Debug().Int64("contest_id", contestID).Msg("contest problem cache miss, fetching")

	standings, err := s.cf.ContestStandings(ctx, contestID)
	if err != nil {
		return nil, err
	}
	s.contestProblems[contestID] = standings.Problems
	return standings.Problems, nil
}

// buildContestRecords filters the full participation list down to contests
// newer than the watermark and computes per-contest unsolved counts. The
// solved set combines this run's accepted submissions with accepted
// submissions already in the store, so contests synced long after the fact
// are not over-counted as unsolved.
func (s *SyncService) buildContestRecords(ctx context.Context, student *domain.Student, changes []api.RatingChange, run []api.SubmissionEntry) ([]domain.ContestRecord, error) {
	cutoff := s.cutoff(student.LastContestTime)

	var fresh []api.RatingChange
	for _, c := range changes {
		if time.Unix(c.RatingUpdateTimeSeconds, 0).After(cutoff) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	runSolved := make(map[string]struct{})
	for _, e := range run {
		if e.Verdict == domain.AcceptedVerdict {
			runSolved[fmt.Sprintf("%d-%s", e.Problem.ContestID, e.Problem.Index)] = struct{}{}
		}
	}

	s.logger.Info().
		Str("handle", student.Handle).
		Int("count", len(fresh)).
		Msg("resolving problem sets for new contests")

	records := make([]domain.ContestRecord, 0, len(fresh))
	for _, c := range fresh {
		problems, err := s.contestProblemSet(ctx, c.ContestID)
		if err != nil {
			return nil, err
		}

		stored, err := s.submissions.SolvedProblemIDs(ctx, student.ID, c.ContestID)
		if err != nil {
			return nil, err
		}

		unsolved := 0
		for _, p := range problems {
			id := fmt.Sprintf("%d-%s", c.ContestID, p.Index)
			if _, ok := runSolved[id]; ok {
				continue
			}
			if _, ok := stored[id]; ok {
				continue
			}
			unsolved++
		}

		records = append(records, domain.ContestRecord{
			StudentID:     student.ID,
			ContestID:     c.ContestID,
			ContestName:   c.ContestName,
			OldRating:     c.OldRating,
			NewRating:     c.NewRating,
			RatingChange:  c.NewRating - c.OldRating,
			Rank:          c.Rank,
			ContestTime:   time.Unix(c.RatingUpdateTimeSeconds, 0),
			TotalProblems: len(problems),
			UnsolvedCount: unsolved,
		})
	}
	return records, nil
}

// SyncSingleProfile drives one profile: fetch, persist, advance watermarks,
// fire downstream triggers, settle status. Errors are classified into the
// returned reason and never escape as exceptions.
func (s *SyncService) SyncSingleProfile(ctx context.Context, studentID string) domain.SyncResult {
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return domain.SyncResult{Success: false, Reason: "student record not found"}
		}
		return domain.SyncResult{Success: false, Reason: err.Error()}
	}
	if student.Handle == "" {
		// configuration error: no status mutation
		return domain.SyncResult{Success: false, Reason: ErrNoHandle.Error()}
	}

	if err := s.transition(ctx, student, domain.SyncSyncing); err != nil {
		return domain.SyncResult{Success: false, Reason: err.Error()}
	}

	s.refreshUserInfo(ctx, student)

	entries, err := s.fetchNewSubmissions(ctx, student.Handle, student.LastSubmissionTime)
	if err != nil {
		return s.fail(ctx, student, err)
	}

	changes, err := s.cf.UserRating(ctx, student.Handle)
	if err != nil {
		return s.fail(ctx, student, err)
	}

	subs := s.buildSubmissions(student.ID, entries)
	if _, err := s.submissions.InsertBatch(ctx, subs); err != nil {
		return s.fail(ctx, student, err)
	}

	records, err := s.buildContestRecords(ctx, student, changes, entries)
	if err != nil {
		return s.fail(ctx, student, err)
	}
	if _, err := s.contests.InsertBatch(ctx, records); err != nil {
		return s.fail(ctx, student, err)
	}

	var subWatermark, contestWatermark *time.Time
	if len(subs) > 0 {
		latest := subs[0].SubmittedAt
		for _, sub := range subs[1:] {
			if sub.SubmittedAt.After(latest) {
				latest = sub.SubmittedAt
			}
		}
		subWatermark = &latest
	}
	if len(records) > 0 {
		latest := records[0].ContestTime
		for _, rec := range records[1:] {
			if rec.ContestTime.After(latest) {
				latest = rec.ContestTime
			}
		}
		contestWatermark = &latest
	}
	if err := s.students.AdvanceWatermarks(ctx, student.ID, subWatermark, contestWatermark); err != nil {
		return s.fail(ctx, student, err)
	}

	s.fireTriggers(ctx, student, subs)

	if err := s.transition(ctx, student, domain.SyncSucceeded); err != nil {
		return domain.SyncResult{Success: false, Reason: err.Error()}
	}
	if err := s.students.RecordSyncAttempt(ctx, student.ID, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("student_id", student.ID).Msg("failed to record sync timestamp")
	}

	s.logger.Info().
		Str("handle", student.Handle).
		Int("new_submissions", len(subs)).
		Int("new_contests", len(records)).
		Msg("profile synced")
	return domain.SyncResult{Success: true}
}

// refreshUserInfo updates rating fields from the profile endpoint; a failure
// here is not fatal to the sync.
func (s *SyncService) refreshUserInfo(ctx context.Context, student *domain.Student) {
	info, err := s.cf.UserInfo(ctx, student.Handle)
	if err != nil {
		s.logger.Warn().Err(err).Str("handle", student.Handle).Msg("failed to refresh user info")
		return
	}
	if err := s.students.UpdateRatings(ctx, student.ID, info.Rating, info.MaxRating, info.Rank); err != nil {
		s.logger.Warn().Err(err).Str("handle", student.Handle).Msg("failed to store user info")
		return
	}
	student.Rating = info.Rating
	student.MaxRating = info.MaxRating
	student.Rank = info.Rank
}

// fireTriggers invokes the downstream collaborators. Fire-and-forget: their
// errors are logged, never re-thrown.
func (s *SyncService) fireTriggers(ctx context.Context, student *domain.Student, subs []domain.Submission) {
	g := new(errgroup.Group)
	g.Go(func() error {
		return s.recommender.GeneratePostSync(ctx, student.ID, subs, student.Rating)
	})
	g.Go(func() error {
		return s.inactivity.CheckStudent(ctx, student.ID)
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("handle", student.Handle).Msg("post-sync task failed")
	}
}

func (s *SyncService) transition(ctx context.Context, student *domain.Student, to domain.SyncStatus) error {
	if err := student.SyncStatus.Transition(to); err != nil {
		return err
	}
	if err := s.students.SetSyncStatus(ctx, student.ID, to); err != nil {
		return err
	}
	student.SyncStatus = to
	return nil
}

func (s *SyncService) fail(ctx context.Context, student *domain.Student, cause error) domain.SyncResult {
	s.logger.Error().Err(cause).Str("handle", student.Handle).Msg("profile sync failed")

	if err := s.transition(ctx, student, domain.SyncFailed); err != nil {
		s.logger.Warn().Err(err).Str("student_id", student.ID).Msg("failed to settle status")
	}
	if err := s.students.RecordSyncAttempt(ctx, student.ID, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("student_id", student.ID).Msg("failed to record sync timestamp")
	}

	switch {
	case api.IsNotFound(cause):
		return domain.SyncResult{Success: false, Reason: fmt.Sprintf("handle %q not found", student.Handle)}
	case api.IsForbidden(cause):
		return domain.SyncResult{Success: false, Reason: fmt.Sprintf("access forbidden for handle %q", student.Handle)}
	default:
		return domain.SyncResult{Success: false, Reason: cause.Error()}
	}
}

// SyncAllProfiles runs the batch strictly sequentially: each profile settles
// before the next begins. A single profile's failure is recorded, never
// aborts the batch; the completion timestamp re-arms the cooldown
// unconditionally.
func (s *SyncService) SyncAllProfiles(ctx context.Context, studentIDs []string) (*domain.BatchResult, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.LastSyncTime.IsZero() && s.now().Sub(settings.LastSyncTime) < constants.SyncCooldown {
		return nil, ErrSyncTooSoon
	}

	result := &domain.BatchResult{Total: len(studentIDs)}
	s.logger.Info().Int("total", result.Total).Msg("starting strictly sequential batch sync")

	for i, id := range studentIDs {
		s.logger.Info().Int("index", i+1).Int("total", result.Total).Str("student_id", id).Msg("processing student")

		outcome := s.SyncSingleProfile(ctx, id)
		if outcome.Success {
			result.Succeeded++
		} else {
			result.Failed++
			result.Failures = append(result.Failures, domain.SyncFailure{StudentID: id, Reason: outcome.Reason})
			s.logger.Warn().Str("student_id", id).Str("reason", outcome.Reason).Msg("student sync failed")
		}
	}

	if err := s.settings.SetLastSyncTime(ctx, s.now()); err != nil {
		s.logger.Error().Err(err).Msg("failed to record batch completion time")
	}

	s.logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("batch sync completed")
	return result, nil
}

// SyncProblemCatalog refreshes the full problem catalog used by the
// recommendation engine.
func (s *SyncService) SyncProblemCatalog(ctx context.Context) (int, error) {
	result, err := s.cf.ProblemsetProblems(ctx)
	if err != nil {
		return 0, err
	}

	problems := make([]domain.Problem, 0, len(result.Problems))
	for _, p := range result.Problems {
		problems = append(problems, domain.Problem{
			ID:        fmt.Sprintf("%d-%s", p.ContestID, p.Index),
			ContestID: p.ContestID,
			Index:     p.Index,
			Name:      p.Name,
			Rating:    p.Rating,
			Tags:      p.Tags,
		})
	}
	if err := s.problems.UpsertBatch(ctx, problems); err != nil {
		return 0, err
	}

	s.logger.Info().Int("count", len(problems)).Msg("problem catalog refreshed")
	return len(problems), nil
}
