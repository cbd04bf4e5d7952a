package fx

import (
	"cftracker/internal/api"
	"cftracker/internal/config"
	"cftracker/internal/constants"
	"cftracker/internal/database"
	"cftracker/internal/email"
	"cftracker/internal/logger"
	"cftracker/internal/repository"
	"cftracker/internal/server"
	"cftracker/internal/service"

	"go.uber.org/fx"
)

func ProvidePacer() *api.Pacer {
	return api.NewPacer(constants.RateLimitDelay, api.SystemClock())
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewStudentRepository),
	fx.Provide(repository.NewSubmissionRepository),
	fx.Provide(repository.NewContestHistoryRepository),
	fx.Provide(repository.NewProblemRepository),
	fx.Provide(repository.NewRecommendationRepository),
	fx.Provide(repository.NewSettingsRepository),
	// api client
	fx.Provide(ProvidePacer),
	fx.Provide(api.NewClient),
	// svc
	fx.Provide(email.NewSender),
	fx.Provide(service.NewRecommendationService),
	fx.Provide(service.NewInactivityService),
	fx.Provide(service.NewSyncService),
	fx.Provide(service.NewScheduler),
	// server
	fx.Provide(server.NewHandler),
	// interface bindings
	fx.Provide(
		func(c *api.Client) service.CodeforcesAPI { return c },
		func(r *repository.StudentRepository) service.StudentStore { return r },
		func(r *repository.StudentRepository) service.StudentLister { return r },
		func(r *repository.StudentRepository) service.ReminderStore { return r },
		func(r *repository.SubmissionRepository) service.SubmissionStore { return r },
		func(r *repository.SubmissionRepository) service.WeakTagStore { return r },
		func(r *repository.ContestHistoryRepository) service.ContestStore { return r },
		func(r *repository.ProblemRepository) service.ProblemStore { return r },
		func(r *repository.ProblemRepository) service.CandidateStore { return r },
		func(r *repository.RecommendationRepository) service.RecommendationStore { return r },
		func(r *repository.SettingsRepository) service.SettingsStore { return r },
		func(r *repository.SettingsRepository) service.ScheduleStore { return r },
		func(s *email.Sender) service.Mailer { return s },
		func(s *service.RecommendationService) service.Recommender { return s },
		func(s *service.InactivityService) service.InactivityChecker { return s },
		func(s *service.SyncService) service.BatchSyncer { return s },
		func(s *service.SyncService) server.Syncer { return s },
		func(s *service.Scheduler) server.ScheduleManager { return s },
		func(s *service.RecommendationService) server.RecommendationLister { return s },
	),
)
