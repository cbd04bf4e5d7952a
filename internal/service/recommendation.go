package service

import (
	"context"
	"time"

	"cftracker/internal/constants"
	"cftracker/internal/domain"

	"github.com/rs/zerolog"
)

type WeakTagStore interface {
	WeakTags(ctx context.Context, studentID string, since time.Time, limit int) ([]string, error)
	AttemptedProblemIDs(ctx context.Context, studentID string) (map[string]struct{}, error)
}

type CandidateStore interface {
	FindCandidates(ctx context.Context, tags []string, minRating, maxRating, limit int) ([]domain.Problem, error)
}

type RecommendationStore interface {
	Replace(ctx context.Context, studentID string, problems []domain.RecommendedProblem) error
	ListForStudent(ctx context.Context, studentID string) ([]domain.RecommendedProblem, error)
}

// RecommendationService picks practice problems around a student's weak tags
// and current rating. It regenerates the whole list on every run rather than
// amending it; stale picks from a previous rating band disappear.
type RecommendationService struct {
	submissions     WeakTagStore
	catalog         CandidateStore
	recommendations RecommendationStore
	logger          zerolog.Logger

	now func() time.Time
}

func NewRecommendationService(
	submissions WeakTagStore,
	catalog CandidateStore,
	recommendations RecommendationStore,
	logger zerolog.Logger,
) *RecommendationService {
	return &RecommendationService{
		submissions:     submissions,
		catalog:         catalog,
		recommendations: recommendations,
		logger:          logger,
		now:             time.Now,
	}
}

// GeneratePostSync rebuilds a student's recommendation list after a profile
// sync. Students with no failed attempts in the window keep whatever list
// they already have.
func (r *RecommendationService) GeneratePostSync(ctx context.Context, studentID string, _ []domain.Submission, rating int) error {
	since := r.now().AddDate(0, 0, -constants.RecommendationWindowDays)
	weakTags, err := r.submissions.WeakTags(ctx, studentID, since, constants.WeakTagLimit)
	if err != nil {
		return err
	}
	if len(weakTags) == 0 {
		r.logger.Debug().Str("student_id", studentID).Msg("no weak tags, keeping existing recommendations")
		return nil
	}

	minRating := rating - constants.RatingBand
	if minRating < 0 {
		minRating = 0
	}
	maxRating := rating + constants.RatingBand
	if maxRating > constants.RatingCeiling {
		maxRating = constants.RatingCeiling
	}

	candidates, err := r.catalog.FindCandidates(ctx, weakTags, minRating, maxRating, constants.CandidateSampleSize)
	if err != nil {
		return err
	}

	attempted, err := r.submissions.AttemptedProblemIDs(ctx, studentID)
	if err != nil {
		return err
	}

	picks := r.rank(candidates, weakTags, rating, attempted)
	if err := r.recommendations.Replace(ctx, studentID, picks); err != nil {
		return err
	}

	r.logger.Info().
		Str("student_id", studentID).
		Strs("weak_tags", weakTags).
		Int("count", len(picks)).
		Msg("recommendations regenerated")
	return nil
}

// rank scores candidates by weak-tag overlap against rating distance and
// keeps the top picks, skipping anything the student has already attempted.
func (r *RecommendationService) rank(candidates []domain.Problem, weakTags []string, rating int, attempted map[string]struct{}) []domain.RecommendedProblem {
	weak := make(map[string]struct{}, len(weakTags))
	for _, tag := range weakTags {
		weak[tag] = struct{}{}
	}

	type scored struct {
		problem domain.Problem
		score   int
	}
	eligible := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		if _, ok := attempted[p.ID]; ok {
			continue
		}
		overlap := 0
		for _, tag := range p.Tags {
			if _, ok := weak[tag]; ok {
				overlap++
			}
		}
		dist := p.Rating - rating
		if dist < 0 {
			dist = -dist
		}
		eligible = append(eligible, scored{problem: p, score: overlap*10 - dist})
	}

	// selection over a small sample; keeps ordering stable for equal scores
	picks := make([]domain.RecommendedProblem, 0, constants.RecommendationLimit)
	for len(picks) < constants.RecommendationLimit && len(eligible) > 0 {
		best := 0
		for i := 1; i < len(eligible); i++ {
			if eligible[i].score > eligible[best].score {
				best = i
			}
		}
		p := eligible[best].problem
		picks = append(picks, domain.RecommendedProblem{
			Position:      len(picks),
			ProblemID:     p.ID,
			ProblemName:   p.Name,
			ProblemIndex:  p.Index,
			ProblemRating: p.Rating,
			Tags:          p.Tags,
		})
		eligible = append(eligible[:best], eligible[best+1:]...)
	}
	return picks
}

// ListForStudent exposes the current recommendation list.
func (r *RecommendationService) ListForStudent(ctx context.Context, studentID string) ([]domain.RecommendedProblem, error) {
	return r.recommendations.ListForStudent(ctx, studentID)
}
