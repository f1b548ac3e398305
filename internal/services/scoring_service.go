package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/interview-session-service/internal/cache"
	"github.com/SAP-F-2025/interview-session-service/internal/events"
	"github.com/SAP-F-2025/interview-session-service/internal/metrics"
	"github.com/SAP-F-2025/interview-session-service/internal/models"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"gorm.io/gorm"
)

type scoringService struct {
	repo         repositories.Repository
	cache        cache.CacheService
	publisher    events.EventPublisher
	logger       *ServiceLogger
	recentWindow int
	cacheTTL     time.Duration
	now          func() time.Time
}

func NewScoringService(repo repositories.Repository, cacheService cache.CacheService, publisher events.EventPublisher, logger *ServiceLogger, opts Options) ScoringService {
	return &scoringService{
		repo:         repo,
		cache:        cacheService,
		publisher:    publisher,
		logger:       logger,
		recentWindow: opts.recentWindow(),
		cacheTTL:     opts.resultsCacheTTL(),
		now:          opts.clock(),
	}
}

// Finalize stores the breakdown of a terminal session exactly once. Later calls return the stored row.
func (s *scoringService) Finalize(ctx context.Context, sessionID string) (breakdown *models.ScoreBreakdown, err error) {
	op := s.logger.WithOperation(ctx, "finalize", sessionID)
	defer func() { op.LogResult(err) }()

	session, err := s.repo.Sessions().GetByID(ctx, nil, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUnknownSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !session.Status.IsTerminal() {
		return nil, ErrSessionNotActive
	}

	existing, err := s.repo.Scores().GetBySession(ctx, nil, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to load breakdown: %w", err)
	}

	breakdown, err = s.computeBreakdown(ctx, session)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Scores().Create(ctx, tx, breakdown); err != nil {
			return err
		}
		finalScore := breakdown.SessionScore
		return s.repo.Sessions().MarkFinalized(ctx, tx, session.ID, &finalScore, breakdown.IsVoid(), breakdown.FinalizedAt)
	})
	if errors.Is(err, repositories.ErrDuplicateKey) {
		// Lost the race to a concurrent finalization; return the winner's row
		return s.repo.Scores().GetBySession(ctx, nil, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store breakdown: %w", err)
	}

	metrics.Finalized(string(breakdown.ScoreStatus))
	if err := s.cache.Set(ctx, cache.ResultsKey(sessionID), breakdown, s.cacheTTL); err != nil {
		s.logger.logger.Warn("Failed to cache results", "session_id", sessionID, "error", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSessionEvent(ctx, events.NewSessionFinalizedEvent(breakdown)); err != nil {
			s.logger.logger.Warn("Failed to publish finalized event", "session_id", sessionID, "error", err)
		}
	}

	return breakdown, nil
}

func (s *scoringService) GetResults(ctx context.Context, sessionID string) (*models.ScoreBreakdown, error) {
	var cached models.ScoreBreakdown
	if err := s.cache.Get(ctx, cache.ResultsKey(sessionID), &cached); err == nil {
		return &cached, nil
	}

	breakdown, err := s.repo.Scores().GetBySession(ctx, nil, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		if _, err := s.repo.Sessions().GetByID(ctx, nil, sessionID); errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnknownSession
		} else if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		return nil, ErrResultsNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load breakdown: %w", err)
	}

	// Breakdowns never change once stored
	if err := s.cache.Set(ctx, cache.ResultsKey(sessionID), breakdown, s.cacheTTL); err != nil {
		s.logger.logger.Warn("Failed to cache results", "session_id", sessionID, "error", err)
	}
	return breakdown, nil
}

func (s *scoringService) FinalizePending(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.Sessions().ListUnfinalizedTerminal(ctx, nil, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unfinalized sessions: %w", err)
	}

	finalized := 0
	for _, session := range pending {
		if _, err := s.Finalize(ctx, session.ID); err != nil {
			s.logger.logger.Warn("Finalization retry failed", "session_id", session.ID, "error", err)
			continue
		}
		finalized++
	}
	return finalized, nil
}

func (s *scoringService) computeBreakdown(ctx context.Context, session *models.InterviewSession) (*models.ScoreBreakdown, error) {
	responses, err := s.repo.Responses().ListBySession(ctx, nil, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	history, err := s.repo.Scores().ListScoredByStudent(ctx, nil, session.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load score history: %w", err)
	}

	breakdown := &models.ScoreBreakdown{
		SessionID:      session.ID,
		StudentID:      session.StudentID,
		ResponsesCount: len(responses),
		FinalizedAt:    s.now(),
	}

	sessionScores := make([]float64, 0, len(history)+1)
	for _, past := range history {
		if past.SessionID != session.ID {
			sessionScores = append(sessionScores, past.SessionScore)
		}
	}

	if session.Status == models.SessionInvalidated {
		// Void: no category scores and a zero that is not a result; averages cover scored history only
		breakdown.ScoreStatus = models.ScoreStatusVoidInvalidated
	} else {
		breakdown.ScoreStatus = models.ScoreStatusScored
		scoreResponses(breakdown, responses)
		sessionScores = append(sessionScores, breakdown.SessionScore)
	}

	breakdown.OverallAverage = average(sessionScores)
	breakdown.RecentAverage = average(lastN(sessionScores, s.recentWindow))
	breakdown.Improvement = breakdown.RecentAverage - breakdown.OverallAverage
	return breakdown, nil
}

// scoreResponses fills the per-category averages and the session score.
func scoreResponses(breakdown *models.ScoreBreakdown, responses []*models.InterviewResponse) {
	byCategory := make(map[models.ResponseCategory][]float64)
	all := make([]float64, 0, len(responses))
	for _, r := range responses {
		byCategory[r.Category] = append(byCategory[r.Category], r.Score)
		all = append(all, r.Score)
	}

	categoryAverage := func(category models.ResponseCategory) *float64 {
		scores, ok := byCategory[category]
		if !ok {
			return nil
		}
		return models.Float64Ptr(average(scores))
	}

	breakdown.TechnicalScore = categoryAverage(models.CategoryTechnical)
	breakdown.CommunicationScore = categoryAverage(models.CategoryCommunication)
	breakdown.ProblemSolvingScore = categoryAverage(models.CategoryProblemSolving)
	breakdown.SessionScore = average(all)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
