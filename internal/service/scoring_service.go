package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

type qualityEngine interface {
	ScoreBatchWithBackend(cs []scoring.Candidate) ([]float64, scoring.Backend)
	Ready() bool
	ActiveBackend() scoring.Backend
	Explain(c scoring.Candidate) []scoring.Adjustment
	Snapshot() scoring.EngineSnapshot
}

// ScoringService scores individual assignments and reports engine status.
type ScoringService struct {
	engine    qualityEngine
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoringService constructs the scoring service.
func NewScoringService(engine qualityEngine, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScoringService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerCalendarValidations(validate)
	return &ScoringService{engine: engine, metrics: metrics, validator: validate, logger: logger}
}

// Score evaluates one assignment.
func (s *ScoringService) Score(ctx context.Context, req dto.ScoreRequest) (*dto.ScoreResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score request")
	}
	candidate := candidateFromRequest(req)

	start := time.Now()
	scores, backend := s.engine.ScoreBatchWithBackend([]scoring.Candidate{candidate})
	s.metrics.ObserveScoring("score", string(backend), scores, time.Since(start))

	resp := &dto.ScoreResponse{
		Score:   scores[0],
		Band:    scoring.Band(scores[0]),
		Backend: string(backend),
	}
	if req.Explain {
		resp.Adjustments = s.engine.Explain(candidate)
	}
	return resp, nil
}

// ScoreBatch evaluates many assignments in one engine call, preserving order.
func (s *ScoringService) ScoreBatch(ctx context.Context, req dto.BatchScoreRequest) (*dto.BatchScoreResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch score request")
	}
	candidates := make([]scoring.Candidate, len(req.Items))
	for i, item := range req.Items {
		candidates[i] = candidateFromRequest(item)
	}

	start := time.Now()
	scores, backend := s.engine.ScoreBatchWithBackend(candidates)
	s.metrics.ObserveScoring("score_batch", string(backend), scores, time.Since(start))
	s.logger.Debug("batch scored", zap.Int("items", len(scores)), zap.String("backend", string(backend)))

	return &dto.BatchScoreResponse{Scores: scores, Backend: string(backend)}, nil
}

// Status reports readiness, the active backend and usage counters.
func (s *ScoringService) Status(ctx context.Context) models.EngineStatus {
	snap := s.engine.Snapshot()
	s.metrics.SetActiveBackend(string(snap.Backend), string(scoring.BackendTrained), string(scoring.BackendHeuristic))
	return models.EngineStatus{
		Ready:     s.engine.Ready(),
		Backend:   string(snap.Backend),
		Loading:   snap.Loading,
		ModelPath: snap.ModelPath,
		Model:     snap.Metrics,
		Metrics:   s.metrics.Snapshot(),
	}
}

func candidateFromRequest(req dto.ScoreRequest) scoring.Candidate {
	return scoring.Candidate{
		Course:   req.Course,
		Teacher:  req.Teacher,
		Room:     req.Room,
		Day:      req.Day,
		TimeSlot: req.TimeSlot,
		Context:  req.Context,
	}
}
