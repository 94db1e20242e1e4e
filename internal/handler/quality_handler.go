package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/middleware"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
	"github.com/noah-isme/schedule-quality-api/pkg/response"
)

type qualityScorer interface {
	Score(ctx context.Context, req dto.ScoreRequest) (*dto.ScoreResponse, error)
	ScoreBatch(ctx context.Context, req dto.BatchScoreRequest) (*dto.BatchScoreResponse, error)
	Status(ctx context.Context) models.EngineStatus
}

type qualityRecommender interface {
	Recommend(ctx context.Context, req dto.RecommendRequest) (*dto.RecommendResponse, error)
	RecommendAll(ctx context.Context, req dto.BatchRecommendRequest) (*dto.BatchRecommendResponse, error)
}

type qualityDiagnoser interface {
	Diagnose(ctx context.Context, req dto.DiagnoseRequest) (*models.Diagnosis, error)
}

type qualityTrainer interface {
	Enqueue(ctx context.Context, req dto.TrainingRequest) (*models.TrainingRun, error)
	Status(ctx context.Context, id string) (*models.TrainingRun, error)
	Runs(ctx context.Context) []models.TrainingRun
}

// QualityHandler exposes scoring, recommendation, diagnostics and training endpoints.
type QualityHandler struct {
	scorer      qualityScorer
	recommender qualityRecommender
	diagnoser   qualityDiagnoser
	trainer     qualityTrainer
}

// NewQualityHandler constructs the handler. trainer may be nil when training is off.
func NewQualityHandler(scorer qualityScorer, recommender qualityRecommender, diagnoser qualityDiagnoser, trainer qualityTrainer) *QualityHandler {
	return &QualityHandler{scorer: scorer, recommender: recommender, diagnoser: diagnoser, trainer: trainer}
}

// Register mounts the quality routes on the group.
func (h *QualityHandler) Register(group *gin.RouterGroup) {
	quality := group.Group("/quality")
	quality.POST("/score", h.Score)
	quality.POST("/score/batch", h.ScoreBatch)
	quality.POST("/recommendations", h.Recommend)
	quality.POST("/recommendations/batch", h.RecommendBatch)
	quality.POST("/diagnostics", h.Diagnose)
	quality.GET("/status", h.Status)
	quality.POST("/training", h.StartTraining)
	quality.GET("/training", h.ListTraining)
	quality.GET("/training/:id", h.TrainingStatus)
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// Score godoc
// @Summary Score a single assignment
// @Tags Quality
// @Accept json
// @Produce json
// @Param payload body dto.ScoreRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /quality/score [post]
func (h *QualityHandler) Score(c *gin.Context) {
	var req dto.ScoreRequest
	if !bindJSON(c, &req, "invalid score payload") {
		return
	}
	result, err := h.scorer.Score(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ScoreBatch godoc
// @Summary Score many assignments in one call
// @Tags Quality
// @Accept json
// @Produce json
// @Param payload body dto.BatchScoreRequest true "Assignments"
// @Success 200 {object} response.Envelope
// @Router /quality/score/batch [post]
func (h *QualityHandler) ScoreBatch(c *gin.Context) {
	var req dto.BatchScoreRequest
	if !bindJSON(c, &req, "invalid batch score payload") {
		return
	}
	result, err := h.scorer.ScoreBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(result.Scores))
	response.JSON(c, http.StatusOK, result, middleware.Meta(c))
}

// Recommend godoc
// @Summary Rank placements for a course
// @Description Returns at most five teacher/room/day/slot placements, best first.
// @Tags Quality
// @Accept json
// @Produce json
// @Param payload body dto.RecommendRequest true "Course, candidates and constraints"
// @Success 200 {object} response.Envelope
// @Router /quality/recommendations [post]
func (h *QualityHandler) Recommend(c *gin.Context) {
	var req dto.RecommendRequest
	if !bindJSON(c, &req, "invalid recommendation payload") {
		return
	}
	result, err := h.recommender.Recommend(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, middleware.Meta(c))
}

// RecommendBatch godoc
// @Summary Rank placements for several courses
// @Tags Quality
// @Accept json
// @Produce json
// @Param payload body dto.BatchRecommendRequest true "Courses, candidates and constraints"
// @Success 200 {object} response.Envelope
// @Router /quality/recommendations/batch [post]
func (h *QualityHandler) RecommendBatch(c *gin.Context) {
	var req dto.BatchRecommendRequest
	if !bindJSON(c, &req, "invalid batch recommendation payload") {
		return
	}
	result, err := h.recommender.RecommendAll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(result.Results))
	response.JSON(c, http.StatusOK, result, middleware.Meta(c))
}

// Diagnose godoc
// @Summary Diagnose an existing timetable
// @Tags Quality
// @Accept json
// @Produce json
// @Param payload body dto.DiagnoseRequest true "Schedule and lookup data"
// @Success 200 {object} response.Envelope
// @Router /quality/diagnostics [post]
func (h *QualityHandler) Diagnose(c *gin.Context) {
	var req dto.DiagnoseRequest
	if !bindJSON(c, &req, "invalid diagnostics payload") {
		return
	}
	result, err := h.diagnoser.Diagnose(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Status godoc
// @Summary Scorer readiness and active backend
// @Tags Quality
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quality/status [get]
func (h *QualityHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.scorer.Status(c.Request.Context()))
}

// StartTraining godoc
// @Summary Queue a background training run
// @Tags Quality
// @Accept json
// @Produce json
// @Param payload body dto.TrainingRequest false "Training options"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /quality/training [post]
func (h *QualityHandler) StartTraining(c *gin.Context) {
	if h.trainer == nil {
		response.Error(c, appErrors.ErrTrainingDisabled)
		return
	}
	var req dto.TrainingRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid training payload") {
		return
	}
	run, err := h.trainer.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run)
}

// ListTraining godoc
// @Summary List recent training runs
// @Tags Quality
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quality/training [get]
func (h *QualityHandler) ListTraining(c *gin.Context) {
	if h.trainer == nil {
		response.JSON(c, http.StatusOK, []models.TrainingRun{})
		return
	}
	runs := h.trainer.Runs(c.Request.Context())
	middleware.SetMeta(c, "count", len(runs))
	response.JSON(c, http.StatusOK, runs, middleware.Meta(c))
}

// TrainingStatus godoc
// @Summary Get a training run
// @Tags Quality
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quality/training/{id} [get]
func (h *QualityHandler) TrainingStatus(c *gin.Context) {
	if h.trainer == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "training run not found"))
		return
	}
	run, err := h.trainer.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}
