package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

type qualityServiceMock struct {
	scoreReq     dto.ScoreRequest
	recommendReq dto.RecommendRequest
	trainingReq  dto.TrainingRequest
	err          error
}

func (m *qualityServiceMock) Score(ctx context.Context, req dto.ScoreRequest) (*dto.ScoreResponse, error) {
	m.scoreReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ScoreResponse{Score: 0.82, Band: "excellent", Backend: "heuristic"}, nil
}

func (m *qualityServiceMock) ScoreBatch(ctx context.Context, req dto.BatchScoreRequest) (*dto.BatchScoreResponse, error) {
	scores := make([]float64, len(req.Items))
	return &dto.BatchScoreResponse{Scores: scores, Backend: "heuristic"}, nil
}

func (m *qualityServiceMock) Status(ctx context.Context) models.EngineStatus {
	return models.EngineStatus{Ready: true, Backend: "trained", ModelPath: "/models/q.json"}
}

func (m *qualityServiceMock) Recommend(ctx context.Context, req dto.RecommendRequest) (*dto.RecommendResponse, error) {
	m.recommendReq = req
	return &dto.RecommendResponse{
		CourseID: req.Course.ID,
		Recommendations: []models.Recommendation{
			{CourseID: req.Course.ID, TeacherID: "T-1", RoomID: "R-1", Day: models.Monday, TimeSlot: "08:00-09:00", Score: 0.9, Confidence: 90},
		},
		Backend: "heuristic",
	}, nil
}

func (m *qualityServiceMock) RecommendAll(ctx context.Context, req dto.BatchRecommendRequest) (*dto.BatchRecommendResponse, error) {
	return &dto.BatchRecommendResponse{Results: []dto.RecommendResponse{}}, nil
}

func (m *qualityServiceMock) Diagnose(ctx context.Context, req dto.DiagnoseRequest) (*models.Diagnosis, error) {
	return &models.Diagnosis{OverallScore: 0.55, ScoredItems: len(req.Schedule.Items)}, nil
}

func (m *qualityServiceMock) Enqueue(ctx context.Context, req dto.TrainingRequest) (*models.TrainingRun, error) {
	m.trainingReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.TrainingRun{ID: "run-1", Status: models.TrainingQueued, Source: models.DatasetSynthetic, QueuedAt: time.Now()}, nil
}

type trainerMock struct {
	*qualityServiceMock
}

func (m trainerMock) Status(ctx context.Context, id string) (*models.TrainingRun, error) {
	if id != "run-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "training run not found")
	}
	return &models.TrainingRun{ID: id, Status: models.TrainingSucceeded}, nil
}

func (m trainerMock) Runs(ctx context.Context) []models.TrainingRun {
	return []models.TrainingRun{{ID: "run-1"}}
}

func newQualityRouter(mock *qualityServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewQualityHandler(mock, mock, mock, trainerMock{mock})
	router := gin.New()
	handler.Register(router.Group("/api/v1"))
	return router
}

func doJSON(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestQualityHandlerScore(t *testing.T) {
	mock := &qualityServiceMock{}
	router := newQualityRouter(mock)

	body := []byte(`{"course":{"id":"C-1","name":"Calculus","capacity":30},"teacher":{"id":"T-1"},"room":{"id":"R-1","capacity":40},"day":"MONDAY","timeSlot":"08:00-09:00"}`)
	w := doJSON(router, http.MethodPost, "/api/v1/quality/score", body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "C-1", mock.scoreReq.Course.ID)
	assert.Equal(t, models.Monday, mock.scoreReq.Day)

	var data dto.ScoreResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["data"], &data))
	assert.Equal(t, 0.82, data.Score)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestQualityHandlerScoreMalformedJSON(t *testing.T) {
	router := newQualityRouter(&qualityServiceMock{})

	w := doJSON(router, http.MethodPost, "/api/v1/quality/score", []byte(`{"course":`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var apiErr appErrors.Error
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["error"], &apiErr))
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestQualityHandlerPropagatesServiceErrors(t *testing.T) {
	mock := &qualityServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "invalid score request")}
	router := newQualityRouter(mock)

	w := doJSON(router, http.MethodPost, "/api/v1/quality/score", []byte(`{"course":{}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQualityHandlerRecommend(t *testing.T) {
	mock := &qualityServiceMock{}
	router := newQualityRouter(mock)

	body := []byte(`{"course":{"id":"C-9","name":"Physics"},"teachers":[{"id":"T-1"}],"rooms":[{"id":"R-1"}],"constraints":{"days":["MONDAY"],"topK":3}}`)
	w := doJSON(router, http.MethodPost, "/api/v1/quality/recommendations", body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, mock.recommendReq.Constraints.TopK)
	var data dto.RecommendResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["data"], &data))
	require.Len(t, data.Recommendations, 1)
	assert.Equal(t, 90, data.Recommendations[0].Confidence)

	var meta map[string]bool
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["meta"], &meta))
	assert.False(t, meta["cache_hit"])
}

func TestQualityHandlerScoreBatchMeta(t *testing.T) {
	router := newQualityRouter(&qualityServiceMock{})

	w := doJSON(router, http.MethodPost, "/api/v1/quality/score/batch", []byte(`{"items":[{},{}]}`))
	require.Equal(t, http.StatusOK, w.Code)
	var meta map[string]int
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["meta"], &meta))
	assert.Equal(t, 2, meta["count"])
}

func TestQualityHandlerDiagnoseAndStatus(t *testing.T) {
	router := newQualityRouter(&qualityServiceMock{})

	w := doJSON(router, http.MethodPost, "/api/v1/quality/diagnostics", []byte(`{"schedule":{"items":[{"id":"I-1"}]}}`))
	require.Equal(t, http.StatusOK, w.Code)
	var diagnosis models.Diagnosis
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["data"], &diagnosis))
	assert.Equal(t, 1, diagnosis.ScoredItems)

	w = doJSON(router, http.MethodGet, "/api/v1/quality/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status models.EngineStatus
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["data"], &status))
	assert.Equal(t, "trained", status.Backend)
}

func TestQualityHandlerTraining(t *testing.T) {
	mock := &qualityServiceMock{}
	router := newQualityRouter(mock)

	w := doJSON(router, http.MethodPost, "/api/v1/quality/training", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/quality/training", []byte(`{"source":"synthetic","epochs":5}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 5, mock.trainingReq.Epochs)

	w = doJSON(router, http.MethodGet, "/api/v1/quality/training/run-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/quality/training/unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/quality/training", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestQualityHandlerTrainingDisabled(t *testing.T) {
	mock := &qualityServiceMock{err: appErrors.ErrTrainingDisabled}
	router := newQualityRouter(mock)

	w := doJSON(router, http.MethodPost, "/api/v1/quality/training", []byte(`{}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
