package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/pkg/jobs"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveScoring("score", "heuristic", []float64{0.5}, time.Millisecond)
	m.RecordTraining("synthetic", models.TrainingFailed, time.Second, nil)
	m.TrackQueue("q", func() jobs.Stats { return jobs.Stats{} })
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsServiceExportsScoringAndBackend(t *testing.T) {
	m := NewMetricsService()
	m.ObserveScoring("batch", "trained", []float64{0.2, 0.9}, 3*time.Millisecond)
	m.SetActiveBackend("trained", "trained", "heuristic")
	m.RecordTraining("synthetic", models.TrainingSucceeded, 2*time.Second, &models.ModelMetrics{MSE: 0.0125})

	body := scrape(t, m)
	assert.Contains(t, body, `quality_scored_items_total{backend="trained",operation="batch"} 2`)
	assert.Contains(t, body, `quality_active_backend{backend="heuristic"} 0`)
	assert.Contains(t, body, `quality_active_backend{backend="trained"} 1`)
	assert.Contains(t, body, `quality_training_runs_total{source="synthetic",status="succeeded"} 1`)
	assert.Contains(t, body, "quality_model_test_mse 0.0125")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ScoredItems)
}

func TestMetricsServiceTracksQueue(t *testing.T) {
	m := NewMetricsService()
	m.TrackQueue("quality-training", func() jobs.Stats {
		return jobs.Stats{Pending: 2, Succeeded: 5, Retried: 1, Exhausted: 1}
	})

	body := scrape(t, m)
	assert.Contains(t, body, `jobs_queue_pending{queue="quality-training"} 2`)
	assert.Contains(t, body, `jobs_succeeded_total{queue="quality-training"} 5`)
	assert.Contains(t, body, `jobs_retried_total{queue="quality-training"} 1`)
	assert.Contains(t, body, `jobs_exhausted_total{queue="quality-training"} 1`)
}
