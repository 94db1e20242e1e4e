package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

type scorerStub struct {
	mu      sync.Mutex
	score   func(c scoring.Candidate) float64
	backend scoring.Backend
	version string
	calls   int
}

func constantScorer(v float64) *scorerStub {
	return &scorerStub{score: func(scoring.Candidate) float64 { return v }, backend: scoring.BackendHeuristic}
}

func (s *scorerStub) ScoreBatchWithBackend(cs []scoring.Candidate) ([]float64, scoring.Backend) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = s.score(c)
	}
	return out, s.backend
}

func (s *scorerStub) ActiveBackend() scoring.Backend { return s.backend }

func (s *scorerStub) ModelVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == "" {
		return string(s.backend) + "-0"
	}
	return s.version
}

func (s *scorerStub) setVersion(v string) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

type memoryCacheStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	cleared []string
}

func newMemoryCacheStub() *memoryCacheStub {
	return &memoryCacheStub{entries: map[string][]byte{}}
}

func (c *memoryCacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *memoryCacheStub) InvalidatePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, prefix)
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func sampleCourse() models.Course {
	return models.Course{
		ID:          "C-DS",
		Name:        "Data Structures",
		Duration:    60,
		Capacity:    30,
		Year:        2,
		Credits:     3,
		LectureType: models.LectureTheory,
	}
}

func sampleTeacher(id string) models.Teacher {
	return models.Teacher{ID: id, TeachableYears: []int{2}, Expertise: []string{"data structures"}}
}

func sampleRoom(id string, capacity int) models.Room {
	return models.Room{ID: id, Capacity: capacity, Type: models.RoomClassroom}
}

func newRecommendationServiceForTest(engine recommendationEngine, cache recommendationCache) *RecommendationService {
	return NewRecommendationService(engine, cache, nil, nil, zap.NewNop(), RecommendationConfig{TopK: 5, CacheTTL: time.Minute})
}

func TestRecommendNoEligibleTeachersReturnsEmptyList(t *testing.T) {
	svc := newRecommendationServiceForTest(scoring.NewEngine(zap.NewNop()), nil)

	resp, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course: sampleCourse(),
		Rooms:  []models.Room{sampleRoom("R-1", 40)},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
	assert.Equal(t, "C-DS", resp.CourseID)
}

func TestRecommendRanksBestFirstAndCapsAtFive(t *testing.T) {
	svc := newRecommendationServiceForTest(scoring.NewEngine(zap.NewNop()), nil)

	resp, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course:   sampleCourse(),
		Teachers: []models.Teacher{sampleTeacher("T-1"), sampleTeacher("T-2")},
		Rooms:    []models.Room{sampleRoom("R-1", 30), sampleRoom("R-2", 60)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, MaxRecommendations)
	assert.Equal(t, string(scoring.BackendHeuristic), resp.Backend)
	for i := 1; i < len(resp.Recommendations); i++ {
		assert.GreaterOrEqual(t, resp.Recommendations[i-1].Score, resp.Recommendations[i].Score)
	}
	for _, rec := range resp.Recommendations {
		assert.GreaterOrEqual(t, rec.Score, 0.0)
		assert.LessOrEqual(t, rec.Score, 1.0)
		assert.Equal(t, "C-DS", rec.CourseID)
	}
}

func TestRecommendTieBreaksDeterministically(t *testing.T) {
	svc := newRecommendationServiceForTest(constantScorer(0.5), nil)

	resp, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course:   sampleCourse(),
		Teachers: []models.Teacher{sampleTeacher("T-B"), sampleTeacher("T-A")},
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 5)
	for i, rec := range resp.Recommendations {
		assert.Equal(t, "T-A", rec.TeacherID)
		assert.Equal(t, "R-1", rec.RoomID)
		assert.Equal(t, models.TimeSlots[i], rec.TimeSlot)
		assert.Equal(t, models.Monday, rec.Day)
		assert.Equal(t, 50, rec.Confidence)
	}
}

func TestRecommendSkipsOccupiedCellsAndPrefersLighterDays(t *testing.T) {
	svc := newRecommendationServiceForTest(constantScorer(0.7), nil)

	existing := []models.ScheduleItem{{ID: "S-1", CourseID: "C-OTHER", TeacherID: "T-1", RoomID: "R-9", Day: models.Monday, TimeSlot: "08:00-09:00"}}
	req := dto.RecommendRequest{
		Course:   sampleCourse(),
		Teachers: []models.Teacher{sampleTeacher("T-1")},
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
		Constraints: dto.RecommendConstraints{
			TimeSlots: []models.TimeSlot{"08:00-09:00", "09:00-10:00"},
			Existing:  existing,
		},
	}

	resp, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 2)
	for _, rec := range resp.Recommendations {
		assert.Equal(t, models.Tuesday, rec.Day, "slot %s", rec.TimeSlot)
	}
}

func TestRecommendFiltersIneligibleResources(t *testing.T) {
	svc := newRecommendationServiceForTest(constantScorer(0.6), nil)

	wrongYear := models.Teacher{ID: "T-YEAR", TeachableYears: []int{1}, Expertise: []string{"data structures"}}
	wrongField := models.Teacher{ID: "T-FIELD", TeachableYears: []int{2}, Expertise: []string{"chemistry"}}
	small := sampleRoom("R-SMALL", 10)
	lab := models.Room{ID: "R-LAB", Capacity: 40, Type: models.RoomLab}
	untyped := models.Room{ID: "R-ANY", Capacity: 40}

	resp, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course:      sampleCourse(),
		Teachers:    []models.Teacher{wrongYear, wrongField, sampleTeacher("T-OK")},
		Rooms:       []models.Room{small, lab, untyped},
		Constraints: dto.RecommendConstraints{TopK: 3},
	})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 3)
	for _, rec := range resp.Recommendations {
		assert.Equal(t, "T-OK", rec.TeacherID)
		assert.Equal(t, "R-ANY", rec.RoomID)
	}
}

func TestRecommendSkipsInvalidResourceRecords(t *testing.T) {
	svc := newRecommendationServiceForTest(constantScorer(0.6), nil)

	noID := models.Teacher{Name: "no id yet", TeachableYears: []int{2}, Expertise: []string{"data structures"}}
	unnamedRoom := models.Room{Capacity: 40, Type: models.RoomClassroom}

	resp, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course:      sampleCourse(),
		Teachers:    []models.Teacher{noID, sampleTeacher("T-1")},
		Rooms:       []models.Room{unnamedRoom, sampleRoom("R-1", 30)},
		Constraints: dto.RecommendConstraints{TopK: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SkippedRecords)
	require.Len(t, resp.Recommendations, 3)
	for _, rec := range resp.Recommendations {
		assert.Equal(t, "T-1", rec.TeacherID)
		assert.Equal(t, "R-1", rec.RoomID)
	}
}

func TestRecommendAllKeepsGoingPastInvalidResources(t *testing.T) {
	svc := newRecommendationServiceForTest(constantScorer(0.6), nil)

	algorithms := sampleCourse()
	algorithms.ID = "C-ALG"
	resp, err := svc.RecommendAll(context.Background(), dto.BatchRecommendRequest{
		Courses:  []models.Course{sampleCourse(), algorithms},
		Teachers: []models.Teacher{sampleTeacher("T-1"), {Name: "no id yet"}},
		Rooms:    []models.Room{sampleRoom("R-1", 30), {ID: "R-NEG", Capacity: -1}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	for _, result := range resp.Results {
		assert.NotEmpty(t, result.Recommendations, result.CourseID)
		assert.Equal(t, 2, result.SkippedRecords, result.CourseID)
	}
}

func TestRecommendRejectsOversizedResourceLists(t *testing.T) {
	svc := newRecommendationServiceForTest(constantScorer(0.5), nil)

	teachers := make([]models.Teacher, 5001)
	for i := range teachers {
		teachers[i] = sampleTeacher("T")
	}
	_, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course:   sampleCourse(),
		Teachers: teachers,
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.RecommendAll(context.Background(), dto.BatchRecommendRequest{
		Courses:  []models.Course{sampleCourse()},
		Teachers: []models.Teacher{sampleTeacher("T-1")},
		Rooms:    make([]models.Room, 5001),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRecommendRejectsUnknownDay(t *testing.T) {
	svc := newRecommendationServiceForTest(constantScorer(0.5), nil)

	_, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course:      sampleCourse(),
		Constraints: dto.RecommendConstraints{Days: []models.Day{"SUNDAY"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRecommendServesRepeatRequestsFromCache(t *testing.T) {
	scorer := constantScorer(0.8)
	cache := newMemoryCacheStub()
	svc := newRecommendationServiceForTest(scorer, cache)
	req := dto.RecommendRequest{
		Course:   sampleCourse(),
		Teachers: []models.Teacher{sampleTeacher("T-1")},
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
	}

	first, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.Equal(t, 1, scorer.calls)

	require.NoError(t, svc.InvalidateCache(context.Background()))
	assert.Equal(t, []string{"recommendations:"}, cache.cleared)

	third, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, scorer.calls)
}

func TestRecommendCacheKeyFollowsModelVersion(t *testing.T) {
	scorer := constantScorer(0.7)
	scorer.backend = scoring.BackendTrained
	scorer.version = "trained-1"
	cache := newMemoryCacheStub()
	svc := newRecommendationServiceForTest(scorer, cache)
	req := dto.RecommendRequest{
		Course:   sampleCourse(),
		Teachers: []models.Teacher{sampleTeacher("T-1")},
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
	}

	_, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)
	for key := range cache.entries {
		assert.True(t, strings.HasPrefix(key, "recommendations:trained-1:"), key)
	}

	scorer.setVersion("trained-2")
	resp, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, scorer.calls)
	assert.Len(t, cache.entries, 2)
}

func TestRecommendSkipsCacheWriteWhenModelSwapsMidRequest(t *testing.T) {
	scorer := constantScorer(0.7)
	scorer.backend = scoring.BackendTrained
	scorer.version = "trained-1"
	scorer.score = func(scoring.Candidate) float64 {
		scorer.version = "trained-2"
		return 0.7
	}
	cache := newMemoryCacheStub()
	svc := newRecommendationServiceForTest(scorer, cache)

	resp, err := svc.Recommend(context.Background(), dto.RecommendRequest{
		Course:   sampleCourse(),
		Teachers: []models.Teacher{sampleTeacher("T-1")},
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Recommendations)
	assert.Empty(t, cache.entries)
}

func TestRecommendAllPreservesCourseOrder(t *testing.T) {
	svc := newRecommendationServiceForTest(scoring.NewEngine(zap.NewNop()), nil)

	algorithms := sampleCourse()
	algorithms.ID = "C-ALG"
	algorithms.Name = "Algorithms"
	resp, err := svc.RecommendAll(context.Background(), dto.BatchRecommendRequest{
		Courses:  []models.Course{sampleCourse(), algorithms},
		Teachers: []models.Teacher{sampleTeacher("T-1")},
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "C-DS", resp.Results[0].CourseID)
	assert.NotEmpty(t, resp.Results[0].Recommendations)
	assert.Equal(t, "C-ALG", resp.Results[1].CourseID)
	assert.Empty(t, resp.Results[1].Recommendations)
}
