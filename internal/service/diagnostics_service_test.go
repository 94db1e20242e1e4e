package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
)

func scoreByTeacher(scores map[string]float64) *scorerStub {
	return &scorerStub{
		score:   func(c scoring.Candidate) float64 { return scores[c.Teacher.ID] },
		backend: scoring.BackendTrained,
	}
}

func newDiagnosticsServiceForTest(engine batchScorer) *DiagnosticsService {
	svc := NewDiagnosticsService(engine, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestDiagnoseEmptyScheduleScoresZero(t *testing.T) {
	svc := newDiagnosticsServiceForTest(scoring.NewEngine(zap.NewNop()))

	diagnosis, err := svc.Diagnose(context.Background(), dto.DiagnoseRequest{Schedule: models.Schedule{ID: "S-1"}})
	require.NoError(t, err)
	assert.Zero(t, diagnosis.OverallScore)
	assert.Empty(t, diagnosis.Suggestions)
	assert.Empty(t, diagnosis.Insights)
	assert.Empty(t, diagnosis.Conflicts)
	assert.Equal(t, string(scoring.BackendHeuristic), diagnosis.Backend)
}

func TestDiagnoseProducesSuggestionsAndInsights(t *testing.T) {
	engine := scoreByTeacher(map[string]float64{"T-HIGH": 0.9, "T-LOW": 0.2, "T-MID": 0.5})
	svc := newDiagnosticsServiceForTest(engine)

	lowTeacher := models.Teacher{ID: "T-LOW", TeachableYears: []int{1}}
	req := dto.DiagnoseRequest{
		Schedule: models.Schedule{ID: "S-1", Items: []models.ScheduleItem{
			{ID: "I-1", CourseID: "C-DS", TeacherID: "T-HIGH", RoomID: "R-1", Day: models.Monday, TimeSlot: "08:00-09:00"},
			{ID: "I-2", CourseID: "C-DS", TeacherID: "T-LOW", RoomID: "R-SMALL", Day: models.Tuesday, TimeSlot: "08:00-09:00"},
			{ID: "I-3", CourseID: "C-DS", TeacherID: "T-MID", RoomID: "R-1", Day: models.Wednesday, TimeSlot: "10:00-11:00"},
			{ID: "I-4", CourseID: "C-MISSING", TeacherID: "T-HIGH", RoomID: "R-1", Day: models.Friday, TimeSlot: "08:00-09:00"},
		}},
		Courses:  []models.Course{sampleCourse()},
		Teachers: []models.Teacher{sampleTeacher("T-HIGH"), lowTeacher, sampleTeacher("T-MID")},
		Rooms:    []models.Room{sampleRoom("R-1", 30), sampleRoom("R-SMALL", 10)},
	}

	diagnosis, err := svc.Diagnose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, diagnosis.ScoredItems)
	assert.Equal(t, 1, diagnosis.SkippedItems)
	assert.InDelta(t, (0.9+0.2+0.5)/3, diagnosis.OverallScore, 1e-9)
	assert.Equal(t, string(scoring.BackendTrained), diagnosis.Backend)

	require.Len(t, diagnosis.Suggestions, 2)
	worst := diagnosis.Suggestions[0]
	assert.Equal(t, "I-2", worst.Item.ID)
	assert.Equal(t, models.SuggestionReschedule, worst.Kind)
	assert.Equal(t, models.PriorityHigh, worst.Priority)
	assert.Equal(t, []string{FactorVeryPoorScore, FactorRoomCapacityMismatch, FactorTeacherYearMismatch}, worst.Factors)
	assert.Contains(t, worst.Reason, "Room capacity (10) is below course capacity (30)")

	improve := diagnosis.Suggestions[1]
	assert.Equal(t, "I-3", improve.Item.ID)
	assert.Equal(t, models.SuggestionImprove, improve.Kind)
	assert.Equal(t, models.PriorityMedium, improve.Priority)
	assert.Equal(t, []string{FactorGeneralOptimization}, improve.Factors)

	require.Len(t, diagnosis.Insights, 2)
	assert.Equal(t, models.InsightTeacherWorkload, diagnosis.Insights[0].Type)
	assert.Equal(t, "T-LOW", diagnosis.Insights[0].SubjectID)
	assert.Equal(t, models.PriorityHigh, diagnosis.Insights[0].Priority)
	assert.Equal(t, models.InsightRoomUtilization, diagnosis.Insights[1].Type)
	assert.Equal(t, "R-SMALL", diagnosis.Insights[1].SubjectID)
	assert.Equal(t, 1, diagnosis.Insights[1].ItemCount)
}

func TestDiagnoseNoSuggestionForAcceptableScores(t *testing.T) {
	svc := newDiagnosticsServiceForTest(constantScorer(0.6))

	diagnosis, err := svc.Diagnose(context.Background(), dto.DiagnoseRequest{
		Schedule: models.Schedule{Items: []models.ScheduleItem{
			{ID: "I-1", CourseID: "C-DS", TeacherID: "T-1", RoomID: "R-1", Day: models.Monday, TimeSlot: "08:00-09:00"},
		}},
		Courses:  []models.Course{sampleCourse()},
		Teachers: []models.Teacher{sampleTeacher("T-1")},
		Rooms:    []models.Room{sampleRoom("R-1", 30)},
	})
	require.NoError(t, err)
	assert.Empty(t, diagnosis.Suggestions)
	assert.Empty(t, diagnosis.Insights)
	assert.InDelta(t, 0.6, diagnosis.OverallScore, 1e-9)
}

func TestDiagnoseSkipsInvalidLookupRecords(t *testing.T) {
	svc := newDiagnosticsServiceForTest(constantScorer(0.7))

	diagnosis, err := svc.Diagnose(context.Background(), dto.DiagnoseRequest{
		Schedule: models.Schedule{Items: []models.ScheduleItem{
			{ID: "I-1", CourseID: "C-DS", TeacherID: "T-1", RoomID: "R-1", Day: models.Monday, TimeSlot: "08:00-09:00"},
			{ID: "I-2", CourseID: "C-DS", TeacherID: "T-1", RoomID: "R-NEG", Day: models.Tuesday, TimeSlot: "08:00-09:00"},
		}},
		Courses:  []models.Course{sampleCourse(), {Name: "draft course"}},
		Teachers: []models.Teacher{sampleTeacher("T-1"), {Name: "no id yet"}},
		Rooms:    []models.Room{sampleRoom("R-1", 30), {ID: "R-NEG", Capacity: -4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, diagnosis.ScoredItems)
	assert.Equal(t, 1, diagnosis.SkippedItems)
	assert.Equal(t, 3, diagnosis.SkippedRecords)
	assert.InDelta(t, 0.7, diagnosis.OverallScore, 1e-9)
}

func TestDiagnoseSuggestionAroundRescheduleThreshold(t *testing.T) {
	cases := []struct {
		score    float64
		kind     models.SuggestionKind
		priority models.SuggestionPriority
	}{
		{score: 0.35, kind: models.SuggestionReschedule, priority: models.PriorityHigh},
		{score: 0.4, kind: models.SuggestionImprove, priority: models.PriorityMedium},
		{score: 0.45, kind: models.SuggestionImprove, priority: models.PriorityMedium},
	}

	for _, tc := range cases {
		svc := newDiagnosticsServiceForTest(constantScorer(tc.score))
		diagnosis, err := svc.Diagnose(context.Background(), dto.DiagnoseRequest{
			Schedule: models.Schedule{Items: []models.ScheduleItem{
				{ID: "I-1", CourseID: "C-DS", TeacherID: "T-1", RoomID: "R-1", Day: models.Monday, TimeSlot: "08:00-09:00"},
			}},
			Courses:  []models.Course{sampleCourse()},
			Teachers: []models.Teacher{sampleTeacher("T-1")},
			Rooms:    []models.Room{sampleRoom("R-1", 30)},
		})
		require.NoError(t, err)
		require.Len(t, diagnosis.Suggestions, 1, "score %.2f", tc.score)

		suggestion := diagnosis.Suggestions[0]
		assert.Equal(t, tc.kind, suggestion.Kind, "score %.2f", tc.score)
		assert.Equal(t, tc.priority, suggestion.Priority, "score %.2f", tc.score)
		assert.Equal(t, []string{FactorBelowAverageScore}, suggestion.Factors, "score %.2f", tc.score)
		assert.Equal(t, "Below average quality score", suggestion.Reason, "score %.2f", tc.score)
		assert.InDelta(t, tc.score, suggestion.CurrentScore, 1e-9)
	}
}

func TestDetectConflictsListsTeacherBeforeRoom(t *testing.T) {
	items := []models.ScheduleItem{
		{ID: "A", TeacherID: "T-1", RoomID: "R-1", Day: models.Monday, TimeSlot: "08:00-09:00"},
		{ID: "B", TeacherID: "T-1", RoomID: "R-1", Day: "monday", TimeSlot: "1"},
		{ID: "C", TeacherID: "T-2", RoomID: "R-2", Day: models.Monday, TimeSlot: "08:00-09:00"},
		{ID: "D", TeacherID: "T-3", RoomID: "R-3", Day: "SUNDAY", TimeSlot: "08:00-09:00"},
	}

	conflicts := detectConflicts(items)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Dimension)
	assert.Equal(t, "T-1", conflicts[0].SubjectID)
	assert.Equal(t, []string{"A", "B"}, conflicts[0].ItemIDs)
	assert.Equal(t, models.ConflictRoom, conflicts[1].Dimension)
	assert.Equal(t, "R-1", conflicts[1].SubjectID)
	assert.Equal(t, models.Monday, conflicts[1].Day)
	assert.Equal(t, models.TimeSlot("08:00-09:00"), conflicts[1].TimeSlot)
}
