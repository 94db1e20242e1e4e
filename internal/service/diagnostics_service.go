package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

const (
	rescheduleThreshold = 0.4
	improveThreshold    = 0.6
	veryPoorThreshold   = 0.3
	belowAverageCutoff  = 0.5
	insightThreshold    = 0.5
)

// Reason codes attached to suggestions.
const (
	FactorVeryPoorScore        = "very_poor_score"
	FactorBelowAverageScore    = "below_average_score"
	FactorRoomCapacityMismatch = "room_capacity_mismatch"
	FactorTeacherYearMismatch  = "teacher_year_mismatch"
	FactorGeneralOptimization  = "general_optimization"
)

// DiagnosticsService flags weak assignments in an existing timetable.
type DiagnosticsService struct {
	engine    batchScorer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDiagnosticsService constructs the diagnostics engine.
func NewDiagnosticsService(engine batchScorer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *DiagnosticsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiagnosticsService{engine: engine, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

type resolvedItem struct {
	item    models.ScheduleItem
	course  models.Course
	teacher models.Teacher
	room    models.Room
}

// Diagnose scores every resolvable item and returns suggestions, insights and conflicts.
// Items referencing unknown records are skipped.
func (s *DiagnosticsService) Diagnose(ctx context.Context, req dto.DiagnoseRequest) (*models.Diagnosis, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid diagnostics request")
	}

	validCourses, droppedCourses := validRecords(s.validator, req.Courses)
	validTeachers, droppedTeachers := validRecords(s.validator, req.Teachers)
	validRooms, droppedRooms := validRecords(s.validator, req.Rooms)

	courses := make(map[string]models.Course, len(validCourses))
	for _, c := range validCourses {
		courses[c.ID] = c
	}
	teachers := make(map[string]models.Teacher, len(validTeachers))
	for _, t := range validTeachers {
		teachers[t.ID] = t
	}
	rooms := make(map[string]models.Room, len(validRooms))
	for _, r := range validRooms {
		rooms[r.ID] = r
	}

	diagnosis := &models.Diagnosis{
		Suggestions: []models.Suggestion{},
		Insights:    []models.Insight{},
		Conflicts:   detectConflicts(req.Schedule.Items),
		Backend:     string(s.engine.ActiveBackend()),
		GeneratedAt: s.now().UTC(),
	}
	if dropped := droppedCourses + droppedTeachers + droppedRooms; dropped > 0 {
		diagnosis.SkippedRecords = dropped
		s.logger.Debug("skipping invalid lookup records",
			zap.Int("courses", droppedCourses),
			zap.Int("teachers", droppedTeachers),
			zap.Int("rooms", droppedRooms),
		)
	}

	resolved := make([]resolvedItem, 0, len(req.Schedule.Items))
	for _, item := range req.Schedule.Items {
		course, okCourse := courses[item.CourseID]
		teacher, okTeacher := teachers[item.TeacherID]
		room, okRoom := rooms[item.RoomID]
		if !okCourse || !okTeacher || !okRoom {
			diagnosis.SkippedItems++
			s.logger.Debug("skip unresolved schedule item",
				zap.String("item_id", item.ID),
				zap.Bool("course", okCourse),
				zap.Bool("teacher", okTeacher),
				zap.Bool("room", okRoom),
			)
			continue
		}
		resolved = append(resolved, resolvedItem{item: item, course: course, teacher: teacher, room: room})
	}
	if len(resolved) == 0 {
		return diagnosis, nil
	}

	candidates := make([]scoring.Candidate, len(resolved))
	for i, r := range resolved {
		candidates[i] = scoring.Candidate{
			Course:   r.course,
			Teacher:  r.teacher,
			Room:     r.room,
			Day:      r.item.Day,
			TimeSlot: r.item.TimeSlot,
			Context:  req.Context,
		}
	}

	start := time.Now()
	scores, backend := s.engine.ScoreBatchWithBackend(candidates)
	s.metrics.ObserveScoring("diagnose", string(backend), scores, time.Since(start))
	diagnosis.Backend = string(backend)
	diagnosis.ScoredItems = len(scores)

	var total float64
	for i, r := range resolved {
		score := scores[i]
		total += score
		if suggestion, ok := suggest(r, score); ok {
			diagnosis.Suggestions = append(diagnosis.Suggestions, suggestion)
		}
	}
	diagnosis.OverallScore = total / float64(len(scores))
	diagnosis.Insights = buildInsights(resolved, scores)

	sort.SliceStable(diagnosis.Suggestions, func(i, j int) bool {
		return diagnosis.Suggestions[i].CurrentScore < diagnosis.Suggestions[j].CurrentScore
	})

	s.logger.Info("schedule diagnosed",
		zap.String("schedule_id", req.Schedule.ID),
		zap.Int("scored", diagnosis.ScoredItems),
		zap.Int("skipped", diagnosis.SkippedItems),
		zap.Int("suggestions", len(diagnosis.Suggestions)),
		zap.Float64("overall", diagnosis.OverallScore),
	)
	return diagnosis, nil
}

func suggest(r resolvedItem, score float64) (models.Suggestion, bool) {
	var kind models.SuggestionKind
	var priority models.SuggestionPriority
	switch {
	case score < rescheduleThreshold:
		kind, priority = models.SuggestionReschedule, models.PriorityHigh
	case score < improveThreshold:
		kind, priority = models.SuggestionImprove, models.PriorityMedium
	default:
		return models.Suggestion{}, false
	}

	var reasons, factors []string
	switch {
	case score < veryPoorThreshold:
		reasons = append(reasons, "Very poor overall quality score")
		factors = append(factors, FactorVeryPoorScore)
	case score < belowAverageCutoff:
		reasons = append(reasons, "Below average quality score")
		factors = append(factors, FactorBelowAverageScore)
	}
	if r.room.Capacity < r.course.Capacity {
		reasons = append(reasons, fmt.Sprintf("Room capacity (%d) is below course capacity (%d)", r.room.Capacity, r.course.Capacity))
		factors = append(factors, FactorRoomCapacityMismatch)
	}
	if !r.teacher.CanTeachYear(r.course.Year) {
		reasons = append(reasons, fmt.Sprintf("Teacher does not teach year %d", r.course.Year))
		factors = append(factors, FactorTeacherYearMismatch)
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "General optimization needed")
		factors = append(factors, FactorGeneralOptimization)
	}

	return models.Suggestion{
		Kind:         kind,
		Priority:     priority,
		Item:         r.item,
		CurrentScore: score,
		Reason:       strings.Join(reasons, "; "),
		Factors:      factors,
	}, true
}

type scoreAccumulator struct {
	sum   float64
	count int
}

func buildInsights(resolved []resolvedItem, scores []float64) []models.Insight {
	byTeacher := make(map[string]*scoreAccumulator)
	byRoom := make(map[string]*scoreAccumulator)
	for i, r := range resolved {
		accumulate(byTeacher, r.teacher.ID, scores[i])
		accumulate(byRoom, r.room.ID, scores[i])
	}

	insights := []models.Insight{}
	insights = append(insights, lowAverages(byTeacher, models.InsightTeacherWorkload, "Teacher %s averages %.2f across %d assignments; review workload and placement")...)
	insights = append(insights, lowAverages(byRoom, models.InsightRoomUtilization, "Room %s averages %.2f across %d assignments; review room allocation")...)
	return insights
}

func accumulate(index map[string]*scoreAccumulator, id string, score float64) {
	acc, ok := index[id]
	if !ok {
		acc = &scoreAccumulator{}
		index[id] = acc
	}
	acc.sum += score
	acc.count++
}

func lowAverages(index map[string]*scoreAccumulator, kind models.InsightType, format string) []models.Insight {
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var insights []models.Insight
	for _, id := range ids {
		acc := index[id]
		avg := acc.sum / float64(acc.count)
		if avg >= insightThreshold {
			continue
		}
		priority := models.PriorityMedium
		if avg < rescheduleThreshold {
			priority = models.PriorityHigh
		}
		insights = append(insights, models.Insight{
			Type:         kind,
			SubjectID:    id,
			AverageScore: avg,
			ItemCount:    acc.count,
			Priority:     priority,
			Message:      fmt.Sprintf(format, id, avg, acc.count),
		})
	}
	return insights
}

// detectConflicts lists teachers and rooms booked more than once in the same cell.
func detectConflicts(items []models.ScheduleItem) []models.ScheduleConflict {
	type key struct {
		dimension string
		subject   string
		day       int
		slot      int
	}
	groups := make(map[key][]string)
	var order []key
	add := func(k key, itemID string) {
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], itemID)
	}
	for i, item := range items {
		day, slot := item.Day.Index(), item.TimeSlot.Index()
		if day == 0 || slot == 0 {
			continue
		}
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}
		if item.TeacherID != "" {
			add(key{models.ConflictTeacher, item.TeacherID, day, slot}, id)
		}
		if item.RoomID != "" {
			add(key{models.ConflictRoom, item.RoomID, day, slot}, id)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.dimension != b.dimension {
			return a.dimension > b.dimension
		}
		if a.subject != b.subject {
			return a.subject < b.subject
		}
		if a.day != b.day {
			return a.day < b.day
		}
		return a.slot < b.slot
	})

	conflicts := []models.ScheduleConflict{}
	for _, k := range order {
		ids := groups[k]
		if len(ids) < 2 {
			continue
		}
		conflicts = append(conflicts, models.ScheduleConflict{
			Dimension: k.dimension,
			SubjectID: k.subject,
			Day:       models.Days[k.day-1],
			TimeSlot:  models.TimeSlots[k.slot-1],
			ItemIDs:   ids,
		})
	}
	return conflicts
}
