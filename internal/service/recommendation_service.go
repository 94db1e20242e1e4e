package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

// MaxRecommendations caps the ranked list returned per course.
const MaxRecommendations = 5

const recommendationCachePrefix = "recommendations"

type batchScorer interface {
	ScoreBatchWithBackend(cs []scoring.Candidate) ([]float64, scoring.Backend)
	ActiveBackend() scoring.Backend
}

type recommendationEngine interface {
	batchScorer
	ModelVersion() string
}

type recommendationCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// RecommendationConfig governs ranking and caching.
type RecommendationConfig struct {
	TopK     int
	CacheTTL time.Duration
}

// RecommendationService ranks candidate placements for courses.
type RecommendationService struct {
	engine    recommendationEngine
	cache     recommendationCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RecommendationConfig
}

// NewRecommendationService wires the recommendation generator. cache may be nil.
func NewRecommendationService(engine recommendationEngine, cache recommendationCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RecommendationConfig) *RecommendationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 || cfg.TopK > MaxRecommendations {
		cfg.TopK = MaxRecommendations
	}
	registerCalendarValidations(validate)
	return &RecommendationService{engine: engine, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// Recommend returns up to TopK placements for the course, best first. No
// eligible teacher or room yields an empty list.
func (s *RecommendationService) Recommend(ctx context.Context, req dto.RecommendRequest) (*dto.RecommendResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recommendation request")
	}
	return s.recommendCached(ctx, req)
}

// RecommendAll runs Recommend for every course, sharing teachers, rooms and constraints.
func (s *RecommendationService) RecommendAll(ctx context.Context, req dto.BatchRecommendRequest) (*dto.BatchRecommendResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch recommendation request")
	}
	results := make([]dto.RecommendResponse, 0, len(req.Courses))
	for _, course := range req.Courses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := s.recommendCached(ctx, dto.RecommendRequest{
			Course:      course,
			Teachers:    req.Teachers,
			Rooms:       req.Rooms,
			Constraints: req.Constraints,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, *resp)
	}
	return &dto.BatchRecommendResponse{Results: results}, nil
}

// InvalidateCache drops every cached recommendation list.
func (s *RecommendationService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidatePrefix(ctx, recommendationCachePrefix+":")
}

func (s *RecommendationService) recommendCached(ctx context.Context, req dto.RecommendRequest) (*dto.RecommendResponse, error) {
	version := s.engine.ModelVersion()
	key := ""
	if s.cache != nil {
		if fp, err := fingerprint(req); err == nil {
			key = makeCacheKey(recommendationCachePrefix, version, fp)
		} else {
			s.logger.Warn("skip recommendation cache", zap.Error(err))
		}
	}
	if key != "" {
		var cached dto.RecommendResponse
		if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
			s.logger.Warn("recommendation cache lookup failed", zap.Error(err))
		} else if hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	resp := s.recommend(req)
	if key != "" && s.engine.ModelVersion() == version {
		if err := s.cache.Set(ctx, key, resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache recommendations", zap.Error(err))
		}
	}
	return resp, nil
}

// placement is one (teacher, room, slot) group whose days are scored together.
type placement struct {
	teacher models.Teacher
	room    models.Room
	slot    models.TimeSlot
	first   int
	days    []models.Day
}

func (s *RecommendationService) recommend(req dto.RecommendRequest) *dto.RecommendResponse {
	course := req.Course
	cons := req.Constraints
	resp := &dto.RecommendResponse{
		CourseID:        course.ID,
		Recommendations: []models.Recommendation{},
		Backend:         string(s.engine.ActiveBackend()),
	}

	validTeachers, droppedTeachers := validRecords(s.validator, req.Teachers)
	validRooms, droppedRooms := validRecords(s.validator, req.Rooms)
	if dropped := droppedTeachers + droppedRooms; dropped > 0 {
		resp.SkippedRecords = dropped
		s.logger.Debug("skipping invalid resources",
			zap.String("course_id", course.ID),
			zap.Int("teachers", droppedTeachers),
			zap.Int("rooms", droppedRooms),
		)
	}

	teachers := eligibleTeachers(course, validTeachers)
	rooms := eligibleRooms(course, validRooms)
	if len(teachers) == 0 || len(rooms) == 0 {
		s.logger.Debug("no eligible resources",
			zap.String("course_id", course.ID),
			zap.Int("teachers", len(teachers)),
			zap.Int("rooms", len(rooms)),
		)
		return resp
	}

	days := allowedDays(cons.Days)
	slots := allowedSlots(cons.TimeSlots)
	occupancy := newOccupancy(cons.Existing)

	var groups []placement
	var candidates []scoring.Candidate
	for _, t := range teachers {
		for _, r := range rooms {
			for _, slot := range slots {
				group := placement{teacher: t, room: r, slot: slot, first: len(candidates)}
				for _, day := range days {
					if occupancy.busy(t.ID, r.ID, day, slot) {
						continue
					}
					group.days = append(group.days, day)
					candidates = append(candidates, scoring.Candidate{
						Course:   course,
						Teacher:  t,
						Room:     r,
						Day:      day,
						TimeSlot: slot,
						Context:  cons.Context,
					})
				}
				if len(group.days) > 0 {
					groups = append(groups, group)
				}
			}
		}
	}
	if len(candidates) == 0 {
		return resp
	}

	start := time.Now()
	scores, backend := s.engine.ScoreBatchWithBackend(candidates)
	s.metrics.ObserveScoring("recommend", string(backend), scores, time.Since(start))
	resp.Backend = string(backend)

	recs := make([]models.Recommendation, 0, len(groups))
	for _, g := range groups {
		bestIdx := 0
		for i := 1; i < len(g.days); i++ {
			if betterDay(scores[g.first+i], scores[g.first+bestIdx], occupancy.load(g.teacher.ID, g.room.ID, g.days[i]), occupancy.load(g.teacher.ID, g.room.ID, g.days[bestIdx])) {
				bestIdx = i
			}
		}
		score := scores[g.first+bestIdx]
		recs = append(recs, models.Recommendation{
			CourseID:   course.ID,
			TeacherID:  g.teacher.ID,
			RoomID:     g.room.ID,
			Day:        g.days[bestIdx],
			TimeSlot:   g.slot,
			Score:      score,
			Confidence: int(math.Round(score * 100)),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return rankBefore(recs[i], recs[j]) })

	topK := s.cfg.TopK
	if cons.TopK > 0 && cons.TopK < topK {
		topK = cons.TopK
	}
	if len(recs) > topK {
		recs = recs[:topK]
	}
	resp.Recommendations = recs
	return resp
}

// betterDay prefers the higher score, then the lighter day. Days are visited in
// calendar order so an exact tie keeps the earlier day.
func betterDay(score, bestScore float64, load, bestLoad int) bool {
	if score != bestScore {
		return score > bestScore
	}
	return load < bestLoad
}

func rankBefore(a, b models.Recommendation) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.TeacherID != b.TeacherID {
		return a.TeacherID < b.TeacherID
	}
	if a.RoomID != b.RoomID {
		return a.RoomID < b.RoomID
	}
	if ai, bi := a.TimeSlot.Index(), b.TimeSlot.Index(); ai != bi {
		return ai < bi
	}
	return a.Day.Index() < b.Day.Index()
}

func eligibleTeachers(course models.Course, teachers []models.Teacher) []models.Teacher {
	result := make([]models.Teacher, 0, len(teachers))
	for _, t := range teachers {
		if t.CanTeachYear(course.Year) && course.MatchesExpertise(t.ExpertiseKeywords()) {
			result = append(result, t)
		}
	}
	return result
}

func eligibleRooms(course models.Course, rooms []models.Room) []models.Room {
	result := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Capacity < course.Capacity {
			continue
		}
		if match, known := course.SuitsRoom(r); known && !match {
			continue
		}
		result = append(result, r)
	}
	return result
}

func allowedDays(requested []models.Day) []models.Day {
	if len(requested) == 0 {
		return models.Days
	}
	seen := make(map[int]bool, len(requested))
	for _, d := range requested {
		if idx := d.Index(); idx > 0 {
			seen[idx] = true
		}
	}
	days := make([]models.Day, 0, len(seen))
	for i, d := range models.Days {
		if seen[i+1] {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return models.Days
	}
	return days
}

func allowedSlots(requested []models.TimeSlot) []models.TimeSlot {
	if len(requested) == 0 {
		return models.TimeSlots
	}
	seen := make(map[int]bool, len(requested))
	for _, slot := range requested {
		if idx := slot.Index(); idx > 0 {
			seen[idx] = true
		}
	}
	slots := make([]models.TimeSlot, 0, len(seen))
	for i, slot := range models.TimeSlots {
		if seen[i+1] {
			slots = append(slots, slot)
		}
	}
	if len(slots) == 0 {
		return models.TimeSlots
	}
	return slots
}

type cell struct {
	day  int
	slot int
}

// occupancy indexes existing assignments by teacher and room.
type occupancy struct {
	teacherCells map[string]map[cell]bool
	roomCells    map[string]map[cell]bool
	teacherDays  map[string]map[int]int
	roomDays     map[string]map[int]int
}

func newOccupancy(items []models.ScheduleItem) *occupancy {
	o := &occupancy{
		teacherCells: make(map[string]map[cell]bool),
		roomCells:    make(map[string]map[cell]bool),
		teacherDays:  make(map[string]map[int]int),
		roomDays:     make(map[string]map[int]int),
	}
	for _, item := range items {
		day := item.Day.Index()
		if day == 0 {
			continue
		}
		if item.TeacherID != "" {
			bumpDay(o.teacherDays, item.TeacherID, day)
		}
		if item.RoomID != "" {
			bumpDay(o.roomDays, item.RoomID, day)
		}
		slot := item.TimeSlot.Index()
		if slot == 0 {
			continue
		}
		c := cell{day: day, slot: slot}
		if item.TeacherID != "" {
			markCell(o.teacherCells, item.TeacherID, c)
		}
		if item.RoomID != "" {
			markCell(o.roomCells, item.RoomID, c)
		}
	}
	return o
}

func (o *occupancy) busy(teacherID, roomID string, day models.Day, slot models.TimeSlot) bool {
	c := cell{day: day.Index(), slot: slot.Index()}
	return o.teacherCells[teacherID][c] || o.roomCells[roomID][c]
}

func (o *occupancy) load(teacherID, roomID string, day models.Day) int {
	idx := day.Index()
	return o.teacherDays[teacherID][idx] + o.roomDays[roomID][idx]
}

func markCell(index map[string]map[cell]bool, id string, c cell) {
	if index[id] == nil {
		index[id] = make(map[cell]bool)
	}
	index[id][c] = true
}

func bumpDay(index map[string]map[int]int, id string, day int) {
	if index[id] == nil {
		index[id] = make(map[int]int)
	}
	index[id][day]++
}
