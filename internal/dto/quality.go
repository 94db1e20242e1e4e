package dto

import (
	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
)

// ScoreRequest carries one fully resolved assignment.
type ScoreRequest struct {
	Course   models.Course          `json:"course"`
	Teacher  models.Teacher         `json:"teacher"`
	Room     models.Room            `json:"room"`
	Day      models.Day             `json:"day" validate:"omitempty,teaching_day"`
	TimeSlot models.TimeSlot        `json:"timeSlot" validate:"omitempty,time_slot"`
	Context  scoring.FeatureContext `json:"context"`
	Explain  bool                   `json:"explain"`
}

// ScoreResponse is the quality of a single assignment.
type ScoreResponse struct {
	Score       float64              `json:"score"`
	Band        string               `json:"band"`
	Backend     string               `json:"backend"`
	Adjustments []scoring.Adjustment `json:"adjustments,omitempty"`
}

// BatchScoreRequest scores several assignments in one pass.
type BatchScoreRequest struct {
	Items []ScoreRequest `json:"items" validate:"required,min=1,max=5000,dive"`
}

// BatchScoreResponse keeps scores in request order.
type BatchScoreResponse struct {
	Scores  []float64 `json:"scores"`
	Backend string    `json:"backend"`
}

// RecommendConstraints narrows the search space of a recommendation.
type RecommendConstraints struct {
	Days      []models.Day           `json:"days" validate:"omitempty,dive,teaching_day"`
	TimeSlots []models.TimeSlot      `json:"timeSlots" validate:"omitempty,dive,time_slot"`
	Existing  []models.ScheduleItem  `json:"existing"`
	TopK      int                    `json:"topK" validate:"omitempty,min=1"`
	Context   scoring.FeatureContext `json:"context"`
}

// RecommendRequest asks for the best placements of one course.
type RecommendRequest struct {
	Course      models.Course        `json:"course"`
	Teachers    []models.Teacher     `json:"teachers" validate:"max=5000"`
	Rooms       []models.Room        `json:"rooms" validate:"max=5000"`
	Constraints RecommendConstraints `json:"constraints"`
}

// RecommendResponse lists ranked placements for a course. SkippedRecords
// counts teachers and rooms dropped for failing their field rules.
type RecommendResponse struct {
	CourseID        string                  `json:"courseId"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Backend         string                  `json:"backend"`
	Cached          bool                    `json:"cached"`
	SkippedRecords  int                     `json:"skippedRecords,omitempty"`
}

// BatchRecommendRequest shares teachers, rooms and constraints across courses.
type BatchRecommendRequest struct {
	Courses     []models.Course      `json:"courses" validate:"required,min=1,max=200,dive"`
	Teachers    []models.Teacher     `json:"teachers" validate:"max=5000"`
	Rooms       []models.Room        `json:"rooms" validate:"max=5000"`
	Constraints RecommendConstraints `json:"constraints"`
}

// BatchRecommendResponse preserves course order.
type BatchRecommendResponse struct {
	Results []RecommendResponse `json:"results"`
}

// DiagnoseRequest evaluates an existing timetable.
type DiagnoseRequest struct {
	Schedule models.Schedule        `json:"schedule"`
	Courses  []models.Course        `json:"courses" validate:"max=5000"`
	Teachers []models.Teacher       `json:"teachers" validate:"max=5000"`
	Rooms    []models.Room          `json:"rooms" validate:"max=5000"`
	Context  scoring.FeatureContext `json:"context"`
}

// TrainingRequest schedules a background training run.
type TrainingRequest struct {
	Source  models.DatasetSource `json:"source" validate:"omitempty,oneof=synthetic database"`
	Samples int                  `json:"samples" validate:"omitempty,min=10,max=100000"`
	Epochs  int                  `json:"epochs" validate:"omitempty,min=1,max=500"`
	Seed    *int64               `json:"seed"`
}
