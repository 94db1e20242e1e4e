// Package scoring turns proposed timetable assignments into bounded quality scores.
package scoring

import "github.com/noah-isme/schedule-quality-api/internal/models"

// FeatureContext carries signals that live outside the course/teacher/room records.
type FeatureContext struct {
	SemesterProgress *float64          `json:"semesterProgress,omitempty"`
	SuccessRates     map[string]float64 `json:"successRates,omitempty"`
	RoomDistances    map[string]float64 `json:"roomDistances,omitempty"`
}

// Candidate is a fully resolved assignment ready to be scored.
type Candidate struct {
	Course   models.Course
	Teacher  models.Teacher
	Room     models.Room
	Day      models.Day
	TimeSlot models.TimeSlot
	Context  FeatureContext
}
