package models

import "time"

// SuggestionKind describes the remedy proposed for a weak assignment.
type SuggestionKind string

const (
	SuggestionReschedule SuggestionKind = "reschedule"
	SuggestionImprove    SuggestionKind = "improve"
)

// SuggestionPriority ranks suggestions for the caller.
type SuggestionPriority string

const (
	PriorityHigh   SuggestionPriority = "high"
	PriorityMedium SuggestionPriority = "medium"
	PriorityLow    SuggestionPriority = "low"
)

// Suggestion flags a low-quality item of an existing timetable.
type Suggestion struct {
	Kind         SuggestionKind     `json:"kind"`
	Priority     SuggestionPriority `json:"priority"`
	Item         ScheduleItem       `json:"item"`
	CurrentScore float64            `json:"currentScore"`
	Reason       string             `json:"reason"`
	Factors      []string           `json:"factors"`
}

// InsightType identifies the aggregate an insight was computed over.
type InsightType string

const (
	InsightTeacherWorkload InsightType = "teacher_workload"
	InsightRoomUtilization InsightType = "room_utilization"
)

// Insight summarises weak average quality for a teacher or room.
type Insight struct {
	Type         InsightType        `json:"type"`
	SubjectID    string             `json:"subjectId"`
	AverageScore float64            `json:"averageScore"`
	ItemCount    int                `json:"itemCount"`
	Priority     SuggestionPriority `json:"priority"`
	Message      string             `json:"message"`
}

// Recommendation is a ranked candidate placement for a course.
type Recommendation struct {
	CourseID   string   `json:"courseId"`
	TeacherID  string   `json:"teacherId"`
	RoomID     string   `json:"roomId"`
	Day        Day      `json:"day"`
	TimeSlot   TimeSlot `json:"timeSlot"`
	Score      float64  `json:"score"`
	Confidence int      `json:"confidence"`
}

// Diagnosis is the outcome of scoring a whole timetable. SkippedRecords
// counts lookup courses, teachers and rooms dropped for failing their field
// rules; items that referenced them land in SkippedItems.
type Diagnosis struct {
	OverallScore   float64            `json:"overallScore"`
	Suggestions    []Suggestion       `json:"suggestions"`
	Insights       []Insight          `json:"insights"`
	Conflicts      []ScheduleConflict `json:"conflicts"`
	ScoredItems    int                `json:"scoredItems"`
	SkippedItems   int                `json:"skippedItems"`
	SkippedRecords int                `json:"skippedRecords"`
	Backend        string             `json:"backend"`
	GeneratedAt    time.Time          `json:"generatedAt"`
}

// EngineStatus reports scorer readiness and lightweight usage counters.
type EngineStatus struct {
	Ready     bool          `json:"ready"`
	Backend   string        `json:"backend"`
	Loading   bool          `json:"loading"`
	ModelPath string        `json:"modelPath,omitempty"`
	Model     *ModelMetrics `json:"model,omitempty"`
	Metrics   SystemMetrics `json:"metrics"`
}

// SystemMetrics aggregates process-level counters for status reporting.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	ScoredItems              uint64    `json:"scoredItems"`
	AverageScoringLatencyMs  float64   `json:"averageScoringLatencyMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
