package models

// ScheduleItem is one scheduled occurrence of a course. References are resolved
// leniently; items pointing at unknown records are skipped, not rejected.
type ScheduleItem struct {
	ID        string   `json:"id"`
	CourseID  string   `json:"courseId"`
	TeacherID string   `json:"teacherId"`
	RoomID    string   `json:"roomId"`
	Day       Day      `json:"day"`
	TimeSlot  TimeSlot `json:"timeSlot"`
}

// Schedule is an ordered timetable snapshot.
type Schedule struct {
	ID    string         `json:"id"`
	Items []ScheduleItem `json:"items"`
}

// ScheduleConflict describes two items double-booking a teacher or room.
type ScheduleConflict struct {
	Dimension string   `json:"dimension"`
	SubjectID string   `json:"subjectId"`
	Day       Day      `json:"day"`
	TimeSlot  TimeSlot `json:"timeSlot"`
	ItemIDs   []string `json:"itemIds"`
}

// Conflict dimensions.
const (
	ConflictTeacher = "TEACHER"
	ConflictRoom    = "ROOM"
)
