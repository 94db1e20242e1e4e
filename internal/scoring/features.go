package scoring

import "github.com/noah-isme/schedule-quality-api/internal/models"

// FeatureCount is the fixed arity of a feature vector.
const FeatureCount = 15

// Missing marks a categorical feature whose input was absent.
const Missing = -1.0

// Feature indexes a position in a FeatureVector.
type Feature int

const (
	FeatureDuration Feature = iota
	FeatureCapacity
	FeatureExperience
	FeatureTimePreference
	FeatureRoomTypeMatch
	FeatureWorkload
	FeatureEnrollment
	FeaturePriority
	FeatureRoomDistance
	FeatureAvailability
	FeatureDifficulty
	FeatureTimeOfDay
	FeatureDayOfWeek
	FeatureSemesterProgress
	FeatureSuccessRate
)

var featureNames = [FeatureCount]string{
	"course_duration",
	"course_capacity",
	"teacher_experience",
	"time_preference_match",
	"room_type_match",
	"teacher_workload",
	"enrollment",
	"course_priority",
	"room_distance",
	"teacher_availability",
	"course_difficulty",
	"time_of_day",
	"day_of_week",
	"semester_progress",
	"historical_success_rate",
}

func (f Feature) String() string {
	if f < 0 || int(f) >= FeatureCount {
		return "unknown"
	}
	return featureNames[f]
}

// FeatureNames returns the feature names in vector order.
func FeatureNames() []string {
	names := make([]string, FeatureCount)
	copy(names, featureNames[:])
	return names
}

// FeatureVector holds one value per Feature.
type FeatureVector [FeatureCount]float64

// Extractor builds raw feature vectors. It has no state and is safe for concurrent use.
type Extractor struct{}

// Extract returns the raw (un-normalised) features of a candidate.
func (Extractor) Extract(c Candidate) FeatureVector {
	var v FeatureVector

	v[FeatureDuration] = float64(c.Course.Duration)
	v[FeatureCapacity] = float64(c.Course.Capacity)
	v[FeatureExperience] = float64(len(c.Teacher.TeachableYears))
	v[FeatureTimePreference] = timePreference(c.Course, c.TimeSlot)
	v[FeatureRoomTypeMatch] = roomTypeMatch(c.Course, c.Room)
	v[FeatureWorkload] = c.Teacher.Workload
	v[FeatureEnrollment] = float64(c.Course.EffectiveEnrollment())
	v[FeaturePriority] = c.Course.EffectivePriority()
	v[FeatureRoomDistance] = c.Context.RoomDistances[c.Room.ID]
	v[FeatureAvailability] = teacherAvailability(c.Teacher, c.Day, c.TimeSlot)
	v[FeatureDifficulty] = c.Course.EffectiveDifficulty()
	v[FeatureTimeOfDay] = ordinal(c.TimeSlot.Index())
	v[FeatureDayOfWeek] = ordinal(c.Day.Index())
	v[FeatureSemesterProgress] = Missing
	if c.Context.SemesterProgress != nil {
		v[FeatureSemesterProgress] = *c.Context.SemesterProgress
	}
	v[FeatureSuccessRate] = Missing
	if rate, ok := c.Context.SuccessRates[c.Course.ID]; ok {
		v[FeatureSuccessRate] = rate
	}

	return v
}

func timePreference(course models.Course, slot models.TimeSlot) float64 {
	if len(course.PreferredTimeSlots) == 0 {
		return 0.5
	}
	if slot.Index() == 0 {
		return Missing
	}
	if course.PrefersSlot(slot) {
		return 1
	}
	return 0
}

func roomTypeMatch(course models.Course, room models.Room) float64 {
	match, known := course.SuitsRoom(room)
	if !known {
		return Missing
	}
	if match {
		return 1
	}
	return 0
}

// teacherAvailability is 1/0 for a concrete day+slot and the available fraction
// of the relevant row, column or whole grid when either coordinate is unknown.
func teacherAvailability(t models.Teacher, day models.Day, slot models.TimeSlot) float64 {
	if !t.HasAvailability() {
		return Missing
	}
	dayKnown, slotKnown := day.Index() > 0, slot.Index() > 0
	switch {
	case dayKnown && slotKnown:
		if t.AvailableAt(day, slot) {
			return 1
		}
		return 0
	case dayKnown:
		return float64(t.AvailableCount([]models.Day{day}, models.TimeSlots)) / float64(len(models.TimeSlots))
	case slotKnown:
		return float64(t.AvailableCount(models.Days, []models.TimeSlot{slot})) / float64(len(models.Days))
	default:
		return float64(t.AvailableCount(models.Days, models.TimeSlots)) / float64(len(models.Days)*len(models.TimeSlots))
	}
}

func ordinal(idx int) float64 {
	if idx == 0 {
		return Missing
	}
	return float64(idx)
}
