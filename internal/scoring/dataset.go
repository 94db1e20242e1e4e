package scoring

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

// Split is a shuffled train/validation/test partition.
type Split struct {
	Train      []models.TrainingSample
	Validation []models.TrainingSample
	Test       []models.TrainingSample
}

// SplitDataset shuffles a copy of samples and cuts it 70/15/15. Sizes use
// integer arithmetic; the test split takes the remainder.
func SplitDataset(samples []models.TrainingSample, rng *rand.Rand) Split {
	shuffled := append([]models.TrainingSample(nil), samples...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := len(shuffled)
	trainEnd := n * 70 / 100
	valEnd := trainEnd + n*15/100
	return Split{
		Train:      shuffled[:trainEnd],
		Validation: shuffled[trainEnd:valEnd],
		Test:       shuffled[valEnd:],
	}
}

// ValidateSamples checks shape and label range of every sample.
func ValidateSamples(samples []models.TrainingSample) error {
	for i, s := range samples {
		if len(s.Features) != FeatureCount {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sample %d has %d features, want %d", i, len(s.Features), FeatureCount))
		}
		if !allFinite(s.Features) || !allFinite([]float64{s.Label}) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sample %d contains non-finite values", i))
		}
		if s.Label < 0 || s.Label > 1 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sample %d label %.3f outside [0,1]", i, s.Label))
		}
	}
	return nil
}

var (
	syntheticCourseNames = []string{
		"Data Structures", "Database Systems", "Operating Systems", "Linear Algebra",
		"Organic Chemistry", "Microbiology", "Classical Mechanics", "Calculus",
		"Computer Networks", "Software Engineering", "Digital Electronics", "Statistics",
	}
	syntheticExpertise = []string{
		"data structures", "database", "operating systems", "algebra", "chemistry",
		"microbiology", "mechanics", "calculus", "networks", "software", "electronics", "statistics",
	}
	syntheticDurations = []int{50, 60, 90, 120}
	syntheticRoomTypes = []models.RoomType{models.RoomClassroom, models.RoomLab, models.RoomLectureHall, ""}
)

const syntheticNoise = 0.05

// SyntheticDataset generates n candidates at random and labels them with the
// heuristic score plus Gaussian noise. The same seed yields the same samples.
func SyntheticDataset(n int, seed int64) []models.TrainingSample {
	rng := rand.New(rand.NewSource(seed))
	heuristic := NewHeuristicScorer()
	samples := make([]models.TrainingSample, 0, n)
	for i := 0; i < n; i++ {
		c := randomCandidate(rng)
		label := clamp01(heuristic.Score(c) + rng.NormFloat64()*syntheticNoise)
		v := Vectorize(c)
		samples = append(samples, models.TrainingSample{
			Features: append([]float64(nil), v[:]...),
			Label:    label,
		})
	}
	return samples
}

func randomCandidate(rng *rand.Rand) Candidate {
	course := models.Course{
		ID:       fmt.Sprintf("C%d", rng.Intn(1000)),
		Name:     syntheticCourseNames[rng.Intn(len(syntheticCourseNames))],
		Duration: syntheticDurations[rng.Intn(len(syntheticDurations))],
		Capacity: 10 + rng.Intn(111),
		Year:     1 + rng.Intn(4),
		Credits:  1 + rng.Intn(4),
	}
	if rng.Intn(4) == 0 {
		course.LectureType = models.LectureLab
	} else {
		course.LectureType = models.LectureTheory
	}
	if rng.Intn(3) == 0 {
		course.Prerequisites = []string{"P1"}
	}
	for _, slot := range models.TimeSlots {
		if rng.Intn(5) == 0 {
			course.PreferredTimeSlots = append(course.PreferredTimeSlots, slot)
		}
	}
	course.Enrollment = course.Capacity - rng.Intn(course.Capacity/2+1)

	teacher := models.Teacher{
		ID:       fmt.Sprintf("T%d", rng.Intn(200)),
		Workload: float64(rng.Intn(41)),
	}
	for year := 1; year <= 4; year++ {
		if rng.Intn(2) == 0 {
			teacher.TeachableYears = append(teacher.TeachableYears, year)
		}
	}
	for j := 0; j < 1+rng.Intn(3); j++ {
		teacher.Expertise = append(teacher.Expertise, syntheticExpertise[rng.Intn(len(syntheticExpertise))])
	}
	if rng.Intn(5) != 0 {
		teacher.Availability = make(map[models.Day]map[models.TimeSlot]bool, len(models.Days))
		for _, day := range models.Days {
			teacher.Availability[day] = make(map[models.TimeSlot]bool, len(models.TimeSlots))
			for _, slot := range models.TimeSlots {
				teacher.Availability[day][slot] = rng.Float64() < 0.7
			}
		}
	}

	room := models.Room{
		ID:       fmt.Sprintf("R%d", rng.Intn(50)),
		Capacity: 10 + rng.Intn(141),
		Type:     syntheticRoomTypes[rng.Intn(len(syntheticRoomTypes))],
	}

	progress := rng.Float64()
	c := Candidate{
		Course:   course,
		Teacher:  teacher,
		Room:     room,
		Day:      models.Days[rng.Intn(len(models.Days))],
		TimeSlot: models.TimeSlots[rng.Intn(len(models.TimeSlots))],
		Context: FeatureContext{
			SemesterProgress: &progress,
			RoomDistances:    map[string]float64{room.ID: rng.Float64() * 10},
		},
	}
	if rng.Intn(2) == 0 {
		c.Context.SuccessRates = map[string]float64{course.ID: 0.5 + rng.Float64()*0.5}
	}
	return c
}

// csvSample is one CSV row: the fifteen normalised features followed by the label.
type csvSample struct {
	CourseDuration        float64 `csv:"course_duration"`
	CourseCapacity        float64 `csv:"course_capacity"`
	TeacherExperience     float64 `csv:"teacher_experience"`
	TimePreferenceMatch   float64 `csv:"time_preference_match"`
	RoomTypeMatch         float64 `csv:"room_type_match"`
	TeacherWorkload       float64 `csv:"teacher_workload"`
	Enrollment            float64 `csv:"enrollment"`
	CoursePriority        float64 `csv:"course_priority"`
	RoomDistance          float64 `csv:"room_distance"`
	TeacherAvailability   float64 `csv:"teacher_availability"`
	CourseDifficulty      float64 `csv:"course_difficulty"`
	TimeOfDay             float64 `csv:"time_of_day"`
	DayOfWeek             float64 `csv:"day_of_week"`
	SemesterProgress      float64 `csv:"semester_progress"`
	HistoricalSuccessRate float64 `csv:"historical_success_rate"`
	Label                 float64 `csv:"label"`
}

func (r csvSample) features() []float64 {
	return []float64{
		r.CourseDuration, r.CourseCapacity, r.TeacherExperience, r.TimePreferenceMatch,
		r.RoomTypeMatch, r.TeacherWorkload, r.Enrollment, r.CoursePriority, r.RoomDistance,
		r.TeacherAvailability, r.CourseDifficulty, r.TimeOfDay, r.DayOfWeek,
		r.SemesterProgress, r.HistoricalSuccessRate,
	}
}

func newCSVSample(s models.TrainingSample) *csvSample {
	f := s.Features
	return &csvSample{
		CourseDuration:        f[FeatureDuration],
		CourseCapacity:        f[FeatureCapacity],
		TeacherExperience:     f[FeatureExperience],
		TimePreferenceMatch:   f[FeatureTimePreference],
		RoomTypeMatch:         f[FeatureRoomTypeMatch],
		TeacherWorkload:       f[FeatureWorkload],
		Enrollment:            f[FeatureEnrollment],
		CoursePriority:        f[FeaturePriority],
		RoomDistance:          f[FeatureRoomDistance],
		TeacherAvailability:   f[FeatureAvailability],
		CourseDifficulty:      f[FeatureDifficulty],
		TimeOfDay:             f[FeatureTimeOfDay],
		DayOfWeek:             f[FeatureDayOfWeek],
		SemesterProgress:      f[FeatureSemesterProgress],
		HistoricalSuccessRate: f[FeatureSuccessRate],
		Label:                 s.Label,
	}
}

// ReadCSVDataset parses a headered CSV of normalised features and labels.
func ReadCSVDataset(r io.Reader) ([]models.TrainingSample, error) {
	var rows []*csvSample
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "parse training csv")
	}
	samples := make([]models.TrainingSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, models.TrainingSample{Features: row.features(), Label: row.Label})
	}
	if err := ValidateSamples(samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// WriteCSVDataset writes samples in the layout ReadCSVDataset accepts.
func WriteCSVDataset(w io.Writer, samples []models.TrainingSample) error {
	if err := ValidateSamples(samples); err != nil {
		return err
	}
	rows := make([]*csvSample, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, newCSVSample(s))
	}
	return gocsv.Marshal(rows, w)
}
