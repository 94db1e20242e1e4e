package scoring

import "github.com/noah-isme/schedule-quality-api/internal/models"

func goodCandidate() Candidate {
	return Candidate{
		Course: models.Course{
			ID:          "C-DS",
			Name:        "Data Structures",
			Duration:    60,
			Capacity:    30,
			Year:        2,
			Credits:     3,
			LectureType: models.LectureTheory,
		},
		Teacher: models.Teacher{
			ID:             "T-1",
			TeachableYears: []int{2},
			Expertise:      []string{"Data Structures"},
			Availability: map[models.Day]map[models.TimeSlot]bool{
				models.Tuesday: {"08:00-09:00": true},
			},
		},
		Room:     models.Room{ID: "R-1", Capacity: 30, Type: models.RoomClassroom},
		Day:      models.Tuesday,
		TimeSlot: "08:00-09:00",
	}
}

func poorCandidate() Candidate {
	return Candidate{
		Course: models.Course{
			ID:          "C-DS",
			Name:        "Data Structures",
			Duration:    60,
			Capacity:    30,
			Year:        2,
			Credits:     3,
			LectureType: models.LectureTheory,
		},
		Teacher: models.Teacher{
			ID:             "T-2",
			TeachableYears: []int{1},
			Expertise:      []string{"chemistry"},
		},
		Room:     models.Room{ID: "R-2", Capacity: 10, Type: models.RoomLab},
		Day:      models.Friday,
		TimeSlot: "15:00-16:00",
	}
}
