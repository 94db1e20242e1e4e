package models

import (
	"strings"
	"unicode"
)

// LectureType distinguishes theory sessions from lab sessions.
type LectureType string

const (
	LectureTheory LectureType = "theory"
	LectureLab    LectureType = "lab"
)

// RoomType classifies teaching spaces.
type RoomType string

const (
	RoomClassroom   RoomType = "classroom"
	RoomLab         RoomType = "lab"
	RoomLectureHall RoomType = "lecture_hall"
)

// Course is a unit of teaching demand supplied by the timetable builder.
type Course struct {
	ID                 string      `json:"id" validate:"required"`
	Name               string      `json:"name"`
	Duration           int         `json:"duration" validate:"gte=0"`
	Capacity           int         `json:"capacity" validate:"gte=0"`
	Enrollment         int         `json:"enrollment" validate:"gte=0"`
	Year               int         `json:"year" validate:"gte=0"`
	Branch             string      `json:"branch"`
	Program            string      `json:"program"`
	Credits            int         `json:"credits" validate:"gte=0"`
	Difficulty         float64     `json:"difficulty"`
	Priority           float64     `json:"priority"`
	PreferredTimeSlots []TimeSlot  `json:"preferredTimeSlots"`
	Prerequisites      []string    `json:"prerequisites"`
	LectureType        LectureType `json:"lectureType"`
	Keywords           []string    `json:"keywords"`
}

// Room is a bookable teaching space.
type Room struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name"`
	Capacity    int      `json:"capacity" validate:"gte=0"`
	Type        RoomType `json:"type"`
	Utilization float64  `json:"utilization"`
}

// EffectiveDifficulty returns the supplied difficulty or derives one from year and credits.
func (c Course) EffectiveDifficulty() float64 {
	if c.Difficulty > 0 {
		return c.Difficulty
	}
	return clampRange(float64(c.Year*2+c.Credits), 1, 10)
}

// EffectivePriority returns the supplied priority or derives one from credits,
// lecture type and prerequisites.
func (c Course) EffectivePriority() float64 {
	if c.Priority > 0 {
		return c.Priority
	}
	p := float64(c.Credits * 2)
	if c.LectureType == LectureLab {
		p++
	}
	if len(c.Prerequisites) > 0 {
		p++
	}
	return clampRange(p, 1, 10)
}

// EffectiveEnrollment falls back to capacity when no enrollment figure is known.
func (c Course) EffectiveEnrollment() int {
	if c.Enrollment > 0 {
		return c.Enrollment
	}
	return c.Capacity
}

// SubjectKeywords returns lowercase name tokens of three or more characters plus explicit keywords.
func (c Course) SubjectKeywords() []string {
	seen := make(map[string]struct{})
	var result []string
	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			return
		}
		if _, ok := seen[kw]; ok {
			return
		}
		seen[kw] = struct{}{}
		result = append(result, kw)
	}
	tokens := strings.FieldsFunc(c.Name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if len([]rune(tok)) >= 3 {
			add(tok)
		}
	}
	for _, kw := range c.Keywords {
		add(kw)
	}
	return result
}

// MatchesExpertise reports whether any expertise keyword equals a subject keyword
// or appears as a phrase inside the course name.
func (c Course) MatchesExpertise(expertise []string) bool {
	if len(expertise) == 0 {
		return false
	}
	name := strings.ToLower(c.Name)
	keywords := c.SubjectKeywords()
	for _, raw := range expertise {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if kw == "" {
			continue
		}
		if strings.Contains(name, kw) {
			return true
		}
		for _, subject := range keywords {
			if subject == kw {
				return true
			}
		}
	}
	return false
}

// PrefersSlot reports whether the slot is among the preferred slots.
func (c Course) PrefersSlot(slot TimeSlot) bool {
	idx := slot.Index()
	if idx == 0 {
		return false
	}
	for _, preferred := range c.PreferredTimeSlots {
		if preferred.Index() == idx {
			return true
		}
	}
	return false
}

// SuitsRoom reports whether the room type is right for the lecture type. The
// second result is false when either side is unknown.
func (c Course) SuitsRoom(room Room) (match bool, known bool) {
	if c.LectureType == "" || room.Type == "" {
		return false, false
	}
	switch c.LectureType {
	case LectureLab:
		return room.Type == RoomLab, true
	case LectureTheory:
		return room.Type == RoomClassroom || room.Type == RoomLectureHall, true
	}
	return false, false
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
