package models

import "strings"

// Teacher is an instructor available for assignment.
type Teacher struct {
	ID              string                    `json:"id" validate:"required"`
	Name            string                    `json:"name"`
	TeachableYears  []int                     `json:"teachableYears"`
	Expertise       []string                  `json:"expertise"`
	Availability    map[Day]map[TimeSlot]bool `json:"availability,omitempty"`
	Workload        float64                   `json:"workload"`
	AssignmentCount int                       `json:"assignmentCount"`
}

// CanTeachYear reports whether the year is among the teacher's teachable years.
func (t Teacher) CanTeachYear(year int) bool {
	for _, y := range t.TeachableYears {
		if y == year {
			return true
		}
	}
	return false
}

// ExpertiseKeywords returns the lowercased, non-empty expertise entries.
func (t Teacher) ExpertiseKeywords() []string {
	result := make([]string, 0, len(t.Expertise))
	for _, raw := range t.Expertise {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if kw != "" {
			result = append(result, kw)
		}
	}
	return result
}

// HasAvailability reports whether any availability grid was supplied.
func (t Teacher) HasAvailability() bool {
	return len(t.Availability) > 0
}

// AvailableAt reports availability for a concrete day and slot. Grid keys are
// matched by ordinal so "monday"/"MONDAY" and "1"/"08:00-09:00" are equivalent;
// cells that are absent count as unavailable.
func (t Teacher) AvailableAt(day Day, slot TimeSlot) bool {
	dayIdx, slotIdx := day.Index(), slot.Index()
	if dayIdx == 0 || slotIdx == 0 {
		return false
	}
	for d, slots := range t.Availability {
		if d.Index() != dayIdx {
			continue
		}
		for s, ok := range slots {
			if ok && s.Index() == slotIdx {
				return true
			}
		}
	}
	return false
}

// AvailableCount returns how many of the given day/slot cells are available.
func (t Teacher) AvailableCount(days []Day, slots []TimeSlot) int {
	count := 0
	for _, d := range days {
		for _, s := range slots {
			if t.AvailableAt(d, s) {
				count++
			}
		}
	}
	return count
}
