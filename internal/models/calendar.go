package models

import (
	"strconv"
	"strings"
)

// Day is a teaching day of the week.
type Day string

const (
	Monday    Day = "MONDAY"
	Tuesday   Day = "TUESDAY"
	Wednesday Day = "WEDNESDAY"
	Thursday  Day = "THURSDAY"
	Friday    Day = "FRIDAY"
)

// Days lists teaching days in calendar order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// TimeSlot is one of the fixed hourly teaching slots.
type TimeSlot string

// TimeSlots lists the daily slots from earliest to latest.
var TimeSlots = []TimeSlot{
	"08:00-09:00",
	"09:00-10:00",
	"10:00-11:00",
	"11:00-12:00",
	"12:00-13:00",
	"13:00-14:00",
	"14:00-15:00",
	"15:00-16:00",
}

var dayNameIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
}

// Index returns the 1-based ordinal of the day, or 0 when it is not a teaching day.
func (d Day) Index() int {
	return dayNameIndex[strings.ToUpper(strings.TrimSpace(string(d)))]
}

// Normalize returns the canonical spelling of the day, or "" when unknown.
func (d Day) Normalize() Day {
	idx := d.Index()
	if idx == 0 {
		return ""
	}
	return Days[idx-1]
}

// Index returns the 1-based ordinal of the slot, or 0 when unknown. Numeric
// strings ("1".."8") are accepted as ordinals.
func (t TimeSlot) Index() int {
	raw := strings.TrimSpace(string(t))
	if raw == "" {
		return 0
	}
	for i, slot := range TimeSlots {
		if string(slot) == raw {
			return i + 1
		}
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 || value > len(TimeSlots) {
		return 0
	}
	return value
}

// Normalize returns the canonical label of the slot, or "" when unknown.
func (t TimeSlot) Normalize() TimeSlot {
	idx := t.Index()
	if idx == 0 {
		return ""
	}
	return TimeSlots[idx-1]
}
