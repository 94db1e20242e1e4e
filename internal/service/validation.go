package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/schedule-quality-api/internal/models"
)

// registerCalendarValidations adds the teaching_day and time_slot tags.
func registerCalendarValidations(v *validator.Validate) {
	v.RegisterValidation("teaching_day", func(fl validator.FieldLevel) bool {
		return models.Day(fl.Field().String()).Index() > 0
	})
	v.RegisterValidation("time_slot", func(fl validator.FieldLevel) bool {
		return models.TimeSlot(fl.Field().String()).Index() > 0
	})
}

// validRecords keeps the lookup records that pass their struct tags and
// reports how many were dropped.
func validRecords[T any](v *validator.Validate, records []T) ([]T, int) {
	kept := make([]T, 0, len(records))
	for _, r := range records {
		if v.Struct(r) == nil {
			kept = append(kept, r)
		}
	}
	return kept, len(records) - len(kept)
}
