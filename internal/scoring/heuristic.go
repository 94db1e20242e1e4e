package scoring

import (
	"math"

	"github.com/noah-isme/schedule-quality-api/internal/models"
)

const (
	heuristicBase      = 0.5
	expertiseBonus     = 0.2
	expertisePenalty   = -0.1
	experienceStep     = 0.025
	experienceCap      = 0.1
	capacityBonus      = 0.1
	capacityPenalty    = -0.2
	roomTypeBonus      = 0.1
	earlySlotBonus     = 0.1
	lateSlotPenalty    = -0.05
	edgeDayPenalty     = -0.05
	availabilityWeight = 0.1
	earlySlotCutoff    = 2
)

// Adjustment is one rule contribution to a heuristic score.
type Adjustment struct {
	Rule  string  `json:"rule"`
	Delta float64 `json:"delta"`
}

// HeuristicScorer applies fixed, explainable rules. It is always ready.
type HeuristicScorer struct{}

// NewHeuristicScorer constructs the rule-based scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Explain lists the non-zero rule adjustments applied on top of the base score.
func (h *HeuristicScorer) Explain(c Candidate) []Adjustment {
	var adjustments []Adjustment
	add := func(rule string, delta float64) {
		if delta != 0 {
			adjustments = append(adjustments, Adjustment{Rule: rule, Delta: delta})
		}
	}

	if expertise := c.Teacher.ExpertiseKeywords(); len(expertise) > 0 {
		if c.Course.MatchesExpertise(expertise) {
			add("expertise_match", expertiseBonus)
		} else {
			add("expertise_mismatch", expertisePenalty)
		}
	}

	add("teacher_experience", math.Min(float64(len(c.Teacher.TeachableYears))*experienceStep, experienceCap))

	if c.Room.Capacity >= c.Course.Capacity {
		add("room_capacity", capacityBonus)
	} else {
		add("room_capacity", capacityPenalty)
	}

	if match, known := c.Course.SuitsRoom(c.Room); known && match {
		add("room_type_match", roomTypeBonus)
	}

	switch idx := c.TimeSlot.Index(); {
	case idx >= 1 && idx <= earlySlotCutoff:
		add("early_slot", earlySlotBonus)
	case idx == len(models.TimeSlots):
		add("late_slot", lateSlotPenalty)
	}

	switch c.Day.Normalize() {
	case models.Monday, models.Friday:
		add("edge_day", edgeDayPenalty)
	}

	add("teacher_availability", normalizeRatio(teacherAvailability(c.Teacher, c.Day, c.TimeSlot))*availabilityWeight)

	return adjustments
}

// Score returns the clamped sum of the base score and all rule adjustments.
func (h *HeuristicScorer) Score(c Candidate) float64 {
	score := heuristicBase
	for _, adj := range h.Explain(c) {
		score += adj.Delta
	}
	return clamp01(score)
}

func (h *HeuristicScorer) ScoreBatch(cs []Candidate) []float64 {
	scores := make([]float64, len(cs))
	for i, c := range cs {
		scores[i] = h.Score(c)
	}
	return scores
}

// Load is a no-op; the heuristic has no weights.
func (h *HeuristicScorer) Load(string) error { return nil }

func (h *HeuristicScorer) Ready() bool { return true }

func (h *HeuristicScorer) Backend() Backend { return BackendHeuristic }
