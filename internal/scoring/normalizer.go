package scoring

import (
	"math"

	"github.com/noah-isme/schedule-quality-api/internal/models"
)

type featureKind int

const (
	kindScaled featureKind = iota
	kindRatio
	kindDayOrdinal
	kindSlotOrdinal
)

type featureSpec struct {
	kind featureKind
	max  float64
}

var featureSpecs = [FeatureCount]featureSpec{
	FeatureDuration:         {kind: kindScaled, max: 120},
	FeatureCapacity:         {kind: kindScaled, max: 100},
	FeatureExperience:       {kind: kindScaled, max: 10},
	FeatureTimePreference:   {kind: kindRatio},
	FeatureRoomTypeMatch:    {kind: kindRatio},
	FeatureWorkload:         {kind: kindScaled, max: 40},
	FeatureEnrollment:       {kind: kindScaled, max: 100},
	FeaturePriority:         {kind: kindScaled, max: 10},
	FeatureRoomDistance:     {kind: kindScaled, max: 10},
	FeatureAvailability:     {kind: kindRatio},
	FeatureDifficulty:       {kind: kindScaled, max: 10},
	FeatureTimeOfDay:        {kind: kindSlotOrdinal},
	FeatureDayOfWeek:        {kind: kindDayOrdinal},
	FeatureSemesterProgress: {kind: kindRatio},
	FeatureSuccessRate:      {kind: kindRatio},
}

// neutral is what missing or unknown categorical inputs normalise to.
const neutral = 0.5

// dayScale and slotScale map ordinals to evenly spaced points in (0,1); index 0 is unknown.
var (
	dayScale  = ordinalScale(len(models.Days))
	slotScale = ordinalScale(len(models.TimeSlots))
)

func ordinalScale(n int) []float64 {
	scale := make([]float64, n+1)
	scale[0] = neutral
	for i := 1; i <= n; i++ {
		scale[i] = float64(i) / float64(n+1)
	}
	return scale
}

// Normalizer maps raw features into [0,1].
type Normalizer struct{}

// Normalize applies the per-feature clamp rules.
func (Normalizer) Normalize(raw FeatureVector) FeatureVector {
	var out FeatureVector
	for i, v := range raw {
		spec := featureSpecs[i]
		switch spec.kind {
		case kindScaled:
			if math.IsNaN(v) {
				out[i] = neutral
				continue
			}
			out[i] = clamp01(v / spec.max)
		case kindRatio:
			out[i] = normalizeRatio(v)
		case kindDayOrdinal:
			out[i] = lookupOrdinal(dayScale, v)
		case kindSlotOrdinal:
			out[i] = lookupOrdinal(slotScale, v)
		}
	}
	return out
}

func normalizeRatio(v float64) float64 {
	if v == Missing || math.IsNaN(v) {
		return neutral
	}
	return clamp01(v)
}

func lookupOrdinal(scale []float64, v float64) float64 {
	if math.IsNaN(v) {
		return neutral
	}
	idx := int(v)
	if float64(idx) != v || idx < 1 || idx >= len(scale) {
		return neutral
	}
	return scale[idx]
}

// Vectorize extracts and normalises a candidate in one step.
func Vectorize(c Candidate) FeatureVector {
	return Normalizer{}.Normalize(Extractor{}.Extract(c))
}
