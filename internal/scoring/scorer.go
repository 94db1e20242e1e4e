package scoring

import "math"

// Backend identifies the scorer implementation in use.
type Backend string

const (
	BackendTrained   Backend = "trained"
	BackendHeuristic Backend = "heuristic"
)

// Scorer is the contract shared by the trained and heuristic backends.
type Scorer interface {
	Score(c Candidate) float64
	ScoreBatch(cs []Candidate) []float64
	Load(path string) error
	Ready() bool
	Backend() Backend
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Quality bands used when presenting scores.
const (
	BandExcellent = "excellent"
	BandGood      = "good"
	BandFair      = "fair"
	BandPoor      = "poor"
)

// Band maps a score onto a coarse label.
func Band(score float64) string {
	switch {
	case score >= 0.8:
		return BandExcellent
	case score >= 0.6:
		return BandGood
	case score >= 0.4:
		return BandFair
	default:
		return BandPoor
	}
}
