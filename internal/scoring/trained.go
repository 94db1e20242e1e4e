package scoring

import (
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

// TrainedScorer scores candidates with a loaded Network.
type TrainedScorer struct {
	network *Network
	metrics *models.ModelMetrics
}

// NewTrainedScorer wraps an in-memory network. Pass nil to obtain a scorer that
// must be loaded before use.
func NewTrainedScorer(network *Network, metrics *models.ModelMetrics) *TrainedScorer {
	return &TrainedScorer{network: network, metrics: metrics}
}

// Load reads a weight document from disk. It must not be called once the
// scorer is shared.
func (s *TrainedScorer) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrModelUnavailable.Code, appErrors.ErrModelUnavailable.Status, "read model file")
	}
	network, metrics, err := DecodeModel(data)
	if err != nil {
		return err
	}
	s.network = network
	s.metrics = metrics
	return nil
}

func (s *TrainedScorer) Ready() bool { return s.network != nil }

func (s *TrainedScorer) Backend() Backend { return BackendTrained }

// Metrics returns the evaluation recorded with the weights, if any.
func (s *TrainedScorer) Metrics() *models.ModelMetrics { return s.metrics }

// Network exposes the underlying weights for persistence.
func (s *TrainedScorer) Network() *Network { return s.network }

func (s *TrainedScorer) Score(c Candidate) float64 {
	return s.ScoreBatch([]Candidate{c})[0]
}

// ScoreBatch vectorises every candidate and runs a single forward pass.
func (s *TrainedScorer) ScoreBatch(cs []Candidate) []float64 {
	if len(cs) == 0 {
		return []float64{}
	}
	if s.network == nil {
		scores := make([]float64, len(cs))
		for i := range scores {
			scores[i] = neutral
		}
		return scores
	}
	data := make([]float64, 0, len(cs)*FeatureCount)
	for _, c := range cs {
		v := Vectorize(c)
		data = append(data, v[:]...)
	}
	return s.network.Predict(mat.NewDense(len(cs), FeatureCount, data))
}
