package scoring

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

func randomNetwork(seed int64) *Network {
	return NewNetwork(Architecture, rand.New(rand.NewSource(seed)))
}

func TestTrainedScorerBatchMatchesSingle(t *testing.T) {
	scorer := NewTrainedScorer(randomNetwork(3), nil)
	rng := rand.New(rand.NewSource(5))
	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i] = randomCandidate(rng)
	}

	batch := scorer.ScoreBatch(candidates)
	require.Len(t, batch, len(candidates))
	for i, c := range candidates {
		single := scorer.Score(c)
		assert.InDelta(t, single, batch[i], 1e-9)
		assert.GreaterOrEqual(t, single, 0.0)
		assert.LessOrEqual(t, single, 1.0)
	}
	assert.Equal(t, []float64{scorer.Score(candidates[0])}, scorer.ScoreBatch(candidates[:1]))
	assert.Empty(t, scorer.ScoreBatch(nil))
}

func TestTrainedScorerNotReadyWithoutWeights(t *testing.T) {
	scorer := NewTrainedScorer(nil, nil)
	assert.False(t, scorer.Ready())
	assert.Equal(t, BackendTrained, scorer.Backend())
	assert.Equal(t, []float64{0.5}, scorer.ScoreBatch([]Candidate{goodCandidate()}))
}

func TestModelDocumentRoundTrip(t *testing.T) {
	network := randomNetwork(9)
	metrics := &models.ModelMetrics{TrainSize: 700, ValidationSize: 150, TestSize: 150, MSE: 0.01}

	data, err := EncodeModel(network, metrics)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded := NewTrainedScorer(nil, nil)
	require.NoError(t, loaded.Load(path))
	require.True(t, loaded.Ready())
	require.NotNil(t, loaded.Metrics())
	assert.Equal(t, 700, loaded.Metrics().TrainSize)

	original := NewTrainedScorer(network, metrics)
	c := goodCandidate()
	assert.InDelta(t, original.Score(c), loaded.Score(c), 1e-12)
}

func TestDecodeModelRejectsIncompatibleDocuments(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `nope`,
		"wrong version":  `{"version":2,"architecture":[15,128,64,32,1]}`,
		"wrong layout":   `{"version":1,"architecture":[15,8,1]}`,
		"missing layers": `{"version":1,"architecture":[15,128,64,32,1],"layers":[]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeModel([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrIncompatibleModel)
		})
	}
}

func TestTrainedScorerLoadMissingFile(t *testing.T) {
	scorer := NewTrainedScorer(nil, nil)
	err := scorer.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrModelUnavailable)
	assert.False(t, scorer.Ready())
}

func TestBackwardReducesLossOnTinyBatch(t *testing.T) {
	network := randomNetwork(21)
	samples := SyntheticDataset(64, 4)
	x, y := samplesMatrix(samples)

	before, _, _ := evaluate(network, x, y)
	opt := newAdam(network, 1e-2)
	for i := 0; i < 100; i++ {
		p := network.forward(x, nil)
		opt.step(network, network.backward(p, y, 0))
	}
	after, _, _ := evaluate(network, x, y)

	assert.Less(t, after, before)
}
