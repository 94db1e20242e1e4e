package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

// MinTrainingSamples is the smallest dataset that still yields non-empty splits.
const MinTrainingSamples = 10

// accuracyTolerance is the absolute error under which a prediction counts as accurate.
const accuracyTolerance = 0.1

// TrainerConfig holds optimisation hyper-parameters.
type TrainerConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	L2           float64
	Dropout      float64
	Patience     int
	Seed         int64
}

// DefaultTrainerConfig returns the standard hyper-parameters.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:       50,
		BatchSize:    32,
		LearningRate: 1e-3,
		L2:           1e-4,
		Dropout:      0.2,
		Patience:     10,
		Seed:         42,
	}
}

// TrainingResult is a fitted network and its held-out evaluation.
type TrainingResult struct {
	Network *Network
	Metrics models.ModelMetrics
}

// Trainer fits quality networks with mini-batch Adam and early stopping.
type Trainer struct {
	cfg    TrainerConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewTrainer constructs a trainer. Non-positive sizes and rates fall back to
// DefaultTrainerConfig; Dropout and L2 may legitimately be zero.
func NewTrainer(cfg TrainerConfig, logger *zap.Logger) *Trainer {
	def := DefaultTrainerConfig()
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.L2 < 0 {
		cfg.L2 = def.L2
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		cfg.Dropout = def.Dropout
	}
	if cfg.Patience <= 0 {
		cfg.Patience = def.Patience
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{cfg: cfg, logger: logger, now: time.Now}
}

// Config returns the effective hyper-parameters.
func (t *Trainer) Config() TrainerConfig { return t.cfg }

// Train fits a fresh network. The context is checked between epochs.
func (t *Trainer) Train(ctx context.Context, samples []models.TrainingSample) (*TrainingResult, error) {
	if len(samples) < MinTrainingSamples {
		return nil, appErrors.Clone(appErrors.ErrInsufficientData, fmt.Sprintf("need at least %d samples, got %d", MinTrainingSamples, len(samples)))
	}
	if err := ValidateSamples(samples); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	split := SplitDataset(samples, rng)
	network := NewNetwork(Architecture, rng)
	opt := newAdam(network, t.cfg.LearningRate)
	drop := &dropout{rate: t.cfg.Dropout, rng: rng}

	valX, valY := samplesMatrix(split.Validation)
	best := network.clone()
	bestLoss := math.Inf(1)
	stale := 0
	epochs := 0

	order := make([]int, len(split.Train))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTrainingFailed.Code, appErrors.ErrTrainingFailed.Status, "training cancelled")
		}
		epochs = epoch

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var trainLoss float64
		for start := 0; start < len(order); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := make([]models.TrainingSample, 0, end-start)
			for _, idx := range order[start:end] {
				batch = append(batch, split.Train[idx])
			}
			x, y := samplesMatrix(batch)
			p := network.forward(x, drop)
			trainLoss += batchLoss(p, y) * float64(len(batch))
			opt.step(network, network.backward(p, y, t.cfg.L2))
		}
		trainLoss /= float64(len(order))

		valLoss, _, _ := evaluate(network, valX, valY)
		if math.IsNaN(valLoss) || math.IsNaN(trainLoss) {
			return nil, appErrors.Clone(appErrors.ErrTrainingFailed, fmt.Sprintf("loss diverged at epoch %d", epoch))
		}
		t.logger.Debug("training epoch",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", trainLoss),
			zap.Float64("val_loss", valLoss),
		)

		if valLoss < bestLoss {
			bestLoss = valLoss
			best = network.clone()
			stale = 0
			continue
		}
		stale++
		if stale >= t.cfg.Patience {
			t.logger.Info("early stopping", zap.Int("epoch", epoch), zap.Float64("best_val_loss", bestLoss))
			break
		}
	}

	testX, testY := samplesMatrix(split.Test)
	mse, mae, accuracy := evaluate(best, testX, testY)
	metrics := models.ModelMetrics{
		TrainSize:      len(split.Train),
		ValidationSize: len(split.Validation),
		TestSize:       len(split.Test),
		EpochsRun:      epochs,
		ValidationMSE:  bestLoss,
		MSE:            mse,
		MAE:            mae,
		Accuracy:       accuracy,
		TrainedAt:      t.now().UTC(),
	}
	t.logger.Info("training finished",
		zap.Int("samples", len(samples)),
		zap.Int("epochs", epochs),
		zap.Float64("mse", mse),
		zap.Float64("mae", mae),
		zap.Float64("accuracy", accuracy),
	)
	return &TrainingResult{Network: best, Metrics: metrics}, nil
}

func samplesMatrix(samples []models.TrainingSample) (*mat.Dense, []float64) {
	if len(samples) == 0 {
		return nil, nil
	}
	x := mat.NewDense(len(samples), FeatureCount, nil)
	labels := make([]float64, len(samples))
	for i, s := range samples {
		for j := 0; j < FeatureCount && j < len(s.Features); j++ {
			x.Set(i, j, s.Features[j])
		}
		labels[i] = s.Label
	}
	return x, labels
}

func batchLoss(p *pass, labels []float64) float64 {
	out := p.activations[len(p.activations)-1]
	var sum float64
	for r, y := range labels {
		d := out.At(r, 0) - y
		sum += d * d
	}
	return sum / float64(len(labels))
}

// evaluate returns MSE, MAE and the share of predictions within accuracyTolerance.
func evaluate(n *Network, x *mat.Dense, labels []float64) (mse, mae, accuracy float64) {
	if x == nil || len(labels) == 0 {
		return 0, 0, 0
	}
	preds := n.Predict(x)
	hits := 0
	for i, y := range labels {
		d := preds[i] - y
		mse += d * d
		mae += math.Abs(d)
		if math.Abs(d) <= accuracyTolerance {
			hits++
		}
	}
	count := float64(len(labels))
	return mse / count, mae / count, float64(hits) / count
}
