package scoring

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/models"
)

type activeScorer struct {
	scorer  Scorer
	path    string
	version string
}

// EngineSnapshot describes the scorer currently answering requests.
type EngineSnapshot struct {
	Backend   Backend
	ModelPath string
	Metrics   *models.ModelMetrics
	Loading   bool
}

// Engine selects between the trained and heuristic backends. It starts on the
// heuristic, attempts the trained load once in the background and swaps
// atomically on success. All methods are safe for concurrent use.
type Engine struct {
	logger     *zap.Logger
	fallback   Scorer
	newTrained func() Scorer

	current  atomic.Pointer[activeScorer]
	swaps    atomic.Uint64
	loadOnce sync.Once
	loaded   chan struct{}
	loading  atomic.Bool

	hooksMu sync.RWMutex
	hooks   []func(Backend)
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithTrainedFactory overrides how trained scorers are constructed before loading.
func WithTrainedFactory(factory func() Scorer) EngineOption {
	return func(e *Engine) {
		if factory != nil {
			e.newTrained = factory
		}
	}
}

// NewEngine constructs an engine answering with the heuristic until a model is installed.
func NewEngine(logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:     logger,
		fallback:   NewHeuristicScorer(),
		newTrained: func() Scorer { return NewTrainedScorer(nil, nil) },
		loaded:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(&activeScorer{scorer: e.fallback, version: modelVersion(e.fallback, 0)})
	return e
}

// LoadAsync starts the one-time background load of the model at path. Later
// calls are no-ops. The returned channel closes once the attempt finishes.
func (e *Engine) LoadAsync(path string) <-chan struct{} {
	e.loadOnce.Do(func() {
		e.loading.Store(true)
		go func() {
			defer close(e.loaded)
			defer e.loading.Store(false)
			e.TryLoad(path)
		}()
	})
	return e.loaded
}

// Wait blocks until the background load finishes or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLoad loads a model synchronously and swaps to it on success. Failures are
// logged and leave the active scorer untouched.
func (e *Engine) TryLoad(path string) bool {
	if path == "" {
		e.logger.Info("no model path configured, using heuristic scorer")
		return false
	}
	scorer := e.newTrained()
	if err := scorer.Load(path); err != nil {
		e.logger.Warn("trained model unavailable, using heuristic scorer", zap.String("path", path), zap.Error(err))
		return false
	}
	if !scorer.Ready() {
		e.logger.Warn("trained model not ready after load", zap.String("path", path))
		return false
	}
	e.Swap(scorer, path)
	return true
}

// Swap installs a ready scorer. In-flight calls finish on the scorer they started with.
func (e *Engine) Swap(scorer Scorer, path string) {
	if scorer == nil || !scorer.Ready() {
		return
	}
	version := modelVersion(scorer, e.swaps.Add(1))
	e.current.Store(&activeScorer{scorer: scorer, path: path, version: version})
	e.logger.Info("quality scorer activated", zap.String("backend", string(scorer.Backend())), zap.String("path", path))

	e.hooksMu.RLock()
	hooks := append([]func(Backend){}, e.hooks...)
	e.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(scorer.Backend())
	}
}

// OnSwap registers a callback run after every successful swap.
func (e *Engine) OnSwap(hook func(Backend)) {
	if hook == nil {
		return
	}
	e.hooksMu.Lock()
	e.hooks = append(e.hooks, hook)
	e.hooksMu.Unlock()
}

func (e *Engine) active() *activeScorer {
	return e.current.Load()
}

// Score answers with the active scorer.
func (e *Engine) Score(c Candidate) float64 {
	return e.active().scorer.Score(c)
}

// ScoreBatch answers with the active scorer; all results come from the same backend.
func (e *Engine) ScoreBatch(cs []Candidate) []float64 {
	return e.active().scorer.ScoreBatch(cs)
}

// ScoreBatchWithBackend returns scores together with the backend that produced them.
func (e *Engine) ScoreBatchWithBackend(cs []Candidate) ([]float64, Backend) {
	active := e.active()
	return active.scorer.ScoreBatch(cs), active.scorer.Backend()
}

// Ready is always true: the heuristic answers whenever no model is loaded.
func (e *Engine) Ready() bool { return true }

// ActiveBackend reports which backend currently answers.
func (e *Engine) ActiveBackend() Backend {
	return e.active().scorer.Backend()
}

// ModelVersion identifies the active weights. It changes on every swap, even
// when a trained model replaces another trained model.
func (e *Engine) ModelVersion() string {
	return e.active().version
}

func modelVersion(scorer Scorer, generation uint64) string {
	version := string(scorer.Backend()) + "-" + strconv.FormatUint(generation, 10)
	if t, ok := scorer.(*TrainedScorer); ok && t.Metrics() != nil && !t.Metrics().TrainedAt.IsZero() {
		version += "-" + strconv.FormatInt(t.Metrics().TrainedAt.UnixNano(), 10)
	}
	return version
}

// Explain returns heuristic rule adjustments for c when the heuristic is active.
func (e *Engine) Explain(c Candidate) []Adjustment {
	if h, ok := e.active().scorer.(*HeuristicScorer); ok {
		return h.Explain(c)
	}
	return nil
}

// Snapshot reports the active backend and the metrics stored with its weights.
func (e *Engine) Snapshot() EngineSnapshot {
	active := e.active()
	snap := EngineSnapshot{
		Backend:   active.scorer.Backend(),
		ModelPath: active.path,
		Loading:   e.loading.Load(),
	}
	if trained, ok := active.scorer.(interface{ Metrics() *models.ModelMetrics }); ok {
		snap.Metrics = trained.Metrics()
	}
	return snap
}
