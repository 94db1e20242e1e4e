package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/dto"
	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
	"github.com/noah-isme/schedule-quality-api/pkg/jobs"
)

// TrainingJobType tags queue jobs produced by TrainingService.
const TrainingJobType = "quality_training"

const maxTrackedRuns = 50

// TrainingSampleReader loads labelled historical samples.
type TrainingSampleReader interface {
	ListRecent(ctx context.Context, limit int) ([]models.TrainingSampleRecord, error)
}

type modelStore interface {
	Save(filename string, data []byte) (string, error)
	Archive(filename string, at time.Time) (string, error)
	Path(filename string) string
}

type modelSwapper interface {
	Swap(s scoring.Scorer, path string)
}

type cacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// TrainingServiceConfig governs dataset collection, persistence and retries.
type TrainingServiceConfig struct {
	Enabled          bool
	ModelFile        string
	SyntheticSamples int
	DatasetLimit     int
	MaxRetries       int
	Trainer          scoring.TrainerConfig
}

// TrainingOptions describes one training run.
type TrainingOptions struct {
	Source   models.DatasetSource
	Samples  int
	Epochs   int
	Seed     *int64
	CSVPath  string
	Activate bool
}

// TrainingOutcome is the result of a synchronous run.
type TrainingOutcome struct {
	Metrics     models.ModelMetrics
	ModelPath   string
	ArchivePath string
	SampleCount int
	Activated   bool
}

// TrainingService fits quality models in the background and installs them.
type TrainingService struct {
	samples     TrainingSampleReader
	store       modelStore
	swapper     modelSwapper
	invalidator cacheInvalidator
	queue       jobDispatcher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TrainingServiceConfig
	runs        *runStore
	now         func() time.Time
	encode      func(*scoring.Network, *models.ModelMetrics) ([]byte, error)
}

// NewTrainingService wires training dependencies. samples, swapper, invalidator
// and queue are optional; the matching features are unavailable without them.
func NewTrainingService(
	samples TrainingSampleReader,
	store modelStore,
	swapper modelSwapper,
	invalidator cacheInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TrainingServiceConfig,
) *TrainingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ModelFile == "" {
		cfg.ModelFile = "schedule_quality.json"
	}
	if cfg.SyntheticSamples <= 0 {
		cfg.SyntheticSamples = 1000
	}
	if cfg.DatasetLimit <= 0 {
		cfg.DatasetLimit = 50000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &TrainingService{
		samples:     samples,
		store:       store,
		swapper:     swapper,
		invalidator: invalidator,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		runs:        newRunStore(maxTrackedRuns),
		now:         time.Now,
		encode:      scoring.EncodeModel,
	}
}

// AttachQueue sets the dispatcher used by Enqueue. The queue's handler should be Handle.
func (s *TrainingService) AttachQueue(queue jobDispatcher) {
	s.queue = queue
}

// Enqueue records a run and schedules it on the background queue.
func (s *TrainingService) Enqueue(ctx context.Context, req dto.TrainingRequest) (*models.TrainingRun, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.ErrTrainingDisabled
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training request")
	}
	source := req.Source
	if source == "" {
		source = models.DatasetSynthetic
	}
	if source == models.DatasetDatabase && s.samples == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "database dataset source is not configured")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrTrainingDisabled, "training queue is not running")
	}

	run := models.TrainingRun{
		ID:       uuid.NewString(),
		Status:   models.TrainingQueued,
		Source:   source,
		QueuedAt: s.now().UTC(),
	}
	s.runs.put(run)

	opts := TrainingOptions{Source: source, Samples: req.Samples, Epochs: req.Epochs, Seed: req.Seed, Activate: true}
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: TrainingJobType, Payload: opts}); err != nil {
		s.finish(run.ID, models.TrainingFailed, nil, "", "failed to enqueue training job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue training job")
	}
	s.logger.Info("training run queued", zap.String("run_id", run.ID), zap.String("source", string(source)))
	return &run, nil
}

// Status returns the state of a run.
func (s *TrainingService) Status(ctx context.Context, id string) (*models.TrainingRun, error) {
	run, ok := s.runs.get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "training run not found")
	}
	return &run, nil
}

// Runs lists tracked runs, newest first.
func (s *TrainingService) Runs(ctx context.Context) []models.TrainingRun {
	return s.runs.list()
}

// Handle is the queue handler executing a training job.
func (s *TrainingService) Handle(ctx context.Context, job jobs.Job) error {
	opts, ok := job.Payload.(TrainingOptions)
	if !ok {
		s.finish(job.ID, models.TrainingFailed, nil, "", "malformed training job")
		return nil
	}
	started := s.now().UTC()
	s.runs.update(job.ID, func(run *models.TrainingRun) {
		run.Status = models.TrainingRunning
		run.StartedAt = &started
		run.Error = ""
	})

	outcome, err := s.Train(ctx, opts)
	if err != nil {
		if !retryable(err) || job.Attempt+1 > s.cfg.MaxRetries {
			s.finish(job.ID, models.TrainingFailed, nil, "", err.Error())
			return nil
		}
		s.runs.update(job.ID, func(run *models.TrainingRun) {
			run.Status = models.TrainingQueued
			run.Error = err.Error()
		})
		return err
	}
	metrics := outcome.Metrics
	s.finish(job.ID, models.TrainingSucceeded, &metrics, outcome.ModelPath, "")
	return nil
}

// Abandon marks a run failed once the queue gives up on it.
func (s *TrainingService) Abandon(job jobs.Job, err error) {
	message := "training job abandoned"
	if err != nil {
		message = err.Error()
	}
	s.finish(job.ID, models.TrainingFailed, nil, "", message)
}

// Train collects a dataset, fits a model, persists it and optionally installs it.
// The active scorer is untouched on any failure.
func (s *TrainingService) Train(ctx context.Context, opts TrainingOptions) (*TrainingOutcome, error) {
	start := time.Now()
	source := opts.Source
	if source == "" {
		source = models.DatasetSynthetic
	}

	trainerCfg := s.cfg.Trainer
	if opts.Epochs > 0 {
		trainerCfg.Epochs = opts.Epochs
	}
	if opts.Seed != nil {
		trainerCfg.Seed = *opts.Seed
	}

	fail := func(err error) (*TrainingOutcome, error) {
		s.metrics.RecordTraining(string(source), models.TrainingFailed, time.Since(start), nil)
		return nil, err
	}

	samples, err := s.collect(ctx, source, opts, trainerCfg.Seed)
	if err != nil {
		return fail(err)
	}

	result, err := scoring.NewTrainer(trainerCfg, s.logger).Train(ctx, samples)
	if err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return fail(err)
		}
		return fail(appErrors.Wrap(err, appErrors.ErrTrainingFailed.Code, appErrors.ErrTrainingFailed.Status, "model training failed"))
	}

	outcome := &TrainingOutcome{Metrics: result.Metrics, SampleCount: len(samples)}
	if s.store != nil {
		data, err := s.encode(result.Network, &result.Metrics)
		if err != nil {
			return fail(appErrors.Wrap(err, appErrors.ErrTrainingFailed.Code, appErrors.ErrTrainingFailed.Status, "encode model"))
		}
		archived, err := s.store.Archive(s.cfg.ModelFile, s.now())
		if err != nil {
			s.logger.Warn("archive previous model failed", zap.Error(err))
		}
		if _, err := s.store.Save(s.cfg.ModelFile, data); err != nil {
			return fail(appErrors.Wrap(err, appErrors.ErrTrainingFailed.Code, appErrors.ErrTrainingFailed.Status, "save model"))
		}
		outcome.ModelPath = s.store.Path(s.cfg.ModelFile)
		if archived != "" {
			outcome.ArchivePath = s.store.Path(archived)
		}
	}

	if opts.Activate && s.swapper != nil {
		s.swapper.Swap(scoring.NewTrainedScorer(result.Network, &outcome.Metrics), outcome.ModelPath)
		outcome.Activated = true
		if s.invalidator != nil {
			if err := s.invalidator.InvalidateCache(ctx); err != nil {
				s.logger.Warn("invalidate recommendations after training", zap.Error(err))
			}
		}
	}

	s.metrics.RecordTraining(string(source), models.TrainingSucceeded, time.Since(start), &outcome.Metrics)
	s.logger.Info("training run completed",
		zap.String("source", string(source)),
		zap.Int("samples", len(samples)),
		zap.Float64("mse", outcome.Metrics.MSE),
		zap.String("model_path", outcome.ModelPath),
		zap.Bool("activated", outcome.Activated),
	)
	return outcome, nil
}

func (s *TrainingService) collect(ctx context.Context, source models.DatasetSource, opts TrainingOptions, seed int64) ([]models.TrainingSample, error) {
	switch source {
	case models.DatasetSynthetic:
		n := opts.Samples
		if n <= 0 {
			n = s.cfg.SyntheticSamples
		}
		return scoring.SyntheticDataset(n, seed), nil
	case models.DatasetDatabase:
		return s.collectFromDatabase(ctx, opts.Samples)
	case models.DatasetCSV:
		if opts.CSVPath == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "csv dataset requires a path")
		}
		f, err := os.Open(opts.CSVPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "open csv dataset")
		}
		defer f.Close()
		return scoring.ReadCSVDataset(f)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown dataset source %q", source))
	}
}

func (s *TrainingService) collectFromDatabase(ctx context.Context, limit int) ([]models.TrainingSample, error) {
	if s.samples == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "database dataset source is not configured")
	}
	if limit <= 0 || limit > s.cfg.DatasetLimit {
		limit = s.cfg.DatasetLimit
	}
	start := time.Now()
	records, err := s.samples.ListRecent(ctx, limit)
	s.metrics.ObserveDBQuery("training_samples_recent", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTrainingFailed.Code, appErrors.ErrTrainingFailed.Status, "load training samples")
	}
	samples := make([]models.TrainingSample, 0, len(records))
	for _, record := range records {
		var features []float64
		if err := record.Features.Unmarshal(&features); err != nil {
			s.logger.Warn("skip malformed training sample", zap.String("id", record.ID), zap.Error(err))
			continue
		}
		sample := models.TrainingSample{Features: features, Label: record.Label}
		if err := scoring.ValidateSamples([]models.TrainingSample{sample}); err != nil {
			s.logger.Warn("skip invalid training sample", zap.String("id", record.ID), zap.Error(err))
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (s *TrainingService) finish(id string, status models.TrainingStatus, metrics *models.ModelMetrics, path, message string) {
	finished := s.now().UTC()
	s.runs.update(id, func(run *models.TrainingRun) {
		run.Status = status
		run.Metrics = metrics
		run.ModelPath = path
		run.Error = message
		run.FinishedAt = &finished
	})
	if status == models.TrainingFailed {
		s.logger.Warn("training run failed", zap.String("run_id", id), zap.String("error", message))
	}
}

// retryable reports whether rerunning the job could succeed.
func retryable(err error) bool {
	return !errors.Is(err, appErrors.ErrValidation) &&
		!errors.Is(err, appErrors.ErrInsufficientData) &&
		!errors.Is(err, context.Canceled)
}

// runStore keeps the most recent training runs in memory.
type runStore struct {
	mu    sync.RWMutex
	limit int
	items map[string]models.TrainingRun
}

func newRunStore(limit int) *runStore {
	return &runStore{limit: limit, items: make(map[string]models.TrainingRun)}
}

func (s *runStore) put(run models.TrainingRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[run.ID] = run
	if len(s.items) <= s.limit {
		return
	}
	var oldestID string
	var oldest time.Time
	for id, r := range s.items {
		if oldestID == "" || r.QueuedAt.Before(oldest) {
			oldestID, oldest = id, r.QueuedAt
		}
	}
	delete(s.items, oldestID)
}

func (s *runStore) get(id string) (models.TrainingRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.items[id]
	return run, ok
}

func (s *runStore) update(id string, fn func(*models.TrainingRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.items[id]
	if !ok {
		return
	}
	fn(&run)
	s.items[id] = run
}

func (s *runStore) list() []models.TrainingRun {
	s.mu.RLock()
	runs := make([]models.TrainingRun, 0, len(s.items))
	for _, r := range s.items {
		runs = append(runs, r)
	}
	s.mu.RUnlock()
	sort.Slice(runs, func(i, j int) bool { return runs[i].QueuedAt.After(runs[j].QueuedAt) })
	return runs
}
