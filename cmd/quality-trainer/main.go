package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/schedule-quality-api/internal/models"
	"github.com/noah-isme/schedule-quality-api/internal/repository"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
	"github.com/noah-isme/schedule-quality-api/internal/service"
	"github.com/noah-isme/schedule-quality-api/pkg/config"
	"github.com/noah-isme/schedule-quality-api/pkg/database"
	"github.com/noah-isme/schedule-quality-api/pkg/logger"
	"github.com/noah-isme/schedule-quality-api/pkg/storage"
)

func main() {
	var (
		source    string
		csvPath   string
		samples   int
		epochs    int
		seed      int64
		modelDir  string
		modelFile string
		exportCSV string
		importDB  bool
		list      bool
		keep      int
	)

	flag.StringVar(&source, "source", string(models.DatasetSynthetic), "Dataset source: synthetic, csv or database")
	flag.StringVar(&csvPath, "csv", "", "CSV dataset path when -source=csv")
	flag.IntVar(&samples, "samples", 0, "Synthetic sample count or database row limit (0 uses config)")
	flag.IntVar(&epochs, "epochs", 0, "Training epochs (0 uses config)")
	flag.Int64Var(&seed, "seed", -1, "Random seed (-1 uses config)")
	flag.StringVar(&modelDir, "model-dir", "", "Directory for model weights (defaults to QUALITY_MODEL_DIR)")
	flag.StringVar(&modelFile, "model-file", "", "Weights file name (defaults to QUALITY_MODEL_FILE)")
	flag.StringVar(&exportCSV, "export-csv", "", "Write a synthetic dataset to this CSV path and exit")
	flag.BoolVar(&importDB, "import-db", false, "Insert the -csv dataset into the sample table and exit")
	flag.BoolVar(&list, "list-models", false, "List the active and archived weight files and exit")
	flag.IntVar(&keep, "keep-archives", -1, "Archived weight files to keep after training (-1 keeps all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if modelDir == "" {
		modelDir = cfg.Quality.ModelDir
	}
	if modelFile == "" {
		modelFile = cfg.Quality.ModelFile
	}
	if samples <= 0 {
		samples = cfg.Training.SyntheticSamples
	}
	if seed < 0 {
		seed = cfg.Training.Seed
	}

	store, err := storage.NewLocalStorage(modelDir)
	if err != nil {
		logr.Fatal("prepare model directory", zap.Error(err))
	}

	switch {
	case list:
		if err := listModels(store, modelFile); err != nil {
			logr.Fatal("list models", zap.Error(err))
		}
		return
	case exportCSV != "":
		if err := writeSynthetic(exportCSV, samples, seed); err != nil {
			logr.Fatal("export synthetic dataset", zap.Error(err))
		}
		logr.Info("synthetic dataset written", zap.String("path", exportCSV), zap.Int("samples", samples))
		return
	case importDB:
		count, err := importSamples(ctx, cfg, csvPath)
		if err != nil {
			logr.Fatal("import samples", zap.Error(err))
		}
		logr.Info("samples imported", zap.Int("count", count))
		return
	}

	var reader service.TrainingSampleReader
	if models.DatasetSource(source) == models.DatasetDatabase {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("connect postgres", zap.Error(err))
		}
		defer db.Close()
		reader = repository.NewTrainingSampleRepository(db)
	}

	trainingSvc := service.NewTrainingService(reader, store, nil, nil, nil, nil, logr, service.TrainingServiceConfig{
		Enabled:          true,
		ModelFile:        modelFile,
		SyntheticSamples: samples,
		DatasetLimit:     cfg.Training.DatasetLimit,
		Trainer: scoring.TrainerConfig{
			Epochs:       cfg.Training.Epochs,
			BatchSize:    cfg.Training.BatchSize,
			LearningRate: cfg.Training.LearningRate,
			L2:           cfg.Training.L2,
			Dropout:      cfg.Training.Dropout,
			Patience:     cfg.Training.Patience,
			Seed:         seed,
		},
	})

	outcome, err := trainingSvc.Train(ctx, service.TrainingOptions{
		Source:  models.DatasetSource(source),
		Samples: samples,
		Epochs:  epochs,
		CSVPath: csvPath,
	})
	if err != nil {
		logr.Fatal("training failed", zap.Error(err))
	}

	m := outcome.Metrics
	fmt.Printf("samples=%d train=%d val=%d test=%d epochs=%d\n", outcome.SampleCount, m.TrainSize, m.ValidationSize, m.TestSize, m.EpochsRun)
	fmt.Printf("mse=%.5f mae=%.5f accuracy=%.3f\n", m.MSE, m.MAE, m.Accuracy)
	fmt.Printf("model=%s\n", outcome.ModelPath)
	if outcome.ArchivePath != "" {
		fmt.Printf("previous=%s\n", outcome.ArchivePath)
	}

	if keep >= 0 {
		removed, err := pruneArchives(store, modelFile, keep)
		if err != nil {
			logr.Warn("prune archived models", zap.Error(err))
		}
		logr.Info("archived models pruned", zap.Strings("removed", removed))
	}
}

// archives returns archived copies of modelFile, newest first.
func archives(store *storage.LocalStorage, modelFile string) ([]string, error) {
	stem := strings.TrimSuffix(modelFile, filepath.Ext(modelFile)) + "."
	names, err := store.List(stem)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, name := range names {
		if name != modelFile {
			out = append(out, name)
		}
	}
	return out, nil
}

func listModels(store *storage.LocalStorage, modelFile string) error {
	archived, err := archives(store, modelFile)
	if err != nil {
		return err
	}
	for _, name := range append([]string{modelFile}, archived...) {
		data, err := store.Read(name)
		if err != nil {
			fmt.Printf("%s\tmissing\n", name)
			continue
		}
		_, metrics, err := scoring.DecodeModel(data)
		if err != nil {
			fmt.Printf("%s\tincompatible: %v\n", name, err)
			continue
		}
		if metrics == nil {
			fmt.Printf("%s\tno metrics\n", name)
			continue
		}
		fmt.Printf("%s\tmse=%.5f mae=%.5f accuracy=%.3f\n", name, metrics.MSE, metrics.MAE, metrics.Accuracy)
	}
	return nil
}

func pruneArchives(store *storage.LocalStorage, modelFile string, keep int) ([]string, error) {
	archived, err := archives(store, modelFile)
	if err != nil || len(archived) <= keep {
		return nil, err
	}
	var removed []string
	for _, name := range archived[keep:] {
		if err := store.Delete(name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func writeSynthetic(path string, n int, seed int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := scoring.WriteCSVDataset(f, scoring.SyntheticDataset(n, seed)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func importSamples(ctx context.Context, cfg *config.Config, csvPath string) (int, error) {
	if csvPath == "" {
		return 0, fmt.Errorf("-import-db requires -csv")
	}
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	samples, err := scoring.ReadCSVDataset(f)
	if err != nil {
		return 0, err
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	repo := repository.NewTrainingSampleRepository(db)

	for i, s := range samples {
		raw, err := json.Marshal(s.Features)
		if err != nil {
			return i, err
		}
		record := &models.TrainingSampleRecord{ScheduleID: "import", Features: types.JSONText(raw), Label: s.Label}
		if err := repo.Create(ctx, record); err != nil {
			return i, err
		}
	}
	return repo.Count(ctx)
}
