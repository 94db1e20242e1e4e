package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TrainingSample is one labelled, normalised feature vector.
type TrainingSample struct {
	Features []float64 `json:"features"`
	Label    float64   `json:"label"`
}

// TrainingSampleRecord is the persisted form of a historical sample.
type TrainingSampleRecord struct {
	ID         string         `db:"id" json:"id"`
	ScheduleID string         `db:"schedule_id" json:"schedule_id"`
	Features   types.JSONText `db:"features" json:"features"`
	Label      float64        `db:"label" json:"label"`
	RecordedAt time.Time      `db:"recorded_at" json:"recorded_at"`
}

// ModelMetrics summarises a training run evaluated on the held-out test split.
type ModelMetrics struct {
	TrainSize      int       `json:"trainSize"`
	ValidationSize int       `json:"validationSize"`
	TestSize       int       `json:"testSize"`
	EpochsRun      int       `json:"epochsRun"`
	ValidationMSE  float64   `json:"validationMse"`
	MSE            float64   `json:"mse"`
	MAE            float64   `json:"mae"`
	Accuracy       float64   `json:"accuracy"`
	TrainedAt      time.Time `json:"trainedAt"`
}

// TrainingStatus tracks a background training run.
type TrainingStatus string

const (
	TrainingQueued    TrainingStatus = "queued"
	TrainingRunning   TrainingStatus = "running"
	TrainingSucceeded TrainingStatus = "succeeded"
	TrainingFailed    TrainingStatus = "failed"
)

// DatasetSource names where training samples come from.
type DatasetSource string

const (
	DatasetSynthetic DatasetSource = "synthetic"
	DatasetDatabase  DatasetSource = "database"
	DatasetCSV       DatasetSource = "csv"
)

// TrainingRun is the externally visible state of a training job.
type TrainingRun struct {
	ID         string         `json:"id"`
	Status     TrainingStatus `json:"status"`
	Source     DatasetSource  `json:"source"`
	Metrics    *ModelMetrics  `json:"metrics,omitempty"`
	Error      string         `json:"error,omitempty"`
	ModelPath  string         `json:"modelPath,omitempty"`
	QueuedAt   time.Time      `json:"queuedAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}
