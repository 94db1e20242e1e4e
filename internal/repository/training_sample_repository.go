package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/schedule-quality-api/internal/models"
)

// TrainingSampleRepository reads and writes labelled historical samples.
type TrainingSampleRepository struct {
	db *sqlx.DB
}

// NewTrainingSampleRepository constructs the repository.
func NewTrainingSampleRepository(db *sqlx.DB) *TrainingSampleRepository {
	return &TrainingSampleRepository{db: db}
}

// ListRecent returns at most limit samples, newest first.
func (r *TrainingSampleRepository) ListRecent(ctx context.Context, limit int) ([]models.TrainingSampleRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `SELECT id, schedule_id, features, label, recorded_at
FROM schedule_quality_samples ORDER BY recorded_at DESC LIMIT $1`
	var records []models.TrainingSampleRecord
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list training samples: %w", err)
	}
	return records, nil
}

// Create inserts a sample, generating the ID and timestamp when absent.
func (r *TrainingSampleRepository) Create(ctx context.Context, record *models.TrainingSampleRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedule_quality_samples (id, schedule_id, features, label, recorded_at)
VALUES (:id, :schedule_id, :features, :label, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create training sample: %w", err)
	}
	return nil
}

// Count reports how many samples are stored.
func (r *TrainingSampleRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedule_quality_samples`); err != nil {
		return 0, fmt.Errorf("count training samples: %w", err)
	}
	return total, nil
}
