// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// IngestionJob model, the shared coordination point between an ingestion
// run and status polls.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
)

// CreateIngestionJob inserts a new running job with every counter set to
// zero, so later status transitions never touch uninitialized fields.
func CreateIngestionJob(ctx context.Context, db *gorm.DB, shop string) (*domain.IngestionJob, error) {
	j := &domain.IngestionJob{
		ID:        uuid.NewString(),
		Shop:      shop,
		Status:    domain.JobRunning,
		Errors:    domain.StringList{},
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

// GetIngestionJob fetches a job by ID, or ErrNotFound.
func GetIngestionJob(ctx context.Context, db *gorm.DB, id string) (*domain.IngestionJob, error) {
	var j domain.IngestionJob
	if err := db.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateIngestionProgress bumps the running progress counter. Called after
// every single processed record so a concurrent status poll sees
// fine-grained progress.
func UpdateIngestionProgress(ctx context.Context, db *gorm.DB, id string, progress int) error {
	return db.WithContext(ctx).
		Model(&domain.IngestionJob{}).
		Where("id = ?", id).
		Update("progress", progress).Error
}

// CompleteIngestionJob marks the job completed with final per-kind counts
// and the accumulated (possibly empty) error list.
func CompleteIngestionJob(ctx context.Context, db *gorm.DB, id string, products, collections, pages int, errs domain.StringList) error {
	total := products + collections + pages
	if errs == nil {
		errs = domain.StringList{}
	}
	return db.WithContext(ctx).
		Model(&domain.IngestionJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      domain.JobCompleted,
			"progress":    total,
			"total":       total,
			"products":    products,
			"collections": collections,
			"pages":       pages,
			"errors":      errs,
		}).Error
}

// FailIngestionJob marks the job failed with the top-level error message.
// Progress counters are left at their last written values.
func FailIngestionJob(ctx context.Context, db *gorm.DB, id, msg string) error {
	return db.WithContext(ctx).
		Model(&domain.IngestionJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": domain.JobFailed,
			"error":  msg,
		}).Error
}
