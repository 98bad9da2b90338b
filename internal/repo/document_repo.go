// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model (normalized catalog records used for keyword retrieval).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
)

// UpsertDocument creates or overwrites the document identified by
// (shop, source, sourceID). Re-ingestion replaces title, content, and
// metadata; documents are never deleted outside of that overwrite.
func UpsertDocument(ctx context.Context, db *gorm.DB, doc *domain.Document) (*domain.Document, error) {
	var existing domain.Document
	err := db.WithContext(ctx).
		Where("shop = ? AND source = ? AND source_id = ?", doc.Shop, doc.Source, doc.SourceID).
		First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"title":    doc.Title,
			"content":  doc.Content,
			"metadata": doc.Metadata,
		}
		if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		existing.Title = doc.Title
		existing.Content = doc.Content
		existing.Metadata = doc.Metadata
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		doc.ID = uuid.NewString()
		doc.CreatedAt = time.Now().UTC()
		if err := db.WithContext(ctx).Create(doc).Error; err != nil {
			return nil, err
		}
		return doc, nil
	default:
		return nil, err
	}
}

// ListDocuments returns a shop's documents ordered by most recently updated
// first, capped at limit (0 disables the cap).
func ListDocuments(ctx context.Context, db *gorm.DB, shop string, limit int) ([]domain.Document, error) {
	var out []domain.Document
	q := db.WithContext(ctx).
		Where("shop = ?", shop).
		Order("updated_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountDocuments returns the total number of documents for a shop.
func CountDocuments(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("shop = ?", shop).
		Count(&total).Error
	return total, err
}
