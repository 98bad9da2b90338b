// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
)

// CreateConversation inserts a new active conversation for shop/sessionID.
// The row ID is a randomly generated UUID and CreatedAt is set to UTC.
func CreateConversation(ctx context.Context, db *gorm.DB, shop, sessionID, customerEmail, customerName string) (*domain.Conversation, error) {
	c := &domain.Conversation{
		ID:            uuid.NewString(),
		Shop:          shop,
		SessionID:     sessionID,
		CustomerEmail: customerEmail,
		CustomerName:  customerName,
		Status:        domain.ConversationActive,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// FindConversationBySession fetches the conversation for a (shop, sessionID)
// pair, or ErrNotFound. The pair is unique by schema.
func FindConversationBySession(ctx context.Context, db *gorm.DB, shop, sessionID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("shop = ? AND session_id = ?", shop, sessionID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a conversation by its ID, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountConversations returns the total number of conversations for a shop.
func CountConversations(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("shop = ?", shop).
		Count(&total).Error
	return total, err
}

// CountConversationsSince counts conversations created by shop at or after
// the window start. Used by the quota gate; the count is derived, never an
// incremented counter.
func CountConversationsSince(ctx context.Context, db *gorm.DB, shop string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("shop = ? AND created_at >= ?", shop, since).
		Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of a shop's conversations ordered by
// creation time descending. Use CountConversations for pagination metadata.
func ListConversationsPage(ctx context.Context, db *gorm.DB, shop string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("shop = ?", shop).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateConversationStatus changes the status of a conversation. Returns
// ErrNotFound when no row was affected.
func UpdateConversationStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
