// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the quota gate, the admin usage endpoint, and conditional responses
// (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
)

// UsageStats holds derived per-window usage counters for one shop.
type UsageStats struct {
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
}

// WindowUsage counts conversations and messages created by shop at or after
// the window start. Both counts are derived from rows, never incremented,
// so concurrent reads cannot double-count.
func WindowUsage(ctx context.Context, db *gorm.DB, shop string, since time.Time) (UsageStats, error) {
	var u UsageStats
	var err error
	if u.Conversations, err = CountConversationsSince(ctx, db, shop, since); err != nil {
		return UsageStats{}, err
	}
	if u.Messages, err = CountMessagesSince(ctx, db, shop, since); err != nil {
		return UsageStats{}, err
	}
	return u, nil
}

// ConversationsStats returns aggregate metadata for a shop's conversations:
// the total number of rows and the greatest UpdatedAt among them. Used for
// weak ETag generation on the admin conversation list.
func ConversationsStats(ctx context.Context, db *gorm.DB, shop string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Conversation{}).Where("shop = ?", shop)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
