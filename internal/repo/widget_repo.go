// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// WidgetConfig model (exactly one row per shop).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
)

// GetWidgetConfig fetches the stored configuration for a shop, or
// ErrNotFound when the shop has never saved one. Callers are expected to
// synthesize defaults on miss rather than treating it as a failure.
func GetWidgetConfig(ctx context.Context, db *gorm.DB, shop string) (*domain.WidgetConfig, error) {
	var cfg domain.WidgetConfig
	err := db.WithContext(ctx).Where("shop = ?", shop).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpsertWidgetConfig writes the full configuration row for a shop:
// create-if-absent, else update every field. Partial patches are
// intentionally unsupported; the service supplies a fully defaulted value.
func UpsertWidgetConfig(ctx context.Context, db *gorm.DB, cfg *domain.WidgetConfig) (*domain.WidgetConfig, error) {
	var existing domain.WidgetConfig
	err := db.WithContext(ctx).Where("shop = ?", cfg.Shop).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"title":           cfg.Title,
			"color":           cfg.Color,
			"greeting":        cfg.Greeting,
			"position":        cfg.Position,
			"is_active":       cfg.IsActive,
			"agent_name":      cfg.AgentName,
			"agent_role":      cfg.AgentRole,
			"response_length": cfg.ResponseLength,
			"language":        cfg.Language,
			"tone":            cfg.Tone,
			"avatar":          cfg.Avatar,
			"color_scheme":    cfg.ColorScheme,
			"start_color":     cfg.StartColor,
			"end_color":       cfg.EndColor,
			"chat_bg_color":   cfg.ChatBgColor,
			"font_family":     cfg.FontFamily,
			"font_color":      cfg.FontColor,
			"open_by_default": cfg.OpenByDefault,
			"is_pulsing":      cfg.IsPulsing,
		}
		if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return GetWidgetConfig(ctx, db, cfg.Shop)
	case errors.Is(err, gorm.ErrRecordNotFound):
		cfg.ID = uuid.NewString()
		cfg.CreatedAt = time.Now().UTC()
		if err := db.WithContext(ctx).Create(cfg).Error; err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		return nil, err
	}
}
