// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Plan and
// ShopPlan models: static tier reference data and the one-per-shop binding.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
)

// DefaultPlans is the seeded tier catalog. Limits use the UnlimitedQuota
// sentinel (-1) for uncapped tiers.
var DefaultPlans = []domain.Plan{
	{
		Name: "free", DisplayName: "Free", Price: 0,
		MaxConversations: 100, MaxMessages: 1000, IsActive: true,
		Features: domain.StringList{
			"Up to 100 conversations/month",
			"Up to 1,000 messages/month",
			"Basic chat widget",
			"Standard support",
			"Basic customization",
		},
	},
	{
		Name: "starter", DisplayName: "Starter", Price: 29,
		MaxConversations: 500, MaxMessages: 5000, IsActive: true,
		Features: domain.StringList{
			"Up to 500 conversations/month",
			"Up to 5,000 messages/month",
			"Advanced chat widget",
			"Priority support",
			"Full customization",
			"Analytics dashboard",
			"Email notifications",
		},
	},
	{
		Name: "professional", DisplayName: "Professional", Price: 79,
		MaxConversations: 2000, MaxMessages: 20000, IsActive: true,
		Features: domain.StringList{
			"Up to 2,000 conversations/month",
			"Up to 20,000 messages/month",
			"Premium chat widget",
			"24/7 support",
			"Advanced customization",
			"Advanced analytics",
			"Custom branding",
			"API access",
			"Webhook integrations",
		},
	},
	{
		Name: "enterprise", DisplayName: "Enterprise", Price: 199,
		MaxConversations: domain.UnlimitedQuota, MaxMessages: domain.UnlimitedQuota, IsActive: true,
		Features: domain.StringList{
			"Unlimited conversations",
			"Unlimited messages",
			"Enterprise chat widget",
			"Dedicated support",
			"White-label solution",
			"Advanced analytics",
			"Custom integrations",
			"SLA guarantee",
		},
	},
}

// SeedPlans upserts the tier catalog by name. Existing rows keep their IDs
// so ShopPlan bindings survive a reseed.
func SeedPlans(ctx context.Context, db *gorm.DB) error {
	for _, p := range DefaultPlans {
		var existing domain.Plan
		err := db.WithContext(ctx).Where("name = ?", p.Name).First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"display_name":      p.DisplayName,
				"price":             p.Price,
				"max_conversations": p.MaxConversations,
				"max_messages":      p.MaxMessages,
				"features":          p.Features,
				"is_active":         p.IsActive,
			}
			if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			p.ID = uuid.NewString()
			p.CreatedAt = time.Now().UTC()
			if err := db.WithContext(ctx).Create(&p).Error; err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// GetPlanByName fetches a plan tier by its unique name, or ErrNotFound.
func GetPlanByName(ctx context.Context, db *gorm.DB, name string) (*domain.Plan, error) {
	var p domain.Plan
	if err := db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans returns all active plan tiers ordered by price ascending.
func ListPlans(ctx context.Context, db *gorm.DB) ([]domain.Plan, error) {
	var out []domain.Plan
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price asc").
		Find(&out).Error
	return out, err
}

// GetShopPlan fetches the shop's plan binding with the Plan preloaded.
// Returns ErrNotFound when the shop has no binding yet.
func GetShopPlan(ctx context.Context, db *gorm.DB, shop string) (*domain.ShopPlan, error) {
	var sp domain.ShopPlan
	err := db.WithContext(ctx).
		Preload("Plan").
		Where("shop = ?", shop).
		First(&sp).Error
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// BindShopPlan creates or replaces the shop's plan binding with the given
// billing period. The unique index on shop guarantees at most one row.
func BindShopPlan(ctx context.Context, db *gorm.DB, shop, planID string, periodStart, periodEnd time.Time) (*domain.ShopPlan, error) {
	var sp domain.ShopPlan
	err := db.WithContext(ctx).Where("shop = ?", shop).First(&sp).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"plan_id":              planID,
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
		}
		if err := db.WithContext(ctx).Model(&sp).Updates(updates).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		sp = domain.ShopPlan{
			ID:                 uuid.NewString(),
			Shop:               shop,
			PlanID:             planID,
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
			CreatedAt:          time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&sp).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return GetShopPlan(ctx, db, shop)
}
