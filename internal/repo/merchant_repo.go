// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Merchant
// model (one row per installed shop).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
)

// GetMerchant fetches the merchant record for a shop domain, or ErrNotFound.
func GetMerchant(ctx context.Context, db *gorm.DB, shop string) (*domain.Merchant, error) {
	var m domain.Merchant
	err := db.WithContext(ctx).Where("shop = ?", shop).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMerchant creates the merchant row for shop on first install, or
// refreshes the delegated access token on re-auth. Returns the stored row.
func UpsertMerchant(ctx context.Context, db *gorm.DB, shop, accessToken string) (*domain.Merchant, error) {
	var m domain.Merchant
	err := db.WithContext(ctx).Where("shop = ?", shop).First(&m).Error
	switch {
	case err == nil:
		res := db.WithContext(ctx).Model(&m).Update("access_token", accessToken)
		if res.Error != nil {
			return nil, res.Error
		}
		m.AccessToken = accessToken
		return &m, nil
	case err == gorm.ErrRecordNotFound:
		m = domain.Merchant{
			ID:          uuid.NewString(),
			Shop:        shop,
			AccessToken: accessToken,
			CreatedAt:   time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&m).Error; err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, err
	}
}
