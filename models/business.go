package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	// ClosedThroughDate is the business-wide period lock. Any mutation whose
	// effective date is on/before it is rejected. Zero means never closed.
	ClosedThroughDate time.Time `json:"closed_through_date"`
	IsActive          *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Timezone    string `json:"timezone"`
}

type NewClosedThrough struct {
	ClosedThroughDate DateOnly `json:"closed_through_date" binding:"required"`
	Reason            string   `json:"reason"`
}

/*
caches:
	Business:$businessId
*/

func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	var business Business
	exists, err := config.GetRedisObject("Business:"+businessId, &business)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if err := config.SetRedisObject("Business:"+businessId, &business, 0); err != nil {
			return nil, err
		}
	}
	return &business, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	business := Business{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Timezone:    input.Timezone,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// UpdateClosedThrough moves the period lock forward (or backward) and records
// the change in the activity log.
func UpdateClosedThrough(ctx context.Context, input *NewClosedThrough) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	newDate := input.ClosedThroughDate.Time()
	if err := tx.WithContext(ctx).Model(&Business{}).Where("id = ?", businessId).
		Update("closed_through_date", newDate).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := appendActivity(tx.WithContext(ctx), 0, EventClosedThroughUpdated, ClosedThroughUpdatedPayload{
		ClosedThroughDate: input.ClosedThroughDate.String(),
		PreviousDate:      NewDateOnly(business.ClosedThroughDate).String(),
		Reason:            input.Reason,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := config.RemoveRedisKey("Business:" + businessId); err != nil {
		return nil, err
	}

	business.ClosedThroughDate = newDate
	return business, nil
}
