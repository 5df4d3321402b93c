package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

type AccountType string

const (
	AccountTypeChecking   AccountType = "CHECKING"
	AccountTypeSavings    AccountType = "SAVINGS"
	AccountTypeCreditCard AccountType = "CREDIT_CARD"
	AccountTypeCash       AccountType = "CASH"
)

// Account is a reconcilable money account. The ledger owns richer account
// data; the core only needs identity and scope.
type Account struct {
	ID          int         `gorm:"primary_key" json:"id"`
	BusinessId  string      `gorm:"index;not null" json:"business_id"`
	Name        string      `gorm:"size:100;not null" json:"name" binding:"required"`
	AccountType AccountType `gorm:"type:enum('CHECKING','SAVINGS','CREDIT_CARD','CASH');default:CHECKING" json:"account_type"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Name        string      `json:"name" binding:"required"`
	AccountType AccountType `json:"account_type"`
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	accountType := input.AccountType
	if accountType == "" {
		accountType = AccountTypeChecking
	}
	account := Account{
		BusinessId:  businessId,
		Name:        input.Name,
		AccountType: accountType,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Account](ctx, businessId, id)
}

func ListAccounts(ctx context.Context) ([]*Account, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Account](ctx, businessId)
}
