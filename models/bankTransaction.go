package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"gorm.io/gorm"
)

// BankTransaction is a bank-feed record. AmountCents is signed the same way
// as Entry.AmountCents: deposits positive, withdrawals negative.
type BankTransaction struct {
	ID          int                   `gorm:"primary_key" json:"id"`
	BusinessId  string                `gorm:"index;not null" json:"business_id"`
	AccountId   int                   `gorm:"index;not null" json:"account_id"`
	PostedDate  DateOnly              `gorm:"type:date;not null;index" json:"posted_date"`
	AmountCents Cents                 `gorm:"not null" json:"amount_cents"`
	Description string                `gorm:"size:255" json:"description"`
	IsRemoved   bool                  `gorm:"not null;default:false" json:"is_removed"`
	Source      BankTransactionSource `gorm:"type:enum('PLAID','CSV');default:CSV" json:"source"`
	ExternalRef string                `gorm:"size:100;index" json:"external_ref"`
	ImportId    *int                  `gorm:"index" json:"import_id"`
	CreatedAt   time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBankTransaction struct {
	AccountId   int                   `json:"account_id" binding:"required"`
	PostedDate  DateOnly              `json:"posted_date" binding:"required"`
	AmountCents Cents                 `json:"amount_cents"`
	Description string                `json:"description"`
	Source      BankTransactionSource `json:"source"`
	ExternalRef string                `json:"external_ref"`
}

func CreateBankTransaction(ctx context.Context, input *NewBankTransaction) (*BankTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if input.AmountCents == 0 {
		return nil, ErrValidation("bank transaction amount must be non-zero")
	}
	if err := utils.ValidateResourceId[Account](ctx, businessId, input.AccountId); err != nil {
		return nil, err
	}

	source := input.Source
	if source == "" {
		source = BankTransactionSourceCSV
	}
	bankTxn := BankTransaction{
		BusinessId:  businessId,
		AccountId:   input.AccountId,
		PostedDate:  input.PostedDate,
		AmountCents: input.AmountCents,
		Description: input.Description,
		Source:      source,
		ExternalRef: input.ExternalRef,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&bankTxn).Error; err != nil {
		return nil, err
	}
	return &bankTxn, nil
}

func GetBankTransaction(ctx context.Context, id int) (*BankTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[BankTransaction](ctx, businessId, id)
}

type BankTransactionFilter struct {
	AccountId int
	DateFrom  *DateOnly
	DateTo    *DateOnly
	Unmatched bool
	Limit     int
	Offset    int
}

func ListBankTransactions(ctx context.Context, filter *BankTransactionFilter) ([]*BankTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&BankTransaction{}).
		Where("business_id = ? AND is_removed = ?", businessId, false)
	if filter.AccountId > 0 {
		query = query.Where("account_id = ?", filter.AccountId)
	}
	if filter.DateFrom != nil {
		query = query.Where("posted_date >= ?", filter.DateFrom.Time())
	}
	if filter.DateTo != nil {
		query = query.Where("posted_date <= ?", filter.DateTo.Time())
	}
	if filter.Unmatched {
		query = query.
			Where("id NOT IN (?)", db.Model(&BankMatch{}).Select("bank_transaction_id").
				Where("business_id = ? AND is_voided = ?", businessId, false)).
			Where("id NOT IN (?)", db.Model(&MatchClaim{}).Select("resource_id").
				Where("business_id = ? AND resource_type = ?", businessId, ClaimResourceBank))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var bankTxns []*BankTransaction
	if err := query.Order("posted_date DESC, id DESC").Limit(limit).Offset(filter.Offset).
		Find(&bankTxns).Error; err != nil {
		return nil, err
	}
	return bankTxns, nil
}

// bankTxnMatchedCents sums the absolute value of non-voided legacy matches
// against the bank transaction. Callers hold the account match lock.
func bankTxnMatchedCents(tx *gorm.DB, businessId string, bankTxnId int) (Cents, error) {
	var total int64
	err := tx.Model(&BankMatch{}).
		Where("business_id = ? AND bank_transaction_id = ? AND is_voided = ?",
			businessId, bankTxnId, false).
		Select("COALESCE(SUM(ABS(matched_cents)), 0)").
		Row().Scan(&total)
	if err != nil {
		return 0, err
	}
	return Cents(total), nil
}

// assertBankTxnUnclaimed rejects a bank transaction that already carries a
// legacy match or belongs to an active match group.
func assertBankTxnUnclaimed(ctx context.Context, businessId string, bankTxn *BankTransaction) error {
	db := config.GetDB().WithContext(ctx)

	var matchCount int64
	if err := db.Model(&BankMatch{}).
		Where("business_id = ? AND bank_transaction_id = ? AND is_voided = ?",
			businessId, bankTxn.ID, false).
		Count(&matchCount).Error; err != nil {
		return err
	}
	if matchCount > 0 {
		return ErrConflict("bank transaction already has a match")
	}

	var claimCount int64
	if err := db.Model(&MatchClaim{}).
		Where("business_id = ? AND resource_type = ? AND resource_id = ?",
			businessId, ClaimResourceBank, bankTxn.ID).
		Count(&claimCount).Error; err != nil {
		return err
	}
	if claimCount > 0 {
		return ErrConflict("bank transaction already belongs to a match group")
	}
	return nil
}
