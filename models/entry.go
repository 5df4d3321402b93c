package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"gorm.io/gorm"
)

// Entry is a ledger-side record. AmountCents is signed: inflow positive,
// outflow negative. Adjustment and soft-deleted entries are never matchable.
type Entry struct {
	ID           int            `gorm:"primary_key" json:"id"`
	BusinessId   string         `gorm:"index;not null" json:"business_id"`
	AccountId    int            `gorm:"index;not null" json:"account_id"`
	EntryDate    DateOnly       `gorm:"type:date;not null;index" json:"entry_date"`
	EntryType    EntryType      `gorm:"type:enum('INCOME','EXPENSE','TRANSFER','ADJUSTMENT','OPENING');not null" json:"entry_type"`
	AmountCents  Cents          `gorm:"not null" json:"amount_cents"`
	Payee        string         `gorm:"size:100" json:"payee"`
	Memo         string         `gorm:"size:255" json:"memo"`
	Method       string         `gorm:"size:50" json:"method"`
	CategoryId   *int           `json:"category_id"`
	IsAdjustment bool           `gorm:"not null;default:false" json:"is_adjustment"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Matchable reports whether the entry may participate in any match.
func (e *Entry) Matchable() bool {
	return !e.IsAdjustment && !e.DeletedAt.Valid
}

type NewEntry struct {
	AccountId   int       `json:"account_id" binding:"required"`
	EntryDate   DateOnly  `json:"entry_date" binding:"required"`
	EntryType   EntryType `json:"entry_type" binding:"required"`
	AmountCents Cents     `json:"amount_cents"`
	Payee       string    `json:"payee"`
	Memo        string    `json:"memo"`
	Method      string    `json:"method"`
	CategoryId  *int      `json:"category_id"`
}

func validateEntryInput(input *NewEntry) error {
	switch input.EntryType {
	case EntryTypeIncome:
		if input.AmountCents <= 0 {
			return ErrValidation("income entries must have a positive amount")
		}
	case EntryTypeExpense:
		if input.AmountCents >= 0 {
			return ErrValidation("expense entries must have a negative amount")
		}
	case EntryTypeTransfer, EntryTypeAdjustment, EntryTypeOpening:
		if input.AmountCents == 0 {
			return ErrValidation("entry amount must be non-zero")
		}
	default:
		return ErrValidation("invalid entry type")
	}
	return nil
}

func CreateEntry(ctx context.Context, input *NewEntry) (*Entry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := validateEntryInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Account](ctx, businessId, input.AccountId); err != nil {
		return nil, err
	}
	if err := assertNotClosedPeriod(ctx, businessId, input.EntryDate.Time()); err != nil {
		return nil, err
	}

	entry := Entry{
		BusinessId:   businessId,
		AccountId:    input.AccountId,
		EntryDate:    input.EntryDate,
		EntryType:    input.EntryType,
		AmountCents:  input.AmountCents,
		Payee:        input.Payee,
		Memo:         input.Memo,
		Method:       input.Method,
		CategoryId:   input.CategoryId,
		IsAdjustment: input.EntryType == EntryTypeAdjustment,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func GetEntry(ctx context.Context, id int) (*Entry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Entry](ctx, businessId, id)
}

type EntryFilter struct {
	AccountId int
	EntryType EntryType
	DateFrom  *DateOnly
	DateTo    *DateOnly
	Unmatched bool
	Limit     int
	Offset    int
}

func ListEntries(ctx context.Context, filter *EntryFilter) ([]*Entry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Entry{}).Where("business_id = ?", businessId)
	if filter.AccountId > 0 {
		query = query.Where("account_id = ?", filter.AccountId)
	}
	if filter.EntryType != "" {
		query = query.Where("entry_type = ?", filter.EntryType)
	}
	if filter.DateFrom != nil {
		query = query.Where("entry_date >= ?", filter.DateFrom.Time())
	}
	if filter.DateTo != nil {
		query = query.Where("entry_date <= ?", filter.DateTo.Time())
	}
	if filter.Unmatched {
		query = query.
			Where("id NOT IN (?)", db.Model(&BankMatch{}).Select("entry_id").
				Where("business_id = ? AND is_voided = ?", businessId, false)).
			Where("id NOT IN (?)", db.Model(&MatchClaim{}).Select("resource_id").
				Where("business_id = ? AND resource_type = ?", businessId, ClaimResourceEntry))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []*Entry
	if err := query.Order("entry_date DESC, id DESC").Limit(limit).Offset(filter.Offset).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

type NewEntryFromBankTxn struct {
	AutoMatch  bool   `json:"auto_match"`
	Memo       string `json:"memo"`
	Method     string `json:"method"`
	CategoryId *int   `json:"category_id"`
}

// CreateEntryFromBankTxn writes a ledger entry mirroring a bank transaction.
// The entry's type and sign are derived from the bank amount: inflow becomes
// INCOME, outflow becomes EXPENSE. With AutoMatch the two are matched for
// the bank transaction's entire remaining amount in the same transaction.
func CreateEntryFromBankTxn(ctx context.Context, bankTxnId int, input *NewEntryFromBankTxn) (*Entry, *int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	bankTxn, err := utils.FetchModel[BankTransaction](ctx, businessId, bankTxnId)
	if err != nil {
		return nil, nil, err
	}
	if bankTxn.IsRemoved {
		return nil, nil, ErrValidation("bank transaction has been removed")
	}
	if bankTxn.AmountCents.IsZero() {
		return nil, nil, ErrValidation("bank transaction amount is zero")
	}
	entryType := EntryTypeIncome
	if bankTxn.AmountCents < 0 {
		entryType = EntryTypeExpense
	}
	if err := assertNotClosedPeriod(ctx, businessId, bankTxn.PostedDate.Time()); err != nil {
		return nil, nil, err
	}

	entry := Entry{
		BusinessId:  businessId,
		AccountId:   bankTxn.AccountId,
		EntryDate:   bankTxn.PostedDate,
		EntryType:   entryType,
		AmountCents: bankTxn.AmountCents,
		Payee:       bankTxn.Description,
		Memo:        input.Memo,
		Method:      input.Method,
		CategoryId:  input.CategoryId,
	}

	var matchId *int
	err = withMatchLock(ctx, businessId, bankTxn.AccountId, func(tx *gorm.DB) error {
		matchedSum, err := bankTxnMatchedCents(tx, businessId, bankTxn.ID)
		if err != nil {
			return err
		}
		remaining := bankTxn.AmountCents.Abs() - matchedSum
		if remaining <= 0 {
			return ErrConflict("bank transaction is already fully matched")
		}

		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		payload := EntryCreatedFromBankPayload{
			EntryId:           entry.ID,
			BankTransactionId: bankTxn.ID,
			AutoMatched:       input.AutoMatch,
			EntryType:         string(entryType),
			AmountCents:       entry.AmountCents,
		}
		if input.AutoMatch {
			// A brand-new entry has no prior match, so the remaining amount
			// can be taken whole.
			matchedCents := Cents(bankTxn.AmountCents.Sign()) * remaining
			matchType := MatchTypeFull
			if remaining < entry.AmountCents.Abs() {
				matchType = MatchTypePartial
			}
			match, err := createMatchInTx(tx, businessId, bankTxn, &entry, matchedCents, matchType)
			if err != nil {
				return err
			}
			matchId = &match.ID
			payload.MatchId = matchId
		}
		return appendActivity(tx, bankTxn.AccountId, EventEntryCreatedFromBank, payload)
	})
	if err != nil {
		return nil, nil, err
	}
	return &entry, matchId, nil
}
