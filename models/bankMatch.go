package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"gorm.io/gorm"
)

// BankMatch is the legacy 1:1 match between a bank transaction and a ledger
// entry. A bank transaction may carry several active matches (partial
// consumption); an entry carries at most one, enforced by the unique index
// on ActiveEntryId. Voiding clears ActiveEntryId so the entry frees up.
type BankMatch struct {
	ID                int        `gorm:"primary_key" json:"id"`
	BusinessId        string     `gorm:"index;not null" json:"business_id"`
	AccountId         int        `gorm:"index;not null" json:"account_id"`
	BankTransactionId int        `gorm:"index;not null" json:"bank_transaction_id"`
	EntryId           int        `gorm:"not null" json:"entry_id"`
	ActiveEntryId     *int       `gorm:"uniqueIndex:uniq_active_entry" json:"-"`
	MatchedCents      Cents      `gorm:"not null" json:"matched_cents"`
	MatchType         MatchType  `gorm:"type:enum('FULL','PARTIAL');not null" json:"match_type"`
	IsVoided          bool       `gorm:"not null;default:false" json:"is_voided"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	VoidedAt          *time.Time `json:"voided_at"`
	VoidedByUserId    *int       `json:"voided_by_user_id"`
}

type NewBankMatch struct {
	// AccountId comes from the route, not the body.
	AccountId         int       `json:"-"`
	ClientId          string    `json:"client_id"`
	BankTransactionId int       `json:"bank_transaction_id" binding:"required"`
	EntryId           int       `json:"entry_id" binding:"required"`
	MatchType         MatchType `json:"match_type" binding:"omitempty,matchtype"`
	MatchedCents      *Cents    `json:"matched_cents"`
}

// createMatchInTx writes a match row inside an open transaction. The caller
// holds the account match lock and has already validated remaining amounts
// and the closed-period guard. The unique index on ActiveEntryId turns a
// lost race on the entry into a duplicate-key error.
func createMatchInTx(tx *gorm.DB, businessId string, bankTxn *BankTransaction, entry *Entry, matchedCents Cents, matchType MatchType) (*BankMatch, error) {
	if bankTxn.IsRemoved {
		return nil, ErrValidation("bank transaction has been removed")
	}
	if !entry.Matchable() {
		return nil, ErrValidation("adjustment entries cannot be matched")
	}
	if entry.AmountCents.Sign() != bankTxn.AmountCents.Sign() {
		return nil, ErrValidation("entry and bank transaction must have the same direction")
	}
	if matchedCents.Sign() != bankTxn.AmountCents.Sign() {
		return nil, ErrValidation("matched amount must have the bank transaction's sign")
	}
	if matchedCents.Abs() > entry.AmountCents.Abs() {
		return nil, ErrValidation("matched amount exceeds entry amount")
	}

	var claimCount int64
	if err := tx.Model(&MatchClaim{}).
		Where("business_id = ? AND resource_type = ? AND resource_id = ?",
			businessId, ClaimResourceEntry, entry.ID).
		Count(&claimCount).Error; err != nil {
		return nil, err
	}
	if claimCount > 0 {
		return nil, ErrConflict("entry already belongs to a match group")
	}

	entryId := entry.ID
	match := BankMatch{
		BusinessId:        businessId,
		AccountId:         bankTxn.AccountId,
		BankTransactionId: bankTxn.ID,
		EntryId:           entry.ID,
		ActiveEntryId:     &entryId,
		MatchedCents:      matchedCents,
		MatchType:         matchType,
	}
	if err := tx.Create(&match).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrConflict("entry already has an active match")
		}
		return nil, err
	}
	return &match, nil
}

// CreateMatch attaches a ledger entry to a bank transaction. A FULL match
// must cover the entry's amount exactly; a PARTIAL match must cover strictly
// less. When MatchedCents is omitted the match takes as much of the bank
// transaction's remaining amount as the entry covers.
func CreateMatch(ctx context.Context, input *NewBankMatch) (*BankMatch, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	bankTxn, err := utils.FetchModel[BankTransaction](ctx, businessId, input.BankTransactionId)
	if err != nil {
		return nil, err
	}
	entry, err := utils.FetchModel[Entry](ctx, businessId, input.EntryId)
	if err != nil {
		return nil, err
	}
	if entry.AccountId != bankTxn.AccountId {
		return nil, ErrValidation("entry and bank transaction belong to different accounts")
	}
	if input.AccountId != 0 && input.AccountId != bankTxn.AccountId {
		return nil, ErrValidation("bank transaction does not belong to this account")
	}
	if entry.AmountCents.IsZero() || bankTxn.AmountCents.IsZero() {
		return nil, ErrValidation("cannot match zero amounts")
	}
	if entry.AmountCents.Sign() != bankTxn.AmountCents.Sign() {
		return nil, ErrValidation("entry and bank transaction must have the same direction")
	}
	if err := assertNotClosedPeriod(ctx, businessId, entry.EntryDate.Time()); err != nil {
		return nil, err
	}

	var match *BankMatch
	err = withMatchLock(ctx, businessId, bankTxn.AccountId, func(tx *gorm.DB) error {
		var claimCount int64
		if err := tx.Model(&MatchClaim{}).
			Where("business_id = ? AND resource_type = ? AND resource_id = ?",
				businessId, ClaimResourceBank, bankTxn.ID).
			Count(&claimCount).Error; err != nil {
			return err
		}
		if claimCount > 0 {
			return ErrConflict("bank transaction already belongs to a match group")
		}

		matchedSum, err := bankTxnMatchedCents(tx, businessId, bankTxn.ID)
		if err != nil {
			return err
		}
		remaining := bankTxn.AmountCents.Abs() - matchedSum
		if remaining <= 0 {
			return ErrConflict("no remaining amount on bank transaction")
		}

		sign := Cents(bankTxn.AmountCents.Sign())
		matchedCents := sign * min(remaining, entry.AmountCents.Abs())
		if input.MatchedCents != nil {
			matchedCents = *input.MatchedCents
			if matchedCents.Abs() > remaining {
				return ErrValidation("matched amount exceeds bank transaction's remaining amount")
			}
		}
		matchType := MatchTypePartial
		if matchedCents.Abs() == entry.AmountCents.Abs() {
			matchType = MatchTypeFull
		}
		if input.MatchType != "" && input.MatchType != matchType {
			if input.MatchType == MatchTypeFull {
				return ErrValidation("a full match must cover the entry amount exactly")
			}
			return ErrValidation("a partial match must cover less than the entry amount")
		}

		match, err = createMatchInTx(tx, businessId, bankTxn, entry, matchedCents, matchType)
		if err != nil {
			return err
		}
		return appendActivity(tx, bankTxn.AccountId, EventMatchCreated, MatchCreatedPayload{
			MatchId:           match.ID,
			BankTransactionId: bankTxn.ID,
			EntryId:           entry.ID,
			MatchedCents:      matchedCents,
			MatchType:         matchType,
		})
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// UnmatchBankTransaction voids every active match on the bank transaction.
func UnmatchBankTransaction(ctx context.Context, bankTxnId int) (int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}

	bankTxn, err := utils.FetchModel[BankTransaction](ctx, businessId, bankTxnId)
	if err != nil {
		return 0, err
	}

	// The guard runs over the entries being freed, not the bank posted date.
	db := config.GetDB()
	var entryIds []int
	if err := db.WithContext(ctx).Model(&BankMatch{}).
		Where("business_id = ? AND bank_transaction_id = ? AND is_voided = ?",
			businessId, bankTxnId, false).
		Pluck("entry_id", &entryIds).Error; err != nil {
		return 0, err
	}
	if err := AssertNotClosedPeriodForEntryIds(ctx, businessId, entryIds); err != nil {
		return 0, err
	}

	actorId, _ := utils.GetUserIdFromContext(ctx)
	var voided int
	err = withMatchLock(ctx, businessId, bankTxn.AccountId, func(tx *gorm.DB) error {
		result := tx.Model(&BankMatch{}).
			Where("business_id = ? AND bank_transaction_id = ? AND is_voided = ?",
				businessId, bankTxnId, false).
			Updates(map[string]interface{}{
				"is_voided":         true,
				"active_entry_id":   nil,
				"voided_at":         time.Now(),
				"voided_by_user_id": actorId,
			})
		if result.Error != nil {
			return result.Error
		}
		voided = int(result.RowsAffected)
		if voided == 0 {
			return ErrValidation("bank transaction has no active matches")
		}
		return appendActivity(tx, bankTxn.AccountId, EventMatchVoided, MatchVoidedPayload{
			BankTransactionId: bankTxnId,
			VoidedCount:       voided,
		})
	})
	if err != nil {
		return 0, err
	}
	return voided, nil
}

type BatchItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchSummary totals a best-effort batch response.
type BatchSummary struct {
	Ok     int `json:"ok"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

type MatchBatchItemResult struct {
	ClientId string          `json:"client_id"`
	Ok       bool            `json:"ok"`
	MatchId  int             `json:"match_id,omitempty"`
	Error    *BatchItemError `json:"error,omitempty"`
}

func batchItemError(err error) *BatchItemError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &BatchItemError{Code: appErr.Code, Message: appErr.Message}
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return &BatchItemError{Code: CodeNotFound, Message: err.Error()}
	}
	return &BatchItemError{Code: CodeValidation, Message: err.Error()}
}

// CreateMatchesBatch applies each item in its own transaction: one item's
// failure never rolls back the others. The closed-period guard runs once, up
// front, over the union of referenced entries, so a period-blocked batch
// never partially commits.
func CreateMatchesBatch(ctx context.Context, inputs []*NewBankMatch) ([]*MatchBatchItemResult, *BatchSummary, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}
	if len(inputs) == 0 {
		return nil, nil, ErrValidation("batch is empty")
	}
	if len(inputs) > 100 {
		return nil, nil, ErrValidation("batch exceeds 100 items")
	}

	entryIds := make([]int, 0, len(inputs))
	for _, input := range inputs {
		entryIds = append(entryIds, input.EntryId)
	}
	if err := AssertNotClosedPeriodForEntryIds(ctx, businessId, utils.UniqueSlice(entryIds)); err != nil {
		return nil, nil, err
	}

	summary := BatchSummary{Total: len(inputs)}
	results := make([]*MatchBatchItemResult, 0, len(inputs))
	for _, input := range inputs {
		match, err := CreateMatch(ctx, input)
		if err != nil {
			summary.Failed++
			results = append(results, &MatchBatchItemResult{ClientId: input.ClientId, Error: batchItemError(err)})
			continue
		}
		summary.Ok++
		results = append(results, &MatchBatchItemResult{ClientId: input.ClientId, Ok: true, MatchId: match.ID})
	}
	return results, &summary, nil
}

func GetBankMatches(ctx context.Context, bankTxnId int, includeVoided bool) ([]*BankMatch, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&BankMatch{}).
		Where("business_id = ? AND bank_transaction_id = ?", businessId, bankTxnId)
	if !includeVoided {
		query = query.Where("is_voided = ?", false)
	}

	var matches []*BankMatch
	if err := query.Order("id").Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}
