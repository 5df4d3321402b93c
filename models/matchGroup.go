package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"gorm.io/gorm"
)

// MatchGroup is a balanced N:M reconciliation between bank transactions and
// ledger entries. All members share one direction and the two sides sum to
// the same total. Groups never mutate after creation; they are voided whole.
type MatchGroup struct {
	ID             int              `gorm:"primary_key" json:"id"`
	BusinessId     string           `gorm:"index;not null" json:"business_id"`
	AccountId      int              `gorm:"index;not null" json:"account_id"`
	Direction      Direction        `gorm:"type:enum('INFLOW','OUTFLOW');not null" json:"direction"`
	TotalCents     Cents            `gorm:"not null" json:"total_cents"`
	Status         MatchGroupStatus `gorm:"type:enum('ACTIVE','VOIDED');default:ACTIVE" json:"status"`
	Note           string           `gorm:"size:255" json:"note"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	VoidedAt       *time.Time       `json:"voided_at"`
	VoidedByUserId *int             `json:"voided_by_user_id"`
	VoidReason     string           `gorm:"size:255" json:"void_reason"`

	BankTransactions []MatchGroupBank  `gorm:"foreignKey:MatchGroupId" json:"bank_transactions"`
	Entries          []MatchGroupEntry `gorm:"foreignKey:MatchGroupId" json:"entries"`
}

// Child amounts are stored unsigned; the group's Direction carries the sign.

type MatchGroupBank struct {
	ID                 int   `gorm:"primary_key" json:"-"`
	MatchGroupId       int   `gorm:"index;not null" json:"-"`
	BankTransactionId  int   `gorm:"not null" json:"bank_transaction_id"`
	MatchedAmountCents Cents `gorm:"not null" json:"matched_amount_cents"`
}

type MatchGroupEntry struct {
	ID                 int   `gorm:"primary_key" json:"-"`
	MatchGroupId       int   `gorm:"index;not null" json:"-"`
	EntryId            int   `gorm:"not null" json:"entry_id"`
	MatchedAmountCents Cents `gorm:"not null" json:"matched_amount_cents"`
}

// MatchClaim marks a resource as consumed by an active match group. The
// unique index turns concurrent claims on the same resource into a
// duplicate-key error, so at-most-one-active-group membership holds without
// a read-check race. Claims are deleted when the group is voided.
type MatchClaim struct {
	ID           int               `gorm:"primary_key"`
	BusinessId   string            `gorm:"uniqueIndex:uniq_match_claim;size:36;not null"`
	ResourceType ClaimResourceType `gorm:"uniqueIndex:uniq_match_claim;type:enum('BANK','ENTRY');not null"`
	ResourceId   int               `gorm:"uniqueIndex:uniq_match_claim;not null"`
	MatchGroupId int               `gorm:"index;not null"`
	CreatedAt    time.Time         `gorm:"autoCreateTime"`
}

type NewMatchGroup struct {
	// AccountId comes from the route, not the body.
	AccountId          int       `json:"-"`
	ClientId           string    `json:"client_id"`
	Direction          Direction `json:"direction" binding:"omitempty,direction"`
	BankTransactionIds []int     `json:"bank_transaction_ids" binding:"required"`
	EntryIds           []int     `json:"entry_ids" binding:"required"`
	Note               string    `json:"note"`
}

// deriveDirection requires every amount to carry the same non-zero sign.
func deriveDirection(amounts []Cents) (Direction, error) {
	if len(amounts) == 0 {
		return "", ErrValidation("amount set is empty")
	}
	sign := amounts[0].Sign()
	if sign == 0 {
		return "", ErrValidation("zero amounts cannot be matched")
	}
	for _, a := range amounts[1:] {
		if a.Sign() == 0 {
			return "", ErrValidation("zero amounts cannot be matched")
		}
		if a.Sign() != sign {
			return "", ErrValidation("all amounts in a match group must have the same direction")
		}
	}
	if sign > 0 {
		return DirectionInflow, nil
	}
	return DirectionOutflow, nil
}

// validateMatchSet checks the balance invariant over the two sides and
// returns the group's direction and total. It is pure: callers load the
// amounts, this decides.
func validateMatchSet(bankCents, entryCents []Cents) (Direction, Cents, error) {
	if len(bankCents) == 0 {
		return "", 0, ErrValidation("at least one bank transaction is required")
	}
	if len(entryCents) == 0 {
		return "", 0, ErrValidation("at least one entry is required")
	}

	bankDir, err := deriveDirection(bankCents)
	if err != nil {
		return "", 0, err
	}
	entryDir, err := deriveDirection(entryCents)
	if err != nil {
		return "", 0, err
	}
	if bankDir != entryDir {
		return "", 0, ErrValidation("bank and entry sides must have the same direction")
	}

	// Both sides are sign-uniform by now, so comparing absolute totals is
	// the same as comparing the signed sums.
	bankTotal := SumAbs(bankCents)
	entryTotal := SumAbs(entryCents)
	if bankTotal != entryTotal {
		return "", 0, ErrValidation("match group is not balanced")
	}
	return bankDir, bankTotal, nil
}

func hasDuplicateIds(ids []int) bool {
	return len(utils.UniqueSlice(ids)) != len(ids)
}

// CreateMatchGroup builds an N:M group. Membership exclusivity is enforced
// twice: a pre-check inside the transaction for a clean error message, and
// the claim table's unique index for the race that slips past it.
func CreateMatchGroup(ctx context.Context, input *NewMatchGroup) (*MatchGroup, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if hasDuplicateIds(input.BankTransactionIds) || hasDuplicateIds(input.EntryIds) {
		return nil, ErrValidation("duplicate ids in match group")
	}
	if len(input.BankTransactionIds)+len(input.EntryIds) > 200 {
		return nil, ErrValidation("match group exceeds 200 members")
	}

	db := config.GetDB()
	var bankTxns []*BankTransaction
	if err := db.WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessId, input.BankTransactionIds).
		Find(&bankTxns).Error; err != nil {
		return nil, err
	}
	if len(bankTxns) != len(input.BankTransactionIds) {
		return nil, ErrNotFound("one or more bank transactions not found")
	}
	var entries []*Entry
	if err := db.WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessId, input.EntryIds).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) != len(input.EntryIds) {
		return nil, ErrNotFound("one or more entries not found")
	}

	accountId := bankTxns[0].AccountId
	if input.AccountId != 0 && input.AccountId != accountId {
		return nil, ErrValidation("match group members do not belong to this account")
	}
	bankCents := make([]Cents, 0, len(bankTxns))
	for _, b := range bankTxns {
		if b.IsRemoved {
			return nil, ErrValidation("bank transaction has been removed")
		}
		if b.AccountId != accountId {
			return nil, ErrValidation("match group members belong to different accounts")
		}
		bankCents = append(bankCents, b.AmountCents)
	}
	var earliestEntry time.Time
	entryCents := make([]Cents, 0, len(entries))
	for _, e := range entries {
		if !e.Matchable() {
			return nil, ErrValidation("adjustment entries cannot be matched")
		}
		if e.AccountId != accountId {
			return nil, ErrValidation("match group members belong to different accounts")
		}
		if earliestEntry.IsZero() || e.EntryDate.Time().Before(earliestEntry) {
			earliestEntry = e.EntryDate.Time()
		}
		entryCents = append(entryCents, e.AmountCents)
	}

	direction, total, err := validateMatchSet(bankCents, entryCents)
	if err != nil {
		return nil, err
	}
	if input.Direction != "" && input.Direction != direction {
		return nil, ErrValidation("direction mismatch")
	}
	if err := assertNotClosedPeriod(ctx, businessId, earliestEntry); err != nil {
		return nil, err
	}

	group := MatchGroup{
		BusinessId: businessId,
		AccountId:  accountId,
		Direction:  direction,
		TotalCents: total,
		Status:     MatchGroupStatusActive,
		Note:       input.Note,
	}

	err = withMatchLock(ctx, businessId, accountId, func(tx *gorm.DB) error {
		// Legacy matches and group claims both block membership.
		var legacyCount int64
		if err := tx.Model(&BankMatch{}).
			Where("business_id = ? AND is_voided = ? AND (bank_transaction_id IN ? OR active_entry_id IN ?)",
				businessId, false, input.BankTransactionIds, input.EntryIds).
			Count(&legacyCount).Error; err != nil {
			return err
		}
		if legacyCount > 0 {
			return ErrConflict("one or more members already have a legacy match")
		}

		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		for _, b := range bankTxns {
			member := MatchGroupBank{
				MatchGroupId:       group.ID,
				BankTransactionId:  b.ID,
				MatchedAmountCents: b.AmountCents.Abs(),
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
			claim := MatchClaim{
				BusinessId:   businessId,
				ResourceType: ClaimResourceBank,
				ResourceId:   b.ID,
				MatchGroupId: group.ID,
			}
			if err := tx.Create(&claim).Error; err != nil {
				if isDuplicateKeyErr(err) {
					return ErrConflict("bank transaction already belongs to a match group")
				}
				return err
			}
		}
		for _, e := range entries {
			member := MatchGroupEntry{
				MatchGroupId:       group.ID,
				EntryId:            e.ID,
				MatchedAmountCents: e.AmountCents.Abs(),
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
			claim := MatchClaim{
				BusinessId:   businessId,
				ResourceType: ClaimResourceEntry,
				ResourceId:   e.ID,
				MatchGroupId: group.ID,
			}
			if err := tx.Create(&claim).Error; err != nil {
				if isDuplicateKeyErr(err) {
					return ErrConflict("entry already belongs to a match group")
				}
				return err
			}
		}
		return appendActivity(tx, accountId, EventMatchGroupCreated, MatchGroupCreatedPayload{
			MatchGroupId:       group.ID,
			Direction:          direction,
			BankTransactionIds: input.BankTransactionIds,
			EntryIds:           input.EntryIds,
			TotalCents:         total,
		})
	})
	if err != nil {
		return nil, err
	}
	return GetMatchGroup(ctx, group.ID)
}

func GetMatchGroup(ctx context.Context, id int) (*MatchGroup, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[MatchGroup](ctx, businessId, id, "BankTransactions", "Entries")
}

// VoidMatchGroup releases the whole group. Members free up atomically with
// the status flip because the claims are deleted in the same transaction.
func VoidMatchGroup(ctx context.Context, id int, reason string) (*MatchGroup, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	group, err := utils.FetchModel[MatchGroup](ctx, businessId, id, "BankTransactions", "Entries")
	if err != nil {
		return nil, err
	}
	if group.Status == MatchGroupStatusVoided {
		return nil, ErrConflict("match group is already voided")
	}

	entryIds := make([]int, 0, len(group.Entries))
	for _, e := range group.Entries {
		entryIds = append(entryIds, e.EntryId)
	}
	if err := AssertNotClosedPeriodForEntryIds(ctx, businessId, entryIds); err != nil {
		return nil, err
	}
	bankTxnIds := make([]int, 0, len(group.BankTransactions))
	for _, b := range group.BankTransactions {
		bankTxnIds = append(bankTxnIds, b.BankTransactionId)
	}

	err = withMatchLock(ctx, businessId, group.AccountId, func(tx *gorm.DB) error {
		now := time.Now()
		var actorId *int
		if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId > 0 {
			actorId = &userId
		}
		result := tx.Model(&MatchGroup{}).
			Where("business_id = ? AND id = ? AND status = ?", businessId, id, MatchGroupStatusActive).
			Updates(map[string]interface{}{
				"status":            MatchGroupStatusVoided,
				"voided_at":         now,
				"voided_by_user_id": actorId,
				"void_reason":       reason,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict("match group is already voided")
		}
		if err := tx.Where("business_id = ? AND match_group_id = ?", businessId, id).
			Delete(&MatchClaim{}).Error; err != nil {
			return err
		}
		group.Status = MatchGroupStatusVoided
		group.VoidedAt = &now
		group.VoidedByUserId = actorId
		group.VoidReason = reason
		return appendActivity(tx, group.AccountId, EventMatchGroupVoided, MatchGroupVoidedPayload{
			MatchGroupId:       id,
			BankTransactionIds: bankTxnIds,
			EntryIds:           entryIds,
			Reason:             reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

type MatchGroupBatchItemResult struct {
	ClientId     string          `json:"client_id"`
	Ok           bool            `json:"ok"`
	MatchGroupId int             `json:"match_group_id,omitempty"`
	Error        *BatchItemError `json:"error,omitempty"`
}

// CreateMatchGroupsBatch rejects the whole batch when any referenced entry
// falls into the closed period, then applies items best-effort in their own
// transactions.
func CreateMatchGroupsBatch(ctx context.Context, inputs []*NewMatchGroup) ([]*MatchGroupBatchItemResult, *BatchSummary, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}
	if len(inputs) == 0 {
		return nil, nil, ErrValidation("batch is empty")
	}
	if len(inputs) > 50 {
		return nil, nil, ErrValidation("batch exceeds 50 items")
	}

	var allEntryIds []int
	for _, input := range inputs {
		allEntryIds = append(allEntryIds, input.EntryIds...)
	}
	if err := AssertNotClosedPeriodForEntryIds(ctx, businessId, utils.UniqueSlice(allEntryIds)); err != nil {
		return nil, nil, err
	}

	summary := &BatchSummary{Total: len(inputs)}
	results := make([]*MatchGroupBatchItemResult, 0, len(inputs))
	for _, input := range inputs {
		group, err := CreateMatchGroup(ctx, input)
		if err != nil {
			summary.Failed++
			results = append(results, &MatchGroupBatchItemResult{ClientId: input.ClientId, Error: batchItemError(err)})
			continue
		}
		summary.Ok++
		results = append(results, &MatchGroupBatchItemResult{ClientId: input.ClientId, Ok: true, MatchGroupId: group.ID})
	}
	return results, summary, nil
}

type MatchGroupFilter struct {
	AccountId int
	Status    MatchGroupStatus
	Limit     int
	Offset    int
}

func ListMatchGroups(ctx context.Context, filter *MatchGroupFilter) ([]*MatchGroup, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&MatchGroup{}).
		Preload("BankTransactions").Preload("Entries").
		Where("business_id = ?", businessId)
	if filter.AccountId > 0 {
		query = query.Where("account_id = ?", filter.AccountId)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var groups []*MatchGroup
	if err := query.Order("id DESC").Limit(limit).Offset(filter.Offset).
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
