package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"gorm.io/gorm"
)

// assertNotClosedPeriod rejects any mutation whose effective date falls on or
// before the business's closed-through date. It is a pure read-then-decide
// check and must run before any write in the same logical operation.
func assertNotClosedPeriod(ctx context.Context, businessId string, effectiveDate time.Time) error {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	if business.ClosedThroughDate.IsZero() {
		return nil
	}
	tDate, err := utils.ConvertToDate(effectiveDate, business.Timezone)
	if err != nil {
		return err
	}
	cDate, err := utils.ConvertToDate(business.ClosedThroughDate, business.Timezone)
	if err != nil {
		return err
	}
	if !tDate.After(cDate) {
		return ErrClosedPeriod()
	}
	return nil
}

// AssertNotClosedPeriod enforces the period lock server-side. Safe to call
// from both API mutations and async workers.
func AssertNotClosedPeriod(ctx context.Context, businessId string, effectiveDate time.Time) error {
	return assertNotClosedPeriod(ctx, businessId, effectiveDate)
}

// AssertNotClosedPeriodForEntryIds resolves each entry's date and fails if any
// falls in the closed period. Used as the batch pre-flight: it runs once over
// the union of entry ids before per-item transactions begin.
func AssertNotClosedPeriodForEntryIds(ctx context.Context, businessId string, entryIds []int) error {
	if len(entryIds) == 0 {
		return nil
	}

	db := config.GetDB()
	var dates []time.Time
	if err := db.WithContext(ctx).Model(&Entry{}).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(entryIds)).
		Pluck("entry_date", &dates).Error; err != nil {
		return err
	}

	// Earliest date is enough: if it clears the lock, all of them do.
	var earliest time.Time
	for _, d := range dates {
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if earliest.IsZero() {
		return nil
	}
	return assertNotClosedPeriod(ctx, businessId, earliest)
}

// withMatchLock runs fn inside a transaction that holds the account's
// advisory lock, serializing remaining-amount computations across
// instances. GET_LOCK is connection-scoped, so the lock, the transaction,
// and the release all ride the same pinned connection — and the lock is
// released only after Commit returns, so a competitor acquiring it always
// sees our committed rows when it re-checks the sums.
func withMatchLock(ctx context.Context, businessId string, accountId int, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	lockName := fmt.Sprintf("match:%s:%d", businessId, accountId)

	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var acquired int
		if err := conn.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&acquired).Error; err != nil {
			return err
		}
		if acquired != 1 {
			return ErrConflict("account is busy, try again")
		}
		defer func() {
			var released int
			_ = conn.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
		}()

		return conn.Transaction(fn)
	})
}
