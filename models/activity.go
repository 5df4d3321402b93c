package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity is the append-only audit trail. One row per core mutation; rows are
// never updated or deleted.
type Activity struct {
	ID             int       `gorm:"primary_key" json:"id"`
	BusinessId     string    `gorm:"index;not null" json:"business_id"`
	ActorUserId    int       `gorm:"index;not null" json:"actor_user_id"`
	ActorName      string    `gorm:"size:100" json:"actor_name"`
	ScopeAccountId int       `gorm:"index" json:"scope_account_id"`
	EventType      EventType `gorm:"size:64;not null;index" json:"event_type"`
	PayloadJson    string    `gorm:"type:text;not null" json:"payload_json"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

/*
Payload union, keyed by EventType. Each variant has a fixed shape so the audit
trail stays type-safe while remaining extensible.
*/

type MatchGroupCreatedPayload struct {
	MatchGroupId       int       `json:"match_group_id"`
	Direction          Direction `json:"direction"`
	BankTransactionIds []int     `json:"bank_transaction_ids"`
	EntryIds           []int     `json:"entry_ids"`
	TotalCents         Cents     `json:"total_cents"`
}

type MatchGroupVoidedPayload struct {
	MatchGroupId       int    `json:"match_group_id"`
	Reason             string `json:"reason"`
	BankTransactionIds []int  `json:"bank_transaction_ids"`
	EntryIds           []int  `json:"entry_ids"`
}

type MatchCreatedPayload struct {
	MatchId           int       `json:"match_id"`
	BankTransactionId int       `json:"bank_transaction_id"`
	EntryId           int       `json:"entry_id"`
	MatchType         MatchType `json:"match_type"`
	MatchedCents      Cents     `json:"matched_cents"`
}

type MatchVoidedPayload struct {
	BankTransactionId int `json:"bank_transaction_id"`
	VoidedCount       int `json:"voided_count"`
}

type EntryCreatedFromBankPayload struct {
	EntryId           int    `json:"entry_id"`
	BankTransactionId int    `json:"bank_transaction_id"`
	AutoMatched       bool   `json:"auto_matched"`
	MatchId           *int   `json:"match_id,omitempty"`
	EntryType         string `json:"entry_type"`
	AmountCents       Cents  `json:"amount_cents"`
}

type ClosedThroughUpdatedPayload struct {
	ClosedThroughDate string `json:"closed_through_date"`
	PreviousDate      string `json:"previous_date"`
	Reason            string `json:"reason"`
}

type StatementImportedPayload struct {
	StatementImportId int    `json:"statement_import_id"`
	FileName          string `json:"file_name"`
	RowCount          int    `json:"row_count"`
	ImportedCount     int    `json:"imported_count"`
	DuplicateCount    int    `json:"duplicate_count"`
}

// DecodePayload returns the typed payload for this activity row.
func (a Activity) DecodePayload() (interface{}, error) {
	raw := []byte(a.PayloadJson)
	switch a.EventType {
	case EventMatchGroupCreated:
		var p MatchGroupCreatedPayload
		return &p, json.Unmarshal(raw, &p)
	case EventMatchGroupVoided:
		var p MatchGroupVoidedPayload
		return &p, json.Unmarshal(raw, &p)
	case EventMatchCreated:
		var p MatchCreatedPayload
		return &p, json.Unmarshal(raw, &p)
	case EventMatchVoided:
		var p MatchVoidedPayload
		return &p, json.Unmarshal(raw, &p)
	case EventEntryCreatedFromBank:
		var p EntryCreatedFromBankPayload
		return &p, json.Unmarshal(raw, &p)
	case EventClosedThroughUpdated:
		var p ClosedThroughUpdatedPayload
		return &p, json.Unmarshal(raw, &p)
	case EventStatementImported:
		var p StatementImportedPayload
		return &p, json.Unmarshal(raw, &p)
	default:
		return nil, errors.New("unknown event type " + string(a.EventType))
	}
}

// appendActivity writes one audit row plus its reporting outbox record inside
// the caller's transaction. Actor and tenant come from the tx context, so the
// row can never be attributed to the wrong user or business.
func appendActivity(tx *gorm.DB, scopeAccountId int, eventType EventType, payload interface{}) error {
	ctx := tx.Statement.Context

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	activity := Activity{
		BusinessId:     businessId,
		ActorUserId:    userId,
		ActorName:      userName,
		ScopeAccountId: scopeAccountId,
		EventType:      eventType,
		PayloadJson:    string(payloadJson),
	}
	if err := tx.Create(&activity).Error; err != nil {
		return err
	}

	return enqueueReconcileEvent(tx, businessId, scopeAccountId, eventType, payloadJson)
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func GetActivities(ctx context.Context, accountId *int, eventType *string, limit int) ([]*Activity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if accountId != nil && *accountId > 0 {
		dbCtx = dbCtx.Where("scope_account_id = ?", *accountId)
	}
	if eventType != nil && *eventType != "" {
		dbCtx = dbCtx.Where("event_type = ?", *eventType)
	}

	var results []*Activity
	if err := dbCtx.Order("created_at DESC, id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
