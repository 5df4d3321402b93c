package models

import (
	"time"

	"gorm.io/gorm"
)

// ReportingOutboxRecord implements a transactional outbox for the reporting
// aggregator: the record is written inside the mutation's DB transaction and
// published to Pub/Sub asynchronously after commit by the outbox dispatcher.
type ReportingOutboxRecord struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	BusinessId    string              `gorm:"index;not null" json:"business_id"`
	AccountId     int                 `gorm:"index" json:"account_id"`
	EventType     EventType           `gorm:"size:64;not null" json:"event_type"`
	Payload       []byte              `gorm:"type:mediumblob" json:"payload"`
	PublishStatus OutboxPublishStatus `gorm:"size:16;not null;index;default:PENDING" json:"publish_status"`
	Attempts      int                 `gorm:"default:0" json:"attempts"`
	LastError     *string             `gorm:"type:text" json:"last_error"`
	NextAttemptAt *time.Time          `gorm:"index" json:"next_attempt_at"`
	CorrelationId string              `gorm:"size:64" json:"correlation_id"`
	PublishedAt   *time.Time          `json:"published_at"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func enqueueReconcileEvent(tx *gorm.DB, businessId string, accountId int, eventType EventType, payload []byte) error {
	record := ReportingOutboxRecord{
		BusinessId:    businessId,
		AccountId:     accountId,
		EventType:     eventType,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&record).Error
}

// PendingOutboxRecords returns the oldest unpublished records that are due
// for (re)delivery, bounded.
func PendingOutboxRecords(db *gorm.DB, limit int) ([]*ReportingOutboxRecord, error) {
	var records []*ReportingOutboxRecord
	err := db.Where("publish_status = ?", OutboxPublishStatusPending).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", time.Now().UTC()).
		Order("id ASC").Limit(limit).Find(&records).Error
	return records, err
}
