package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const dispatcherLockKey = "recon:outbox-dispatcher"

// OutboxDispatcher drains the reporting outbox: records written inside
// mutation transactions are published to Pub/Sub here, after commit. A redis
// lock keeps a single active dispatcher across instances, so records are
// published in id order without SELECT FOR UPDATE churn.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTTL        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   time.Second,
		LockTTL:        30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	if d.DB == nil {
		return
	}
	locker := config.GetRedisLock()
	if locker == nil {
		return
	}
	lock, err := locker.Obtain(ctx, dispatcherLockKey, d.LockTTL, nil)
	if err == redislock.ErrNotObtained {
		return
	}
	if err != nil {
		d.logError(0, "", err, "obtain dispatcher lock")
		return
	}
	defer lock.Release(context.WithoutCancel(ctx))

	records, err := models.PendingOutboxRecords(d.DB.WithContext(ctx), d.BatchSize)
	if err != nil {
		d.logError(0, "", err, "load pending records")
		return
	}

	for _, rec := range records {
		if d.MaxAttempts > 0 && rec.Attempts >= d.MaxAttempts {
			d.markDead(ctx, rec)
			continue
		}
		event := config.ReconcileEvent{
			ID:            rec.ID,
			BusinessId:    rec.BusinessId,
			AccountId:     rec.AccountId,
			EventType:     string(rec.EventType),
			Payload:       json.RawMessage(rec.Payload),
			OccurredAt:    rec.CreatedAt,
			CorrelationId: rec.CorrelationId,
		}
		if _, err := config.PublishReconcileEvent(ctx, event); err != nil {
			d.markFailed(ctx, rec, err)
			continue
		}
		d.markPublished(ctx, rec)
	}
}

func (d *OutboxDispatcher) markPublished(ctx context.Context, rec *models.ReportingOutboxRecord) {
	now := time.Now().UTC()
	_ = d.DB.WithContext(ctx).Model(&models.ReportingOutboxRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":  models.OutboxPublishStatusPublished,
			"published_at":    &now,
			"last_error":      nil,
			"next_attempt_at": nil,
		}).Error
}

// publishBackoff doubles the delay per attempt, capped at ten minutes.
func publishBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markFailed(ctx context.Context, rec *models.ReportingOutboxRecord, pubErr error) {
	attempt := rec.Attempts + 1
	next := time.Now().UTC().Add(publishBackoff(d.InitialBackoff, attempt))
	msg := pubErr.Error()
	_ = d.DB.WithContext(ctx).Model(&models.ReportingOutboxRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"attempts":        attempt,
			"last_error":      &msg,
			"next_attempt_at": &next,
		}).Error
	d.logError(rec.ID, rec.BusinessId, pubErr, fmt.Sprintf("publish failed, attempt %d", attempt))
}

func (d *OutboxDispatcher) markDead(ctx context.Context, rec *models.ReportingOutboxRecord) {
	msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
	_ = d.DB.WithContext(ctx).Model(&models.ReportingOutboxRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":  models.OutboxPublishStatusDead,
			"last_error":      &msg,
			"next_attempt_at": nil,
		}).Error
	d.logError(rec.ID, rec.BusinessId, nil, msg)
}

func (d *OutboxDispatcher) logError(recordId int, businessId string, err error, msg string) {
	if d.Logger == nil {
		return
	}
	fields := logrus.Fields{
		"field":         "OutboxDispatcher",
		"dispatcher_id": d.DispatcherID,
	}
	if recordId > 0 {
		fields["record_id"] = recordId
	}
	if businessId != "" {
		fields["business_id"] = businessId
	}
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	d.Logger.WithFields(fields).Error(msg)
}
