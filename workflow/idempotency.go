package workflow

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// how long a STARTED row blocks other workers before it is considered stale
const idempotencyStaleAfter = 5 * time.Minute

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginIdempotency inserts a STARTED row for (businessId, handlerName,
// messageId). A prior SUCCEEDED row returns skip=true: the redelivered
// message was already handled. A fresh STARTED row from another worker
// yields ErrIdempotencyInProgress so the broker retries later; stale STARTED
// and FAILED rows are reclaimed in place.
func BeginIdempotency(tx *gorm.DB, businessId, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		BusinessId:  businessId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("business_id = ? AND handler_name = ? AND message_id = ?",
		businessId, handlerName, messageId).First(&existing).Error; err != nil {
		return false, err
	}

	if existing.Status == models.IdempotencyStatusSucceeded {
		return true, nil
	}
	if existing.Status == models.IdempotencyStatusStarted &&
		time.Since(existing.UpdatedAt) < idempotencyStaleAfter {
		return false, ErrIdempotencyInProgress
	}
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusStarted,
			"last_error": nil,
		}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, businessId, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("business_id = ? AND handler_name = ? AND message_id = ?",
			businessId, handlerName, messageId).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusSucceeded,
			"last_error": nil,
		}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, businessId, handlerName, messageId string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("business_id = ? AND handler_name = ? AND message_id = ?",
			businessId, handlerName, messageId).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusFailed,
			"last_error": &msg,
		}).Error
}
