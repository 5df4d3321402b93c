package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"bitbucket.org/mmdatafocus/recon_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError translates model errors into the wire contract. Typed
// AppErrors carry their own status and code; not-found sentinels map to 404;
// anything else is an internal error and must not leak details.
func respondError(c *gin.Context, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, appErr)
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": models.CodeNotFound, "message": "record not found"})
		return
	}
	logger := config.GetLogger()
	config.LogError(logger, "handlers", "respondError", c.FullPath(), nil, err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "message": "internal error"})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": models.CodeValidation, "message": err.Error()})
}

func pathId(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, models.ErrValidation(name + " must be a positive integer")
	}
	return id, nil
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func queryBool(c *gin.Context, name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Query(name)), "true")
}

func queryDate(c *gin.Context, name string) (*models.DateOnly, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, nil
	}
	var d models.DateOnly
	if err := d.UnmarshalJSON([]byte(`"` + v + `"`)); err != nil {
		return nil, models.ErrValidation(name + " must be YYYY-MM-DD")
	}
	return &d, nil
}

// runWithIdempotency wraps a batch mutation with the durable idempotency
// table when the client supplies an Idempotency-Key header. A key that
// already succeeded short-circuits with duplicate=true; a key another
// request is still processing surfaces as a conflict.
func runWithIdempotency(c *gin.Context, handlerName string, fn func() error) (duplicate bool, err error) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		return false, fn()
	}
	ctx := c.Request.Context()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return false, tx.Error
	}
	skip, err := workflow.BeginIdempotency(tx, businessId, handlerName, key)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, workflow.ErrIdempotencyInProgress) {
			return false, models.ErrConflict("idempotency key is still being processed")
		}
		return false, err
	}
	if err := tx.Commit().Error; err != nil {
		return false, err
	}
	if skip {
		return true, nil
	}

	if err := fn(); err != nil {
		_ = workflow.MarkIdempotencyFailed(db.WithContext(ctx), businessId, handlerName, key, err)
		return false, err
	}
	return false, workflow.MarkIdempotencySucceeded(db.WithContext(ctx), businessId, handlerName, key)
}
