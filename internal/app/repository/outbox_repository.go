package repository

import (
	"time"

	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"gorm.io/gorm"
)

// maxRecordedErrors bounds the failure log kept per event.
const maxRecordedErrors = 10

type OutboxRepository interface {
	WithTx(tx *gorm.DB) OutboxRepository
	CreateBatch(events []model.StockOutbox) error
	FindPending(limit, maxAttempts int, createdBefore time.Time) ([]model.StockOutbox, error)
	MarkSent(id uint) error
	RecordFailure(id uint, reason string, final bool) error
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) WithTx(tx *gorm.DB) OutboxRepository {
	return &outboxRepository{db: tx}
}

func (r *outboxRepository) CreateBatch(events []model.StockOutbox) error {
	if len(events) == 0 {
		return nil
	}

	logger.Debug("Writing stock outbox events", map[string]interface{}{
		"count":   len(events),
		"cart_id": events[0].CartID,
	})

	if err := r.db.Create(&events).Error; err != nil {
		logger.Error("Failed to write stock outbox events", err, map[string]interface{}{
			"count": len(events),
		})
		return err
	}
	return nil
}

// FindPending returns undelivered events older than createdBefore, oldest first.
// The age filter leaves fresh events to the dispatch that follows checkout.
func (r *outboxRepository) FindPending(limit, maxAttempts int, createdBefore time.Time) ([]model.StockOutbox, error) {
	var events []model.StockOutbox
	err := r.db.Where("estado = ? AND intentos < ? AND created_at < ?", model.OutboxPending, maxAttempts, createdBefore).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		logger.Error("Failed to find pending outbox events", err)
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) MarkSent(id uint) error {
	now := time.Now()
	err := r.db.Model(&model.StockOutbox{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"estado":       model.OutboxSent,
			"intentos":     gorm.Expr("intentos + 1"),
			"procesado_en": &now,
		}).Error
	if err != nil {
		logger.Error("Failed to mark outbox event sent", err, map[string]interface{}{
			"outbox_id": id,
		})
	}
	return err
}

// RecordFailure counts an attempt and appends reason to the failure log.
// final moves the event to fallido so the relay stops retrying it.
func (r *outboxRepository) RecordFailure(id uint, reason string, final bool) error {
	var event model.StockOutbox
	if err := r.db.First(&event, id).Error; err != nil {
		logQueryError("Failed to load outbox event", err, map[string]interface{}{
			"outbox_id": id,
		})
		return err
	}

	errs := append(event.Errors, time.Now().UTC().Format(time.RFC3339)+" "+reason)
	if len(errs) > maxRecordedErrors {
		errs = errs[len(errs)-maxRecordedErrors:]
	}

	updates := map[string]interface{}{
		"intentos": event.Attempts + 1,
		"errores":  errs,
	}
	if final {
		now := time.Now()
		updates["estado"] = model.OutboxFailed
		updates["procesado_en"] = &now
	}

	if err := r.db.Model(&model.StockOutbox{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		logger.Error("Failed to record outbox failure", err, map[string]interface{}{
			"outbox_id": id,
		})
		return err
	}
	return nil
}
