package repository

import (
	"context"
	"time"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

// EventOutboxRepository stores ledger events until the outbox sender has
// published them. Rows are read in insertion order so that events of one
// account leave in the order their balance changes happened.
type EventOutboxRepository struct {
	db *gorm.DB
}

func NewEventOutboxRepository(db *gorm.DB) *EventOutboxRepository {
	return &EventOutboxRepository{db: db}
}

func (r *EventOutboxRepository) Enqueue(ctx context.Context, msg *model.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *EventOutboxRepository) PendingEvents(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var events []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *EventOutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Update("status", model.OutboxStatusSent).Error
}

// RecordFailure counts one failed publish. The event turns FAILED in the
// same statement once maxAttempts is reached. status is assigned first
// because MySQL evaluates SET clauses left to right.
func (r *EventOutboxRepository) RecordFailure(ctx context.Context, id int64, maxAttempts int) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE "+model.OutboxMessage{}.TableName()+
			" SET status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE status END,"+
			" retry_count = retry_count + 1, updated_at = ?"+
			" WHERE id = ? AND status = ?",
		maxAttempts, model.OutboxStatusFailed, time.Now(), id, model.OutboxStatusPending,
	).Error
}
