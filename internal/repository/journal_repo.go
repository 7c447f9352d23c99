package repository

import (
	"context"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

type JournalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Append(ctx context.Context, entries ...*model.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

func (r *JournalRepository) ListByAccount(ctx context.Context, accountNumber int64, limit int) ([]*model.JournalEntry, error) {
	var entries []*model.JournalEntry
	err := r.db.WithContext(ctx).
		Where("account_number = ?", accountNumber).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
