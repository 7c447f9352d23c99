package repository

import (
	"context"
	"errors"
	"time"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, t *model.Transfer) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TransferRepository) Get(ctx context.Context, transferNo string) (*model.Transfer, error) {
	var t model.Transfer
	err := r.db.WithContext(ctx).Where("transfer_no = ?", transferNo).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpdateStatus moves t to status only if the stored status still equals
// t.Status. t is updated in place on success.
func (r *TransferRepository) UpdateStatus(ctx context.Context, t *model.Transfer, status, lastError string) error {
	if !t.CanTransitionTo(status) {
		return ErrStatusConflict
	}

	result := r.db.WithContext(ctx).
		Model(&model.Transfer{}).
		Where("transfer_no = ? AND status = ?", t.TransferNo, t.Status).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
			"attempts":   gorm.Expr("attempts + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}

	t.Status = status
	t.LastError = lastError
	t.Attempts++
	return nil
}

// ListByStatus returns transfers in any of statuses last touched before
// updatedBefore, oldest first.
func (r *TransferRepository) ListByStatus(ctx context.Context, statuses []string, updatedBefore time.Time, limit int) ([]*model.Transfer, error) {
	var transfers []*model.Transfer
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&transfers).Error
	return transfers, err
}
