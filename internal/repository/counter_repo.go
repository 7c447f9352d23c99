package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterRepository exposes only a plain read and a value-conditional write.
// Increment logic lives with the caller.
type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Get returns the current value, zero for a counter never written.
func (r *CounterRepository) Get(ctx context.Context, name string) (int64, error) {
	var c model.Counter
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return c.Value, nil
}

// CompareAndSwap sets the counter to next if it currently holds old. It
// reports false when another writer got there first.
func (r *CounterRepository) CompareAndSwap(ctx context.Context, name string, old, next int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Counter{}).
		Where("name = ? AND value = ?", name, old).
		Update("value", next)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	if old != 0 {
		return false, nil
	}

	// first increment: the row may not exist yet
	result = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&model.Counter{Name: name, Value: next})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
