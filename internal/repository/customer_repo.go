package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// UpdateProfile rewrites the editable contact fields.
func (r *CustomerRepository) UpdateProfile(ctx context.Context, c *model.Customer) error {
	res := r.db.WithContext(ctx).Model(&model.Customer{}).
		Where("customer_id = ?", c.CustomerID).
		Updates(map[string]interface{}{
			"name":  c.Name,
			"email": c.Email,
			"phone": c.Phone,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, c.CustomerID); err != nil {
			return err
		}
	}
	return nil
}

func (r *CustomerRepository) Get(ctx context.Context, customerID int64) (*model.Customer, error) {
	var c model.Customer
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
