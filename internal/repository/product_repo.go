package repository

import (
	"context"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// AcceptLoan creates the loan and deletes its request in one transaction.
func (r *ProductRepository) AcceptLoan(ctx context.Context, requestID int64, loan *model.Loan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteOne(tx, &model.LoanRequest{}, requestID); err != nil {
			return err
		}
		return tx.Create(loan).Error
	})
}

func (r *ProductRepository) ListLoans(ctx context.Context, customerID int64) ([]*model.Loan, error) {
	var loans []*model.Loan
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("loan_id ASC").Find(&loans).Error
	return loans, err
}

// AcceptFD creates the deposit and deletes its request in one transaction.
func (r *ProductRepository) AcceptFD(ctx context.Context, requestID int64, fd *model.FixedDeposit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteOne(tx, &model.FDRequest{}, requestID); err != nil {
			return err
		}
		return tx.Create(fd).Error
	})
}

func (r *ProductRepository) ListFDs(ctx context.Context, customerID int64) ([]*model.FixedDeposit, error) {
	var fds []*model.FixedDeposit
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("fd_id ASC").Find(&fds).Error
	return fds, err
}
