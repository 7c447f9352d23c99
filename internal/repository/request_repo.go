package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

// RequestRepository keeps applications awaiting an admin decision. An
// accepted or rejected request is deleted.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// ==================== account requests ====================

func (r *RequestRepository) CreateAccountRequest(ctx context.Context, req *model.AccountRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) GetAccountRequest(ctx context.Context, requestID int64) (*model.AccountRequest, error) {
	var req model.AccountRequest
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) ListAccountRequests(ctx context.Context) ([]*model.AccountRequest, error) {
	var reqs []*model.AccountRequest
	err := r.db.WithContext(ctx).Order("request_id ASC").Find(&reqs).Error
	return reqs, err
}

func (r *RequestRepository) DeleteAccountRequest(ctx context.Context, requestID int64) error {
	return deleteOne(r.db.WithContext(ctx), &model.AccountRequest{}, requestID)
}

// ==================== loan requests ====================

func (r *RequestRepository) CreateLoanRequest(ctx context.Context, req *model.LoanRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) GetLoanRequest(ctx context.Context, requestID int64) (*model.LoanRequest, error) {
	var req model.LoanRequest
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) ListLoanRequests(ctx context.Context) ([]*model.LoanRequest, error) {
	var reqs []*model.LoanRequest
	err := r.db.WithContext(ctx).Order("request_id ASC").Find(&reqs).Error
	return reqs, err
}

func (r *RequestRepository) DeleteLoanRequest(ctx context.Context, requestID int64) error {
	return deleteOne(r.db.WithContext(ctx), &model.LoanRequest{}, requestID)
}

// ==================== FD requests ====================

func (r *RequestRepository) CreateFDRequest(ctx context.Context, req *model.FDRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) GetFDRequest(ctx context.Context, requestID int64) (*model.FDRequest, error) {
	var req model.FDRequest
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) ListFDRequests(ctx context.Context) ([]*model.FDRequest, error) {
	var reqs []*model.FDRequest
	err := r.db.WithContext(ctx).Order("request_id ASC").Find(&reqs).Error
	return reqs, err
}

func (r *RequestRepository) DeleteFDRequest(ctx context.Context, requestID int64) error {
	return deleteOne(r.db.WithContext(ctx), &model.FDRequest{}, requestID)
}

func deleteOne(db *gorm.DB, value interface{}, requestID int64) error {
	result := db.Where("request_id = ?", requestID).Delete(value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
