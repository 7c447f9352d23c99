package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

// AccountRepository stores one AccountDocument per customer. Writes replace
// the whole document and are conditional on its version.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) CreateDocument(ctx context.Context, doc *model.AccountDocument) error {
	if doc.Accounts == nil {
		doc.Accounts = model.AccountList{}
	}
	err := r.db.WithContext(ctx).Create(doc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrVersionConflict
	}
	return err
}

func (r *AccountRepository) GetDocument(ctx context.Context, customerID int64) (*model.AccountDocument, error) {
	var doc model.AccountDocument
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *AccountRepository) ListDocuments(ctx context.Context) ([]*model.AccountDocument, error) {
	var docs []*model.AccountDocument
	err := r.db.WithContext(ctx).Order("customer_id ASC").Find(&docs).Error
	return docs, err
}

// ReplaceDocument writes doc only if the stored version still equals
// expectedVersion. On success doc.Version is advanced.
func (r *AccountRepository) ReplaceDocument(ctx context.Context, doc *model.AccountDocument, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.AccountDocument{}).
		Where("customer_id = ? AND version = ?", doc.CustomerID, expectedVersion).
		Updates(map[string]interface{}{
			"email":    doc.Email,
			"accounts": doc.Accounts,
			"version":  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetDocument(ctx, doc.CustomerID); err != nil {
			return err
		}
		return ErrVersionConflict
	}

	doc.Version = expectedVersion + 1
	return nil
}
