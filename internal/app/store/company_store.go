package store

import (
	"context"
	"errors"

	"github.com/brisapay/gateway/internal/models"
	"gorm.io/gorm"
)

// CompanyStore reads tenant routing and credentials. The core never writes
// companies; registration is handled by the surrounding system.
type CompanyStore interface {
	Get(ctx context.Context, companyID string) (*models.Company, error)
}

type gormCompanyStore struct {
	db *gorm.DB
}

func NewCompanyStore(db *gorm.DB) CompanyStore {
	return &gormCompanyStore{db: db}
}

func (s *gormCompanyStore) Get(ctx context.Context, companyID string) (*models.Company, error) {
	var c models.Company
	err := s.db.WithContext(ctx).Where("id = ?", companyID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
