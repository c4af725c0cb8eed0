package store

import (
	"context"
	"errors"
	"time"

	"github.com/brisapay/gateway/internal/models"
	"github.com/brisapay/gateway/pkg/tool"
	"github.com/brisapay/gateway/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

// ChargeInfo is what a provider reports back at charge creation time.
type ChargeInfo struct {
	ProviderNativeID string
	PixCopyPaste     string
	QRCodeImage      string
	RefundableUntil  *time.Time
	ProviderPayload  datatypes.JSON
}

// PaymentStore is the only shared mutable state between the request path,
// the reconciliation poller and inbound provider webhooks. All status
// transitions are conditional writes; a lost race reports updated=false and
// is never an error.
type PaymentStore interface {
	// Create persists the payment, or returns the existing row when the
	// (company_id, transaction_id) key is already taken. created=false marks
	// the idempotent hit.
	Create(ctx context.Context, p *models.Payment) (row *models.Payment, created bool, err error)
	Get(ctx context.Context, companyID, transactionID string) (*models.Payment, error)
	GetByNativeID(ctx context.Context, nativeID string) (*models.Payment, error)
	// AttachChargeInfo stores the provider-native identifiers obtained at
	// charge creation.
	AttachChargeInfo(ctx context.Context, companyID, transactionID string, info ChargeInfo) (*models.Payment, error)
	// Finalize moves a pending payment to a terminal status. updated=false
	// means another writer got there first.
	Finalize(ctx context.Context, companyID, transactionID string, status types.PaymentStatus, providerPayload datatypes.JSON) (row *models.Payment, updated bool, err error)
	// MarkRefunded moves an approved payment to canceled, recording which
	// provider performed the refund.
	MarkRefunded(ctx context.Context, companyID, transactionID string, by types.Provider) (row *models.Payment, updated bool, err error)
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.Payment `json:"items"`
	Total int64             `json:"total"`
}

type gormPaymentStore struct {
	db *gorm.DB
}

func NewPaymentStore(db *gorm.DB) PaymentStore {
	return &gormPaymentStore{db: db}
}

func (s *gormPaymentStore) Create(ctx context.Context, p *models.Payment) (*models.Payment, bool, error) {
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if p.Status == "" {
		p.Status = types.PaymentStatusPending
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "transaction_id"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := s.Get(ctx, p.CompanyID, p.TransactionID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return p, true, nil
}

func (s *gormPaymentStore) Get(ctx context.Context, companyID, transactionID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ?", companyID, transactionID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *gormPaymentStore) GetByNativeID(ctx context.Context, nativeID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Where("provider_native_id = ?", nativeID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *gormPaymentStore) AttachChargeInfo(ctx context.Context, companyID, transactionID string, info ChargeInfo) (*models.Payment, error) {
	updates := map[string]any{}
	if info.ProviderNativeID != "" {
		updates["provider_native_id"] = info.ProviderNativeID
	}
	if info.PixCopyPaste != "" {
		updates["pix_copy_paste"] = info.PixCopyPaste
	}
	if info.QRCodeImage != "" {
		updates["qr_code_image"] = info.QRCodeImage
	}
	if info.RefundableUntil != nil {
		updates["refundable_until"] = info.RefundableUntil
	}
	if len(info.ProviderPayload) > 0 {
		updates["provider_payload"] = info.ProviderPayload
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Payment{}).
			Where("company_id = ? AND transaction_id = ?", companyID, transactionID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.Get(ctx, companyID, transactionID)
}

func (s *gormPaymentStore) Finalize(ctx context.Context, companyID, transactionID string, status types.PaymentStatus, providerPayload datatypes.JSON) (*models.Payment, bool, error) {
	if !status.Terminal() {
		return nil, false, errors.New("finalize requires a terminal status")
	}

	updates := map[string]any{"status": status}
	if len(providerPayload) > 0 {
		updates["provider_payload"] = providerPayload
	}

	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("company_id = ? AND transaction_id = ? AND status = ?", companyID, transactionID, types.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, false, res.Error
	}

	row, err := s.Get(ctx, companyID, transactionID)
	if err != nil {
		return nil, false, err
	}
	return row, res.RowsAffected > 0, nil
}

func (s *gormPaymentStore) MarkRefunded(ctx context.Context, companyID, transactionID string, by types.Provider) (*models.Payment, bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("company_id = ? AND transaction_id = ? AND status = ?", companyID, transactionID, types.PaymentStatusApproved).
		Updates(map[string]any{"status": types.PaymentStatusCanceled, "refunded_by": by})
	if res.Error != nil {
		return nil, false, res.Error
	}

	row, err := s.Get(ctx, companyID, transactionID)
	if err != nil {
		return nil, false, err
	}
	return row, res.RowsAffected > 0, nil
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (s *gormPaymentStore) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []*models.Payment
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	return &ScanResponse{Items: rows, Total: total}, nil
}
