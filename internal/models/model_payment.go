package models

import (
	"time"

	"github.com/brisapay/gateway/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment is one charge routed through a provider. Exactly one row exists
// per (company_id, transaction_id); creation is idempotent at the store layer.
type Payment struct {
	ID            string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CompanyID     string `gorm:"column:company_id;type:varchar(64);not null;uniqueIndex:unique_company_id_transaction_id,priority:1" json:"company_id"`
	TransactionID string `gorm:"column:transaction_id;type:varchar(64);not null;uniqueIndex:unique_company_id_transaction_id,priority:2" json:"transaction_id"`
	// ProviderNativeID is the provider's own identifier: the Pix txid for
	// Efí, the payment id for Asaas, the transaction TID for Rede.
	ProviderNativeID *string `gorm:"column:provider_native_id;type:varchar(128);index" json:"provider_native_id"`

	Provider types.Provider      `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	Kind     types.PaymentKind   `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Status   types.PaymentStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Installments int             `gorm:"column:installments;type:int;default:1" json:"installments"`

	WebhookURL *string `gorm:"column:webhook_url;type:varchar(512)" json:"webhook_url"`

	// Pix display payload returned to the caller while the charge settles.
	PixCopyPaste *string `gorm:"column:pix_copy_paste;type:text" json:"pix_copy_paste"`
	QRCodeImage  *string `gorm:"column:qr_code_image;type:text" json:"qr_code_image"`

	// RefundableUntil mirrors the refund deadline the provider reported at
	// charge creation, when it reports one.
	RefundableUntil *time.Time `gorm:"column:refundable_until;default:null" json:"refundable_until"`
	// RefundedBy records which provider performed the refund that moved the
	// payment to canceled.
	RefundedBy *types.Provider `gorm:"column:refunded_by;type:varchar(32);default:null" json:"refunded_by"`

	// DataMarketing is an opaque passthrough blob echoed on outbound webhooks.
	DataMarketing datatypes.JSON `gorm:"column:data_marketing;type:jsonb;default:'{}'" json:"data_marketing"`
	// ProviderPayload keeps the last raw provider response for reconciliation.
	ProviderPayload *datatypes.JSON `gorm:"column:provider_payload;type:jsonb" json:"provider_payload"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

func (p *Payment) Terminal() bool {
	return p != nil && p.Status.Terminal()
}
