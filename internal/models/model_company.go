package models

import (
	"time"

	"github.com/brisapay/gateway/pkg/types"
)

// Company is a tenant: provider routing choices plus the credentials each
// provider integration needs. Certificate material for Efí mTLS lives in the
// certificate store, keyed by company id.
type Company struct {
	ID   string `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Name string `gorm:"column:name;type:varchar(128);not null" json:"name"`

	// Empty values fall back to the fixed defaults per kind.
	PixProvider    types.Provider `gorm:"column:pix_provider;type:varchar(32)" json:"pix_provider"`
	CreditProvider types.Provider `gorm:"column:credit_provider;type:varchar(32)" json:"credit_provider"`

	// Efí OAuth client pair and the company's receiving Pix key.
	EfiClientID     *string `gorm:"column:efi_client_id;type:varchar(128)" json:"-"`
	EfiClientSecret *string `gorm:"column:efi_client_secret;type:varchar(128)" json:"-"`
	PixKey          *string `gorm:"column:pix_key;type:varchar(128)" json:"pix_key"`

	AsaasAPIKey *string `gorm:"column:asaas_api_key;type:varchar(256)" json:"-"`

	RedeMerchantID     *string `gorm:"column:rede_merchant_id;type:varchar(64)" json:"-"`
	RedeIntegrationKey *string `gorm:"column:rede_integration_key;type:varchar(128)" json:"-"`

	// WebhookSecret, when set, signs outbound subscriber webhooks.
	WebhookSecret *string `gorm:"column:webhook_secret;type:varchar(128)" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Company) TableName() string {
	return "company"
}
