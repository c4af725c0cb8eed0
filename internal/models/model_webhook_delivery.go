package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusDelivered WebhookDeliveryStatus = "delivered"
	WebhookDeliveryStatusFailed    WebhookDeliveryStatus = "failed"
)

// WebhookDelivery records one outbound notification attempt. Delivery is
// single-shot; failed rows are kept for operators, not retried.
type WebhookDelivery struct {
	ID            string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CompanyID     string                `gorm:"column:company_id;type:varchar(64);not null;index" json:"company_id"`
	TransactionID string                `gorm:"column:transaction_id;type:varchar(64);not null;index" json:"transaction_id"`
	URL           string                `gorm:"column:url;type:varchar(512);not null" json:"url"`
	Payload       datatypes.JSON        `gorm:"column:payload;type:jsonb" json:"payload"`
	Status        WebhookDeliveryStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Error         *string               `gorm:"column:error;type:text" json:"error"`
	TraceID       string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (WebhookDelivery) TableName() string { return "webhook_delivery" }
