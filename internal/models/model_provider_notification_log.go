package models

import (
	"time"

	"gorm.io/datatypes"
)

type ProviderNotificationLogStatus string

const (
	ProviderNotificationLogStatusReceived     ProviderNotificationLogStatus = "received"
	ProviderNotificationLogStatusHandled      ProviderNotificationLogStatus = "handled"
	ProviderNotificationLogStatusHandleFailed ProviderNotificationLogStatus = "handle_failed"
)

// ProviderNotificationLog records inbound provider webhook payloads, both as
// received and after handling, for audit and replay.
type ProviderNotificationLog struct {
	ID               string                        `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider         string                        `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	ProviderNativeID string                        `gorm:"column:provider_native_id;type:varchar(128)" json:"provider_native_id"`
	TraceID          string                        `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	NotificationTime time.Time                     `gorm:"column:notification_time" json:"notification_time"`
	Data             datatypes.JSON                `gorm:"column:data;type:jsonb" json:"data"`
	Result           *datatypes.JSON               `gorm:"column:result;type:jsonb" json:"result"`
	Status           ProviderNotificationLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

func (ProviderNotificationLog) TableName() string { return "provider_notification_log" }
