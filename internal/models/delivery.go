package models

import (
	"time"

	"gorm.io/gorm"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusQueued  DeliveryStatus = "queued"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// AlertDelivery is the audit record of one delivery attempt: one row per
// (channel, recipient) combination the dispatcher evaluated. Rows are
// append-only; retries insert new rows.
type AlertDelivery struct {
	gorm.Model
	AlertID      uint           `json:"alert_id" gorm:"index;not null"`
	ChannelType  ChannelType    `json:"channel_type" gorm:"not null"`
	Recipient    string         `json:"recipient"`
	Status       DeliveryStatus `json:"status" gorm:"index;not null"`
	ResponseData JSONMap        `json:"response_data" gorm:"type:text"`
	ErrorMessage string         `json:"error_message"`
	SentAt       *time.Time     `json:"sent_at"`
}
