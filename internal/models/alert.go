package models

import (
	"time"

	"gorm.io/gorm"
)

type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusDismissed    AlertStatus = "dismissed"
)

// Alert is one triggered instance of a rule against an account.
//
// Severity is copied from the rule at creation time and only ever moves
// forward (info -> warning -> critical -> emergency), and only while the
// alert is still pending. Resolved and dismissed are terminal; acknowledged
// can still be resolved.
type Alert struct {
	gorm.Model
	OrgID       uint     `json:"org_id" gorm:"index;not null"`
	AdAccountID uint     `json:"ad_account_id" gorm:"index;not null"`
	AlertRuleID uint     `json:"alert_rule_id" gorm:"index;not null"`
	Severity    Severity `json:"severity" gorm:"not null"`
	Status      AlertStatus `json:"status" gorm:"index;default:pending"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	ContextData JSONMap     `json:"context_data" gorm:"type:text"`
	// Reference is an opaque token used in notification links so external
	// readers never see row ids.
	Reference      string     `json:"reference" gorm:"uniqueIndex"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}
