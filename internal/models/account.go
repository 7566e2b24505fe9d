package models

import (
	"time"

	"gorm.io/gorm"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusPaused   AccountStatus = "paused"
	AccountStatusDisabled AccountStatus = "disabled"
	AccountStatusArchived AccountStatus = "archived"
)

// AdAccount is an advertising account owned by the upstream ingestion
// pipeline. The alert engine only reads these rows.
//
// Money columns are decimal-as-text at the boundary; parse before comparing.
type AdAccount struct {
	gorm.Model
	OrgID             uint          `json:"org_id" gorm:"index;not null"`
	AccountName       string        `json:"account_name" gorm:"not null"`
	Platform          string        `json:"platform"` // facebook, tiktok
	PlatformAccountID string        `json:"platform_account_id"`
	Currency          string        `json:"currency" gorm:"default:EGP"`
	CurrentBalance    string        `json:"current_balance"`
	CurrentDailySpend string        `json:"current_daily_spend"`
	Status            AccountStatus `json:"status" gorm:"default:active"`
}

// SpendRecord is one day of spend for an account, written by the pipeline.
type SpendRecord struct {
	gorm.Model
	OrgID       uint   `json:"org_id" gorm:"index"`
	AdAccountID uint   `json:"ad_account_id" gorm:"index;not null"`
	Date        string `json:"date" gorm:"index;not null"` // YYYY-MM-DD
	DailySpend  string `json:"daily_spend" gorm:"not null"`
	MTDSpend    string `json:"mtd_spend"`
	Currency    string `json:"currency"`
}

// BalanceSnapshot is a point-in-time balance capture for an account.
type BalanceSnapshot struct {
	gorm.Model
	OrgID       uint      `json:"org_id" gorm:"index"`
	AdAccountID uint      `json:"ad_account_id" gorm:"index;not null"`
	Balance     string    `json:"balance" gorm:"not null"`
	Currency    string    `json:"currency"`
	CapturedAt  time.Time `json:"captured_at"`
}
