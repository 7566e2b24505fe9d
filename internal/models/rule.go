package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// RuleType is the closed set of alert rule kinds the evaluator understands.
type RuleType string

const (
	RuleBalanceThreshold    RuleType = "balance_threshold"
	RuleSpendSpike          RuleType = "spend_spike"
	RuleTimeToDepletion     RuleType = "time_to_depletion"
	RuleZeroSpend           RuleType = "zero_spend"
	RuleAccountStatusChange RuleType = "account_status_change"
)

// DefaultCooldownMinutes is the fallback cooldown between repeated firings
// of the same rule for the same account.
const DefaultCooldownMinutes = 180

// AlertRule is a condition definition created by operators and consumed
// read-only by the evaluator. AdAccountID nil means the rule applies to
// every account in the org.
type AlertRule struct {
	gorm.Model
	OrgID           uint     `json:"org_id" gorm:"index;not null"`
	AdAccountID     *uint    `json:"ad_account_id" gorm:"index"`
	Name            string   `json:"name" gorm:"not null"`
	Description     string   `json:"description"`
	RuleType        RuleType `json:"rule_type" gorm:"not null"`
	Severity        Severity `json:"severity" gorm:"not null"`
	CooldownMinutes int      `json:"cooldown_minutes" gorm:"default:180"`
	IsActive        bool     `json:"is_active" gorm:"default:true"`
	Config          JSONMap  `json:"config" gorm:"type:text"`
}

// RuleConfig is the decoded, type-specific configuration of an AlertRule.
// Exactly one variant exists per rule type.
type RuleConfig interface {
	Validate() error
}

type BalanceThresholdConfig struct {
	ThresholdValue float64 `json:"threshold_value"`
	Currency       string  `json:"currency"`
}

func (c BalanceThresholdConfig) Validate() error {
	if c.ThresholdValue <= 0 {
		return fmt.Errorf("threshold_value must be positive")
	}
	return nil
}

type SpendSpikeConfig struct {
	PercentageIncrease float64 `json:"percentage_increase"`
	LookbackDays       int     `json:"lookback_days"`
}

func (c SpendSpikeConfig) Validate() error {
	if c.PercentageIncrease < 10 || c.PercentageIncrease > 500 {
		return fmt.Errorf("percentage_increase must be between 10 and 500")
	}
	if c.LookbackDays < 2 || c.LookbackDays > 30 {
		return fmt.Errorf("lookback_days must be between 2 and 30")
	}
	return nil
}

type TimeToDepletionConfig struct {
	DaysRemaining int `json:"days_remaining"`
	LookbackDays  int `json:"lookback_days"`
}

func (c TimeToDepletionConfig) Validate() error {
	if c.DaysRemaining < 1 || c.DaysRemaining > 30 {
		return fmt.Errorf("days_remaining must be between 1 and 30")
	}
	if c.LookbackDays < 3 || c.LookbackDays > 30 {
		return fmt.Errorf("lookback_days must be between 3 and 30")
	}
	return nil
}

type ZeroSpendConfig struct {
	ConsecutiveDays int `json:"consecutive_days"`
}

func (c ZeroSpendConfig) Validate() error {
	if c.ConsecutiveDays < 1 || c.ConsecutiveDays > 14 {
		return fmt.Errorf("consecutive_days must be between 1 and 14")
	}
	return nil
}

// AccountStatusChangeConfig has no settings; the rule fires on any transition.
type AccountStatusChangeConfig struct{}

func (c AccountStatusChangeConfig) Validate() error { return nil }

// ParseRuleConfig decodes a raw config map into the variant for ruleType,
// applying defaults for absent fields. The returned config has not been
// validated; call Validate before persisting a rule.
func ParseRuleConfig(ruleType RuleType, raw JSONMap) (RuleConfig, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode rule config: %w", err)
	}

	switch ruleType {
	case RuleBalanceThreshold:
		cfg := BalanceThresholdConfig{Currency: "EGP"}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode balance_threshold config: %w", err)
		}
		return cfg, nil
	case RuleSpendSpike:
		cfg := SpendSpikeConfig{PercentageIncrease: 50, LookbackDays: 7}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode spend_spike config: %w", err)
		}
		return cfg, nil
	case RuleTimeToDepletion:
		cfg := TimeToDepletionConfig{DaysRemaining: 3, LookbackDays: 7}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode time_to_depletion config: %w", err)
		}
		return cfg, nil
	case RuleZeroSpend:
		cfg := ZeroSpendConfig{ConsecutiveDays: 2}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode zero_spend config: %w", err)
		}
		return cfg, nil
	case RuleAccountStatusChange:
		return AccountStatusChangeConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown rule type: %s", ruleType)
	}
}

// Validate checks the rule's scalar fields and its type-specific config.
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", r.Severity)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must not be negative")
	}
	cfg, err := ParseRuleConfig(r.RuleType, r.Config)
	if err != nil {
		return err
	}
	return cfg.Validate()
}
