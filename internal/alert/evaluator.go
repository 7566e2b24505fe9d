package alert

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/targetspro/adwatch/internal/models"
)

// TriggerPayload is the inbound event that starts an evaluation pass. It is
// posted by the upstream ingestion pipeline after writing a spend record, a
// balance snapshot, or an account status change.
type TriggerPayload struct {
	Table       string `json:"table"`
	RecordID    uint   `json:"record_id"`
	AdAccountID uint   `json:"ad_account_id" binding:"required"`
	OrgID       uint   `json:"org_id" binding:"required"`
	// Event is "status_change" for account status transitions; empty otherwise.
	Event     string `json:"event,omitempty"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// EvalResult is the outcome of evaluating a single rule against an account.
type EvalResult struct {
	Triggered bool
	Title     string
	Message   string
	Context   models.JSONMap
}

// Evaluator decides whether a rule's condition currently holds. It reads
// account state and trailing spend records; it never writes.
type Evaluator struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewEvaluator(db *gorm.DB, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		db:     db,
		logger: logger.With().Str("component", "evaluator").Logger(),
	}
}

// Evaluate runs one rule against one account. The payload is required only
// for account_status_change rules; other rule types ignore it.
func (e *Evaluator) Evaluate(rule *models.AlertRule, account *models.AdAccount, payload *TriggerPayload) (EvalResult, error) {
	cfg, err := models.ParseRuleConfig(rule.RuleType, rule.Config)
	if err != nil {
		return EvalResult{}, err
	}

	switch c := cfg.(type) {
	case models.BalanceThresholdConfig:
		return e.evalBalanceThreshold(account, c), nil
	case models.TimeToDepletionConfig:
		return e.evalTimeToDepletion(account, c)
	case models.SpendSpikeConfig:
		return e.evalSpendSpike(account, c)
	case models.ZeroSpendConfig:
		return e.evalZeroSpend(account, c)
	case models.AccountStatusChangeConfig:
		return e.evalStatusChange(account, payload), nil
	default:
		return EvalResult{}, fmt.Errorf("unknown rule type: %s", rule.RuleType)
	}
}

// evalBalanceThreshold fires when the balance drops to or below the
// configured threshold. No historical lookup needed.
func (e *Evaluator) evalBalanceThreshold(account *models.AdAccount, cfg models.BalanceThresholdConfig) EvalResult {
	balance := parseNumeric(account.CurrentBalance)
	threshold := cfg.ThresholdValue

	if balance > threshold {
		return EvalResult{}
	}

	return EvalResult{
		Triggered: true,
		Title:     fmt.Sprintf("Low Balance: %s", account.AccountName),
		Message: fmt.Sprintf("Balance is %s %s (threshold: %s)",
			account.Currency, formatAmount(balance), formatAmount(threshold)),
		Context: models.JSONMap{
			"balance":   balance,
			"threshold": threshold,
			"currency":  account.Currency,
		},
	}
}

// evalTimeToDepletion estimates days remaining as balance divided by the
// average daily spend over the lookback window. Zero or negative balance
// means zero days. No spend history at all means no trigger: insufficient
// data is not depletion.
func (e *Evaluator) evalTimeToDepletion(account *models.AdAccount, cfg models.TimeToDepletionConfig) (EvalResult, error) {
	balance := parseNumeric(account.CurrentBalance)

	var daysRemaining int
	if balance <= 0 {
		daysRemaining = 0
	} else {
		spend, err := e.recentSpend(account.ID, cfg.LookbackDays)
		if err != nil {
			return EvalResult{}, err
		}
		if len(spend) == 0 {
			return EvalResult{}, nil
		}

		var total float64
		for _, r := range spend {
			total += parseNumeric(r.DailySpend)
		}
		avg := total / float64(len(spend))
		if avg > 0 {
			daysRemaining = int(math.Round(balance / avg))
		} else {
			daysRemaining = 9999
		}
	}

	if daysRemaining > cfg.DaysRemaining {
		return EvalResult{}, nil
	}

	return EvalResult{
		Triggered: true,
		Title:     fmt.Sprintf("Funds Depleting: %s", account.AccountName),
		Message: fmt.Sprintf("Estimated %d days remaining (threshold: %d days)",
			daysRemaining, cfg.DaysRemaining),
		Context: models.JSONMap{
			"days_remaining": daysRemaining,
			"threshold_days": cfg.DaysRemaining,
			"currency":       account.Currency,
			"balance":        balance,
		},
	}, nil
}

// evalSpendSpike compares the latest day's spend against the mean of the
// prior days in the lookback window. Needs at least two data points; a
// non-positive prior average never triggers (division guard).
func (e *Evaluator) evalSpendSpike(account *models.AdAccount, cfg models.SpendSpikeConfig) (EvalResult, error) {
	spend, err := e.recentSpend(account.ID, cfg.LookbackDays)
	if err != nil {
		return EvalResult{}, err
	}
	if len(spend) < 2 {
		return EvalResult{}, nil
	}

	todaySpend := parseNumeric(spend[0].DailySpend)
	var priorTotal float64
	for _, r := range spend[1:] {
		priorTotal += parseNumeric(r.DailySpend)
	}
	avgSpend := priorTotal / float64(len(spend)-1)
	if avgSpend <= 0 {
		return EvalResult{}, nil
	}

	pctChange := (todaySpend - avgSpend) / avgSpend * 100
	if pctChange < cfg.PercentageIncrease {
		return EvalResult{}, nil
	}

	return EvalResult{
		Triggered: true,
		Title:     fmt.Sprintf("Spend Spike: %s", account.AccountName),
		Message: fmt.Sprintf("Daily spend %s %s is %.0f%% above %d-day average (%s %s)",
			account.Currency, formatAmount(todaySpend), pctChange,
			cfg.LookbackDays, account.Currency, formatAmount(avgSpend)),
		Context: models.JSONMap{
			"today_spend": todaySpend,
			"avg_spend":   avgSpend,
			"pct_change":  pctChange,
			"currency":    account.Currency,
		},
	}, nil
}

// evalZeroSpend fires only when the most recent N spend records all equal
// exactly zero and that many records exist.
func (e *Evaluator) evalZeroSpend(account *models.AdAccount, cfg models.ZeroSpendConfig) (EvalResult, error) {
	var records []models.SpendRecord
	err := e.db.
		Where("ad_account_id = ?", account.ID).
		Order("date desc").
		Limit(cfg.ConsecutiveDays).
		Find(&records).Error
	if err != nil {
		return EvalResult{}, fmt.Errorf("load spend records: %w", err)
	}
	if len(records) < cfg.ConsecutiveDays {
		return EvalResult{}, nil
	}

	for _, r := range records {
		if parseNumeric(r.DailySpend) != 0 {
			return EvalResult{}, nil
		}
	}

	return EvalResult{
		Triggered: true,
		Title:     fmt.Sprintf("Zero Spend: %s", account.AccountName),
		Message: fmt.Sprintf("Account has had zero spend for %d consecutive days",
			len(records)),
		Context: models.JSONMap{
			"consecutive_zero_days": len(records),
			"threshold_days":        cfg.ConsecutiveDays,
		},
	}, nil
}

// evalStatusChange is stateless with respect to history; it fires only when
// invoked with an explicit status-change event payload.
func (e *Evaluator) evalStatusChange(account *models.AdAccount, payload *TriggerPayload) EvalResult {
	if payload == nil || payload.Event != "status_change" {
		return EvalResult{}
	}

	return EvalResult{
		Triggered: true,
		Title:     fmt.Sprintf("Status Changed: %s", account.AccountName),
		Message: fmt.Sprintf("Account status changed from %q to %q",
			payload.OldStatus, payload.NewStatus),
		Context: models.JSONMap{
			"old_status":   payload.OldStatus,
			"new_status":   payload.NewStatus,
			"account_name": account.AccountName,
			"platform":     account.Platform,
		},
	}
}

// recentSpend returns the account's spend records inside the lookback
// window, most recent first.
func (e *Evaluator) recentSpend(accountID uint, lookbackDays int) ([]models.SpendRecord, error) {
	since := time.Now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")

	var records []models.SpendRecord
	err := e.db.
		Where("ad_account_id = ? AND date >= ?", accountID, since).
		Order("date desc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load spend records: %w", err)
	}
	return records, nil
}

// parseNumeric converts a decimal-as-text field to float64. A parse failure
// is treated as zero, never as an error that aborts evaluation.
func parseNumeric(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
