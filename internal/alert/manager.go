package alert

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/targetspro/adwatch/internal/models"
)

var (
	// ErrAccountNotFound means the trigger referenced an unknown account.
	// Not a transport failure: the evaluator responds with zero work done.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAlertNotFound means the alert id does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidTransition means the alert exists but is not in a state the
	// requested transition starts from (e.g. acknowledging a resolved alert).
	ErrInvalidTransition = errors.New("invalid alert status transition")
)

// DispatchQueue hands a freshly created alert off for asynchronous
// notification delivery. Enqueue must not block the evaluation path.
type DispatchQueue interface {
	Enqueue(alertID uint) bool
}

// Manager owns alert creation (evaluation pass + cooldown gate) and the
// alert lifecycle transitions.
type Manager struct {
	db        *gorm.DB
	evaluator *Evaluator
	queue     DispatchQueue
	logger    zerolog.Logger
}

func NewManager(db *gorm.DB, evaluator *Evaluator, queue DispatchQueue, logger zerolog.Logger) *Manager {
	return &Manager{
		db:        db,
		evaluator: evaluator,
		queue:     queue,
		logger:    logger.With().Str("component", "alert_manager").Logger(),
	}
}

// HandleTrigger runs every active rule in scope for the payload's account.
// One rule's evaluation error never stops the others; failures are logged
// and the pass continues. Returns how many rules were evaluated and how
// many alerts were created.
func (m *Manager) HandleTrigger(payload TriggerPayload) (evaluated, created int, err error) {
	var account models.AdAccount
	if err := m.db.First(&account, payload.AdAccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, ErrAccountNotFound
		}
		return 0, 0, fmt.Errorf("load account: %w", err)
	}

	// Account-specific rules plus org-wide rules (no account scope).
	var rules []models.AlertRule
	err = m.db.
		Where("org_id = ? AND is_active = ?", payload.OrgID, true).
		Where("ad_account_id = ? OR ad_account_id IS NULL", payload.AdAccountID).
		Find(&rules).Error
	if err != nil {
		return 0, 0, fmt.Errorf("load rules: %w", err)
	}

	for i := range rules {
		rule := &rules[i]
		result, evalErr := m.evaluator.Evaluate(rule, &account, &payload)
		if evalErr != nil {
			m.logger.Error().Err(evalErr).
				Uint("rule_id", rule.ID).
				Str("rule_type", string(rule.RuleType)).
				Msg("rule evaluation failed")
			continue
		}
		if !result.Triggered {
			continue
		}

		cooldown := rule.CooldownMinutes
		if cooldown <= 0 {
			cooldown = models.DefaultCooldownMinutes
		}
		inCooldown, cdErr := m.InCooldown(account.ID, rule.ID, cooldown)
		if cdErr != nil {
			m.logger.Error().Err(cdErr).Uint("rule_id", rule.ID).Msg("cooldown check failed")
			continue
		}
		if inCooldown {
			continue
		}

		alert := models.Alert{
			OrgID:       payload.OrgID,
			AdAccountID: account.ID,
			AlertRuleID: rule.ID,
			Severity:    rule.Severity,
			Status:      models.AlertStatusPending,
			Title:       result.Title,
			Message:     result.Message,
			ContextData: result.Context,
			Reference:   uuid.NewString(),
		}
		if createErr := m.db.Create(&alert).Error; createErr != nil {
			m.logger.Error().Err(createErr).Uint("rule_id", rule.ID).Msg("failed to create alert")
			continue
		}
		created++

		if !m.queue.Enqueue(alert.ID) {
			m.logger.Warn().Uint("alert_id", alert.ID).
				Msg("dispatch queue full, delivery deferred to escalation tick")
		}
	}

	return len(rules), created, nil
}

// InCooldown reports whether an alert for this (account, rule) pair was
// created within the cooldown window, regardless of its current status.
//
// The check runs immediately before insert; two concurrent evaluations can
// still both pass it and insert duplicates. That race is accepted: a rare
// duplicate alert beats a lock on the evaluation hot path.
func (m *Manager) InCooldown(accountID, ruleID uint, cooldownMinutes int) (bool, error) {
	cutoff := time.Now().Add(-time.Duration(cooldownMinutes) * time.Minute)

	var count int64
	err := m.db.Model(&models.Alert{}).
		Where("ad_account_id = ? AND alert_rule_id = ? AND created_at > ?", accountID, ruleID, cutoff).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("cooldown check: %w", err)
	}
	return count > 0, nil
}

// Acknowledge moves a pending alert to acknowledged, recording who and when.
func (m *Manager) Acknowledge(alertID uint, username string) error {
	now := time.Now()
	return m.transition(alertID,
		[]models.AlertStatus{models.AlertStatusPending},
		map[string]interface{}{
			"status":          models.AlertStatusAcknowledged,
			"acknowledged_by": username,
			"acknowledged_at": &now,
		})
}

// Resolve closes an alert from pending or acknowledged.
func (m *Manager) Resolve(alertID uint) error {
	now := time.Now()
	return m.transition(alertID,
		[]models.AlertStatus{models.AlertStatusPending, models.AlertStatusAcknowledged},
		map[string]interface{}{
			"status":      models.AlertStatusResolved,
			"resolved_at": &now,
		})
}

// Dismiss discards a pending alert. Dismissed is terminal; there is no
// reopen transition.
func (m *Manager) Dismiss(alertID uint) error {
	return m.transition(alertID,
		[]models.AlertStatus{models.AlertStatusPending},
		map[string]interface{}{
			"status": models.AlertStatusDismissed,
		})
}

// transition performs a conditional update matching the expected prior
// states, so a concurrent operator action or escalation cannot be lost.
func (m *Manager) transition(alertID uint, from []models.AlertStatus, updates map[string]interface{}) error {
	res := m.db.Model(&models.Alert{}).
		Where("id = ? AND status IN ?", alertID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := m.db.Model(&models.Alert{}).Where("id = ?", alertID).Count(&count).Error; err != nil {
			return fmt.Errorf("update alert: %w", err)
		}
		if count == 0 {
			return ErrAlertNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// ListAlerts returns alerts filtered by optional status and severity,
// newest first.
func (m *Manager) ListAlerts(orgID uint, status, severity string, limit int) ([]models.Alert, error) {
	query := m.db.Where("org_id = ?", orgID).Order("created_at desc")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if severity != "" {
		query = query.Where("severity = ?", severity)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var alerts []models.Alert
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}
