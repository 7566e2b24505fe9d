package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/targetspro/adwatch/internal/models"
)

// Dispatcher sends notifications for an alert. The escalator calls it
// synchronously after a successful promotion; it runs as a background batch
// job, not a latency-sensitive path.
type Dispatcher interface {
	Dispatch(ctx context.Context, alertID uint) (dispatched, failed int, err error)
}

// DefaultEscalationTimeouts is how long an unacknowledged alert waits at
// each severity before promotion to the next level. Emergency never
// escalates further.
var DefaultEscalationTimeouts = map[models.Severity]time.Duration{
	models.SeverityInfo:     240 * time.Minute,
	models.SeverityWarning:  120 * time.Minute,
	models.SeverityCritical: 60 * time.Minute,
}

// Escalator periodically promotes stale pending alerts to the next severity
// and re-dispatches their notifications.
type Escalator struct {
	db         *gorm.DB
	dispatcher Dispatcher
	interval   time.Duration
	timeouts   map[models.Severity]time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
	logger     zerolog.Logger
}

func NewEscalator(db *gorm.DB, dispatcher Dispatcher, interval time.Duration, timeouts map[models.Severity]time.Duration, logger zerolog.Logger) *Escalator {
	if timeouts == nil {
		timeouts = DefaultEscalationTimeouts
	}
	return &Escalator{
		db:         db,
		dispatcher: dispatcher,
		interval:   interval,
		timeouts:   timeouts,
		stopChan:   make(chan struct{}),
		logger:     logger.With().Str("component", "escalator").Logger(),
	}
}

// Start runs the escalation loop until Stop is called. A failed tick is
// logged and retried on the next tick; it never crashes the process.
func (e *Escalator) Start() {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := e.RunOnce(context.Background()); err != nil {
					e.logger.Error().Err(err).Msg("escalation tick failed")
				}
			case <-e.stopChan:
				return
			}
		}
	}()
}

// Stop halts the escalation loop. Safe to call more than once.
func (e *Escalator) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
}

// RunOnce scans each escalatable severity level for pending alerts past
// their timeout and promotes them. Returns how many alerts escalated.
func (e *Escalator) RunOnce(ctx context.Context) (int, error) {
	total := 0
	var scanErrs []error

	for _, severity := range []models.Severity{models.SeverityInfo, models.SeverityWarning, models.SeverityCritical} {
		next, ok := severity.Next()
		if !ok {
			continue
		}
		timeout, ok := e.timeouts[severity]
		if !ok || timeout <= 0 {
			continue
		}
		cutoff := time.Now().Add(-timeout)

		var stale []models.Alert
		err := e.db.
			Where("status = ? AND severity = ? AND created_at < ?", models.AlertStatusPending, severity, cutoff).
			Find(&stale).Error
		if err != nil {
			// A failed scan aborts this level only; the other levels still run.
			e.logger.Error().Err(err).Str("severity", string(severity)).Msg("escalation scan failed")
			scanErrs = append(scanErrs, fmt.Errorf("scan %s alerts: %w", severity, err))
			continue
		}

		for i := range stale {
			if e.escalate(ctx, &stale[i], severity, next) {
				total++
			}
		}
	}

	return total, errors.Join(scanErrs...)
}

// escalate promotes one alert with a conditional update matching the state
// it was selected in. Zero rows affected means an operator action or another
// tick won the race; that alert is simply skipped.
func (e *Escalator) escalate(ctx context.Context, a *models.Alert, from, to models.Severity) bool {
	contextData := models.JSONMap{}
	for k, v := range a.ContextData {
		contextData[k] = v
	}
	contextData["escalated_from"] = string(from)
	contextData["escalated_at"] = time.Now().Format(time.RFC3339)

	res := e.db.Model(&models.Alert{}).
		Where("id = ? AND status = ? AND severity = ?", a.ID, models.AlertStatusPending, from).
		Updates(map[string]interface{}{
			"severity":     to,
			"context_data": contextData,
		})
	if res.Error != nil {
		e.logger.Error().Err(res.Error).Uint("alert_id", a.ID).Msg("failed to escalate alert")
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}

	e.logger.Info().
		Uint("alert_id", a.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("alert escalated")

	// Re-notify at the new severity. A dispatch failure must not fail the
	// tick for the remaining alerts.
	if _, _, err := e.dispatcher.Dispatch(ctx, a.ID); err != nil {
		e.logger.Error().Err(err).Uint("alert_id", a.ID).Msg("dispatch after escalation failed")
	}

	return true
}
