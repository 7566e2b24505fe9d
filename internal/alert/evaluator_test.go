package alert

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/targetspro/adwatch/internal/database"
	"github.com/targetspro/adwatch/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Each pooled connection would get its own in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func testAccount(t *testing.T, db *gorm.DB, balance string) *models.AdAccount {
	t.Helper()
	account := &models.AdAccount{
		OrgID:          1,
		AccountName:    "Acme Campaigns",
		Platform:       "facebook",
		Currency:       "EGP",
		CurrentBalance: balance,
		Status:         models.AccountStatusActive,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

// seedSpend writes one spend record per amount, most recent first (index 0 is
// today).
func seedSpend(t *testing.T, db *gorm.DB, accountID uint, amounts ...string) {
	t.Helper()
	for i, amount := range amounts {
		record := models.SpendRecord{
			OrgID:       1,
			AdAccountID: accountID,
			Date:        time.Now().AddDate(0, 0, -i).Format("2006-01-02"),
			DailySpend:  amount,
		}
		require.NoError(t, db.Create(&record).Error)
	}
}

func balanceRule(threshold float64) *models.AlertRule {
	return &models.AlertRule{
		OrgID:    1,
		Name:     "low balance",
		RuleType: models.RuleBalanceThreshold,
		Severity: models.SeverityWarning,
		IsActive: true,
		Config:   models.JSONMap{"threshold_value": threshold},
	}
}

func TestEvaluateBalanceThreshold(t *testing.T) {
	db := testDB(t)
	evaluator := NewEvaluator(db, zerolog.Nop())

	tests := []struct {
		balance   string
		threshold float64
		triggered bool
	}{
		{"150.00", 100, false},
		{"100.00", 100, true}, // boundary: at threshold fires
		{"99.99", 100, true},
		{"-10", 100, true},
		{"", 100, true},          // empty parses as zero
		{"not-a-number", 100, true}, // unparseable parses as zero
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("balance=%q", tt.balance), func(t *testing.T) {
			account := testAccount(t, db, tt.balance)
			result, err := evaluator.Evaluate(balanceRule(tt.threshold), account, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.triggered, result.Triggered)
			if tt.triggered {
				assert.Contains(t, result.Title, "Low Balance")
				assert.Equal(t, tt.threshold, result.Context["threshold"])
			}
		})
	}
}

func TestEvaluateTimeToDepletion(t *testing.T) {
	rule := &models.AlertRule{
		OrgID:    1,
		Name:     "depleting",
		RuleType: models.RuleTimeToDepletion,
		Severity: models.SeverityCritical,
		IsActive: true,
		Config:   models.JSONMap{"days_remaining": 3.0, "lookback_days": 7.0},
	}

	t.Run("fires when average spend drains balance soon", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "200.00")
		seedSpend(t, db, account.ID, "100", "100", "100")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		require.True(t, result.Triggered)
		assert.Equal(t, 2, result.Context["days_remaining"])
	})

	t.Run("zero balance fires without spend history", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "0")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		require.True(t, result.Triggered)
		assert.Equal(t, 0, result.Context["days_remaining"])
	})

	t.Run("no history with positive balance does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "500.00")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("zero average spend does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "500.00")
		seedSpend(t, db, account.ID, "0", "0", "0")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("ample runway does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "10000.00")
		seedSpend(t, db, account.ID, "100", "100", "100")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})
}

func TestEvaluateSpendSpike(t *testing.T) {
	rule := &models.AlertRule{
		OrgID:    1,
		Name:     "spike",
		RuleType: models.RuleSpendSpike,
		Severity: models.SeverityWarning,
		IsActive: true,
		Config:   models.JSONMap{"percentage_increase": 50.0, "lookback_days": 7.0},
	}

	t.Run("fires on a spike above threshold", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "1000")
		seedSpend(t, db, account.ID, "300", "100", "100", "100")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		require.True(t, result.Triggered)
		assert.Equal(t, float64(200), result.Context["pct_change"])
	})

	t.Run("steady spend does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "1000")
		seedSpend(t, db, account.ID, "110", "100", "100")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("single data point does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "1000")
		seedSpend(t, db, account.ID, "300")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("zero prior average does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "1000")
		seedSpend(t, db, account.ID, "300", "0", "0")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})
}

func TestEvaluateZeroSpend(t *testing.T) {
	rule := &models.AlertRule{
		OrgID:    1,
		Name:     "idle account",
		RuleType: models.RuleZeroSpend,
		Severity: models.SeverityInfo,
		IsActive: true,
		Config:   models.JSONMap{"consecutive_days": 2.0},
	}

	t.Run("fires when the latest days are all zero", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "1000")
		seedSpend(t, db, account.ID, "0", "0", "50")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		require.True(t, result.Triggered)
		assert.Equal(t, 2, result.Context["consecutive_zero_days"])
	})

	t.Run("a nonzero day in the window does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "1000")
		seedSpend(t, db, account.ID, "0", "3")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("too few records does not fire", func(t *testing.T) {
		db := testDB(t)
		evaluator := NewEvaluator(db, zerolog.Nop())
		account := testAccount(t, db, "1000")
		seedSpend(t, db, account.ID, "0")

		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})
}

func TestEvaluateStatusChange(t *testing.T) {
	db := testDB(t)
	evaluator := NewEvaluator(db, zerolog.Nop())
	account := testAccount(t, db, "1000")

	rule := &models.AlertRule{
		OrgID:    1,
		Name:     "status watch",
		RuleType: models.RuleAccountStatusChange,
		Severity: models.SeverityCritical,
		IsActive: true,
	}

	t.Run("fires on a status change event", func(t *testing.T) {
		payload := &TriggerPayload{
			AdAccountID: account.ID,
			OrgID:       1,
			Event:       "status_change",
			OldStatus:   "active",
			NewStatus:   "disabled",
		}
		result, err := evaluator.Evaluate(rule, account, payload)
		require.NoError(t, err)
		require.True(t, result.Triggered)
		assert.Equal(t, "active", result.Context["old_status"])
		assert.Equal(t, "disabled", result.Context["new_status"])
	})

	t.Run("ignores non status events", func(t *testing.T) {
		payload := &TriggerPayload{AdAccountID: account.ID, OrgID: 1}
		result, err := evaluator.Evaluate(rule, account, payload)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})

	t.Run("ignores a nil payload", func(t *testing.T) {
		result, err := evaluator.Evaluate(rule, account, nil)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
	})
}

func TestParseNumeric(t *testing.T) {
	assert.Equal(t, 123.45, parseNumeric("123.45"))
	assert.Equal(t, float64(0), parseNumeric(""))
	assert.Equal(t, float64(0), parseNumeric("abc"))
	assert.Equal(t, -10.5, parseNumeric("-10.5"))
}
