package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	}
	Org struct {
		// Timezone used for timestamps in notifications and as the quiet
		// hours fallback when a channel has no timezone of its own.
		Timezone     string
		DashboardURL string `mapstructure:"dashboard_url"`
	}
	Email struct {
		SMTPHost string `mapstructure:"smtp_host"`
		SMTPPort int    `mapstructure:"smtp_port"`
		From     string
		Password string
	}
	Telegram struct {
		BotToken string `mapstructure:"bot_token"`
		APIBase  string `mapstructure:"api_base"`
	}
	WhatsApp struct {
		APIBase      string `mapstructure:"api_base"`
		PhoneID      string `mapstructure:"phone_id"`
		AccessToken  string `mapstructure:"access_token"`
		TemplateName string `mapstructure:"template_name"`
	}
	Escalation struct {
		IntervalMinutes int `mapstructure:"interval_minutes"`
		InfoMinutes     int `mapstructure:"info_minutes"`
		WarningMinutes  int `mapstructure:"warning_minutes"`
		CriticalMinutes int `mapstructure:"critical_minutes"`
	}
	Dispatch struct {
		QueueSize int `mapstructure:"queue_size"`
		Workers   int `mapstructure:"workers"`
	}
}

// EscalationInterval returns the scheduler tick period.
func (c *Config) EscalationInterval() time.Duration {
	return time.Duration(c.Escalation.IntervalMinutes) * time.Minute
}

// LoadConfig reads config.yaml from the working directory with ADWATCH_*
// environment variable overrides (e.g. ADWATCH_TELEGRAM_BOT_TOKEN).
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("adwatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file: defaults plus environment are enough to run.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.path", "data/adwatch.db")
	viper.SetDefault("org.timezone", "Africa/Cairo")
	viper.SetDefault("org.dashboard_url", "https://app.targetspro.com")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("telegram.api_base", "https://api.telegram.org")
	viper.SetDefault("whatsapp.api_base", "https://graph.facebook.com/v18.0")
	viper.SetDefault("whatsapp.template_name", "account_alert")
	viper.SetDefault("escalation.interval_minutes", 15)
	viper.SetDefault("escalation.info_minutes", 240)
	viper.SetDefault("escalation.warning_minutes", 120)
	viper.SetDefault("escalation.critical_minutes", 60)
	viper.SetDefault("dispatch.queue_size", 256)
	viper.SetDefault("dispatch.workers", 4)
}
