package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Verification VerificationConfig `yaml:"verification"`
	AdminAPI     AdminAPIConfig     `yaml:"admin_api"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains the ops HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// TelegramConfig contains bot transport settings
type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	GroupID      int64   `yaml:"group_id"`       // gated destination chat
	ModlogChatID int64   `yaml:"modlog_chat_id"` // moderation channel
	TopicID      int64   `yaml:"topic_id"`       // optional forum topic inside the group
	AdminIDs     []int64 `yaml:"admin_ids"`      // moderator allow-list
	InviteLink   string  `yaml:"invite_link"`    // sent with the welcome message
}

// VerificationConfig contains the application window and audio thresholds
type VerificationConfig struct {
	PendingTimeout    time.Duration `yaml:"pending_timeout"`     // PENDING -> EXPIRED window
	ReminderAfter     time.Duration `yaml:"reminder_after"`      // mid-window reminder offset
	MinVoiceDuration  time.Duration `yaml:"min_voice_duration"`  // shorter notes fail
	SilenceFloorDBFS  float64       `yaml:"silence_floor_dbfs"`  // mean loudness below this fails
	VarianceThreshold float64       `yaml:"variance_threshold"`  // dBFS delta below this reads as synthetic
	MaxDownloadBytes  int64         `yaml:"max_download_bytes"`  // voice note size cap
}

// AdminAPIConfig contains the ops REST API settings
type AdminAPIConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	PasswordHash string `yaml:"password_hash"` // bcrypt hash of the ops password
	ActorID      int64  `yaml:"actor_id"`      // moderator identity HTTP decisions act as
	TokenExpiry  int    `yaml:"token_expiry_minutes"`
}

// AlertsConfig contains moderator email alert settings
type AlertsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	ModeratorEmail string `yaml:"moderator_email"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings for the sweep jobs
type SchedulerConfig struct {
	ExpireStalePending   string `yaml:"expire_stale_pending"`
	SendPendingReminders string `yaml:"send_pending_reminders"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Telegram
	if val := os.Getenv("TELEGRAM_BOT_TOKEN"); val != "" {
		c.Telegram.BotToken = val
	}
	if val := os.Getenv("TELEGRAM_GROUP_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.Telegram.GroupID)
	}
	if val := os.Getenv("TELEGRAM_MODLOG_CHAT_ID"); val != "" {
		fmt.Sscanf(val, "%d", &c.Telegram.ModlogChatID)
	}
	if val := os.Getenv("TELEGRAM_ADMIN_IDS"); val != "" {
		var ids []int64
		for _, part := range strings.Split(val, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			c.Telegram.AdminIDs = ids
		}
	}

	// Admin API
	if val := os.Getenv("ADMIN_JWT_SECRET"); val != "" {
		c.AdminAPI.JWTSecret = val
	}
	if val := os.Getenv("ADMIN_PASSWORD_HASH"); val != "" {
		c.AdminAPI.PasswordHash = val
	}

	// Alerts
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Alerts.SendGridAPIKey = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Telegram validation
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if c.Telegram.GroupID == 0 {
		return fmt.Errorf("telegram group id is required")
	}
	if c.Telegram.ModlogChatID == 0 {
		return fmt.Errorf("telegram modlog chat id is required")
	}
	if len(c.Telegram.AdminIDs) == 0 {
		return fmt.Errorf("at least one telegram admin id is required")
	}

	// Admin API validation
	if c.AdminAPI.JWTSecret == "" {
		return fmt.Errorf("admin API JWT secret is required")
	}
	if len(c.AdminAPI.JWTSecret) < 32 {
		return fmt.Errorf("admin API JWT secret must be at least 32 characters")
	}
	if c.AdminAPI.TokenExpiry == 0 {
		c.AdminAPI.TokenExpiry = 60
	}

	// Alerts validation
	if c.Alerts.Enabled {
		if c.Alerts.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid api key is required when alerts are enabled")
		}
		if c.Alerts.ModeratorEmail == "" {
			return fmt.Errorf("moderator email is required when alerts are enabled")
		}
	}

	// Verification defaults
	if c.Verification.PendingTimeout == 0 {
		c.Verification.PendingTimeout = 2 * time.Hour
	}
	if c.Verification.ReminderAfter == 0 {
		c.Verification.ReminderAfter = c.Verification.PendingTimeout / 2
	}
	if c.Verification.ReminderAfter >= c.Verification.PendingTimeout {
		return fmt.Errorf("reminder_after must be shorter than pending_timeout")
	}
	if c.Verification.MinVoiceDuration == 0 {
		c.Verification.MinVoiceDuration = 3 * time.Second
	}
	if c.Verification.SilenceFloorDBFS == 0 {
		c.Verification.SilenceFloorDBFS = -50.0
	}
	if c.Verification.VarianceThreshold == 0 {
		c.Verification.VarianceThreshold = 2.0
	}
	if c.Verification.MaxDownloadBytes == 0 {
		c.Verification.MaxDownloadBytes = 10 << 20 // 10 MiB
	}

	// Scheduler defaults
	if c.Scheduler.ExpireStalePending == "" {
		c.Scheduler.ExpireStalePending = "0 */5 * * * *" // every 5 minutes
	}
	if c.Scheduler.SendPendingReminders == "" {
		c.Scheduler.SendPendingReminders = "0 */10 * * * *" // every 10 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the ops HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsModerator reports whether the identity is on the moderator allow-list
func (c *TelegramConfig) IsModerator(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}
