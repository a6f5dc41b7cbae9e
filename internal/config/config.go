package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // Single workstation, no login (default)
	AuthModeLocal AuthMode = "local" // Staff accounts with sessions
)

type (
	Config struct {
		HTTP
		Global
		Database
		Backup
		Documents
		Export
		Audit
		Tasks
		Auth
		Log
		Clinic
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Backup struct {
		Dir           string
		Enabled       bool   // Scheduled backups
		Schedule      string // Cron format: "0 2 * * *" = daily at 02:00
		RetainCount   int    // Newest backups kept by Prune, 0 keeps everything
		EncryptionKey string // Base64 AES-256 key; empty writes plain copies
	}
	Documents struct {
		Dir         string
		MaxUploadMB int64
	}
	Export struct {
		Dir string
	}
	Audit struct {
		Dir           string
		RetentionDays int // Days to keep activity log rows (default: 365)
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false when serving plain HTTP on the clinic LAN

		MaxLoginAttempts int
		RateLimitWindow  time.Duration
		LockoutDuration  time.Duration
	}
	Log struct {
		Level  string
		Pretty bool
	}
	Clinic struct {
		WorkingHoursStart  string // "09:00"
		WorkingHoursEnd    string // "18:00"
		SlotMinutes        int
		ExpiryWarningDays  int
		ReminderLeadTime   time.Duration
		AllowOverpayment   bool
		InventoryAlertCron string
	}
)

// NewConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables win.
func NewConfig() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("backup_dir", DefaultBackupDir)
	v.SetDefault("backup_enabled", true)
	v.SetDefault("backup_schedule", "0 2 * * *")
	v.SetDefault("backup_retain_count", 14)
	v.SetDefault("backup_encryption_key", "")

	v.SetDefault("documents_dir", "./documents")
	v.SetDefault("documents_max_upload_mb", 20)
	v.SetDefault("export_dir", DefaultExportDir)
	v.SetDefault("audit_dir", "./audit")
	v.SetDefault("audit_retention_days", 365)

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_session_secret", "")
	v.SetDefault("auth_session_lifetime", "12h")
	v.SetDefault("auth_token_expiry", "720h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", false)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetDefault("clinic_working_hours_start", "09:00")
	v.SetDefault("clinic_working_hours_end", "18:00")
	v.SetDefault("clinic_slot_minutes", 30)
	v.SetDefault("clinic_expiry_warning_days", 90)
	v.SetDefault("clinic_reminder_lead_time", "24h")
	v.SetDefault("clinic_allow_overpayment", false)
	v.SetDefault("clinic_inventory_alert_cron", "0 8 * * *")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Backup: Backup{
			Dir:           v.GetString("BACKUP_DIR"),
			Enabled:       v.GetBool("BACKUP_ENABLED"),
			Schedule:      v.GetString("BACKUP_SCHEDULE"),
			RetainCount:   v.GetInt("BACKUP_RETAIN_COUNT"),
			EncryptionKey: v.GetString("BACKUP_ENCRYPTION_KEY"),
		},
		Documents: Documents{
			Dir:         v.GetString("DOCUMENTS_DIR"),
			MaxUploadMB: v.GetInt64("DOCUMENTS_MAX_UPLOAD_MB"),
		},
		Export: Export{
			Dir: v.GetString("EXPORT_DIR"),
		},
		Audit: Audit{
			Dir:           v.GetString("AUDIT_DIR"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Auth: Auth{
			Mode:             AuthMode(v.GetString("AUTH_MODE")),
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
		Clinic: Clinic{
			WorkingHoursStart:  v.GetString("CLINIC_WORKING_HOURS_START"),
			WorkingHoursEnd:    v.GetString("CLINIC_WORKING_HOURS_END"),
			SlotMinutes:        v.GetInt("CLINIC_SLOT_MINUTES"),
			ExpiryWarningDays:  v.GetInt("CLINIC_EXPIRY_WARNING_DAYS"),
			ReminderLeadTime:   v.GetDuration("CLINIC_REMINDER_LEAD_TIME"),
			AllowOverpayment:   v.GetBool("CLINIC_ALLOW_OVERPAYMENT"),
			InventoryAlertCron: v.GetString("CLINIC_INVENTORY_ALERT_CRON"),
		},
	}
}
