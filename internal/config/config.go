package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	ClinicName     string
	ClinicTimezone string

	TelegramBotToken string
	TelegramBaseURL  string
	AdminChatIDs     []int64

	GoogleSheetID             string
	GoogleServiceAccountEmail string
	GooglePrivateKey          string

	GeminiAPIKey     string
	GeminiModelID    string
	NLURetryAttempts int
	NLURetryBaseWait time.Duration

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string
	ConsultationFeePaise  int64

	ReminderInterval    time.Duration
	ReminderWindow      time.Duration
	ReportsDir          string
	SessionStore        string
	RedisAddr           string
	RedisPassword       string
	SessionTTL          time.Duration
	RateLimitPerSecond  float64
	RateLimitBurst      int
	PollTimeoutSeconds  int
	ShutdownGracePeriod time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		ClinicName:     getEnv("CLINIC_NAME", "BrightCare Dental"),
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramBaseURL:  getEnv("TELEGRAM_BASE_URL", ""),
		AdminChatIDs:     getEnvAsChatIDs("ADMIN_CHAT_ID"),

		GoogleSheetID:             getEnv("GOOGLE_SHEET_ID", ""),
		GoogleServiceAccountEmail: getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
		GooglePrivateKey:          normalizePrivateKey(getEnv("GOOGLE_PRIVATE_KEY", "")),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		NLURetryAttempts: getEnvAsInt("NLU_RETRY_ATTEMPTS", 3),
		NLURetryBaseWait: getEnvAsDuration("NLU_RETRY_BASE_WAIT", 5*time.Second),

		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		RazorpayBaseURL:       getEnv("RAZORPAY_BASE_URL", ""),
		ConsultationFeePaise:  int64(getEnvAsInt("CONSULTATION_FEE_PAISE", 10000)),

		ReminderInterval:    getEnvAsDuration("REMINDER_INTERVAL", 15*time.Minute),
		ReminderWindow:      getEnvAsDuration("REMINDER_WINDOW", 3*time.Hour+6*time.Minute),
		ReportsDir:          getEnv("REPORTS_DIR", "public/reports"),
		SessionStore:        strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "memory"))),
		RedisAddr:           getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		RateLimitPerSecond:  getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 10),
		PollTimeoutSeconds:  getEnvAsInt("POLL_TIMEOUT_SECONDS", 30),
		ShutdownGracePeriod: getEnvAsDuration("SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsChatIDs parses a comma-separated list of Telegram chat IDs.
func getEnvAsChatIDs(key string) []int64 {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// normalizePrivateKey converts escaped newlines from env files into real ones.
func normalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}
