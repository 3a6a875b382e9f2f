package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration (whatsmeow device store)
	Database DatabaseConfig

	// WhatsApp configuration
	WhatsApp WhatsAppConfig

	// Session manager timing and limits
	Session SessionConfig

	// Media handling limits
	Media MediaConfig

	// WebSocket transport configuration
	WebSocket WebSocketConfig

	// Logging configuration
	Log LogConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // 0 disables it; long-lived WebSocket connections need that
	ShutdownTimeout time.Duration
	RateLimit       int // HTTP requests per minute per client IP
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// WhatsAppConfig holds WhatsApp-specific configuration
type WhatsAppConfig struct {
	LogLevel    string
	DeviceName  string // Custom device name that appears in WhatsApp linked devices
	PrintQR     bool   // Render pairing codes in the operator terminal
	AutoStart   bool   // Start the session when the process boots
	HistorySize int    // Messages kept per chat in the in-memory history index
}

// SessionConfig holds session manager configuration
type SessionConfig struct {
	SettleDelay    time.Duration
	RestartBackoff time.Duration
	MaxRestarts    int // 0 means retry forever
	DrainTimeout   time.Duration
	MessageLimit   int
}

// MediaConfig holds media configuration
type MediaConfig struct {
	MaxBytes        int64
	DownloadWorkers int
	DownloadTimeout time.Duration
}

// WebSocketConfig holds WebSocket transport configuration
type WebSocketConfig struct {
	AllowedOrigins []string
	ReadLimit      int64
	WriteTimeout   time.Duration
	CommandRate    float64 // commands per second per connection
	CommandBurst   int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// SecurityConfig holds security-specific configuration
type SecurityConfig struct {
	// API Keys protect the operator routes; empty disables them
	APIKeys []string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	// Try to load .env file (ignore errors - it's optional)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", ""),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 0),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimit:       getEnvAsInt("SERVER_RATE_LIMIT", 120),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			DSN:    getEnv("DB_DSN", "file:whatsapp-session.db?_foreign_keys=on"),
		},
		WhatsApp: WhatsAppConfig{
			LogLevel:    getEnv("WHATSAPP_LOG_LEVEL", "info"),
			DeviceName:  getEnv("WHATSAPP_DEVICE_NAME", "macOS"),
			PrintQR:     getEnvAsBool("WHATSAPP_PRINT_QR", true),
			AutoStart:   getEnvAsBool("WHATSAPP_AUTO_START", true),
			HistorySize: getEnvAsInt("WHATSAPP_HISTORY_SIZE", 200),
		},
		Session: SessionConfig{
			SettleDelay:    getEnvAsDuration("SESSION_SETTLE_DELAY", 3*time.Second),
			RestartBackoff: getEnvAsDuration("SESSION_RESTART_BACKOFF", 5*time.Second),
			MaxRestarts:    getEnvAsInt("SESSION_MAX_RESTARTS", 0),
			DrainTimeout:   getEnvAsDuration("SESSION_DRAIN_TIMEOUT", 5*time.Second),
			MessageLimit:   getEnvAsInt("SESSION_MESSAGE_LIMIT", 50),
		},
		Media: MediaConfig{
			MaxBytes:        getEnvAsInt64("MEDIA_MAX_BYTES", 16<<20),
			DownloadWorkers: getEnvAsInt("MEDIA_DOWNLOAD_WORKERS", 4),
			DownloadTimeout: getEnvAsDuration("MEDIA_DOWNLOAD_TIMEOUT", 30*time.Second),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: getEnvAsSlice("WS_ALLOWED_ORIGINS", []string{"*"}),
			ReadLimit:      getEnvAsInt64("WS_READ_LIMIT", 64<<20),
			WriteTimeout:   getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			CommandRate:    getEnvAsFloat("WS_COMMAND_RATE", 20),
			CommandBurst:   getEnvAsInt("WS_COMMAND_BURST", 40),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Security: SecurityConfig{
			APIKeys: getEnvAsSlice("API_KEYS", []string{}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.RateLimit < 1 {
		return fmt.Errorf("invalid server rate limit: %d", c.Server.RateLimit)
	}

	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Session.SettleDelay < 0 || c.Session.RestartBackoff < 0 || c.Session.DrainTimeout < 0 {
		return fmt.Errorf("session durations must not be negative")
	}

	if c.Session.MaxRestarts < 0 {
		return fmt.Errorf("invalid session max restarts: %d", c.Session.MaxRestarts)
	}

	if c.Session.MessageLimit < 1 {
		return fmt.Errorf("invalid session message limit: %d", c.Session.MessageLimit)
	}

	if c.WhatsApp.HistorySize < c.Session.MessageLimit {
		return fmt.Errorf("history size (%d) must be at least the message limit (%d)", c.WhatsApp.HistorySize, c.Session.MessageLimit)
	}

	if c.Media.MaxBytes < 1 {
		return fmt.Errorf("invalid media max bytes: %d", c.Media.MaxBytes)
	}

	if c.Media.DownloadWorkers < 1 {
		return fmt.Errorf("invalid media download workers: %d", c.Media.DownloadWorkers)
	}

	if c.Media.DownloadTimeout <= 0 {
		return fmt.Errorf("invalid media download timeout: %s", c.Media.DownloadTimeout)
	}

	// Base64 inflates media by 4/3, and the frame carries JSON around it
	if c.WebSocket.ReadLimit < c.Media.MaxBytes*4/3 {
		return fmt.Errorf("websocket read limit (%d) cannot carry media of %d bytes", c.WebSocket.ReadLimit, c.Media.MaxBytes)
	}

	if c.WebSocket.CommandRate <= 0 || c.WebSocket.CommandBurst < 1 {
		return fmt.Errorf("websocket command rate and burst must be positive")
	}

	// Check for default/insecure API keys
	for _, key := range c.Security.APIKeys {
		if key == "default-api-key" || key == "api-key-123" || len(key) < 8 {
			return fmt.Errorf("insecure or default API key detected: '%s'. Please set secure API keys in environment variables", key)
		}
	}

	return nil
}

// Address returns the server address in the format host:port
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Helper functions to get environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma and trim spaces
	values := make([]string, 0)
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}

	return values
}
