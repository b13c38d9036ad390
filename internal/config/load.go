package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const maxTemperature = 2.0

var (
	configOnce  sync.Once
	configValue *Config
)

// Load: 환경 변수 기반 설정을 로드합니다.
func Load() *Config {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue = buildConfig(newEnvReader(os.LookupEnv))
	})
	return configValue
}

// ProvideConfig: 설정을 로드하고 검증합니다.
func ProvideConfig() (*Config, error) {
	cfg := Load()
	if cfg == nil {
		return nil, errors.New("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate: 설정 유효성을 검사합니다.
// API 키 누락은 운영 오류로 요청 시점에 보고하므로 여기서 거부하지 않습니다.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini model is empty")
	}
	temperature := c.Gemini.Temperature
	if math.IsNaN(temperature) || temperature < 0 || temperature > maxTemperature {
		return fmt.Errorf("gemini temperature out of range: %v", temperature)
	}
	if c.FlagStore.Enabled && c.FlagStore.WindowMinutes <= 0 {
		return fmt.Errorf("flag store window must be positive: %d", c.FlagStore.WindowMinutes)
	}
	return nil
}

// LogEnvStatus: 환경 설정 상태를 로그로 남깁니다.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	logger.Debug(
		"env_status",
		"env_file", fileExists(".env"),
		"gemini_keys", len(cfg.Gemini.APIKeys),
		"primary_key", maskSecret(cfg.Gemini.PrimaryKey()),
		"model", cfg.Gemini.Model,
		"temperature", cfg.Gemini.Temperature,
		"timeout", cfg.Gemini.TimeoutSeconds,
		"flag_store_url", cfg.FlagStore.URL,
		"flag_window_minutes", cfg.FlagStore.WindowMinutes,
		"audit_db_enabled", cfg.Database.Enabled,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
	)

	for _, key := range cfg.InvalidEnv {
		logger.Warn("env_invalid_value", "key", key)
	}
	if !cfg.Gemini.Configured() {
		logger.Error("env_missing_google_api_key")
	}
}

func buildConfig(r *envReader) *Config {
	cfg := &Config{
		Gemini: GeminiConfig{
			APIKeys:         r.apiKeys(),
			Model:           r.getString("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL:         r.getString("GEMINI_BASE_URL", ""),
			Temperature:     r.getFloat("GEMINI_TEMPERATURE", 0.1),
			MaxOutputTokens: r.getInt("GEMINI_MAX_TOKENS", 1024),
			ThinkingLevel:   r.getString("GEMINI_THINKING_LEVEL", "none"),
			TimeoutSeconds:  max(1, r.getInt("GEMINI_TIMEOUT", 20)),
			JSONMode:        r.getBool("GEMINI_JSON_MODE", true),
		},
		Safety: SafetyConfig{
			MaxMessageRunes: max(1, r.getInt("SAFETY_MAX_MESSAGE_RUNES", 4000)),
			MaxTopics:       max(1, r.getInt("SAFETY_MAX_TOPICS", 50)),
		},
		FlagStore: FlagStoreConfig{
			URL:           r.getString("FLAG_STORE_URL", "redis://localhost:6379"),
			Enabled:       r.getBool("FLAG_STORE_ENABLED", true),
			Required:      r.getBool("FLAG_STORE_REQUIRED", false),
			DisableCache:  r.getBool("FLAG_STORE_DISABLE_CACHE", true),
			WindowMinutes: r.getInt("FLAG_WINDOW_MINUTES", 1440),
		},
		Logging: LoggingConfig{
			Level:      r.getString("LOG_LEVEL", "info"),
			LogDir:     r.getString("LOG_DIR", ""),
			MaxSizeMB:  r.getInt("LOG_FILE_MAX_SIZE_MB", 1),
			MaxBackups: r.getInt("LOG_FILE_MAX_BACKUPS", 30),
			MaxAgeDays: r.getInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   r.getBool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:         r.getString("HTTP_HOST", "127.0.0.1"),
			Port:         r.getInt("HTTP_PORT", 40531),
			HTTP2Enabled: r.getBool("HTTP2_ENABLED", true),
		},
		HTTPAuth: HTTPAuthConfig{
			APIKey: r.getString("HTTP_API_KEY", ""),
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			RequestsPerMinute: r.getNonNegativeInt("HTTP_RATE_LIMIT_RPM", 0),
			CacheSize:         max(1, r.getNonNegativeInt("HTTP_RATE_LIMIT_CACHE_SIZE", 10000)),
			CacheTTLSeconds:   max(1, r.getNonNegativeInt("HTTP_RATE_LIMIT_CACHE_TTL_SECONDS", 120)),
		},
		CORS: CORSConfig{
			AllowOrigins:  r.getList("CORS_ALLOW_ORIGINS", []string{"*"}),
			MaxAgeSeconds: r.getNonNegativeInt("CORS_MAX_AGE_SECONDS", 3600),
		},
		Database: DatabaseConfig{
			Enabled:                              r.getBool("DB_ENABLED", false),
			Host:                                 r.getString("DB_HOST", "localhost"),
			Port:                                 r.getInt("DB_PORT", 5432),
			Name:                                 r.getString("DB_NAME", "child_safety"),
			User:                                 r.getString("DB_USER", "child_safety"),
			Password:                             r.getString("DB_PASSWORD", ""),
			MinPool:                              r.getInt("DB_MIN_POOL", 1),
			MaxPool:                              r.getInt("DB_MAX_POOL", 5),
			ConnMaxLifetimeMinutes:               r.getNonNegativeInt("DB_CONN_MAX_LIFETIME_MINUTES", 60),
			ConnMaxIdleTimeMinutes:               r.getNonNegativeInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
			AuditBatchEnabled:                    r.getBool("DB_AUDIT_BATCH_ENABLED", true),
			AuditBatchFlushIntervalSeconds:       max(1, r.getNonNegativeInt("DB_AUDIT_BATCH_FLUSH_INTERVAL_SECONDS", 1)),
			AuditBatchFlushTimeoutSeconds:        max(1, r.getNonNegativeInt("DB_AUDIT_BATCH_FLUSH_TIMEOUT_SECONDS", 5)),
			AuditBatchMaxPendingEntries:          max(1, r.getNonNegativeInt("DB_AUDIT_BATCH_MAX_PENDING_ENTRIES", 50)),
			AuditBatchMaxBackoffSeconds:          r.getNonNegativeInt("DB_AUDIT_BATCH_MAX_BACKOFF_SECONDS", 60),
			AuditBatchErrorLogMaxIntervalSeconds: r.getNonNegativeInt("DB_AUDIT_BATCH_ERROR_LOG_MAX_INTERVAL_SECONDS", 60),
		},
		Telemetry: TelemetryConfig{
			Enabled:        r.getBool("OTEL_ENABLED", false),
			ServiceName:    r.getString("OTEL_SERVICE_NAME", "child-safety-server"),
			ServiceVersion: r.getString("OTEL_SERVICE_VERSION", "1.0.0"),
			Environment:    r.getString("OTEL_ENVIRONMENT", "production"),
			OTLPEndpoint:   r.getString("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
			OTLPInsecure:   r.getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRate:     r.getFloat("OTEL_SAMPLE_RATE", 1.0),
		},
	}
	cfg.InvalidEnv = r.invalid
	return cfg
}
