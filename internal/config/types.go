package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// GeminiConfig: 안전 분류에 사용하는 Gemini 모델 설정입니다.
type GeminiConfig struct {
	APIKeys         []string
	Model           string
	BaseURL         string // 비어있으면 SDK 기본 엔드포인트
	Temperature     float64
	MaxOutputTokens int
	ThinkingLevel   string
	TimeoutSeconds  int
	JSONMode        bool
}

// PrimaryKey: 기본 API 키를 반환합니다.
func (g GeminiConfig) PrimaryKey() string {
	if len(g.APIKeys) == 0 {
		return ""
	}
	return g.APIKeys[0]
}

// Configured: 분류 서비스 자격 증명이 있는지 반환합니다.
func (g GeminiConfig) Configured() bool {
	return g.PrimaryKey() != ""
}

// Timeout: 요청 타임아웃을 반환합니다.
func (g GeminiConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// SafetyConfig: 프롬프트 입력 제한 설정입니다.
type SafetyConfig struct {
	MaxMessageRunes int
	MaxTopics       int
}

// FlagStoreConfig: 아동별 플래그 카운터 저장소 설정입니다.
type FlagStoreConfig struct {
	URL           string
	Enabled       bool
	Required      bool
	DisableCache  bool
	WindowMinutes int
}

// Window: 카운터 집계 구간을 반환합니다.
func (f FlagStoreConfig) Window() time.Duration {
	return time.Duration(f.WindowMinutes) * time.Minute
}

// LoggingConfig: 로깅 설정입니다.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig: HTTP 서버 설정입니다.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
}

// HTTPAuthConfig: API 키 인증 설정입니다.
type HTTPAuthConfig struct {
	APIKey string
}

// HTTPRateLimitConfig: 요청 제한 설정입니다.
type HTTPRateLimitConfig struct {
	RequestsPerMinute int
	CacheSize         int
	CacheTTLSeconds   int
}

// CORSConfig: 교차 출처 허용 설정입니다.
type CORSConfig struct {
	AllowOrigins  []string
	MaxAgeSeconds int
}

// DatabaseConfig: 판정 감사 로그 DB 설정입니다.
type DatabaseConfig struct {
	Enabled                              bool
	Host                                 string
	Port                                 int
	Name                                 string
	User                                 string
	Password                             string
	MinPool                              int
	MaxPool                              int
	ConnMaxLifetimeMinutes               int
	ConnMaxIdleTimeMinutes               int
	AuditBatchEnabled                    bool
	AuditBatchFlushIntervalSeconds       int
	AuditBatchFlushTimeoutSeconds        int
	AuditBatchMaxPendingEntries          int
	AuditBatchMaxBackoffSeconds          int
	AuditBatchErrorLogMaxIntervalSeconds int
}

// DSN: DB 접속 문자열을 반환합니다.
func (d DatabaseConfig) DSN() string {
	host := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host,
		Path:   "/" + d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// TelemetryConfig: OpenTelemetry 설정입니다.
type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRate     float64
}

// Config: 애플리케이션 전체 설정입니다.
type Config struct {
	Gemini        GeminiConfig
	Safety        SafetyConfig
	FlagStore     FlagStoreConfig
	Logging       LoggingConfig
	HTTP          HTTPConfig
	HTTPAuth      HTTPAuthConfig
	HTTPRateLimit HTTPRateLimitConfig
	CORS          CORSConfig
	Database      DatabaseConfig
	Telemetry     TelemetryConfig

	// InvalidEnv: 해석하지 못해 기본값을 사용한 환경 변수 이름입니다.
	InvalidEnv []string
}
