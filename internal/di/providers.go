package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/park285/child-safety-server-go/internal/audit"
	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/flagstore"
	"github.com/park285/child-safety-server-go/internal/health"
	"github.com/park285/child-safety-server-go/internal/logging"
	"github.com/park285/child-safety-server-go/internal/metrics"
	"github.com/park285/child-safety-server-go/internal/telemetry"
)

// ProvideLogger: 로거를 구성해 반환합니다.
// OTel이 활성화된 경우 로그에 trace_id/span_id가 자동으로 추가됩니다.
func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLoggerWithOTel(cfg.Logging, cfg.Telemetry.Enabled)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// ProvideTelemetry: 트레이서 프로바이더를 초기화합니다. 비활성이면 no-op 입니다.
func ProvideTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	if provider.IsEnabled() {
		logger.Info(
			"otel_enabled",
			"service", cfg.Telemetry.ServiceName,
			"endpoint", cfg.Telemetry.OTLPEndpoint,
			"sample_rate", cfg.Telemetry.SampleRate,
		)
	}
	return provider, nil
}

// ProvideMetrics: 지표 저장소를 반환합니다. reg 가 nil 이면 프로세스 기본 레지스트리에 등록합니다.
func ProvideMetrics(reg prometheus.Registerer) *metrics.Store {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return metrics.NewStore(reg)
}

// ProvideFlagStore: 플래그 카운터 저장소를 생성합니다.
func ProvideFlagStore(cfg *config.Config, logger *slog.Logger) (*flagstore.Store, error) {
	store, err := flagstore.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("flag store: %w", err)
	}
	logger.Info("flag_store_ready", "backend", store.Backend(), "window_minutes", cfg.FlagStore.WindowMinutes)
	return store, nil
}

// ProvideAuditRepository: 감사 DB 가 비활성이면 nil 을 반환합니다.
// dialector 가 nil 이면 PostgreSQL 을 사용합니다.
func ProvideAuditRepository(cfg *config.Config, dialector gorm.Dialector, logger *slog.Logger) *audit.Repository {
	if !cfg.Database.Enabled {
		logger.Info("audit_db_disabled")
		return nil
	}
	if dialector != nil {
		return audit.NewRepositoryWithDialector(cfg, dialector, logger)
	}
	return audit.NewRepository(cfg, logger)
}

// auditStore: nil 포인터가 non-nil 인터페이스로 전달되지 않도록 변환합니다.
func auditStore(repo *audit.Repository) audit.Store {
	if repo == nil {
		return nil
	}
	return repo
}

// ProvideHealthChecker: 활성화된 의존성만 readiness 확인 대상으로 등록합니다.
func ProvideHealthChecker(cfg *config.Config, flags *flagstore.Store, repo *audit.Repository) *health.Checker {
	var flagPinger, auditPinger health.Pinger
	if flags.IsEnabled() {
		flagPinger = flags
	}
	if repo != nil {
		auditPinger = repo
	}
	return health.NewChecker(cfg, flagPinger, flags.Backend(), auditPinger)
}
