package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/park285/child-safety-server-go/internal/audit"
	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/flagstore"
	"github.com/park285/child-safety-server-go/internal/gemini"
	"github.com/park285/child-safety-server-go/internal/handler"
	"github.com/park285/child-safety-server-go/internal/safety"
	"github.com/park285/child-safety-server-go/internal/server"
)

// InitializeApp 은 환경 설정으로 애플리케이션 의존성을 초기화한다.
func InitializeApp(ctx context.Context) (*App, error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return BuildApp(ctx, cfg, Overrides{})
}

// Overrides 는 기본 구성 대신 사용할 구성 요소다. 비어 있으면 기본값을 쓴다.
type Overrides struct {
	// AuditDialector 가 nil 이면 감사 DB 는 PostgreSQL 을 사용한다.
	AuditDialector gorm.Dialector
	// Registerer 가 nil 이면 prometheus.DefaultRegisterer 를 사용한다.
	Registerer prometheus.Registerer
}

// BuildApp 은 주어진 설정으로 App 을 구성한다.
func BuildApp(ctx context.Context, cfg *config.Config, overrides Overrides) (*App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	tracing, err := ProvideTelemetry(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	metricsStore := ProvideMetrics(overrides.Registerer)

	geminiClient, err := gemini.NewClient(cfg, metricsStore)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	flagStore, err := ProvideFlagStore(cfg, logger)
	if err != nil {
		_ = tracing.Shutdown(ctx)
		return nil, err
	}

	auditRepository := ProvideAuditRepository(cfg, overrides.AuditDialector, logger)
	auditRecorder := audit.NewRecorder(cfg, auditStore(auditRepository), logger)

	observers := []safety.Observer{auditRecorder}
	if flagStore.IsEnabled() {
		observers = append(observers, flagstore.NewObserver(flagStore, logger))
	}

	classifier, err := safety.NewClassifier(geminiClient, metricsStore, logger, observers...)
	if err != nil {
		auditRecorder.Close()
		flagStore.Close()
		_ = tracing.Shutdown(ctx)
		return nil, fmt.Errorf("classifier: %w", err)
	}

	router := handler.NewRouter(
		cfg,
		logger,
		ProvideHealthChecker(cfg, flagStore, auditRepository),
		handler.NewSafetyHandler(cfg, classifier, metricsStore, logger),
		handler.NewFlagHandler(flagStore, logger),
		handler.NewVerdictHandler(auditStore(auditRepository), logger),
	)
	httpServer := server.NewHTTPServer(cfg, router)

	return NewApp(httpServer, logger, cfg, tracing, classifier, flagStore, auditRepository, auditRecorder), nil
}
