package di

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/park285/child-safety-server-go/internal/audit"
	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/flagstore"
	"github.com/park285/child-safety-server-go/internal/safety"
	"github.com/park285/child-safety-server-go/internal/telemetry"
)

// App: 애플리케이션 구성 요소를 묶는다.
type App struct {
	Server          *http.Server
	Logger          *slog.Logger
	Config          *config.Config
	Telemetry       *telemetry.Provider
	Classifier      *safety.Classifier
	FlagStore       *flagstore.Store
	AuditRepository *audit.Repository
	AuditRecorder   *audit.Recorder
}

// NewApp: App 인스턴스를 생성합니다.
func NewApp(
	server *http.Server,
	logger *slog.Logger,
	cfg *config.Config,
	tracing *telemetry.Provider,
	classifier *safety.Classifier,
	flagStore *flagstore.Store,
	auditRepository *audit.Repository,
	auditRecorder *audit.Recorder,
) *App {
	return &App{
		Server:          server,
		Logger:          logger,
		Config:          cfg,
		Telemetry:       tracing,
		Classifier:      classifier,
		FlagStore:       flagStore,
		AuditRepository: auditRepository,
		AuditRecorder:   auditRecorder,
	}
}

// Close: 앱 리소스를 정리합니다.
// 진행 중인 판정 관찰자와 대기 중인 감사 기록을 먼저 처리한 뒤 저장소 연결을 닫습니다.
func (a *App) Close(ctx context.Context) {
	if a.Classifier != nil {
		if err := a.Classifier.Wait(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("verdict_observers_drain_failed", "err", err)
		}
	}
	if a.AuditRecorder != nil {
		a.AuditRecorder.Close()
	}
	if a.AuditRepository != nil {
		a.AuditRepository.Close()
	}
	if a.FlagStore != nil {
		a.FlagStore.Close()
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("otel_shutdown_failed", "err", err)
		}
	}
}
