package handler

import (
	"log/slog"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/health"
	"github.com/park285/child-safety-server-go/internal/middleware"
)

// NewRouter 는 HTTP 라우터를 구성한다.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	checker *health.Checker,
	safetyHandler *SafetyHandler,
	flagHandler *FlagHandler,
	verdictHandler *VerdictHandler,
) *gin.Engine {
	setGinMode(cfg.Logging.Level)

	router := gin.New()

	// OTel 미들웨어는 가장 앞에 둔다.
	if cfg.Telemetry.Enabled {
		serviceName := cfg.Telemetry.ServiceName
		if serviceName == "" {
			serviceName = "child-safety-server"
		}
		router.Use(otelgin.Middleware(serviceName))
	}

	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		gin.Recovery(),
		middleware.CORS(cfg),
		newGzipMiddleware(),
		middleware.APIKeyAuth(cfg),
		middleware.RateLimit(cfg),
	)

	RegisterHealthRoutes(router, cfg, checker)
	safetyHandler.RegisterRoutes(router)
	flagHandler.RegisterRoutes(router)
	verdictHandler.RegisterRoutes(router)

	return router
}

// newGzipMiddleware: 조회용 /api 응답만 압축합니다. /metrics 는 promhttp 가 직접 압축합니다.
func newGzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithCustomShouldCompressFn(func(c *gin.Context) bool {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			return false
		}
		return c.Request.Method == "GET" && strings.HasPrefix(c.Request.URL.Path, "/api/")
	}))
}

func setGinMode(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
