package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/safety"
)

const verdictKey = "safety_verdict"

// SetVerdict: 접근 로그에 함께 남길 분류 결과를 기록합니다.
func SetVerdict(c *gin.Context, result safety.ClassificationResult) {
	if c == nil {
		return
	}
	c.Set(verdictKey, result)
}

func verdictFields(c *gin.Context) []any {
	value, ok := c.Get(verdictKey)
	if !ok {
		return nil
	}
	result, ok := value.(safety.ClassificationResult)
	if !ok {
		return nil
	}
	return []any{
		"flag_level", string(result.FlagLevel),
		"action", string(result.ActionTaken),
		"parent_notify", result.ParentNotify,
	}
}

// RequestLogger 는 HTTP 요청 로그 미들웨어다.
// 메시지 본문은 기록하지 않고 분류 요청이면 판정 단계만 덧붙인다.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return func(c *gin.Context) {
		startedAt := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path

		defer func() {
			status := c.Writer.Status()
			if status < http.StatusBadRequest && len(c.Errors) == 0 && isNoisyInfoPath(path) {
				return
			}

			latency := time.Since(startedAt)
			fields := []any{
				"request_id", GetRequestID(c),
				"method", method,
				"path", path,
				"status", status,
				"latency", latency,
				"bytes", c.Writer.Size(),
			}
			fields = append(fields, verdictFields(c)...)
			if len(c.Errors) > 0 {
				fields = append(fields, "errors", c.Errors.String())
			}

			switch {
			case status >= 500:
				logger.Error("http_request", fields...)
			case status >= 400:
				logger.Warn("http_request", fields...)
			default:
				logger.Info("http_request", fields...)
			}
		}()

		c.Next()
	}
}

func isNoisyInfoPath(path string) bool {
	switch path {
	case "/health", "/health/ready", "/health/models", "/metrics":
		return true
	default:
		return false
	}
}
