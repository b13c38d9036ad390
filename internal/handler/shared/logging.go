package shared

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/httperror"
	"github.com/park285/child-safety-server-go/internal/middleware"
)

// LogError: 요청 처리 실패를 응답 코드와 함께 기록합니다.
// 5xx 로 응답하는 오류는 Error, 나머지는 Warn 레벨입니다.
func LogError(c *gin.Context, logger *slog.Logger, operation string, err error) {
	if logger == nil || err == nil {
		return
	}
	apiErr := httperror.FromError(err)
	attrs := []any{
		"request_id", middleware.GetRequestID(c),
		"code", string(apiErr.Code),
		"status", apiErr.Status,
		"err", err,
	}
	if c != nil && c.Request != nil {
		attrs = append(attrs, "path", c.Request.URL.Path)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error(operation+"_failed", attrs...)
		return
	}
	logger.Warn(operation+"_failed", attrs...)
}
