package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/httperror"
)

const (
	apiPathPrefix   = "/api/"
	classifyPath    = "/validate-child-message"
	apiClassifyPath = "/api/safety/classify"
	bearerPrefixLen = len("bearer ")
)

// APIKeyAuth 는 운영 API(/api/) 키 인증 미들웨어다.
// 키가 설정되지 않으면 모든 요청을 통과시킨다.
func APIKeyAuth(cfg *config.Config) gin.HandlerFunc {
	expected := ""
	if cfg != nil {
		expected = strings.TrimSpace(cfg.HTTPAuth.APIKey)
	}

	return func(c *gin.Context) {
		if expected == "" || c.Request.Method == "OPTIONS" || !isAPIPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		provided := extractAPIKey(c)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			details := map[string]any{"path": c.Request.URL.Path}
			status, payload := httperror.Response(httperror.NewUnauthorized(details), GetRequestID(c))
			c.AbortWithStatusJSON(status, payload)
			return
		}

		c.Next()
	}
}

func extractAPIKey(c *gin.Context) string {
	if c == nil {
		return ""
	}

	if value := strings.TrimSpace(c.GetHeader("X-API-Key")); value != "" {
		return value
	}

	authValue := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authValue) <= bearerPrefixLen || !strings.EqualFold(authValue[:bearerPrefixLen], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authValue[bearerPrefixLen:])
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, apiPathPrefix)
}

// isRateLimitedPath: 분류 엔드포인트는 인증 대상은 아니지만 요청 제한 대상입니다.
func isRateLimitedPath(path string) bool {
	return path == classifyPath || isAPIPath(path)
}

// isClassifyPath: 오류 응답에도 분류 결과 필드를 담아야 하는 경로입니다.
func isClassifyPath(path string) bool {
	return path == classifyPath || path == apiClassifyPath
}
