package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/config"
)

// CORS 는 교차 출처 요청 허용 미들웨어다.
// 사전 요청(OPTIONS)은 본문 없이 200 으로 응답한다.
func CORS(cfg *config.Config) gin.HandlerFunc {
	return cors.New(newCORSConfig(cfg))
}

func newCORSConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:              []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:              []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", RequestIDHeader},
		ExposeHeaders:             []string{RequestIDHeader},
		OptionsResponseStatusCode: http.StatusOK,
	}

	origins := []string{"*"}
	maxAge := time.Hour
	if cfg != nil {
		if len(cfg.CORS.AllowOrigins) > 0 {
			origins = cfg.CORS.AllowOrigins
		}
		maxAge = time.Duration(cfg.CORS.MaxAgeSeconds) * time.Second
	}

	if slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.MaxAge = maxAge
	return corsConfig
}
