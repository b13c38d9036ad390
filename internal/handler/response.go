package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/handler/shared"
)

// writeError: 에러 응답을 작성합니다 (shared.WriteError 위임).
func writeError(c *gin.Context, err error) {
	shared.WriteError(c, err)
}
