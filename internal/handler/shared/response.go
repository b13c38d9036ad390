package shared

import (
	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/httperror"
	"github.com/park285/child-safety-server-go/internal/middleware"
)

// WriteError 는 에러 응답을 작성한다.
func WriteError(c *gin.Context, err error) {
	if c == nil {
		return
	}
	status, payload := httperror.Response(err, middleware.GetRequestID(c))
	c.JSON(status, payload)
}

// ErrorPayload 는 에러를 상태 코드와 응답 본문으로 변환한다.
func ErrorPayload(c *gin.Context, err error) (int, httperror.ErrorResponse) {
	return httperror.Response(err, middleware.GetRequestID(c))
}
