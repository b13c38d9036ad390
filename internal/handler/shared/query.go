package shared

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/httperror"
)

// QueryPositiveInt 는 양의 정수 쿼리 파라미터를 읽는다.
// 값이 없으면 def 를, upper 를 넘으면 upper 를 반환한다.
// 형식이 잘못되면 400 응답을 작성하고 false 를 반환한다.
func QueryPositiveInt(c *gin.Context, name string, def int, upper int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		WriteError(c, httperror.NewInvalidInput(fmt.Sprintf("%s must be a positive integer", name)))
		return 0, false
	}
	if upper > 0 && parsed > upper {
		return upper, true
	}
	return parsed, true
}

// PathParam 는 공백을 제거한 경로 파라미터를 읽는다. 비어 있으면 400 응답을 작성한다.
func PathParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		WriteError(c, httperror.NewInvalidInput(name+" is required"))
		return "", false
	}
	return value, true
}
