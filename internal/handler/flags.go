package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/flagstore"
	"github.com/park285/child-safety-server-go/internal/handler/shared"
)

// FlagHandler 는 아동별 플래그 카운터 조회 핸들러다.
type FlagHandler struct {
	store  *flagstore.Store
	logger *slog.Logger
}

// NewFlagHandler 는 플래그 핸들러를 생성한다.
func NewFlagHandler(store *flagstore.Store, logger *slog.Logger) *FlagHandler {
	return &FlagHandler{store: store, logger: logger}
}

// RegisterRoutes 는 플래그 라우트를 등록한다.
func (h *FlagHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/api/children/:childId/flags", h.handleSummary)
}

func (h *FlagHandler) handleSummary(c *gin.Context) {
	childID, ok := shared.PathParam(c, "childId")
	if !ok {
		return
	}

	summary, err := h.store.Summary(c.Request.Context(), childID)
	if err != nil {
		shared.LogError(c, h.logger, "flag_summary", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
