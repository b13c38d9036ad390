package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/audit"
	"github.com/park285/child-safety-server-go/internal/handler/shared"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	defaultDailyDays   = 7
	maxDailyDays       = 90
)

// RecentVerdictsResponse 는 아동별 최근 판정 응답이다.
type RecentVerdictsResponse struct {
	ChildID  string              `json:"childId"`
	Verdicts []audit.VerdictView `json:"verdicts"`
}

// DailyVerdictsResponse 는 일자별 판정 집계 응답이다.
type DailyVerdictsResponse struct {
	Days              []audit.DailySummary `json:"days"`
	TotalVerdicts     int64                `json:"total_verdicts"`
	TotalRed          int64                `json:"total_red"`
	TotalFallback     int64                `json:"total_fallback"`
	TotalInputTokens  int64                `json:"total_input_tokens"`
	TotalOutputTokens int64                `json:"total_output_tokens"`
}

// VerdictHandler 는 판정 감사 조회 핸들러다. store 가 nil 이면 감사 DB 비활성이다.
type VerdictHandler struct {
	store  audit.Store
	logger *slog.Logger
}

// NewVerdictHandler 는 판정 조회 핸들러를 생성한다.
func NewVerdictHandler(store audit.Store, logger *slog.Logger) *VerdictHandler {
	return &VerdictHandler{store: store, logger: logger}
}

// RegisterRoutes 는 판정 조회 라우트를 등록한다.
func (h *VerdictHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/api/children/:childId/verdicts", h.handleRecent)
	router.GET("/api/verdicts/daily", h.handleDaily)
}

func (h *VerdictHandler) handleRecent(c *gin.Context) {
	if h.store == nil {
		writeError(c, audit.ErrDisabled)
		return
	}
	childID, ok := shared.PathParam(c, "childId")
	if !ok {
		return
	}
	limit, ok := shared.QueryPositiveInt(c, "limit", defaultRecentLimit, maxRecentLimit)
	if !ok {
		return
	}

	verdicts, err := h.store.RecentForChild(c.Request.Context(), childID, limit)
	if err != nil {
		shared.LogError(c, h.logger, "verdict_recent", err)
		writeError(c, err)
		return
	}
	if verdicts == nil {
		verdicts = []audit.VerdictView{}
	}
	c.JSON(http.StatusOK, RecentVerdictsResponse{ChildID: childID, Verdicts: verdicts})
}

func (h *VerdictHandler) handleDaily(c *gin.Context) {
	if h.store == nil {
		writeError(c, audit.ErrDisabled)
		return
	}
	days, ok := shared.QueryPositiveInt(c, "days", defaultDailyDays, maxDailyDays)
	if !ok {
		return
	}

	summaries, err := h.store.DailySummaries(c.Request.Context(), days)
	if err != nil {
		shared.LogError(c, h.logger, "verdict_daily", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildDailyResponse(summaries))
}

func buildDailyResponse(summaries []audit.DailySummary) DailyVerdictsResponse {
	response := DailyVerdictsResponse{Days: make([]audit.DailySummary, 0, len(summaries))}
	for _, row := range summaries {
		response.Days = append(response.Days, row)
		response.TotalVerdicts += row.Total()
		response.TotalRed += row.Red
		response.TotalFallback += row.Fallback
		response.TotalInputTokens += row.InputTokens
		response.TotalOutputTokens += row.OutputTokens
	}
	return response
}
