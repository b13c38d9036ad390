package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/handler/shared"
	"github.com/park285/child-safety-server-go/internal/httperror"
	"github.com/park285/child-safety-server-go/internal/metrics"
	"github.com/park285/child-safety-server-go/internal/middleware"
	"github.com/park285/child-safety-server-go/internal/safety"
)

// reasonInvalidRequest 는 요청 본문 검증 실패 시 결과에 담기는 사유다.
const reasonInvalidRequest = "invalid request"

// Classifier 는 메시지 안전 분류기다.
type Classifier interface {
	Classify(ctx context.Context, req safety.ClassificationRequest) (safety.ClassificationResult, error)
}

var _ Classifier = (*safety.Classifier)(nil)

// SafetyHandler 는 메시지 안전 분류 API 핸들러다.
type SafetyHandler struct {
	cfg        *config.Config
	classifier Classifier
	metrics    *metrics.Store
	logger     *slog.Logger
}

// NewSafetyHandler 는 안전 분류 핸들러를 생성한다.
func NewSafetyHandler(cfg *config.Config, classifier Classifier, metricsStore *metrics.Store, logger *slog.Logger) *SafetyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SafetyHandler{
		cfg:        cfg,
		classifier: classifier,
		metrics:    metricsStore,
		logger:     logger,
	}
}

// RegisterRoutes 는 분류 라우트를 등록한다.
func (h *SafetyHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/validate-child-message", h.handleClassify)
	router.POST("/api/safety/classify", h.handleClassify)
	router.GET("/api/safety/metrics", h.handleMetrics)
}

func (h *SafetyHandler) handleClassify(c *gin.Context) {
	var req safety.ClassificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeClassifyError(c, safety.Fallback(reasonInvalidRequest), httperror.NewValidationError(err))
		return
	}
	if field, limit, ok := h.exceedsLimits(req); ok {
		h.logger.Warn("safety_input_too_large", "child_id", req.ChildID, "field", field, "limit", limit)
		result := safety.Fallback(safety.ReasonInputTooLarge)
		middleware.SetVerdict(c, result)
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), req)
	if err != nil {
		if !errors.Is(err, safety.ErrNotConfigured) {
			shared.LogError(c, h.logger, "safety_classify", err)
		}
		h.writeClassifyError(c, result, err)
		return
	}

	middleware.SetVerdict(c, result)
	c.JSON(http.StatusOK, result)
}

// exceedsLimits: 프롬프트에 넣을 수 없는 크기의 입력인지 검사합니다.
// 초과하면 모델을 호출하지 않고 strict_mode 폴백으로 응답합니다.
func (h *SafetyHandler) exceedsLimits(req safety.ClassificationRequest) (string, int, bool) {
	if h.cfg == nil {
		return "", 0, false
	}
	limits := h.cfg.Safety
	if limits.MaxMessageRunes > 0 && utf8.RuneCountInString(req.Message) > limits.MaxMessageRunes {
		return "message", limits.MaxMessageRunes, true
	}
	if limits.MaxTopics > 0 && len(req.ApprovedTopics) > limits.MaxTopics {
		return "approvedTopics", limits.MaxTopics, true
	}
	return "", 0, false
}

func (h *SafetyHandler) writeClassifyError(c *gin.Context, result safety.ClassificationResult, err error) {
	if result.FlagReasons == nil {
		result = safety.Fallback(reasonInvalidRequest)
	}
	middleware.SetVerdict(c, result)
	status, payload := shared.ErrorPayload(c, err)
	c.JSON(status, httperror.ClassifyResponse{ClassificationResult: result, ErrorResponse: payload})
}

func (h *SafetyHandler) handleMetrics(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, map[string]float64{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
