package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/park285/child-safety-server-go/internal/llm"
)

// ModelCallLatencyBuckets: 분류 모델 호출 지연 버킷(초)입니다.
var ModelCallLatencyBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 16.0, 30.0}

// Store: 분류 모델 호출 및 판정 통계를 저장합니다.
// 누적값은 원자적 카운터로 유지하고, 등록기가 주어지면 Prometheus 지표에도 반영합니다.
type Store struct {
	totalCalls           int64
	totalErrors          int64
	totalInputTokens     int64
	totalOutputTokens    int64
	totalReasoningTokens int64
	totalDurationMs      int64
	verdictsGreen        int64
	verdictsYellow       int64
	verdictsRed          int64
	fallbacks            int64

	calls    *prometheus.CounterVec
	latency  prometheus.Histogram
	tokens   *prometheus.CounterVec
	verdicts *prometheus.CounterVec
}

// NewStore: 통계 저장소를 생성합니다. reg가 nil이면 Prometheus 지표를 등록하지 않습니다.
func NewStore(reg prometheus.Registerer) *Store {
	s := &Store{}
	if reg == nil {
		return s
	}

	s.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "child_safety_model_calls_total",
		Help: "Classification model calls by outcome",
	}, []string{"outcome"})
	s.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "child_safety_model_call_duration_seconds",
		Help:    "Classification model call latency in seconds",
		Buckets: ModelCallLatencyBuckets,
	})
	s.tokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "child_safety_model_tokens_total",
		Help: "Tokens consumed by the classification model",
	}, []string{"kind"})
	s.verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "child_safety_verdicts_total",
		Help: "Safety verdicts by flag level and source",
	}, []string{"flag_level", "source"})

	reg.MustRegister(s.calls, s.latency, s.tokens, s.verdicts)
	return s
}

// RecordSuccess: 성공 호출 통계를 기록합니다.
func (s *Store) RecordSuccess(duration time.Duration, usage llm.Usage) {
	atomic.AddInt64(&s.totalCalls, 1)
	atomic.AddInt64(&s.totalInputTokens, int64(usage.InputTokens))
	atomic.AddInt64(&s.totalOutputTokens, int64(usage.OutputTokens))
	atomic.AddInt64(&s.totalReasoningTokens, int64(usage.ReasoningTokens))
	atomic.AddInt64(&s.totalDurationMs, duration.Milliseconds())

	if s.calls != nil {
		s.calls.WithLabelValues("success").Inc()
		s.latency.Observe(duration.Seconds())
		s.tokens.WithLabelValues("input").Add(float64(usage.InputTokens))
		s.tokens.WithLabelValues("output").Add(float64(usage.OutputTokens))
		s.tokens.WithLabelValues("reasoning").Add(float64(usage.ReasoningTokens))
	}
}

// RecordError: 실패 호출 통계를 기록합니다.
func (s *Store) RecordError(duration time.Duration) {
	atomic.AddInt64(&s.totalCalls, 1)
	atomic.AddInt64(&s.totalErrors, 1)
	atomic.AddInt64(&s.totalDurationMs, duration.Milliseconds())

	if s.calls != nil {
		s.calls.WithLabelValues("error").Inc()
		s.latency.Observe(duration.Seconds())
	}
}

// RecordVerdict: 판정 결과를 기록합니다. fallback이 true면 모델 판정이 아닌 기본값입니다.
func (s *Store) RecordVerdict(flagLevel string, fallback bool) {
	switch flagLevel {
	case "green":
		atomic.AddInt64(&s.verdictsGreen, 1)
	case "yellow":
		atomic.AddInt64(&s.verdictsYellow, 1)
	case "red":
		atomic.AddInt64(&s.verdictsRed, 1)
	}
	source := "model"
	if fallback {
		source = "fallback"
		atomic.AddInt64(&s.fallbacks, 1)
	}
	if s.verdicts != nil {
		s.verdicts.WithLabelValues(flagLevel, source).Inc()
	}
}

// UsageTotals: 누적 사용량을 반환합니다.
func (s *Store) UsageTotals() llm.Usage {
	input := atomic.LoadInt64(&s.totalInputTokens)
	output := atomic.LoadInt64(&s.totalOutputTokens)
	reasoning := atomic.LoadInt64(&s.totalReasoningTokens)
	return llm.Usage{
		InputTokens:     int(input),
		OutputTokens:    int(output),
		TotalTokens:     int(input + output),
		ReasoningTokens: int(reasoning),
	}
}

// Snapshot: 통계 스냅샷을 반환합니다.
func (s *Store) Snapshot() map[string]float64 {
	totalCalls := atomic.LoadInt64(&s.totalCalls)
	durationMs := atomic.LoadInt64(&s.totalDurationMs)
	usage := s.UsageTotals()

	avgDuration := 0.0
	if totalCalls > 0 {
		avgDuration = float64(durationMs) / float64(totalCalls)
	}

	return map[string]float64{
		"total_calls":            float64(totalCalls),
		"total_errors":           float64(atomic.LoadInt64(&s.totalErrors)),
		"total_input_tokens":     float64(usage.InputTokens),
		"total_output_tokens":    float64(usage.OutputTokens),
		"total_reasoning_tokens": float64(usage.ReasoningTokens),
		"total_tokens":           float64(usage.TotalTokens),
		"total_duration_ms":      float64(durationMs),
		"avg_duration_ms":        avgDuration,
		"verdicts_green":         float64(atomic.LoadInt64(&s.verdictsGreen)),
		"verdicts_yellow":        float64(atomic.LoadInt64(&s.verdictsYellow)),
		"verdicts_red":           float64(atomic.LoadInt64(&s.verdictsRed)),
		"verdicts_fallback":      float64(atomic.LoadInt64(&s.fallbacks)),
	}
}
