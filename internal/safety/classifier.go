package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/park285/child-safety-server-go/internal/gemini"
	"github.com/park285/child-safety-server-go/internal/llm"
	"github.com/park285/child-safety-server-go/internal/metrics"
	"github.com/park285/child-safety-server-go/internal/prompt"
)

const tracerName = "github.com/park285/child-safety-server-go/internal/safety"

// defaultObserverTimeout 는 판정 하나를 관찰자 전체에 전달하는 데 허용하는 시간이다.
const defaultObserverTimeout = 5 * time.Second

// Generator: 분류 모델 호출 인터페이스입니다. 테스트에서 mock 구현을 주입합니다.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, req gemini.Request) (llm.ChatResult, string, error)
}

var _ Generator = (*gemini.Client)(nil)

// Outcome: 판정 하나에 대한 감사/집계용 정보입니다. 메시지 본문과 모델 설명문은 포함하지 않습니다.
type Outcome struct {
	ChildID        string
	ChildAge       int
	TopicCount     int
	Result         ClassificationResult
	FallbackReason string
	Model          string
	Usage          llm.Usage
	Duration       time.Duration
	At             time.Time
}

// Fallback: 모델 판정이 아닌 기본값인지 반환합니다.
func (o Outcome) Fallback() bool {
	return o.FallbackReason != ""
}

// Observer: 판정 결과를 받아 부수 효과를 수행합니다. 실패해도 응답에 영향을 주지 않아야 합니다.
type Observer interface {
	ObserveVerdict(ctx context.Context, outcome Outcome)
}

// Classifier: 아동 메시지 안전 분류기입니다. 요청 간 공유하는 판정 상태가 없어 병렬 호출이 안전합니다.
type Classifier struct {
	generator Generator
	template  prompt.Template
	metrics   *metrics.Store
	logger    *slog.Logger
	observers []Observer
	tracer    trace.Tracer
	now       func() time.Time

	observerTimeout time.Duration
	pending         sync.WaitGroup
}

// NewClassifier: 분류기를 생성합니다.
func NewClassifier(generator Generator, metricsStore *metrics.Store, logger *slog.Logger, observers ...Observer) (*Classifier, error) {
	if generator == nil {
		return nil, errors.New("generator is nil")
	}
	if metricsStore == nil {
		return nil, errors.New("metrics store is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := loadClassifyPrompt()
	if err != nil {
		return nil, err
	}

	active := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			active = append(active, o)
		}
	}

	return &Classifier{
		generator: generator,
		template:  tmpl,
		metrics:   metricsStore,
		logger:    logger,
		observers: active,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,

		observerTimeout: defaultObserverTimeout,
	}, nil
}

// Classify: 메시지를 분류합니다.
// 자격 증명이 없으면 폴백 결과와 ErrNotConfigured 를 함께 반환하고 모델을 호출하지 않습니다.
// 그 외 모든 실패는 폴백 결과로 흡수되어 error 는 nil 입니다.
func (c *Classifier) Classify(ctx context.Context, req ClassificationRequest) (ClassificationResult, error) {
	ctx, span := c.tracer.Start(ctx, "safety.classify", trace.WithAttributes(
		attribute.String("child.id", req.ChildID),
		attribute.Int("child.age", req.ChildAge),
		attribute.Int("topics.count", len(req.ApprovedTopics)),
	))
	defer span.End()

	if !c.generator.Configured() {
		return c.notConfigured(span, req)
	}

	start := c.now()
	outcome := Outcome{
		ChildID:    req.ChildID,
		ChildAge:   req.ChildAge,
		TopicCount: len(req.ApprovedTopics),
		At:         start,
	}

	promptText, err := buildPrompt(c.template, req)
	if err != nil {
		c.logger.Error("safety_prompt_build_failed", "child_id", req.ChildID, "err", err)
		return c.fallback(ctx, span, outcome, ReasonUnavailable, err), nil
	}

	chat, model, err := c.generator.Generate(ctx, gemini.Request{
		Prompt:       promptText,
		SystemPrompt: c.template.System,
	})
	outcome.Model = model
	outcome.Usage = chat.Usage
	outcome.Duration = c.now().Sub(start)

	if err != nil {
		switch {
		case errors.Is(err, gemini.ErrMissingAPIKey):
			return c.notConfigured(span, req)
		case errors.Is(err, gemini.ErrEmptyResponse):
			c.logger.Warn("safety_model_empty_response", "child_id", req.ChildID, "model", model)
			return c.fallback(ctx, span, outcome, ReasonParseError, err), nil
		default:
			c.logger.Warn(
				"safety_model_call_failed",
				"child_id", req.ChildID,
				"model", model,
				"status", gemini.StatusCode(err),
				"err", err,
			)
			return c.fallback(ctx, span, outcome, ReasonUnavailable, err), nil
		}
	}

	verdict, err := ParseVerdict(chat.Text)
	if err != nil {
		c.logger.Warn("safety_verdict_parse_failed", "child_id", req.ChildID, "model", model, "err", err)
		return c.fallback(ctx, span, outcome, ReasonParseError, err), nil
	}

	outcome.Result = verdict.Result
	c.logger.Info(
		"safety_verdict",
		"child_id", req.ChildID,
		"flag_level", verdict.Result.FlagLevel,
		"action", verdict.Result.ActionTaken,
		"parent_notify", verdict.Result.ParentNotify,
		"explanation", verdict.Explanation,
	)
	span.SetAttributes(
		attribute.String("safety.flag_level", string(verdict.Result.FlagLevel)),
		attribute.String("safety.action", string(verdict.Result.ActionTaken)),
	)
	c.finish(ctx, outcome)
	return verdict.Result, nil
}

func (c *Classifier) notConfigured(span trace.Span, req ClassificationRequest) (ClassificationResult, error) {
	c.logger.Error("safety_classifier_not_configured", "child_id", req.ChildID)
	span.SetStatus(codes.Error, ErrNotConfigured.Error())
	return Fallback(ReasonNotConfigured), ErrNotConfigured
}

func (c *Classifier) fallback(ctx context.Context, span trace.Span, outcome Outcome, reason string, cause error) ClassificationResult {
	result := Fallback(reason)
	outcome.Result = result
	outcome.FallbackReason = reason

	span.RecordError(cause)
	span.SetAttributes(
		attribute.String("safety.flag_level", string(result.FlagLevel)),
		attribute.String("safety.fallback", reason),
	)
	c.logger.Info(
		"safety_verdict",
		"child_id", outcome.ChildID,
		"flag_level", result.FlagLevel,
		"action", result.ActionTaken,
		"fallback", reason,
	)
	c.finish(ctx, outcome)
	return result
}

// finish: 지표를 기록하고 관찰자 전달은 백그라운드로 넘깁니다.
// 관찰자는 요청 취소와 무관하게 observerTimeout 안에서 실행됩니다.
func (c *Classifier) finish(ctx context.Context, outcome Outcome) {
	c.metrics.RecordVerdict(string(outcome.Result.FlagLevel), outcome.Fallback())
	if len(c.observers) == 0 {
		return
	}

	detached := context.WithoutCancel(ctx)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		observeCtx, cancel := context.WithTimeout(detached, c.observerTimeout)
		defer cancel()
		for _, o := range c.observers {
			c.observe(observeCtx, o, outcome)
		}
	}()
}

// Wait: 진행 중인 관찰자 전달이 끝나거나 ctx 가 만료될 때까지 기다립니다.
func (c *Classifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for verdict observers: %w", ctx.Err())
	}
}

func (c *Classifier) observe(ctx context.Context, o Observer, outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("safety_observer_panic", "child_id", outcome.ChildID, "panic", fmt.Sprint(r))
		}
	}()
	o.ObserveVerdict(ctx, outcome)
}
