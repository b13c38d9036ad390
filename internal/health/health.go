package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/park285/child-safety-server-go/internal/config"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"

	defaultCheckTimeout = 2 * time.Second
)

// Pinger 는 외부 의존성 연결 확인 인터페이스다.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Component 는 상태 구성 요소다.
type Component struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Response 는 상태 응답 본문이다.
type Response struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Ready 는 전체 상태가 정상인지 반환한다.
func (r Response) Ready() bool {
	return r.Status == statusOK
}

// Checker 는 구성 요소 상태를 수집한다.
type Checker struct {
	cfg          *config.Config
	flagStore    Pinger
	flagBackend  string
	auditStore   Pinger
	startedAt    time.Time
	checkTimeout time.Duration
}

// NewChecker 는 Checker 를 생성한다. 비활성 의존성은 nil 로 전달한다.
func NewChecker(cfg *config.Config, flagStore Pinger, flagBackend string, auditStore Pinger) *Checker {
	return &Checker{
		cfg:          cfg,
		flagStore:    flagStore,
		flagBackend:  flagBackend,
		auditStore:   auditStore,
		startedAt:    time.Now(),
		checkTimeout: defaultCheckTimeout,
	}
}

// Collect 는 헬스 상태를 수집한다.
// deepChecks 가 false 이면 외부 연결을 확인하지 않는다(liveness).
func (c *Checker) Collect(ctx context.Context, deepChecks bool) Response {
	if ctx == nil {
		ctx = context.Background()
	}

	var flagStatus, auditStatus Component
	if deepChecks {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.checkTimeout)
		defer cancel()

		var g errgroup.Group
		g.Go(func() error {
			flagStatus = c.flagStoreStatus(checkCtx, true)
			return nil
		})
		g.Go(func() error {
			auditStatus = c.auditStatus(checkCtx, true)
			return nil
		})
		_ = g.Wait()
	} else {
		flagStatus = c.flagStoreStatus(ctx, false)
		auditStatus = c.auditStatus(ctx, false)
	}

	components := map[string]Component{
		"app":        c.appStatus(),
		"classifier": c.classifierStatus(),
		"flag_store": flagStatus,
		"audit_db":   auditStatus,
	}

	overall := statusOK
	for _, component := range components {
		if component.Status != statusOK {
			overall = statusDegraded
			break
		}
	}

	return Response{Status: overall, Components: components}
}

func (c *Checker) appStatus() Component {
	return Component{
		Status: statusOK,
		Detail: map[string]any{
			"uptime_seconds": int(time.Since(c.startedAt).Seconds()),
		},
	}
}

// classifierStatus: 자격 증명이 없으면 분류 요청이 500 으로 실패하므로 degraded 로 봅니다.
func (c *Checker) classifierStatus() Component {
	detail := map[string]any{"api_key_present": false}
	if c.cfg != nil {
		detail["api_key_present"] = c.cfg.Gemini.Configured()
		detail["model"] = c.cfg.Gemini.Model
		detail["timeout_seconds"] = c.cfg.Gemini.TimeoutSeconds
	}

	status := statusOK
	if detail["api_key_present"] != true {
		status = statusDegraded
	}
	return Component{Status: status, Detail: detail}
}

func (c *Checker) flagStoreStatus(ctx context.Context, deep bool) Component {
	detail := map[string]any{
		"enabled":      c.flagStore != nil,
		"backend":      c.flagBackend,
		"deep_checked": deep,
	}
	if c.cfg != nil {
		detail["window_minutes"] = c.cfg.FlagStore.WindowMinutes
	}
	return pingComponent(ctx, c.flagStore, deep, detail)
}

func (c *Checker) auditStatus(ctx context.Context, deep bool) Component {
	detail := map[string]any{
		"enabled":      c.auditStore != nil,
		"deep_checked": deep,
	}
	if c.cfg != nil && c.auditStore != nil {
		detail["db_host"] = c.cfg.Database.Host
		detail["db_name"] = c.cfg.Database.Name
	}
	return pingComponent(ctx, c.auditStore, deep, detail)
}

// pingComponent: 비활성(nil) 의존성은 정상으로 보고합니다.
func pingComponent(ctx context.Context, target Pinger, deep bool, detail map[string]any) Component {
	if target == nil || !deep {
		return Component{Status: statusOK, Detail: detail}
	}

	startedAt := time.Now()
	err := target.Ping(ctx)
	detail["latency_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		detail["connected"] = false
		detail["error"] = err.Error()
		return Component{Status: statusDegraded, Detail: detail}
	}
	detail["connected"] = true
	return Component{Status: statusOK, Detail: detail}
}
