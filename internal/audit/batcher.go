package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/park285/child-safety-server-go/internal/config"
)

const defaultFlushTimeout = 5 * time.Second

// requeueLimitFactor 는 재시도 대기열 상한을 maxPending 의 배수로 정한다.
const requeueLimitFactor = 20

// batcher 는 판정 기록을 모아 주기적으로 DB에 플러시한다.
// 실패하면 지수 백오프 후 재시도하고, 대기열이 상한을 넘으면 오래된 기록부터 버린다.
type batcher struct {
	store               Store
	logger              *slog.Logger
	flushInterval       time.Duration
	flushTimeout        time.Duration
	maxPending          int
	maxBackoff          time.Duration
	errorLogMaxInterval time.Duration

	mu      sync.Mutex
	pending []VerdictRecord

	wakeup chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	// 아래 필드는 loop 고루틴에서만 접근한다.
	consecutiveFailures int
	nextFlushAllowedAt  time.Time
	lastErrorLoggedAt   time.Time
	flushedTotal        int
	droppedTotal        int
}

func newBatcher(cfg config.DatabaseConfig, store Store, logger *slog.Logger) *batcher {
	interval := time.Duration(cfg.AuditBatchFlushIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	maxBackoff := time.Duration(cfg.AuditBatchMaxBackoffSeconds) * time.Second
	if maxBackoff <= 0 {
		maxBackoff = interval
	}
	flushTimeout := defaultFlushTimeout
	if cfg.AuditBatchFlushTimeoutSeconds > 0 {
		flushTimeout = time.Duration(cfg.AuditBatchFlushTimeoutSeconds) * time.Second
	}
	return &batcher{
		store:               store,
		logger:              logger,
		flushInterval:       interval,
		flushTimeout:        flushTimeout,
		maxPending:          max(1, cfg.AuditBatchMaxPendingEntries),
		maxBackoff:          maxBackoff,
		errorLogMaxInterval: time.Duration(cfg.AuditBatchErrorLogMaxIntervalSeconds) * time.Second,
		wakeup:              make(chan struct{}, 1),
		stopCh:              make(chan struct{}),
		doneCh:              make(chan struct{}),
	}
}

func (b *batcher) start() {
	go b.loop()
}

func (b *batcher) stop() {
	close(b.stopCh)
	<-b.doneCh
}

func (b *batcher) add(rec VerdictRecord) {
	b.mu.Lock()
	b.pending = append(b.pending, rec)
	shouldFlush := len(b.pending) >= b.maxPending
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.wakeup <- struct{}{}:
		default:
		}
	}
}

func (b *batcher) loop() {
	ticker := time.NewTicker(b.flushInterval)
	defer func() {
		ticker.Stop()
		close(b.doneCh)
	}()

	for {
		select {
		case <-ticker.C:
			b.flush(false)
		case <-b.wakeup:
			b.flush(false)
		case <-b.stopCh:
			b.flush(true)
			return
		}
	}
}

func (b *batcher) flush(isShutdown bool) {
	if !isShutdown && !b.nextFlushAllowedAt.IsZero() && time.Now().Before(b.nextFlushAllowedAt) {
		return
	}

	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.flushTimeout)
	err := b.store.SaveBatch(ctx, batch)
	cancel()

	if err == nil {
		b.flushedTotal += len(batch)
		b.consecutiveFailures = 0
		b.nextFlushAllowedAt = time.Time{}
		return
	}

	if isShutdown {
		b.droppedTotal += len(batch)
		if b.logger != nil {
			b.logger.Warn("audit_db_shutdown_flush_failed", "dropped", len(batch), "err", err)
		}
		return
	}
	b.requeue(batch)
	b.registerFailure(err)
}

// requeue 는 실패한 배치를 대기열 앞에 되돌린다.
func (b *batcher) requeue(batch []VerdictRecord) {
	limit := b.maxPending * requeueLimitFactor

	b.mu.Lock()
	merged := make([]VerdictRecord, 0, len(batch)+len(b.pending))
	merged = append(merged, batch...)
	merged = append(merged, b.pending...)
	if over := len(merged) - limit; over > 0 {
		merged = merged[over:]
		b.droppedTotal += over
	}
	b.pending = merged
	b.mu.Unlock()
}

func (b *batcher) registerFailure(err error) {
	b.consecutiveFailures++
	backoff := b.computeBackoff()
	b.nextFlushAllowedAt = time.Now().Add(backoff)

	if !b.shouldLogFailure() {
		return
	}
	b.lastErrorLoggedAt = time.Now()
	if b.logger != nil {
		b.mu.Lock()
		pending := len(b.pending)
		b.mu.Unlock()
		b.logger.Warn(
			"audit_db_batch_flush_failed",
			"failures", b.consecutiveFailures,
			"backoff", backoff,
			"pending", pending,
			"dropped_total", b.droppedTotal,
			"err", err,
		)
	}
}

func (b *batcher) computeBackoff() time.Duration {
	shift := min(max(0, b.consecutiveFailures-1), 30)
	backoff := b.flushInterval * time.Duration(1<<shift)
	if backoff > b.maxBackoff || backoff <= 0 {
		backoff = b.maxBackoff
	}
	return backoff
}

// shouldLogFailure 는 연속 실패 횟수가 2의 거듭제곱이거나 마지막 로그 후 충분히 지났을 때 참이다.
func (b *batcher) shouldLogFailure() bool {
	n := b.consecutiveFailures
	if n <= 0 {
		return false
	}
	if n&(n-1) == 0 {
		return true
	}
	return b.errorLogMaxInterval > 0 && time.Since(b.lastErrorLoggedAt) >= b.errorLogMaxInterval
}
