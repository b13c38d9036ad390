package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/safety"
)

// Recorder 는 판정 결과를 감사 로그로 저장하거나 배치로 적재한다.
type Recorder struct {
	store   Store
	batcher *batcher
	logger  *slog.Logger
}

var _ safety.Observer = (*Recorder)(nil)

// NewRecorder 는 설정에 따라 배치 사용 여부를 결정해 Recorder를 생성한다.
func NewRecorder(cfg *config.Config, store Store, logger *slog.Logger) *Recorder {
	recorder := &Recorder{store: store, logger: logger}

	if cfg != nil && cfg.Database.AuditBatchEnabled && store != nil {
		recorder.batcher = newBatcher(cfg.Database, store, logger)
		recorder.batcher.start()
		if logger != nil {
			logger.Info(
				"audit_db_batch_enabled",
				"flush_interval_seconds", cfg.Database.AuditBatchFlushIntervalSeconds,
				"flush_timeout_seconds", cfg.Database.AuditBatchFlushTimeoutSeconds,
				"max_pending_entries", cfg.Database.AuditBatchMaxPendingEntries,
				"max_backoff_seconds", cfg.Database.AuditBatchMaxBackoffSeconds,
			)
		}
	}
	return recorder
}

// ObserveVerdict 는 판정 결과를 감사 기록으로 변환해 저장한다.
func (r *Recorder) ObserveVerdict(ctx context.Context, outcome safety.Outcome) {
	r.Record(ctx, RecordFromOutcome(outcome))
}

// Record 는 판정 기록 한 건을 저장한다. 실패는 로그로만 남긴다.
func (r *Recorder) Record(ctx context.Context, rec VerdictRecord) {
	if r == nil || r.store == nil {
		return
	}
	if r.batcher != nil {
		r.batcher.add(rec)
		return
	}
	if err := r.store.SaveBatch(ctx, []VerdictRecord{rec}); err != nil && r.logger != nil {
		r.logger.Warn("audit_db_save_failed", "child_id", rec.ChildID, "err", err)
	}
}

// Close 는 배치 플러셔를 중지하고 남은 기록을 플러시한다.
func (r *Recorder) Close() {
	if r == nil || r.batcher == nil {
		return
	}
	r.batcher.stop()
}

// RecordFromOutcome 은 분류 결과를 DB 모델로 변환한다.
func RecordFromOutcome(o safety.Outcome) VerdictRecord {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	return VerdictRecord{
		ID:             uuid.NewString(),
		ChildID:        o.ChildID,
		FlagLevel:      string(o.Result.FlagLevel),
		ActionTaken:    string(o.Result.ActionTaken),
		IsAllowed:      o.Result.IsAllowed,
		ParentNotify:   o.Result.ParentNotify,
		FlagReasons:    encodeReasons(o.Result.FlagReasons),
		FallbackReason: o.FallbackReason,
		Model:          o.Model,
		ChildAge:       o.ChildAge,
		TopicCount:     o.TopicCount,
		InputTokens:    int64(o.Usage.InputTokens),
		OutputTokens:   int64(o.Usage.OutputTokens),
		DurationMs:     o.Duration.Milliseconds(),
		CreatedAt:      at.UTC(),
	}
}
