package flagstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/park285/child-safety-server-go/internal/safety"
)

// Observer 는 모델 판정을 플래그 카운터에 반영한다. 폴백 결과는 집계하지 않는다.
type Observer struct {
	store  *Store
	logger *slog.Logger
}

// NewObserver 는 판정 관찰자를 생성한다.
func NewObserver(store *Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

var _ safety.Observer = (*Observer)(nil)

// ObserveVerdict 는 판정 단계 카운터를 증가시킨다.
func (o *Observer) ObserveVerdict(ctx context.Context, outcome safety.Outcome) {
	if o == nil || !o.store.IsEnabled() || outcome.Fallback() {
		return
	}
	level := string(outcome.Result.FlagLevel)
	count, err := o.store.Record(ctx, outcome.ChildID, level)
	if err != nil {
		if !errors.Is(err, ErrStoreDisabled) {
			o.logger.Warn("flag_store_record_failed", "child_id", outcome.ChildID, "flag_level", level, "err", err)
		}
		return
	}
	if outcome.Result.FlagLevel == safety.FlagRed {
		o.logger.Info("flag_store_red_count", "child_id", outcome.ChildID, "count", count)
	}
}
