package audit

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/park285/child-safety-server-go/internal/llm"
	"github.com/park285/child-safety-server-go/internal/safety"
)

func TestRecordFromOutcome(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	rec := RecordFromOutcome(safety.Outcome{
		ChildID:    "c1",
		ChildAge:   9,
		TopicCount: 2,
		Result:     safety.ClassificationResult{FlagLevel: safety.FlagRed, ActionTaken: safety.ActionBlocked, ParentNotify: true, FlagReasons: []string{"manipulation"}},
		Model:      "gemini-2.5-flash",
		Usage:      llm.Usage{InputTokens: 120, OutputTokens: 30},
		Duration:   250 * time.Millisecond,
		At:         at,
	})

	if rec.ID == "" || rec.ChildID != "c1" || rec.FlagLevel != "red" || rec.ActionTaken != "blocked" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.FlagReasons != `["manipulation"]` {
		t.Fatalf("unexpected reasons column: %s", rec.FlagReasons)
	}
	if rec.DurationMs != 250 || rec.InputTokens != 120 {
		t.Fatalf("unexpected metrics: %+v", rec)
	}
	if rec.CreatedAt.Location() != time.UTC || !rec.CreatedAt.Equal(at) {
		t.Fatalf("expected UTC timestamp, got %v", rec.CreatedAt)
	}
}

func TestRecordFromOutcomeDefaults(t *testing.T) {
	rec := RecordFromOutcome(safety.Outcome{ChildID: "c1", Result: safety.Fallback(safety.ReasonUnavailable), FallbackReason: safety.ReasonUnavailable})
	if rec.CreatedAt.IsZero() {
		t.Fatalf("expected timestamp default")
	}
	if rec.FallbackReason != safety.ReasonUnavailable {
		t.Fatalf("unexpected fallback reason: %q", rec.FallbackReason)
	}
}

func TestRecorderObserveVerdictDirect(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(nil, store, nil)
	recorder.ObserveVerdict(context.Background(), safety.Outcome{
		ChildID: "c1",
		Result:  safety.ClassificationResult{FlagLevel: safety.FlagGreen, ActionTaken: safety.ActionAllowed, FlagReasons: []string{}},
	})
	if store.savedCount() != 1 {
		t.Fatalf("expected direct save, got %d", store.savedCount())
	}
	recorder.Close()
}

func TestRecorderNilSafe(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), VerdictRecord{})
	recorder.Close()

	empty := NewRecorder(nil, nil, nil)
	empty.Record(context.Background(), VerdictRecord{})
}

func TestVerdictRecordHasNoFreeTextColumns(t *testing.T) {
	for _, typ := range []reflect.Type{reflect.TypeOf(VerdictRecord{}), reflect.TypeOf(VerdictView{})} {
		for i := range typ.NumField() {
			switch name := typ.Field(i).Name; name {
			case "Message", "Explanation", "ApprovedTopics":
				t.Fatalf("%s must not persist %s", typ.Name(), name)
			}
		}
	}
}
