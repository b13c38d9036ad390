package safety

import (
	"errors"
	"testing"
)

func TestParseVerdictDerivesAction(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		level  FlagLevel
		action Action
	}{
		{
			name:   "green",
			text:   `{"isAllowed":true,"flagLevel":"green","flagReasons":[],"parentNotify":false}`,
			level:  FlagGreen,
			action: ActionAllowed,
		},
		{
			name:   "yellow overrides model action",
			text:   `{"isAllowed":true,"flagLevel":"yellow","flagReasons":["off topic"],"parentNotify":false,"actionTaken":"allowed"}`,
			level:  FlagYellow,
			action: ActionStrictMode,
		},
		{
			name:   "red overrides model action",
			text:   `{"isAllowed":false,"flagLevel":"red","flagReasons":["manipulation"],"parentNotify":true,"actionTaken":"allowed"}`,
			level:  FlagRed,
			action: ActionBlocked,
		},
		{
			name:   "level is normalized",
			text:   `{"isAllowed":true,"flagLevel":" Green ","flagReasons":[]}`,
			level:  FlagGreen,
			action: ActionAllowed,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseVerdict(tc.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Result.FlagLevel != tc.level || v.Result.ActionTaken != tc.action {
				t.Fatalf("got %s/%s, want %s/%s", v.Result.FlagLevel, v.Result.ActionTaken, tc.level, tc.action)
			}
		})
	}
}

func TestParseVerdictMissingReasons(t *testing.T) {
	for _, text := range []string{
		`{"isAllowed":true,"flagLevel":"green"}`,
		`{"isAllowed":true,"flagLevel":"green","flagReasons":null}`,
	} {
		v, err := ParseVerdict(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Result.FlagReasons == nil || len(v.Result.FlagReasons) != 0 {
			t.Fatalf("expected empty non-nil reasons, got %#v", v.Result.FlagReasons)
		}
	}
}

func TestParseVerdictDefaults(t *testing.T) {
	v, err := ParseVerdict(`{"flagLevel":"red","flagReasons":["personal info"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Result.IsAllowed {
		t.Fatalf("expected red without isAllowed to be disallowed")
	}
	if !v.Result.ParentNotify {
		t.Fatalf("expected red without parentNotify to notify")
	}

	v, err = ParseVerdict(`{"flagLevel":"yellow"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Result.IsAllowed || v.Result.ParentNotify {
		t.Fatalf("unexpected yellow defaults: %+v", v.Result)
	}
}

func TestParseVerdictKeepsModelBooleans(t *testing.T) {
	v, err := ParseVerdict(`{"isAllowed":"false","flagLevel":"yellow","flagReasons":"borderline","parentNotify":"true","explanation":"x"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Result.IsAllowed || !v.Result.ParentNotify {
		t.Fatalf("expected model booleans to be kept: %+v", v.Result)
	}
	if len(v.Result.FlagReasons) != 1 || v.Result.FlagReasons[0] != "borderline" {
		t.Fatalf("expected single reason to become a list: %#v", v.Result.FlagReasons)
	}
	if v.Explanation != "x" {
		t.Fatalf("unexpected explanation: %q", v.Explanation)
	}
}

func TestParseVerdictFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "fence only", text: "```json\n```"},
		{name: "prose", text: "The message looks fine to me."},
		{name: "malformed fenced", text: "```json\n{\"flagLevel\": \"green\",\n```"},
		{name: "array", text: `["green"]`},
		{name: "null", text: "null"},
		{name: "missing level", text: `{"isAllowed":true}`},
		{name: "unknown level", text: `{"flagLevel":"orange","flagReasons":[]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseVerdict(tc.text); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestParseVerdictUnknownLevelError(t *testing.T) {
	_, err := ParseVerdict(`{"flagLevel":"purple"}`)
	if !errors.Is(err, errUnknownFlagLevel) {
		t.Fatalf("expected errUnknownFlagLevel, got %v", err)
	}
}

func TestActionFor(t *testing.T) {
	if ActionFor(FlagRed) != ActionBlocked || ActionFor(FlagYellow) != ActionStrictMode || ActionFor(FlagGreen) != ActionAllowed {
		t.Fatalf("unexpected action mapping")
	}
}
