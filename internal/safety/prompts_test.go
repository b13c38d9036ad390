package safety

import (
	"strings"
	"testing"
)

func TestLoadClassifyPrompt(t *testing.T) {
	tmpl, err := loadClassifyPrompt()
	if err != nil {
		t.Fatalf("load prompt: %v", err)
	}
	if strings.TrimSpace(tmpl.System) == "" {
		t.Fatalf("expected system prompt")
	}
	for _, dimension := range []string{"Topic relevance", "Intent", "Manipulation", "Age-appropriateness", "Safety red flags"} {
		if !strings.Contains(tmpl.User, dimension) {
			t.Fatalf("prompt missing dimension %q", dimension)
		}
	}
}

func TestRenderTopics(t *testing.T) {
	if got := renderTopics(nil); got != noApprovedTopics {
		t.Fatalf("unexpected empty rendering: %q", got)
	}
	got := renderTopics([]string{"science", " ", "art & craft"})
	want := "1. <topic>science</topic>\n2. <topic>art &amp; craft</topic>"
	if got != want {
		t.Fatalf("unexpected topics:\n%s", got)
	}
}

func TestNormalizeTopics(t *testing.T) {
	got := normalizeTopics([]string{"Science", "science", "  ", "cafe\u0301", "caf\u00e9", "Art"})
	want := []string{"Science", "caf\u00e9", "Art"}
	if len(got) != len(want) {
		t.Fatalf("unexpected topics: %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topic %d: got %q want %q", i, got[i], want[i])
		}
	}
}
