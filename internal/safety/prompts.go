package safety

import (
	"embed"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/park285/child-safety-server-go/internal/prompt"
)

//go:embed prompts/*.yml
var promptFS embed.FS

const classifyPromptName = "classify"

const noApprovedTopics = "(no topics approved yet; treat every topic as off topic)"

func loadClassifyPrompt() (prompt.Template, error) {
	templates, err := prompt.LoadDir(promptFS, "prompts")
	if err != nil {
		return prompt.Template{}, fmt.Errorf("load safety prompts: %w", err)
	}
	return prompt.Lookup(templates, classifyPromptName)
}

// normalizeTopics: 승인 주제를 NFC로 정규화하고 빈 값과 대소문자만 다른 중복을 제거합니다.
// 순서는 처음 등장한 위치를 따릅니다.
func normalizeTopics(topics []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(topics))
	result := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.TrimSpace(norm.NFC.String(topic))
		if topic == "" {
			continue
		}
		key := fold.String(topic)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, topic)
	}
	return result
}

// renderTopics: 승인 주제를 순서대로 번호 목록으로 만듭니다.
func renderTopics(topics []string) string {
	var b strings.Builder
	n := 0
	for _, topic := range normalizeTopics(topics) {
		n++
		if n > 1 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(n))
		b.WriteString(". ")
		b.WriteString(prompt.WrapXML("topic", topic))
	}
	if n == 0 {
		return noApprovedTopics
	}
	return b.String()
}

func buildPrompt(tmpl prompt.Template, req ClassificationRequest) (string, error) {
	return tmpl.Render(map[string]string{
		"child_age":       strconv.Itoa(req.ChildAge),
		"approved_topics": renderTopics(req.ApprovedTopics),
		"message":         req.Message,
	})
}
