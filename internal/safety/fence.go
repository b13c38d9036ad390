package safety

import (
	"strings"
	"unicode"
)

const codeFence = "```"

// StripCodeFence: 모델 출력 앞뒤의 ``` 펜스와 언어 표식(json, jsonc, jsonl 등)을 제거합니다.
// 펜스가 없는 입력은 공백만 정리되어 그대로 반환됩니다.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, codeFence); ok {
		rest = strings.TrimLeft(rest, " \t")
		s = rest[fenceInfoLen(rest):]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, codeFence)
	return strings.TrimSpace(s)
}

// fenceInfoLen: 여는 펜스 바로 뒤의 언어 표식 길이를 반환합니다.
func fenceInfoLen(s string) int {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("-_+./", r)
	})
	if end < 0 {
		return len(s)
	}
	return end
}
