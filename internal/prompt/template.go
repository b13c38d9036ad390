package prompt

import (
	"fmt"
	"strings"
)

// scanTemplate: {key} 자리표시자를 찾아 literal/placeholder 콜백으로 전달합니다.
// {{ 와 }} 는 리터럴 중괄호로 취급합니다.
func scanTemplate(tmpl string, literal func(string), placeholder func(string) error) error {
	start := 0
	flush := func(end int) {
		if end > start {
			literal(tmpl[start:end])
		}
	}

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		if c != '{' && c != '}' {
			i++
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == c {
			flush(i)
			literal(string(c))
			i += 2
			start = i
			continue
		}
		if c == '}' {
			return fmt.Errorf("invalid template: unexpected '}' at %d", i)
		}

		end := strings.IndexByte(tmpl[i+1:], '}')
		if end < 0 {
			return fmt.Errorf("invalid template: missing '}'")
		}
		flush(i)
		if err := placeholder(tmpl[i+1 : i+1+end]); err != nil {
			return err
		}
		i += end + 2
		start = i
	}
	flush(len(tmpl))
	return nil
}

// FormatTemplate: 템플릿 문자열을 값으로 치환합니다.
func FormatTemplate(tmpl string, values map[string]string) (string, error) {
	var builder strings.Builder
	builder.Grow(len(tmpl))

	err := scanTemplate(tmpl, func(s string) {
		builder.WriteString(s)
	}, func(key string) error {
		value, ok := values[key]
		if !ok {
			return fmt.Errorf("missing template value for %q", key)
		}
		builder.WriteString(value)
		return nil
	})
	if err != nil {
		return "", err
	}
	return builder.String(), nil
}

// Placeholders: 템플릿이 참조하는 키 목록을 등장 순서대로 반환합니다.
func Placeholders(tmpl string) ([]string, error) {
	var keys []string
	err := scanTemplate(tmpl, func(string) {}, func(key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// ValidateStatic: 시스템 프롬프트에 자리표시자가 없는지 검사합니다.
func ValidateStatic(name string, text string) error {
	keys, err := Placeholders(text)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if len(keys) > 0 {
		return fmt.Errorf("%s: system prompt must not contain template variables %q", name, keys[0])
	}
	return nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// EscapeXML: XML 텍스트로 안전하게 이스케이프합니다.
func EscapeXML(value string) string {
	return xmlEscaper.Replace(value)
}

// WrapXML: 값을 XML 태그로 감쌉니다.
func WrapXML(tag string, value string) string {
	return "<" + tag + ">" + EscapeXML(value) + "</" + tag + ">"
}
