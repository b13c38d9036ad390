package config

import (
	"os"
	"slices"
	"strconv"
	"strings"
)

var (
	trueValues  = []string{"true", "1", "yes", "y", "on"}
	falseValues = []string{"false", "0", "no", "n", "off"}
)

// envReader: 환경 변수를 타입별로 읽습니다.
// 해석할 수 없는 값은 기본값으로 대체하고 변수 이름을 invalid 에 남깁니다.
type envReader struct {
	lookup  func(string) (string, bool)
	invalid []string
}

func newEnvReader(lookup func(string) (string, bool)) *envReader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &envReader{lookup: lookup}
}

func (r *envReader) raw(key string) string {
	value, _ := r.lookup(key)
	return strings.TrimSpace(value)
}

func (r *envReader) reject(key string) {
	if !slices.Contains(r.invalid, key) {
		r.invalid = append(r.invalid, key)
	}
}

// apiKeys: GOOGLE_API_KEYS 목록이 있으면 우선하고 없으면 GOOGLE_API_KEY 단일 값을 씁니다.
func (r *envReader) apiKeys() []string {
	if keys := r.raw("GOOGLE_API_KEYS"); keys != "" {
		return splitList(keys)
	}
	if key := r.raw("GOOGLE_API_KEY"); key != "" {
		return []string{key}
	}
	return nil
}

func (r *envReader) getString(key string, def string) string {
	if value := r.raw(key); value != "" {
		return value
	}
	return def
}

func (r *envReader) getList(key string, def []string) []string {
	value := r.raw(key)
	if value == "" {
		return def
	}
	if items := splitList(value); len(items) > 0 {
		return items
	}
	r.reject(key)
	return def
}

func (r *envReader) getInt(key string, def int) int {
	value := r.raw(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.reject(key)
		return def
	}
	return parsed
}

// nonNegativeInt: 음수는 0 으로 맞춥니다.
func (r *envReader) getNonNegativeInt(key string, def int) int {
	return max(0, r.getInt(key, def))
}

func (r *envReader) getFloat(key string, def float64) float64 {
	value := r.raw(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.reject(key)
		return def
	}
	return parsed
}

func (r *envReader) getBool(key string, def bool) bool {
	value := strings.ToLower(r.raw(key))
	switch {
	case value == "":
		return def
	case slices.Contains(trueValues, value):
		return true
	case slices.Contains(falseValues, value):
		return false
	default:
		r.reject(key)
		return def
	}
}

func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

func maskSecret(value string) string {
	if value == "" {
		return "<missing>"
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return value[:2] + "***" + value[len(value)-2:]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
