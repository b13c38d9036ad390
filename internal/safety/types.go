package safety

import (
	"errors"
	"strings"
)

// FlagLevel: 메시지 하나에 부여되는 세 단계 심각도입니다.
type FlagLevel string

// Action: 플래그 단계에서 결정되는 후속 조치입니다.
type Action string

const (
	FlagGreen  FlagLevel = "green"
	FlagYellow FlagLevel = "yellow"
	FlagRed    FlagLevel = "red"
)

const (
	ActionAllowed    Action = "allowed"
	ActionBlocked    Action = "blocked"
	ActionStrictMode Action = "strict_mode"
)

// 폴백 사유 문자열입니다. 클라이언트가 그대로 노출하므로 변경하지 않습니다.
const (
	ReasonNotConfigured = "service not configured"
	ReasonUnavailable   = "classification service unavailable"
	ReasonParseError    = "parse error"
	ReasonInputTooLarge = "input too large"
	ReasonRateLimited   = "rate limited"
)

// ErrNotConfigured: 분류 모델 자격 증명이 없을 때 반환됩니다. 운영 오류로 취급합니다.
var ErrNotConfigured = errors.New("safety classifier not configured")

// ParseFlagLevel: 대소문자와 공백을 무시하고 알려진 단계만 허용합니다.
func ParseFlagLevel(value string) (FlagLevel, bool) {
	switch FlagLevel(strings.ToLower(strings.TrimSpace(value))) {
	case FlagGreen:
		return FlagGreen, true
	case FlagYellow:
		return FlagYellow, true
	case FlagRed:
		return FlagRed, true
	default:
		return "", false
	}
}

// ActionFor: 플래그 단계에 대응하는 조치를 반환합니다.
func ActionFor(level FlagLevel) Action {
	switch level {
	case FlagRed:
		return ActionBlocked
	case FlagGreen:
		return ActionAllowed
	default:
		return ActionStrictMode
	}
}

// ClassificationRequest: 분류 대상 메시지와 아동 컨텍스트입니다.
type ClassificationRequest struct {
	ChildID        string   `json:"childId"`
	Message        string   `json:"message"`
	ApprovedTopics []string `json:"approvedTopics"`
	ChildAge       int      `json:"childAge"`
}

// ClassificationResult: 분류 결과입니다. FlagReasons 는 항상 nil 이 아닙니다.
type ClassificationResult struct {
	IsAllowed    bool      `json:"isAllowed"`
	FlagLevel    FlagLevel `json:"flagLevel"`
	FlagReasons  []string  `json:"flagReasons"`
	ParentNotify bool      `json:"parentNotify"`
	ActionTaken  Action    `json:"actionTaken"`
}

// Fallback: 판정을 얻지 못했을 때의 결과입니다. 통과시키되 strict_mode 로 표시합니다.
func Fallback(reason string) ClassificationResult {
	return ClassificationResult{
		IsAllowed:    true,
		FlagLevel:    FlagYellow,
		FlagReasons:  []string{reason},
		ParentNotify: false,
		ActionTaken:  ActionStrictMode,
	}
}
