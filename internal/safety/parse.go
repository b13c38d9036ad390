package safety

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
)

var errUnknownFlagLevel = errors.New("unknown flag level")

// modelVerdict: 모델이 반환하는 JSON 객체입니다. 누락 필드 판별을 위해 bool 은 포인터로 둡니다.
type modelVerdict struct {
	IsAllowed    *bool    `mapstructure:"isAllowed"`
	FlagLevel    string   `mapstructure:"flagLevel"`
	FlagReasons  []string `mapstructure:"flagReasons"`
	ParentNotify *bool    `mapstructure:"parentNotify"`
	ActionTaken  string   `mapstructure:"actionTaken"`
	Explanation  string   `mapstructure:"explanation"`
}

// Verdict: 파싱된 모델 판정과 감사용 설명입니다.
type Verdict struct {
	Result      ClassificationResult
	Explanation string
}

// ParseVerdict: 모델 텍스트에서 판정을 추출합니다.
// 조치는 모델 값과 무관하게 플래그 단계에서 도출합니다.
func ParseVerdict(text string) (Verdict, error) {
	payload := StripCodeFence(text)
	if payload == "" {
		return Verdict{}, errors.New("empty verdict payload")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict json: %w", err)
	}
	if raw == nil {
		return Verdict{}, errors.New("verdict payload is null")
	}

	var mv modelVerdict
	if err := decodeVerdict(raw, &mv); err != nil {
		return Verdict{}, err
	}

	level, ok := ParseFlagLevel(mv.FlagLevel)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %q", errUnknownFlagLevel, mv.FlagLevel)
	}

	reasons := mv.FlagReasons
	if reasons == nil {
		reasons = []string{}
	}
	isAllowed := level != FlagRed
	if mv.IsAllowed != nil {
		isAllowed = *mv.IsAllowed
	}
	parentNotify := level == FlagRed
	if mv.ParentNotify != nil {
		parentNotify = *mv.ParentNotify
	}

	return Verdict{
		Result: ClassificationResult{
			IsAllowed:    isAllowed,
			FlagLevel:    level,
			FlagReasons:  reasons,
			ParentNotify: parentNotify,
			ActionTaken:  ActionFor(level),
		},
		Explanation: mv.Explanation,
	}, nil
}

func decodeVerdict(input map[string]any, out *modelVerdict) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("create verdict decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode verdict fields: %w", err)
	}
	return nil
}
