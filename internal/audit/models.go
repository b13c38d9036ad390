package audit

import (
	"time"

	"github.com/goccy/go-json"
)

// VerdictRecord 는 판정 한 건의 감사 로그 DB 모델이다. 메시지 본문은 저장하지 않는다.
type VerdictRecord struct {
	ID             string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	ChildID        string    `gorm:"column:child_id;type:varchar(128);not null;index:idx_message_verdicts_child_created,priority:1"`
	FlagLevel      string    `gorm:"column:flag_level;type:varchar(16);not null"`
	ActionTaken    string    `gorm:"column:action_taken;type:varchar(16);not null"`
	IsAllowed      bool      `gorm:"column:is_allowed"`
	ParentNotify   bool      `gorm:"column:parent_notify"`
	FlagReasons    string    `gorm:"column:flag_reasons;type:text"`
	FallbackReason string    `gorm:"column:fallback_reason;type:varchar(64)"`
	Model          string    `gorm:"column:model;type:varchar(64)"`
	ChildAge       int       `gorm:"column:child_age"`
	TopicCount     int       `gorm:"column:topic_count"`
	InputTokens    int64     `gorm:"column:input_tokens"`
	OutputTokens   int64     `gorm:"column:output_tokens"`
	DurationMs     int64     `gorm:"column:duration_ms"`
	CreatedAt      time.Time `gorm:"column:created_at;index:idx_message_verdicts_child_created,priority:2"`
}

// TableName 은 GORM에서 사용할 테이블명을 반환한다.
func (VerdictRecord) TableName() string {
	return "message_verdicts"
}

// VerdictDaily 는 일자별 판정 집계 DB 모델이다.
type VerdictDaily struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Day           time.Time `gorm:"column:day;type:date;uniqueIndex:idx_verdict_daily_day"`
	GreenCount    int64     `gorm:"column:green_count"`
	YellowCount   int64     `gorm:"column:yellow_count"`
	RedCount      int64     `gorm:"column:red_count"`
	FallbackCount int64     `gorm:"column:fallback_count"`
	InputTokens   int64     `gorm:"column:input_tokens"`
	OutputTokens  int64     `gorm:"column:output_tokens"`
	Version       int64     `gorm:"column:version"`
}

// TableName 은 GORM에서 사용할 테이블명을 반환한다.
func (VerdictDaily) TableName() string {
	return "verdict_daily"
}

// VerdictView 는 API 응답용 판정 기록이다.
type VerdictView struct {
	ID             string    `json:"id"`
	ChildID        string    `json:"childId"`
	FlagLevel      string    `json:"flagLevel"`
	ActionTaken    string    `json:"actionTaken"`
	IsAllowed      bool      `json:"isAllowed"`
	ParentNotify   bool      `json:"parentNotify"`
	FlagReasons    []string  `json:"flagReasons"`
	FallbackReason string    `json:"fallbackReason,omitempty"`
	Model          string    `json:"model,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DailySummary 는 API 응답용 일자별 집계다.
type DailySummary struct {
	Day          string `json:"day"`
	Green        int64  `json:"green"`
	Yellow       int64  `json:"yellow"`
	Red          int64  `json:"red"`
	Fallback     int64  `json:"fallback"`
	InputTokens  int64  `json:"inputTokens"`
	OutputTokens int64  `json:"outputTokens"`
}

// Total 은 전체 판정 수를 반환한다.
func (d DailySummary) Total() int64 {
	return d.Green + d.Yellow + d.Red
}

func encodeReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "[]"
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeReasons(raw string) []string {
	reasons := []string{}
	if raw == "" {
		return reasons
	}
	if err := json.Unmarshal([]byte(raw), &reasons); err != nil || reasons == nil {
		return []string{}
	}
	return reasons
}

func (r VerdictRecord) view() VerdictView {
	return VerdictView{
		ID:             r.ID,
		ChildID:        r.ChildID,
		FlagLevel:      r.FlagLevel,
		ActionTaken:    r.ActionTaken,
		IsAllowed:      r.IsAllowed,
		ParentNotify:   r.ParentNotify,
		FlagReasons:    decodeReasons(r.FlagReasons),
		FallbackReason: r.FallbackReason,
		Model:          r.Model,
		CreatedAt:      r.CreatedAt,
	}
}

func (d VerdictDaily) summary() DailySummary {
	return DailySummary{
		Day:          d.Day.Format(time.DateOnly),
		Green:        d.GreenCount,
		Yellow:       d.YellowCount,
		Red:          d.RedCount,
		Fallback:     d.FallbackCount,
		InputTokens:  d.InputTokens,
		OutputTokens: d.OutputTokens,
	}
}

// dayOf 는 UTC 기준 날짜 시작 시각을 반환한다.
func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
