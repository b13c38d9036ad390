package llm

// Usage: 토큰 사용량 정보를 담습니다.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	ReasoningTokens int `json:"reasoning_tokens"`
}

// ChatResult: LLM 응답과 사용량을 담습니다.
type ChatResult struct {
	Text      string
	Usage     Usage
	Reasoning string
}
