package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/llm"
	"github.com/park285/child-safety-server-go/internal/metrics"
)

const jsonMimeType = "application/json"

var (
	// ErrMissingAPIKey 는 Gemini API 키가 없을 때 반환된다.
	ErrMissingAPIKey = errors.New("missing gemini api key")
	// ErrEmptyResponse 는 모델이 텍스트 없이 응답했을 때 반환된다.
	ErrEmptyResponse = errors.New("empty gemini response")
)

// Request 는 Gemini 단일 생성 요청이다.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	// Temperature 가 nil 이면 설정값을 사용한다.
	Temperature *float64
}

// Client 는 Gemini 호출을 담당한다.
type Client struct {
	cfg       config.GeminiConfig
	metrics   *metrics.Store
	mu        sync.Mutex
	clients   map[string]*genai.Client
	apiKeyIdx int
}

// NewClient 는 Gemini 클라이언트를 생성한다.
func NewClient(cfg *config.Config, metricsStore *metrics.Store) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if metricsStore == nil {
		return nil, errors.New("metrics store is nil")
	}
	return &Client{
		cfg:     cfg.Gemini,
		metrics: metricsStore,
		clients: make(map[string]*genai.Client),
	}, nil
}

// Configured 는 API 키가 설정되어 있는지 반환한다.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Configured()
}

// Model 은 기본 모델명을 반환한다.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate 는 단일 시도로 텍스트를 생성한다. 재시도하지 않는다.
func (c *Client) Generate(ctx context.Context, req Request) (llm.ChatResult, string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	client, err := c.selectClient(ctx)
	if err != nil {
		return llm.ChatResult{}, model, err
	}

	start := time.Now()
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	response, err := client.Models.GenerateContent(ctx, model, contents, c.buildGenerateConfig(req))
	if err != nil {
		c.metrics.RecordError(time.Since(start))
		return llm.ChatResult{}, model, fmt.Errorf("generate content: %w", err)
	}

	usage := extractUsage(response)
	c.metrics.RecordSuccess(time.Since(start), usage)

	textParts, thoughtParts := extractParts(response)
	result := llm.ChatResult{
		Text:      strings.Join(textParts, ""),
		Usage:     usage,
		Reasoning: strings.Join(thoughtParts, "\n"),
	}
	if strings.TrimSpace(result.Text) == "" {
		return result, model, ErrEmptyResponse
	}
	return result, model, nil
}

// StatusCode 는 오류 체인에서 upstream HTTP 상태 코드를 찾는다. 없으면 0 이다.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

func (c *Client) selectClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.cfg.APIKeys
	if len(keys) == 0 {
		return nil, ErrMissingAPIKey
	}

	key := keys[c.apiKeyIdx%len(keys)]
	c.apiKeyIdx++
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	httpOptions := genai.HTTPOptions{
		Timeout: genai.Ptr(c.cfg.Timeout()),
	}
	if c.cfg.BaseURL != "" {
		httpOptions.BaseURL = c.cfg.BaseURL
	}

	client, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c.clients[key] = client
	return client, nil
}

func (c *Client) buildGenerateConfig(req Request) *genai.GenerateContentConfig {
	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(c.cfg.MaxOutputTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if c.cfg.JSONMode {
		config.ResponseMIMEType = jsonMimeType
	}
	if thinkingLevel, ok := normalizeThinkingLevel(c.cfg.ThinkingLevel); ok {
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingLevel:   thinkingLevel,
		}
	}
	return config
}

func normalizeThinkingLevel(level string) (genai.ThinkingLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low":
		return genai.ThinkingLevelLow, true
	case "medium":
		return genai.ThinkingLevelMedium, true
	case "high":
		return genai.ThinkingLevelHigh, true
	case "minimal":
		return genai.ThinkingLevelMinimal, true
	default:
		return "", false
	}
}

func extractParts(response *genai.GenerateContentResponse) ([]string, []string) {
	if response == nil || len(response.Candidates) == 0 {
		return nil, nil
	}
	content := response.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(content.Parts))
	var thoughts []string
	for _, part := range content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts = append(thoughts, part.Text)
			continue
		}
		texts = append(texts, part.Text)
	}
	return texts, thoughts
}

func extractUsage(response *genai.GenerateContentResponse) llm.Usage {
	if response == nil || response.UsageMetadata == nil {
		return llm.Usage{}
	}
	meta := response.UsageMetadata
	return llm.Usage{
		InputTokens:     int(meta.PromptTokenCount),
		OutputTokens:    int(meta.CandidatesTokenCount) + int(meta.ThoughtsTokenCount),
		TotalTokens:     int(meta.TotalTokenCount),
		ReasoningTokens: int(meta.ThoughtsTokenCount),
	}
}
