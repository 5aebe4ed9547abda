package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ai_support_backend/internal/config"
	"ai_support_backend/internal/util"
)

// Chatter LLM 对话网关，测试时用假实现替换
type Chatter interface {
	Chat(ctx context.Context, system, user string, temperature float64) (string, error)
}

type AIService struct {
	config config.LLMConfig
	client *http.Client
}

func NewAIService(cfg config.LLMConfig) *AIService {
	return &AIService{
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat 通用 LLM 调用。temperature <= 0 时使用配置默认值。
// 网关不可用或返回非 200 一律包装为 ErrUpstream，不吞错也不降级为空串。
func (s *AIService) Chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	if temperature <= 0 {
		temperature = s.config.Temperature
	}

	reqBody := ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   s.config.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: LLM 请求失败: %v", util.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: LLM 返回状态 %d: %s", util.ErrUpstream, resp.StatusCode, string(body))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: LLM 响应解析失败: %v", util.ErrUpstream, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%w: LLM 错误: %s", util.ErrUpstream, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: LLM 未返回任何结果", util.ErrUpstream)
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

var (
	jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)
	jsonArrayPattern  = regexp.MustCompile(`\[[\s\S]*\]`)
)

// ExtractJSONObject 从模型输出中提取首个 JSON 对象。
// 模型偶尔会在 JSON 外包裹说明文字或代码块标记，这里做宽松提取。
func ExtractJSONObject(content string, v interface{}) error {
	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return fmt.Errorf("输出中未找到 JSON 对象")
	}
	return json.Unmarshal([]byte(match), v)
}

// ExtractJSONArray 从模型输出中提取首个 JSON 数组
func ExtractJSONArray(content string, v interface{}) error {
	match := jsonArrayPattern.FindString(content)
	if match == "" {
		return fmt.Errorf("输出中未找到 JSON 数组")
	}
	return json.Unmarshal([]byte(match), v)
}
