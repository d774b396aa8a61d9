package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "deepseek/deepseek-chat-v3.1:free"
	defaultGeminiModel       = "gemini-2.5-flash"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type aiChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type aiChatResponse struct {
	Provider         string
	Model            string
	Content          string
	PromptTokens     int
	CompletionTokens int
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// geminiCall 抽象 Gemini 调用，测试中替换
type geminiCall func(ctx context.Context, apiKey, model string, req aiChatRequest) (aiChatResponse, error)

// aiChatClient 根据系统设置选择 OpenRouter 或 Gemini
type aiChatClient struct {
	settings          *SystemSettingService
	http              httpDoer
	openRouterBaseURL string
	gemini            geminiCall
	logger            *zap.Logger
}

func newAIChatClient(settings *SystemSettingService, logger *zap.Logger) *aiChatClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &aiChatClient{
		settings:          settings,
		http:              &http.Client{Timeout: 180 * time.Second},
		openRouterBaseURL: defaultOpenRouterBaseURL,
		gemini:            callGemini,
		logger:            logger,
	}
}

func (c *aiChatClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 180 * time.Second}
		return
	}
	c.http = client
}

func (c *aiChatClient) SetOpenRouterBaseURL(base string) {
	c.openRouterBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c *aiChatClient) call(ctx context.Context, kind string, req aiChatRequest) (aiChatResponse, error) {
	if c.settings == nil {
		return aiChatResponse{}, ErrAIAPIKeyMissing
	}
	settings, err := c.settings.GetSettings(ctx)
	if err != nil {
		return aiChatResponse{}, err
	}

	logAIExchange(c.logger, kind, "request", req.UserPrompt)
	resp, err := c.callWithSettings(ctx, settings, req)
	if err != nil {
		c.logger.Warn("ai request failed", zap.String("kind", kind), zap.String("provider", settings.AIProvider), zap.Error(err))
		return aiChatResponse{}, err
	}
	logAIExchange(c.logger, kind, "response", resp.Content)
	return resp, nil
}

func (c *aiChatClient) callWithSettings(ctx context.Context, settings SystemSettings, req aiChatRequest) (aiChatResponse, error) {
	switch normalizeAIProvider(settings.AIProvider) {
	case AIProviderGemini:
		apiKey := strings.TrimSpace(settings.GeminiAPIKey)
		if apiKey == "" {
			return aiChatResponse{}, ErrAIAPIKeyMissing
		}
		model := strings.TrimSpace(settings.AIModel)
		if model == "" {
			model = defaultGeminiModel
		}
		call := c.gemini
		if call == nil {
			call = callGemini
		}
		return call(ctx, apiKey, model, req)
	default:
		apiKey := strings.TrimSpace(settings.OpenRouterAPIKey)
		if apiKey == "" {
			return aiChatResponse{}, ErrAIAPIKeyMissing
		}
		model := strings.TrimSpace(settings.AIModel)
		if model == "" {
			model = defaultOpenRouterModel
		}
		return c.callOpenRouter(ctx, apiKey, model, req)
	}
}

func (c *aiChatClient) callOpenRouter(ctx context.Context, apiKey, model string, req aiChatRequest) (aiChatResponse, error) {
	const label = "OpenRouter"

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	base := c.openRouterBaseURL
	if strings.TrimSpace(base) == "" {
		base = defaultOpenRouterBaseURL
	}

	maxTokens := req.MaxTokens
	if maxTokens < 0 {
		maxTokens = 0
	}

	messages := make([]chatMessage, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := strings.TrimRight(base, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("创建 %s 请求失败: %w", label, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "walklog-ai/1.0")
	httpReq.Header.Set("X-Title", "walklog")

	resp, err := client.Do(httpReq)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("请求 %s 接口失败: %w", label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("读取 %s 响应失败: %w", label, err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return aiChatResponse{}, fmt.Errorf("%s 接口返回错误：%s", label, resp.Status)
		}
		return aiChatResponse{}, fmt.Errorf("解析 %s 响应失败: %w", label, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = strings.TrimSpace(string(respBody))
		}
		if errMsg == "" {
			errMsg = resp.Status
		}
		return aiChatResponse{}, fmt.Errorf("%s 接口返回错误：%s", label, errMsg)
	}

	if len(completion.Choices) == 0 {
		return aiChatResponse{}, fmt.Errorf("%s 接口未返回结果", label)
	}

	return aiChatResponse{
		Provider:         AIProviderOpenRouter,
		Model:            model,
		Content:          strings.TrimSpace(completion.Choices[0].Message.Content),
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}

func callGemini(ctx context.Context, apiKey, model string, req aiChatRequest) (aiChatResponse, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		temperature := float32(req.Temperature)
		config.Temperature = &temperature
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(req.UserPrompt), config)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("请求 Gemini 接口失败: %w", err)
	}

	out := aiChatResponse{
		Provider: AIProviderGemini,
		Model:    model,
		Content:  strings.TrimSpace(result.Text()),
	}
	if result.UsageMetadata != nil {
		out.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	if out.Content == "" {
		return aiChatResponse{}, fmt.Errorf("Gemini 接口未返回结果")
	}
	return out, nil
}
