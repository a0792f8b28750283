// Package llm 把任意 OpenAI 兼容的 chat-completion 服务归一成一个 Chat 能力。
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"sql-smart-go/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// 消息角色
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrEmptyConversation 表示调用方传入了空的消息序列。
var ErrEmptyConversation = errors.New("llm: conversation must not be empty")

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chatter 是 agent 依赖的唯一 LLM 能力：给定对话，返回 assistant 的文本回复。
type Chatter interface {
	Chat(ctx context.Context, messages []Message, opts ...Option) (string, error)
}

// Provider 是被适配的上游 completion 接口，*openai.Client 满足该接口。
type Provider interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Option 原样修改发往 provider 的请求，适配器本身不解释这些参数。
type Option func(*openai.ChatCompletionRequest)

// WithMaxTokens 设置 max_tokens。
func WithMaxTokens(n int) Option {
	return func(r *openai.ChatCompletionRequest) { r.MaxTokens = n }
}

// WithTopP 设置 top_p。
func WithTopP(p float32) Option {
	return func(r *openai.ChatCompletionRequest) { r.TopP = p }
}

// WithStop 设置停止词。
func WithStop(stop ...string) Option {
	return func(r *openai.ChatCompletionRequest) { r.Stop = stop }
}

// WithRequest 允许调用方直接修改请求，用于透传 provider 特有的参数。
func WithRequest(fn func(*openai.ChatCompletionRequest)) Option {
	return func(r *openai.ChatCompletionRequest) { fn(r) }
}

// ProviderError 包装上游 completion 调用的失败（网络、鉴权、限流、空响应）。
// 适配器不做重试。
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider call failed (model %s): %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client 是 Chatter 的实现。构造后只持有固定的 model 与 temperature，可并发调用。
type Client struct {
	provider    Provider
	model       string
	temperature float32
}

// NewClient 根据配置创建基于 go-openai 的客户端，BaseURL 指向 OpenAI 兼容端点（默认 Groq）。
func NewClient(cfg config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = contentPreservingDoer{next: &http.Client{Timeout: timeout}}
	return NewClientWithProvider(openai.NewClientWithConfig(oc), cfg.Model, cfg.Temperature)
}

// NewClientWithProvider 用任意 Provider 构造客户端。
func NewClientWithProvider(p Provider, model string, temperature float32) *Client {
	return &Client{provider: p, model: model, temperature: temperature}
}

// Model 返回配置的模型名。
func (c *Client) Model() string { return c.model }

// Chat 将对话连同 model、temperature 与额外参数转发给 provider，返回第一个 choice 的文本。
// provider 未返回内容时返回空字符串。
func (c *Client) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyConversation
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: wireTemperature(c.temperature),
	}
	for _, opt := range opts {
		opt(&req)
	}

	resp, err := c.provider.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &ProviderError{Model: c.model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Model: c.model, Err: errors.New("no choices in completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature 处理 go-openai 的 omitempty：0 会被省略并落回服务端默认值，
// 因此用最小正浮点数表达 0。
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// 拷贝一份，保证调用方的消息不被修改
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
