package structurer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Completer sends one system + user exchange to a chat model and returns
// the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Provider defaults.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "deepseek/deepseek-r1-0528-qwen3-8b:free"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 4000
	DefaultTimeout     = 60 * time.Second
	DefaultReferer     = "https://github.com/hazyhaar/structura"
	DefaultTitle       = "Unstructured to Structured Data Converter"

	// SystemMessage is sent with every request.
	SystemMessage = "You are a data structuring expert. Always respond with valid, well-formatted data."
)

// ProviderConfig configures an OpenAI compatible endpoint.
type ProviderConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
	Referer     string
	Title       string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func (c *ProviderConfig) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Referer == "" {
		c.Referer = DefaultReferer
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// OpenAIProvider calls a chat completions API through openai-go. The SDK's
// own retries are disabled: retry and circuit breaking belong to the caller
// (see RoutedCompleter).
type OpenAIProvider struct {
	cfg    ProviderConfig
	client openai.Client
}

// NewOpenAIProvider builds a provider. An empty API key is accepted here and
// reported as ErrNoAPIKey on the first call.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	cfg.defaults()
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/"),
		option.WithAPIKey(cfg.APIKey),
		option.WithHeader("HTTP-Referer", cfg.Referer),
		option.WithHeader("X-Title", cfg.Title),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAIProvider{cfg: cfg, client: openai.NewClient(opts...)}
}

// Model returns the configured model id.
func (p *OpenAIProvider) Model() string { return p.cfg.Model }

func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if p.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}
	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(p.cfg.Temperature),
		MaxTokens:   openai.Int(p.cfg.MaxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			body := apiErr.Message
			if body == "" {
				body = http.StatusText(apiErr.StatusCode)
			}
			return "", &ProviderError{Status: apiErr.StatusCode, Body: body}
		}
		return "", err
	}
	p.cfg.Logger.InfoContext(ctx, "model request completed",
		"model", p.cfg.Model, "duration_ms", time.Since(start).Milliseconds())
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
