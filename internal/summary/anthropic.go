package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cuongbtq/transcribe-be/internal/api/domain"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 2048
	DefaultTimeout   = 60 * time.Second
)

// AnthropicConfig configures the Claude-backed generator. An empty BaseURL
// uses the SDK default endpoint.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	BaseURL    string
	MaxRetries int
}

// Anthropic generates summaries with the Claude Messages API
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	enabled   bool
	logger    *slog.Logger
}

// NewAnthropic creates a generator. Without an API key every call is skipped.
func NewAnthropic(cfg AnthropicConfig, logger *slog.Logger) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		enabled:   cfg.APIKey != "",
		logger:    logger,
	}
}

// Generate asks the model for a summary of segments, bounded by the
// configured timeout. Failures are returned as a Failed outcome.
func (a *Anthropic) Generate(ctx context.Context, segments []domain.Segment) Outcome {
	if !a.enabled {
		return Skipped("anthropic api key not set")
	}
	if len(segments) == 0 {
		return Skipped("no transcript segments")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(segments))),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Failed(fmt.Errorf("summary request timed out after %s: %w", a.timeout, err))
		}
		return Failed(fmt.Errorf("summary request failed: %w", err))
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	s, err := ParseResponse(text)
	if err != nil {
		return Failed(err)
	}

	a.logger.Debug("Summary generated",
		slog.String("model", a.model),
		slog.Int("segments", len(segments)),
		slog.Duration("latency", time.Since(start)),
	)
	return Generated(s)
}
