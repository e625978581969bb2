package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"
)

// DefaultAnthropicMaxTokens is sent when Options.MaxTokens is zero; the API requires a value
const DefaultAnthropicMaxTokens = 8192

// AnthropicBackend implements Backend for Anthropic's Messages API
type AnthropicBackend struct {
	client      anthropic.Client
	model       string
	verbosity   Verbosity
	temperature float64
	maxTokens   int64
	logger      zerolog.Logger
}

// NewAnthropicBackend creates a new Anthropic backend
func NewAnthropicBackend(opts Options, logger zerolog.Logger) (*AnthropicBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if opts.Model == "" {
		opts.Model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}

	// Retries are owned by the query engine
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(opts.httpClient()),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &AnthropicBackend{
		client:      anthropic.NewClient(reqOpts...),
		model:       opts.Model,
		verbosity:   opts.Verbosity,
		temperature: opts.temperature(),
		maxTokens:   maxTokens,
		logger:      logger,
	}, nil
}

// ModelName returns the model identifier
func (b *AnthropicBackend) ModelName() string {
	return b.model
}

func (b *AnthropicBackend) params(prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{
				Text: b.verbosity.SystemPrompt(),
				Type: "text",
			},
		},
		Temperature: anthropic.Float(b.temperature),
	}
}

// SendQuery sends a message and returns the concatenated text blocks
func (b *AnthropicBackend) SendQuery(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	message, err := b.client.Messages.New(ctx, b.params(prompt))
	if err != nil {
		return "", anthropicError(err)
	}

	if len(message.Content) == 0 {
		return "", &Error{Kind: KindOther, Message: "empty response from Claude"}
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText.WriteString(block.Text)
		}
	}

	b.logger.Debug().
		Str("model", string(message.Model)).
		Int64("input_tokens", message.Usage.InputTokens).
		Int64("output_tokens", message.Usage.OutputTokens).
		Str("stop_reason", string(message.StopReason)).
		Msg("Claude API request completed")

	return responseText.String(), nil
}

// SendStreamingQuery opens a message stream and yields text deltas
func (b *AnthropicBackend) SendStreamingQuery(ctx context.Context, prompt string) (ChunkSequence, error) {
	s := b.client.Messages.NewStreaming(ctx, b.params(prompt))

	// Surface connection and status failures now rather than on the first Next
	seq := &anthropicSequence{stream: s}
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, anthropicError(err)
	}

	b.logger.Debug().
		Str("model", b.model).
		Msg("Claude stream opened")

	return seq, nil
}

// ValidateKey lists models with the configured key
func (b *AnthropicBackend) ValidateKey(ctx context.Context) error {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	if _, err := b.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return anthropicError(err)
	}
	return nil
}

type anthropicSequence struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	stopped bool // message_stop received
}

func (s *anthropicSequence) Next() (string, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStopEvent:
			s.stopped = true
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					return deltaVariant.Text, nil
				}
			}
		}
	}

	if err := s.stream.Err(); err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", anthropicError(err)
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", &Error{Kind: KindStream, Message: err.Error(), Err: err}
	}

	if !s.stopped {
		return "", &Error{Kind: KindStream, Message: "stream ended before completion"}
	}
	return "", io.EOF
}

func (s *anthropicSequence) Close() error {
	return s.stream.Close()
}

// anthropicError maps SDK errors onto Error kinds
func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		llmErr := FromStatus(apiErr.StatusCode, apiErr.Error())
		llmErr.Err = err
		return llmErr
	}
	return transportError(err)
}
