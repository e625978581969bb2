package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rfushimi/q/internal/stream"
	"github.com/rs/zerolog"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API root
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is used when no model is configured
	DefaultOpenAIModel = "gpt-3.5-turbo"
)

// OpenAIBackend implements Backend for OpenAI-compatible chat completion APIs.
// Plain requests go through the SDK; streams are read frame by frame with
// stream.Decoder.
type OpenAIBackend struct {
	sdk         openai.Client
	apiKey      string
	baseURL     string
	model       string
	verbosity   Verbosity
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      zerolog.Logger
}

// NewOpenAIBackend creates a new OpenAI backend
func NewOpenAIBackend(opts Options, logger zerolog.Logger) (*OpenAIBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenAIBaseURL
	}

	httpClient := opts.httpClient()

	// Retries are owned by the query engine
	sdk := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL+"/"),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAIBackend{
		sdk:         sdk,
		apiKey:      opts.APIKey,
		baseURL:     opts.BaseURL,
		model:       opts.Model,
		verbosity:   opts.Verbosity,
		temperature: opts.temperature(),
		maxTokens:   opts.MaxTokens,
		client:      httpClient,
		logger:      logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the streaming request body
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatStreamFrame struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ModelName returns the model identifier
func (b *OpenAIBackend) ModelName() string {
	return b.model
}

// SendQuery sends a chat completion request and returns the first choice
func (b *OpenAIBackend) SendQuery(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(b.verbosity.SystemPrompt()),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(b.temperature),
	}
	if b.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(b.maxTokens))
	}

	completion, err := b.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", openAIError(err)
	}

	if len(completion.Choices) == 0 {
		return "", &Error{Kind: KindOther, Message: "no response choices"}
	}

	b.logger.Debug().
		Str("model", completion.Model).
		Int64("input_tokens", completion.Usage.PromptTokens).
		Int64("output_tokens", completion.Usage.CompletionTokens).
		Msg("OpenAI request completed")

	return completion.Choices[0].Message.Content, nil
}

// SendStreamingQuery sends a streaming chat completion request.
// A body that ends before [DONE] is a truncated answer and fails with KindStream.
func (b *OpenAIBackend) SendStreamingQuery(ctx context.Context, prompt string) (ChunkSequence, error) {
	req, err := b.newStreamRequest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp, err := doRequest(b.client, req)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("model", b.model).
		Msg("OpenAI stream opened")

	return newSSESequence(resp.Body, parseOpenAIFrame, stream.RequireSentinel()), nil
}

// ValidateKey lists models with the configured key
func (b *OpenAIBackend) ValidateKey(ctx context.Context) error {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	if _, err := b.sdk.Models.List(ctx); err != nil {
		return openAIError(err)
	}

	return nil
}

func (b *OpenAIBackend) newStreamRequest(ctx context.Context, prompt string) (*http.Request, error) {
	body := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: b.verbosity.SystemPrompt()},
			{Role: "user", Content: prompt},
		},
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
		Stream:      true,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(b.baseURL, "chat/completions"), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	return req, nil
}

// openAIError maps SDK errors onto Error kinds, keeping the response body as the message
func openAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return transportError(err)
	}

	message := apiErr.Message
	if apiErr.Response != nil && apiErr.Response.Body != nil {
		if body, readErr := io.ReadAll(io.LimitReader(apiErr.Response.Body, maxErrorBody)); readErr == nil && len(body) > 0 {
			message = string(body)
		}
	}

	llmErr := FromStatus(apiErr.StatusCode, message)
	llmErr.Err = err
	return llmErr
}

// parseOpenAIFrame extracts choices[0].delta.content; role-only frames yield ""
func parseOpenAIFrame(payload []byte) (string, error) {
	var frame chatStreamFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return "", err
	}
	if len(frame.Choices) == 0 || frame.Choices[0].Delta.Content == nil {
		return "", nil
	}
	return *frame.Choices[0].Delta.Content, nil
}
