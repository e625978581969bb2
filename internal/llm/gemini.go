package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rfushimi/q/internal/stream"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	geminiAPIVersion = "v1beta"

	// DefaultGeminiBaseURL is the public Generative Language API root
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultGeminiModel is used when no model is configured
	DefaultGeminiModel = "gemini-2.0-flash"
)

// GeminiBackend implements Backend for Google's generate-content API.
// Plain requests and key checks go through the genai SDK; streams are read
// frame by frame with stream.Decoder.
type GeminiBackend struct {
	sdk         *genai.Client
	apiKey      string
	baseURL     string
	model       string
	verbosity   Verbosity
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      zerolog.Logger
}

// NewGeminiBackend creates a new Gemini backend
func NewGeminiBackend(opts Options, logger zerolog.Logger) (*GeminiBackend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGeminiBaseURL
	}

	httpClient := opts.httpClient()

	sdk, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
			APIVersion: geminiAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiBackend{
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

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// text concatenates the parts of the first candidate
func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// ModelName returns the model identifier
func (b *GeminiBackend) ModelName() string {
	return b.model
}

// SendQuery calls generateContent and returns the first candidate's text
func (b *GeminiBackend) SendQuery(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(b.verbosity.SystemPrompt(), genai.RoleUser),
		Temperature:       genai.Ptr(float32(b.temperature)),
		MaxOutputTokens:   int32(b.maxTokens),
	}

	resp, err := b.sdk.Models.GenerateContent(ctx, b.model, genai.Text(prompt), config)
	if err != nil {
		return "", b.apiError(err)
	}

	if len(resp.Candidates) == 0 {
		return "", &Error{Kind: KindOther, Message: "no response candidates"}
	}

	var sb strings.Builder
	if content := resp.Candidates[0].Content; content != nil {
		for _, part := range content.Parts {
			if part != nil && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}

	event := b.logger.Debug().Str("model", b.model)
	if usage := resp.UsageMetadata; usage != nil {
		event = event.
			Int32("input_tokens", usage.PromptTokenCount).
			Int32("output_tokens", usage.CandidatesTokenCount)
	}
	event.Msg("Gemini request completed")

	return sb.String(), nil
}

// SendStreamingQuery calls streamGenerateContent with SSE framing.
// Gemini sends no sentinel; a body that ends before any candidate reported a
// finishReason is a truncated answer and fails with KindStream.
func (b *GeminiBackend) SendStreamingQuery(ctx context.Context, prompt string) (ChunkSequence, error) {
	req, err := b.newRequest(ctx, prompt, "streamGenerateContent", url.Values{"alt": {"sse"}})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := b.do(req)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("model", b.model).
		Msg("Gemini stream opened")

	return newSSESequence(resp.Body, parseGeminiFrame, stream.RequireFinalFrame(isFinalGeminiFrame)), nil
}

// ValidateKey lists models with the configured key
func (b *GeminiBackend) ValidateKey(ctx context.Context) error {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	if _, err := b.sdk.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return b.apiError(err)
	}

	return nil
}

// newRequest builds the raw streaming request
func (b *GeminiBackend) newRequest(ctx context.Context, prompt, method string, query url.Values) (*http.Request, error) {
	body := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: b.verbosity.SystemPrompt()}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     b.temperature,
			MaxOutputTokens: b.maxTokens,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := joinURL(b.baseURL, fmt.Sprintf("%s/models/%s:%s", geminiAPIVersion, url.PathEscape(b.model), method))
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", b.apiKey)

	return req, nil
}

// do sends req and classifies a failed response like apiError does
func (b *GeminiBackend) do(req *http.Request) (*http.Response, error) {
	resp, err := doRequest(b.client, req)
	if err == nil {
		return resp, nil
	}

	if llmErr, ok := err.(*Error); ok && llmErr.Kind == KindOther {
		if geminiKeyRejected(llmErr.StatusCode, llmErr.Message) {
			llmErr.Kind = KindInvalidKey
		}
		b.logger.Debug().
			Int("status", llmErr.StatusCode).
			Str("body", llmErr.Message).
			Msg("Gemini API error response")
	}

	return nil, err
}

// apiError maps genai SDK errors onto Error kinds
func (b *GeminiBackend) apiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return transportError(err)
	}

	detail := fmt.Sprintf("%s %s %v", apiErr.Message, apiErr.Status, apiErr.Details)
	b.logger.Debug().
		Int("status", apiErr.Code).
		Str("body", detail).
		Msg("Gemini API error response")

	message := apiErr.Message
	if message == "" {
		message = apiErr.Status
	}

	llmErr := FromStatus(apiErr.Code, message)
	if llmErr.Kind == KindOther && geminiKeyRejected(apiErr.Code, detail) {
		llmErr.Kind = KindInvalidKey
	}
	llmErr.Err = err
	return llmErr
}

// geminiKeyRejected reports Gemini's ways of refusing a credential besides 401:
// 403, and 400 with reason API_KEY_INVALID
func geminiKeyRejected(status int, body string) bool {
	return status == http.StatusForbidden ||
		(status == http.StatusBadRequest && strings.Contains(body, "API_KEY_INVALID"))
}

// parseGeminiFrame extracts the text of the first candidate in one SSE frame
func parseGeminiFrame(payload []byte) (string, error) {
	var frame geminiResponse
	if err := json.Unmarshal(payload, &frame); err != nil {
		return "", err
	}
	return frame.text(), nil
}

// isFinalGeminiFrame reports whether a frame closes the answer
func isFinalGeminiFrame(payload []byte) bool {
	var frame geminiResponse
	if err := json.Unmarshal(payload, &frame); err != nil {
		return false
	}
	return len(frame.Candidates) > 0 && frame.Candidates[0].FinishReason != ""
}
