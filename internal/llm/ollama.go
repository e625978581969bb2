package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

const (
	// DefaultOllamaURL is where a local Ollama server listens
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaModel is used when no model is configured
	DefaultOllamaModel = "llama3.2"
)

// OllamaBackend implements Backend for a local Ollama server.
// Ollama has no credentials; ValidateKey checks that the model is pulled.
type OllamaBackend struct {
	client      *api.Client
	model       string
	verbosity   Verbosity
	temperature float64
	maxTokens   int
	logger      zerolog.Logger
}

// NewOllamaBackend creates a new Ollama backend
func NewOllamaBackend(opts Options, logger zerolog.Logger) (*OllamaBackend, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOllamaURL
	}

	if opts.Model == "" {
		opts.Model = DefaultOllamaModel
	}

	parsedURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}

	return &OllamaBackend{
		client:      api.NewClient(parsedURL, opts.httpClient()),
		model:       opts.Model,
		verbosity:   opts.Verbosity,
		temperature: opts.temperature(),
		maxTokens:   opts.MaxTokens,
		logger:      logger,
	}, nil
}

// ModelName returns the model identifier
func (b *OllamaBackend) ModelName() string {
	return b.model
}

func (b *OllamaBackend) request(prompt string, stream bool) *api.GenerateRequest {
	options := map[string]any{
		"temperature": b.temperature,
	}
	if b.maxTokens > 0 {
		options["num_predict"] = b.maxTokens
	}

	return &api.GenerateRequest{
		Model:   b.model,
		Prompt:  prompt,
		System:  b.verbosity.SystemPrompt(),
		Stream:  &stream,
		Options: options,
	}
}

// SendQuery generates a complete answer
func (b *OllamaBackend) SendQuery(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	start := time.Now()

	var final api.GenerateResponse
	err := b.client.Generate(ctx, b.request(prompt, false), func(resp api.GenerateResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return "", ollamaError(err)
	}

	b.logger.Debug().
		Str("model", b.model).
		Int("input_tokens", final.PromptEvalCount).
		Int("output_tokens", final.EvalCount).
		Dur("duration", time.Since(start)).
		Msg("Ollama request completed")

	return final.Response, nil
}

// SendStreamingQuery generates an answer, yielding each token callback as an increment
func (b *OllamaBackend) SendStreamingQuery(ctx context.Context, prompt string) (ChunkSequence, error) {
	ctx, cancel := context.WithCancel(ctx)

	seq := &ollamaSequence{
		chunks: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(seq.done)
		defer close(seq.chunks)

		finished := false
		err := b.client.Generate(ctx, b.request(prompt, true), func(resp api.GenerateResponse) error {
			if resp.Done {
				finished = true
			}
			if resp.Response == "" {
				return nil
			}
			select {
			case seq.chunks <- resp.Response:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil && !finished {
			err = &Error{Kind: KindStream, Message: "stream ended before completion"}
		}
		seq.err = err
	}()

	return seq, nil
}

// ValidateKey checks that the server is reachable and the model is available
func (b *OllamaBackend) ValidateKey(ctx context.Context) error {
	ctx, cancel := requestContext(ctx)
	defer cancel()

	listResp, err := b.client.List(ctx)
	if err != nil {
		return ollamaError(err)
	}

	for _, model := range listResp.Models {
		if model.Name == b.model || model.Name == b.model+":latest" {
			return nil
		}
	}

	return &Error{Kind: KindOther, Message: fmt.Sprintf("model %s not found in ollama. Run: ollama pull %s", b.model, b.model)}
}

// ollamaSequence bridges Generate's callback API to ChunkSequence
type ollamaSequence struct {
	chunks chan string
	done   chan struct{} // closed when the Generate goroutine has returned
	cancel context.CancelFunc

	// err is written before chunks is closed and read only after
	err error
}

func (s *ollamaSequence) Next() (string, error) {
	text, ok := <-s.chunks
	if ok {
		return text, nil
	}
	if s.err != nil {
		return "", ollamaError(s.err)
	}
	return "", io.EOF
}

// Close stops generation and waits for the Generate goroutine to exit
func (s *ollamaSequence) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// ollamaError maps client errors onto Error kinds
func ollamaError(err error) error {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return FromStatus(statusErr.StatusCode, msg)
	}

	// The client reports {"error": "..."} bodies as plain errors; only
	// failures of the HTTP round trip itself are network errors
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return transportError(err)
	}
	return &Error{Kind: KindOther, Message: err.Error(), Err: err}
}
