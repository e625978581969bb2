// Package llm provides the backend abstraction and vendor implementations.
//
// The llm package defines the Backend interface consumed by the query engine and
// implements it for OpenAI chat completions, Gemini generate-content, Anthropic
// messages and a local Ollama server. Every backend reports failures as *Error so
// callers can tell transient failures from permanent ones.
package llm

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Backend is the capability set every LLM vendor adapter implements
type Backend interface {
	// ModelName returns the model identifier requests are sent to
	ModelName() string

	// SendQuery sends a prompt and waits for the complete answer
	SendQuery(ctx context.Context, prompt string) (string, error)

	// SendStreamingQuery sends a prompt and returns the answer as it is generated.
	// Each call opens a fresh transport stream; the sequence is not restartable.
	SendStreamingQuery(ctx context.Context, prompt string) (ChunkSequence, error)

	// ValidateKey checks the configured credential against the vendor
	ValidateKey(ctx context.Context) error
}

// ChunkSequence is an ordered, finite sequence of text increments
type ChunkSequence interface {
	// Next returns the next increment, io.EOF at the end of the stream,
	// or an error that terminates the sequence.
	Next() (string, error)

	// Close releases the underlying transport
	Close() error
}

// Options configures a backend
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Verbosity   Verbosity
	Temperature float64

	// MaxTokens limits the answer length; zero leaves the vendor default
	MaxTokens int

	// HTTPClient overrides the shared client (tests, proxies)
	HTTPClient *http.Client
}

const (
	// DefaultTemperature is used when Options.Temperature is zero
	DefaultTemperature = 0.7

	// RequestTimeout bounds a non-streaming request end to end
	RequestTimeout = 30 * time.Second
)

// NewHTTPClient returns the client backends share.
// Connect, TLS and header timeouts are enforced by the transport so streaming
// bodies are not cut off by an overall deadline.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: RequestTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          10,
		},
	}
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return NewHTTPClient()
}

func (o Options) temperature() float64 {
	if o.Temperature == 0 {
		return DefaultTemperature
	}
	return o.Temperature
}
