package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// drain reads a ChunkSequence to the end
func drain(t *testing.T, seq ChunkSequence) ([]string, error) {
	t.Helper()
	defer seq.Close()

	var chunks []string
	for {
		text, err := seq.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, text)
	}
}

func TestNewAnthropicBackend_MissingKey(t *testing.T) {
	_, err := NewAnthropicBackend(Options{}, testLogger())
	if err == nil {
		t.Fatal("Expected error for missing API key, got nil")
	}
}

func TestNewAnthropicBackend_DefaultModel(t *testing.T) {
	backend, err := NewAnthropicBackend(Options{APIKey: "sk-ant-test"}, testLogger())
	if err != nil {
		t.Fatalf("NewAnthropicBackend failed: %v", err)
	}

	// Should use a default Sonnet model
	if !strings.HasPrefix(backend.ModelName(), "claude-") {
		t.Errorf("Expected a Claude default model, got %q", backend.ModelName())
	}
}

func TestNewAnthropicBackend_CustomModel(t *testing.T) {
	customModel := "claude-opus-4-5-20251101"
	backend, err := NewAnthropicBackend(Options{APIKey: "sk-ant-test", Model: customModel}, testLogger())
	if err != nil {
		t.Fatalf("NewAnthropicBackend failed: %v", err)
	}

	if backend.ModelName() != customModel {
		t.Errorf("Expected model %s, got %s", customModel, backend.ModelName())
	}
}

func newAnthropicTestBackend(t *testing.T, handler http.HandlerFunc) *AnthropicBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend, err := NewAnthropicBackend(Options{
		APIKey:     "sk-ant-test",
		Model:      "claude-test",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, testLogger())
	if err != nil {
		t.Fatalf("NewAnthropicBackend failed: %v", err)
	}
	return backend
}

func TestAnthropicBackend_SendQuery(t *testing.T) {
	backend := newAnthropicTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "sk-ant-test" {
			t.Errorf("missing API key header")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Hello, "},{"type":"text","text":"world!"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	})

	got, err := backend.SendQuery(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("SendQuery failed: %v", err)
	}
	if got != "Hello, world!" {
		t.Errorf("SendQuery() = %q, want %q", got, "Hello, world!")
	}
}

func TestAnthropicBackend_SendStreamingQuery(t *testing.T) {
	events := []string{
		`event: message_start` + "\n" + `data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":3,"output_tokens":0}}}`,
		`event: content_block_start` + "\n" + `data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`event: content_block_delta` + "\n" + `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":", world!"}}`,
		`event: content_block_stop` + "\n" + `data: {"type":"content_block_stop","index":0}`,
		`event: message_stop` + "\n" + `data: {"type":"message_stop"}`,
	}

	backend := newAnthropicTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range events {
			fmt.Fprint(w, event+"\n\n")
		}
	})

	seq, err := backend.SendStreamingQuery(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("SendStreamingQuery failed: %v", err)
	}

	chunks, err := drain(t, seq)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if strings.Join(chunks, "") != "Hello, world!" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestAnthropicBackend_StreamTruncated(t *testing.T) {
	backend := newAnthropicTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// Ends after a delta, without message_stop
		fmt.Fprint(w, `event: message_start`+"\n"+`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":3,"output_tokens":0}}}`+"\n\n")
		fmt.Fprint(w, `event: content_block_delta`+"\n"+`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"The answer is "}}`+"\n\n")
	})

	seq, err := backend.SendStreamingQuery(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("SendStreamingQuery failed: %v", err)
	}

	chunks, err := drain(t, seq)
	if KindOf(err) != KindStream {
		t.Fatalf("expected stream error, got %v (chunks %q)", err, chunks)
	}
}

func TestAnthropicBackend_InvalidKey(t *testing.T) {
	backend := newAnthropicTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	err := backend.ValidateKey(context.Background())
	if KindOf(err) != KindInvalidKey {
		t.Fatalf("expected invalid key error, got %v", err)
	}

	_, err = backend.SendQuery(context.Background(), "Hi")
	if KindOf(err) != KindInvalidKey {
		t.Fatalf("expected invalid key error, got %v", err)
	}
}

func TestAnthropicBackend_RateLimited(t *testing.T) {
	backend := newAnthropicTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	})

	_, err := backend.SendStreamingQuery(context.Background(), "Hi")
	if KindOf(err) != KindRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("rate limit should be retryable")
	}
}
