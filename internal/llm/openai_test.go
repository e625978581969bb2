package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newOpenAITestBackend(t *testing.T, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend, err := NewOpenAIBackend(Options{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/v1",
		Verbosity:  VerbosityDetailed,
		HTTPClient: srv.Client(),
	}, testLogger())
	if err != nil {
		t.Fatalf("NewOpenAIBackend failed: %v", err)
	}
	return backend
}

func TestNewOpenAIBackend_Defaults(t *testing.T) {
	backend, err := NewOpenAIBackend(Options{APIKey: "sk-test"}, testLogger())
	if err != nil {
		t.Fatalf("NewOpenAIBackend failed: %v", err)
	}
	if backend.ModelName() != DefaultOpenAIModel {
		t.Errorf("ModelName() = %q, want %q", backend.ModelName(), DefaultOpenAIModel)
	}
	if backend.temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want %v", backend.temperature, DefaultTemperature)
	}

	if _, err := NewOpenAIBackend(Options{}, testLogger()); err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestOpenAIBackend_SendQuery(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("non-streaming request sent stream=true")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "Hi" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.Messages[0].Content != VerbosityDetailed.SystemPrompt() {
			t.Errorf("system prompt = %q", req.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"gpt-3.5-turbo","choices":[{"message":{"role":"assistant","content":"Hello, world!"}}]}`)
	})

	got, err := backend.SendQuery(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("SendQuery failed: %v", err)
	}
	if got != "Hello, world!" {
		t.Errorf("SendQuery() = %q", got)
	}
}

func TestOpenAIBackend_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, KindInvalidKey},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, KindRateLimit},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"upstream exploded"}}`, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := backend.SendQuery(context.Background(), "Hi")
			if KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %v, want %v (err: %v)", KindOf(err), tt.wantKind, err)
			}
			if tt.wantKind == KindOther && !strings.Contains(err.Error(), "upstream exploded") {
				t.Errorf("error %q should carry the response body", err.Error())
			}

			_, err = backend.SendStreamingQuery(context.Background(), "Hi")
			if KindOf(err) != tt.wantKind {
				t.Fatalf("streaming kind = %v, want %v", KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestOpenAIBackend_NoChoices(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := backend.SendQuery(context.Background(), "Hi")
	if err == nil || !strings.Contains(err.Error(), "no response choices") {
		t.Fatalf("expected no choices error, got %v", err)
	}
}

func TestOpenAIBackend_SendStreamingQuery(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("streaming request sent stream=false")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// Frames deliberately split mid-line across flushes
		parts := []string{
			`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n" + `data: {"choices":[{"del`,
			`ta":{"content":"Hello"}}]}` + "\n\n",
			`data: {"choices":[{"delta":{"content":", "}}]}` + "\n\n" + `data: {"choices":[{"delta":{"content":"world"}}]}` + "\n",
			"\n" + `data: {"choices":[{"delta":{"content":"!"}}]}` + "\n\n",
			"data: [DONE]\n\n",
		}
		for _, part := range parts {
			fmt.Fprint(w, part)
			flusher.Flush()
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

func TestOpenAIBackend_StreamTruncated(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// Connection closes at a frame boundary without [DONE]
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"The answer is "}}]}`+"\n\n")
	})

	seq, err := backend.SendStreamingQuery(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("SendStreamingQuery failed: %v", err)
	}

	chunks, err := drain(t, seq)
	if KindOf(err) != KindStream {
		t.Fatalf("expected stream error for a cut-off stream, got %v (chunks %q)", err, chunks)
	}
	if !IsRetryable(err) {
		t.Error("truncated stream should be retryable")
	}
}

func TestOpenAIBackend_StreamEmbeddedError(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"Token1 "}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"error":{"message":"The server had an error while processing your request"}}`+"\n\n")
	})

	seq, err := backend.SendStreamingQuery(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("SendStreamingQuery failed: %v", err)
	}

	chunks, err := drain(t, seq)
	if KindOf(err) != KindStream {
		t.Fatalf("expected stream error, got %v", err)
	}
	if !strings.Contains(err.Error(), "The server had an error") {
		t.Errorf("error %q should contain the embedded message", err.Error())
	}
	if strings.Join(chunks, "") != "Token1 " {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestOpenAIBackend_ValidateKey(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind Kind
	}{
		{"valid", http.StatusOK, -1},
		{"invalid", http.StatusUnauthorized, KindInvalidKey},
		{"rate limited", http.StatusTooManyRequests, KindRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/models" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				if tt.status == http.StatusOK {
					fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-3.5-turbo","object":"model","created":1,"owned_by":"openai"}]}`)
					return
				}
				fmt.Fprint(w, `{"error":{"message":"nope","type":"invalid_request_error","code":"x","param":null}}`)
			})

			err := backend.ValidateKey(context.Background())
			if tt.wantKind < 0 {
				if err != nil {
					t.Fatalf("ValidateKey failed: %v", err)
				}
				return
			}
			var llmErr *Error
			if !errors.As(err, &llmErr) || llmErr.Kind != tt.wantKind {
				t.Fatalf("expected kind %v, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestParseOpenAIFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"content", `{"choices":[{"delta":{"content":"hi"}}]}`, "hi", false},
		{"role only", `{"choices":[{"delta":{"role":"assistant"}}]}`, "", false},
		{"no choices", `{"choices":[]}`, "", false},
		{"invalid", `{"choices":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOpenAIFrame([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
