// Package engine answers prompts through a cached, retrying LLM backend.
//
// The engine checks the response cache, dispatches cache misses to the backend
// (streaming or not) through the retry controller, and stores successful answers.
// Failed or cancelled queries never touch the cache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rfushimi/q/internal/cache"
	"github.com/rfushimi/q/internal/llm"
	"github.com/rfushimi/q/internal/retry"
	"github.com/rfushimi/q/pkg/telemetry"
	"github.com/rs/zerolog"
)

// Config is the engine's immutable query configuration
// Cache sizing and TTL belong to the cache.Store passed to New.
type Config struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Stream        bool
	ShowProgress  bool
}

// DefaultConfig returns the defaults used when nothing is configured
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
		Stream:        true,
		ShowProgress:  true,
	}
}

// Renderer receives presentation events for a query
type Renderer interface {
	// Start is called before the first backend call when progress display is on
	Start(model string)

	// Chunk is called with each streamed increment in arrival order
	Chunk(text string)

	// Retry is called before sleeping between attempts
	Retry(attempt int, err error, delay time.Duration)

	// Done is called once the backend path has finished
	Done(err error)
}

// Result describes one answered query
type Result struct {
	ID       string        `json:"id"`
	Answer   string        `json:"answer"`
	Model    string        `json:"model"`
	Cached   bool          `json:"cached"`
	Duration time.Duration `json:"duration"`
}

// QueryOptions adjusts a single query
type QueryOptions struct {
	// NoCache skips both the lookup and the insert
	NoCache bool
}

// Engine orchestrates cache, retry and backend for each query
type Engine struct {
	backend  llm.Backend
	store    cache.Store
	config   Config
	renderer Renderer
	tracker  *telemetry.UsageTracker
	logger   zerolog.Logger
}

// New creates an Engine. store may be nil to disable caching.
func New(backend llm.Backend, store cache.Store, config Config, logger zerolog.Logger) *Engine {
	return &Engine{
		backend:  backend,
		store:    store,
		config:   config,
		renderer: nopRenderer{},
		logger:   logger,
	}
}

// SetRenderer routes presentation events to r
func (e *Engine) SetRenderer(r Renderer) {
	if r == nil {
		r = nopRenderer{}
	}
	e.renderer = r
}

// SetTracker records usage for every answered query
func (e *Engine) SetTracker(t *telemetry.UsageTracker) {
	e.tracker = t
}

// ModelName returns the backend's model
func (e *Engine) ModelName() string {
	return e.backend.ModelName()
}

// CacheKey scopes a prompt to the model that answered it
func CacheKey(model, prompt string) string {
	return model + "\n" + prompt
}

// Query answers prompt, from the cache when possible
func (e *Engine) Query(ctx context.Context, prompt string) (string, error) {
	result, err := e.Run(ctx, prompt, QueryOptions{})
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// Run answers prompt and reports how the answer was obtained
func (e *Engine) Run(ctx context.Context, prompt string, opts QueryOptions) (*Result, error) {
	start := time.Now()
	model := e.backend.ModelName()
	key := CacheKey(model, prompt)
	useCache := e.store != nil && !opts.NoCache

	result := &Result{
		ID:    uuid.New().String(),
		Model: model,
	}

	logger := e.logger.With().Str("query_id", result.ID).Str("model", model).Logger()

	if useCache {
		answer, ok, err := e.store.Get(key)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache lookup failed, querying backend")
		} else if ok {
			logger.Debug().Msg("Cache hit")
			if e.tracker != nil {
				e.tracker.RecordCacheHit()
			}
			result.Answer = answer
			result.Cached = true
			result.Duration = time.Since(start)
			return result, nil
		}
	}

	if e.config.ShowProgress {
		e.renderer.Start(model)
	}

	policy := retry.Policy{
		MaxRetries:   e.config.MaxRetries,
		InitialDelay: e.config.RetryDelay,
		MaxDelay:     e.config.MaxRetryDelay,
		Retryable:    llm.IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Backend call failed, retrying")
			e.renderer.Retry(attempt, err, delay)
		},
	}

	answer, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		if e.config.Stream {
			return e.streamAnswer(ctx, prompt)
		}
		return e.backend.SendQuery(ctx, prompt)
	})

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("query cancelled: %w", ctx.Err())
	}
	e.renderer.Done(err)

	if err != nil {
		logger.Debug().Err(err).Dur("duration", time.Since(start)).Msg("Query failed")
		return nil, err
	}

	if useCache {
		if err := e.store.Insert(key, answer); err != nil {
			logger.Warn().Err(err).Msg("Cache insert failed")
		}
	}

	if e.tracker != nil {
		if _, err := e.tracker.RecordQuery(model, prompt, answer); err != nil {
			logger.Warn().Err(err).Msg("Usage limit")
		}
	}

	result.Answer = answer
	result.Duration = time.Since(start)

	logger.Debug().
		Int("answer_bytes", len(answer)).
		Dur("duration", result.Duration).
		Msg("Query completed")

	return result, nil
}

// streamAnswer opens one stream and concatenates its increments in order
func (e *Engine) streamAnswer(ctx context.Context, prompt string) (string, error) {
	seq, err := e.backend.SendStreamingQuery(ctx, prompt)
	if err != nil {
		return "", err
	}
	defer seq.Close()

	var answer strings.Builder
	for {
		chunk, err := seq.Next()
		if errors.Is(err, io.EOF) {
			return answer.String(), nil
		}
		if err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		answer.WriteString(chunk)
		e.renderer.Chunk(chunk)
	}
}

type nopRenderer struct{}

func (nopRenderer) Start(string) {}
func (nopRenderer) Chunk(string) {}
func (nopRenderer) Retry(int, error, time.Duration) {}
func (nopRenderer) Done(error) {}
