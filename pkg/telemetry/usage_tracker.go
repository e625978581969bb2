// Package telemetry provides LLM usage accounting and a daily budget.
//
// The telemetry package estimates tokens and cost for every answer a backend
// produces, counts cache hits separately, and resets its daily counters when
// the date changes. Going over the daily budget is reported as an error but
// never blocks a query.
package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrDailyLimitExceeded is returned by RecordQuery once the daily spend passes the limit
var ErrDailyLimitExceeded = errors.New("daily cost limit exceeded")

// PricingTable holds pricing information for a model
type PricingTable struct {
	InputPricePerMToken  float64
	OutputPricePerMToken float64
}

// Pricing maps model names to list prices in USD per million tokens
var Pricing = map[string]PricingTable{
	// OpenAI
	"gpt-3.5-turbo": {InputPricePerMToken: 0.50, OutputPricePerMToken: 1.50},
	"gpt-4":         {InputPricePerMToken: 30.00, OutputPricePerMToken: 60.00},
	"gpt-4o":        {InputPricePerMToken: 2.50, OutputPricePerMToken: 10.00},
	"gpt-4o-mini":   {InputPricePerMToken: 0.15, OutputPricePerMToken: 0.60},

	// Gemini
	"gemini-2.0-flash": {InputPricePerMToken: 0.10, OutputPricePerMToken: 0.40},
	"gemini-1.5-flash": {InputPricePerMToken: 0.075, OutputPricePerMToken: 0.30},
	"gemini-1.5-pro":   {InputPricePerMToken: 1.25, OutputPricePerMToken: 5.00},

	// Anthropic
	"claude-opus-4-5-20251101":   {InputPricePerMToken: 5.00, OutputPricePerMToken: 25.00},
	"claude-sonnet-4-5-20250929": {InputPricePerMToken: 3.00, OutputPricePerMToken: 15.00},
	"claude-3-5-haiku-20241022":  {InputPricePerMToken: 0.80, OutputPricePerMToken: 4.00},
}

// alertFraction of the daily limit triggers a one-time warning
const alertFraction = 0.8

// UsageTracker tracks token usage and estimated spend
type UsageTracker struct {
	mu sync.Mutex

	dailyMaxUSD float64

	// Daily tracking (resets at midnight)
	dailySpend        float64
	dailyInputTokens  int64
	dailyOutputTokens int64
	dailyQueries      int
	dailyCacheHits    int
	lastResetDate     string

	// Overall tracking
	totalSpend        float64
	totalInputTokens  int64
	totalOutputTokens int64
	totalQueries      int
	totalCacheHits    int

	now    func() time.Time
	logger zerolog.Logger
}

// NewUsageTracker creates a tracker. A dailyMaxUSD of zero means unlimited.
func NewUsageTracker(dailyMaxUSD float64, logger zerolog.Logger) *UsageTracker {
	return &UsageTracker{
		dailyMaxUSD:   dailyMaxUSD,
		lastResetDate: time.Now().Format("2006-01-02"),
		now:           time.Now,
		logger:        logger,
	}
}

// EstimateTokens approximates a token count at ~4 characters per token
func EstimateTokens(text string) int {
	return len(text) / 4
}

// CostFor returns the estimated USD cost of a call. Unknown models cost nothing.
func CostFor(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := lookupPricing(model)
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * pricing.InputPricePerMToken
	outputCost := float64(outputTokens) / 1_000_000 * pricing.OutputPricePerMToken
	return inputCost + outputCost
}

// lookupPricing matches exact names first, then the longest known prefix
// so dated variants like gpt-4o-2024-08-06 resolve to gpt-4o.
func lookupPricing(model string) (PricingTable, bool) {
	if p, ok := Pricing[model]; ok {
		return p, true
	}

	best := ""
	for name := range Pricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return PricingTable{}, false
	}
	return Pricing[best], true
}

// RecordQuery records an answer produced by a backend and returns its estimated cost.
// The usage is always recorded; the error only reports that the daily limit is now exceeded.
func (t *UsageTracker) RecordQuery(model, prompt, response string) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkDailyReset()

	inputTokens := EstimateTokens(prompt)
	outputTokens := EstimateTokens(response)
	cost := CostFor(model, inputTokens, outputTokens)
	previous := t.dailySpend

	t.dailySpend += cost
	t.dailyInputTokens += int64(inputTokens)
	t.dailyOutputTokens += int64(outputTokens)
	t.dailyQueries++

	t.totalSpend += cost
	t.totalInputTokens += int64(inputTokens)
	t.totalOutputTokens += int64(outputTokens)
	t.totalQueries++

	t.logger.Debug().
		Str("model", model).
		Int("input_tokens", inputTokens).
		Int("output_tokens", outputTokens).
		Float64("cost_usd", cost).
		Float64("daily_spend_usd", t.dailySpend).
		Msg("Query usage recorded")

	if t.dailyMaxUSD <= 0 {
		return cost, nil
	}

	alertAt := t.dailyMaxUSD * alertFraction
	if t.dailySpend >= alertAt && previous < alertAt {
		t.logger.Warn().
			Float64("daily_spend_usd", t.dailySpend).
			Float64("daily_max_usd", t.dailyMaxUSD).
			Msg("Daily cost alert threshold reached")
	}

	if t.dailySpend > t.dailyMaxUSD {
		return cost, fmt.Errorf("%w: current=$%.4f, limit=$%.2f", ErrDailyLimitExceeded, t.dailySpend, t.dailyMaxUSD)
	}

	return cost, nil
}

// RecordCacheHit counts an answer served from the cache
func (t *UsageTracker) RecordCacheHit() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkDailyReset()
	t.dailyCacheHits++
	t.totalCacheHits++
}

// checkDailyReset resets daily counters if the date has changed
func (t *UsageTracker) checkDailyReset() {
	today := t.now().Format("2006-01-02")
	if today != t.lastResetDate {
		t.logger.Info().
			Float64("previous_daily_spend_usd", t.dailySpend).
			Int("previous_daily_queries", t.dailyQueries).
			Msg("Daily usage tracking reset")

		t.dailySpend = 0
		t.dailyInputTokens = 0
		t.dailyOutputTokens = 0
		t.dailyQueries = 0
		t.dailyCacheHits = 0
		t.lastResetDate = today
	}
}

// Daily returns current daily statistics
func (t *UsageTracker) Daily() DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkDailyReset()

	stats := DailyStats{
		SpendUSD:     t.dailySpend,
		InputTokens:  t.dailyInputTokens,
		OutputTokens: t.dailyOutputTokens,
		Queries:      t.dailyQueries,
		CacheHits:    t.dailyCacheHits,
		LimitUSD:     t.dailyMaxUSD,
	}
	if t.dailyMaxUSD > 0 {
		stats.RemainingUSD = t.dailyMaxUSD - t.dailySpend
	}
	return stats
}

// Total returns overall statistics
func (t *UsageTracker) Total() TotalStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return TotalStats{
		SpendUSD:     t.totalSpend,
		InputTokens:  t.totalInputTokens,
		OutputTokens: t.totalOutputTokens,
		Queries:      t.totalQueries,
		CacheHits:    t.totalCacheHits,
	}
}

// DailyStats holds daily usage statistics
type DailyStats struct {
	SpendUSD     float64 `json:"spend_usd"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Queries      int     `json:"queries"`
	CacheHits    int     `json:"cache_hits"`
	LimitUSD     float64 `json:"limit_usd"`
	RemainingUSD float64 `json:"remaining_usd"`
}

// TotalStats holds usage statistics since the tracker was created
type TotalStats struct {
	SpendUSD     float64 `json:"spend_usd"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Queries      int     `json:"queries"`
	CacheHits    int     `json:"cache_hits"`
}
