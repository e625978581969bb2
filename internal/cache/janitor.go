package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Janitor periodically drops expired entries from a Store. Stores already
// purge lazily on access; the janitor keeps a long-running server's sqlite
// file from holding stale answers nobody asks for again.
type Janitor struct {
	store    Store
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// NewJanitor creates a janitor for store
func NewJanitor(store Store, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Janitor{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start begins the purge loop
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go j.loop(ctx)
	j.logger.Info().
		Dur("interval", j.interval).
		Msg("Cache janitor started")
}

// Stop ends the purge loop and waits for it to exit. Safe to call twice.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
		j.wg.Wait()
		j.logger.Info().Msg("Cache janitor stopped")
	})
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.purge()

	for {
		select {
		case <-ticker.C:
			j.purge()
		case <-j.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (j *Janitor) purge() {
	removed, err := j.store.ClearExpired()
	if err != nil {
		j.logger.Warn().Err(err).Msg("Failed to purge expired cache entries")
		return
	}
	if removed > 0 {
		j.logger.Debug().Int64("removed", removed).Msg("Purged expired cache entries")
	}
}
