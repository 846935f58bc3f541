package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper marks users offline whose connections vanished without closing.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// PresenceSweeper runs a Sweeper on a fixed interval. It covers instances
// that died before their connections could mark users offline.
type PresenceSweeper struct {
	sweeper  Sweeper
	interval time.Duration
	log      zerolog.Logger
}

// NewPresenceSweeper creates a new PresenceSweeper.
func NewPresenceSweeper(sweeper Sweeper, interval time.Duration, log zerolog.Logger) *PresenceSweeper {
	return &PresenceSweeper{
		sweeper:  sweeper,
		interval: interval,
		log:      log.With().Str("component", "presence_sweeper").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *PresenceSweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *PresenceSweeper) runOnce(ctx context.Context) {
	n, err := w.sweeper.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Presence sweep failed")
		}
		return
	}
	if n > 0 {
		w.log.Info().Int("marked_offline", n).Msg("Swept stale presence")
	}
}
