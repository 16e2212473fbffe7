package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ExpiredOrderCanceler cancels pending orders past their payment window.
type ExpiredOrderCanceler interface {
	CancelExpired(ctx context.Context) (int, error)
}

// Sweeper periodically cancels expired pending orders so abandoned checkouts
// never pin a coupon redemption or block inventory reporting forever.
type Sweeper struct {
	canceler ExpiredOrderCanceler
	interval time.Duration
}

// NewSweeper creates a Sweeper running at the given interval.
func NewSweeper(canceler ExpiredOrderCanceler, interval time.Duration) *Sweeper {
	return &Sweeper{canceler: canceler, interval: interval}
}

// Run sweeps once immediately, then on every tick until the context is
// canceled. Sweep errors are logged; the loop keeps running.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	canceled, err := s.canceler.CancelExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if canceled > 0 {
		log.Info().Int("canceled", canceled).Msg("expired orders canceled")
	}
}
