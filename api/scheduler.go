/*
scheduler.go - Membership expiry sweeper

PURPOSE:
  Periodically retires active memberships whose subscription end date has
  passed (including ledger-extended ends) so stale subscriptions stop
  matching leave requests.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each sweep is one store transaction; a racing ledger write aborts the
    sweep and the next tick picks it up again
  - Memberships are written through the same optimistic version check as
    every other mutation

USAGE:
  sweeper := NewExpirySweeper(store, clock, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/leave"
)

// ExpirySweeper retires memberships past their subscription end.
type ExpirySweeper struct {
	Store         leave.TxStore
	Clock         engine.Clock
	Logger        zerolog.Logger
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewExpirySweeper(store leave.TxStore, clock engine.Clock, logger zerolog.Logger) *ExpirySweeper {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &ExpirySweeper{
		Store:         store,
		Clock:         clock,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		stop:          make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (es *ExpirySweeper) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)
	go es.run()

	es.Logger.Info().Dur("interval", es.CheckInterval).Msg("expiry sweeper started")
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (es *ExpirySweeper) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker == nil {
		return
	}
	es.ticker.Stop()
	close(es.stop)
	es.wg.Wait()
	es.ticker = nil

	es.Logger.Info().Msg("expiry sweeper stopped")
}

func (es *ExpirySweeper) run() {
	defer es.wg.Done()

	// Catch anything that expired while the server was down.
	es.sweep()

	for {
		select {
		case <-es.ticker.C:
			es.sweep()
		case <-es.stop:
			return
		}
	}
}

// sweep retires every active membership whose end date is in the past.
// SweepNow exposes it for tests and manual runs.
func (es *ExpirySweeper) SweepNow() (int, error) {
	return es.sweepOnce(context.Background())
}

func (es *ExpirySweeper) sweep() {
	retired, err := es.sweepOnce(context.Background())
	if err != nil {
		es.Logger.Error().Err(err).Msg("membership expiry sweep failed")
		return
	}
	if retired > 0 {
		es.Logger.Info().Int("retired", retired).Msg("expired memberships retired")
	}
}

func (es *ExpirySweeper) sweepOnce(ctx context.Context) (int, error) {
	today := engine.DateOf(es.Clock.Now())
	retired := 0
	err := es.Store.WithTx(ctx, func(s leave.Store) error {
		expired, err := s.ListExpiredMemberships(ctx, today)
		if err != nil {
			return err
		}
		for _, m := range expired {
			m.Status = leave.MembershipInactive
			if err := s.UpdateMembership(ctx, m); err != nil {
				return err
			}
			retired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return retired, nil
}
