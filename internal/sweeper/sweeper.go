/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/chain"
	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"go.uber.org/zap"
)

// Sweeper periodically expires chains whose connection request passed
// its deadline without completing. Expiry is lazy everywhere else (a
// read computes the state it needs from timestamps), so the sweep is an
// optional reconciliation pass: running it twice, or concurrently with
// a completion, is safe. Whichever write finalizes the chain first
// wins; the loser sees an idempotent no-op.
type Sweeper struct {
	store       store.ChainStore
	coordinator *chain.Coordinator

	sweepInterval time.Duration
	batchSize     int

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(chainStore store.ChainStore, coordinator *chain.Coordinator, cfg models.SweeperConfig) *Sweeper {
	return &Sweeper{
		store:         chainStore,
		coordinator:   coordinator,
		sweepInterval: cfg.SweepInterval,
		batchSize:     cfg.BatchSize,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("Starting expiry sweeper",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Int("batch_size", s.batchSize))

	go s.sweepLoop(ctx)
}

// Stop gracefully stops the sweeper, waiting for an in-flight sweep.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping expiry sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Expiry sweeper stopped")
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	if _, err := s.SweepOnce(ctx, time.Now().UTC()); err != nil {
		zap.L().Error("Initial expiry sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, time.Now().UTC()); err != nil {
				zap.L().Error("Expiry sweep failed", zap.Error(err))
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce expires every active chain past its request deadline and
// returns the number of chains it transitioned. Chains that another
// writer finalized in the meantime are skipped, not errors.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	chains, err := s.store.ListChainsPastExpiry(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range chains {
		err := s.coordinator.ExpireChain(ctx, c.Id, now)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, store.ErrConcurrentModification):
			zap.L().Info("Chain changed under sweep, skipping",
				zap.String("chain_id", c.Id))
		default:
			zap.L().Error("Failed to expire chain",
				zap.String("chain_id", c.Id),
				zap.Error(err))
		}
	}

	if expired > 0 {
		zap.L().Info("Expiry sweep finished",
			zap.Int("candidates", len(chains)),
			zap.Int("expired", expired))
	}
	return expired, nil
}
