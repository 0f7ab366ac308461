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

package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/notify"
	"github.com/augustdua/6degrees-sub006/internal/reward"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// payoutScale is the decimal precision final rewards are floored to when
// the pool cap forces pro-rata scaling.
const payoutScale = 8

// maxFinalizeAttempts bounds the re-snapshot loop when joins keep
// racing a completion.
const maxFinalizeAttempts = 3

// Coordinator owns the one-way chain transitions: the single atomic
// completion and the expiry path. Reads stay in the API layer; the
// coordinator is only invoked for the mutating events.
type Coordinator struct {
	store  store.ChainStore
	ledger store.PayoutLedger
	sink   notify.Sink
	calc   reward.Calculator
}

func NewCoordinator(chainStore store.ChainStore, ledger store.PayoutLedger, sink notify.Sink, policy models.RewardPolicy) *Coordinator {
	return &Coordinator{
		store:  chainStore,
		ledger: ledger,
		sink:   sink,
		calc:   reward.NewCalculator(policy),
	}
}

// CompleteChain freezes every participant's reward at its value at
// completionTime and hands one payout instruction per participant to the
// ledger. Calling it again -- with any completionTime -- returns the
// stored payout set unchanged and re-delivers any payout the ledger has
// not acknowledged yet (references make delivery idempotent).
func (c *Coordinator) CompleteChain(ctx context.Context, chainId string, completionTime time.Time) (*models.CompletionResult, error) {
	var participants []models.ChainParticipant
	var finalRewards map[string]decimal.Decimal

	// The snapshot (chain version, then participants) and the finalize
	// must agree: a join landing between them bumps the version and
	// fails the finalize, so re-snapshot and try again.
	for attempt := 1; ; attempt++ {
		chain, err := c.store.GetChain(ctx, chainId)
		if err != nil {
			return nil, err
		}

		switch chain.Status {
		case models.ChainStatusCompleted:
			return c.replayCompletion(ctx, chain)
		case models.ChainStatusActive:
			// proceed
		default:
			return nil, fmt.Errorf("%w: chain %s is %s", store.ErrChainNotActive, chainId, chain.Status)
		}

		request, err := c.store.GetRequest(ctx, chain.RequestId)
		if err != nil {
			return nil, err
		}
		participants, err = c.store.GetParticipants(ctx, chainId)
		if err != nil {
			return nil, err
		}

		finalRewards = c.finalRewards(participants, request.BaseReward, chain.TotalRewardPool, completionTime)

		err = c.store.FinalizeChain(ctx, store.FinalizeParams{
			ChainId:         chainId,
			Status:          models.ChainStatusCompleted,
			FinalizedAt:     completionTime,
			FinalRewards:    finalRewards,
			ObservedVersion: chain.Version,
		})
		if errors.Is(err, store.ErrAlreadyCompleted) {
			// Lost a completion race; the winner's stored result is
			// authoritative.
			chain, err = c.store.GetChain(ctx, chainId)
			if err != nil {
				return nil, err
			}
			return c.replayCompletion(ctx, chain)
		}
		if errors.Is(err, store.ErrConcurrentModification) && attempt < maxFinalizeAttempts {
			zap.L().Info("Chain changed under completion snapshot; retrying",
				zap.String("chain_id", chainId),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	result := &models.CompletionResult{
		ChainId:     chainId,
		CompletedAt: completionTime,
	}
	for _, p := range participants {
		result.Payouts = append(result.Payouts, models.Payout{
			ParticipantId: p.Id,
			UserId:        p.UserId,
			Amount:        finalRewards[p.Id],
		})
	}

	if err := c.deliverPayouts(ctx, chainId, result.Payouts); err != nil {
		// Completion is durable; the caller retries CompleteChain and
		// replay re-delivers only what the ledger has not acknowledged.
		return nil, err
	}

	c.sink.ChainCompleted(ctx, chainId, result.Payouts)

	zap.L().Info("Chain completed",
		zap.String("chain_id", chainId),
		zap.Time("completed_at", completionTime),
		zap.Int("payouts", len(result.Payouts)))
	return result, nil
}

// ExpireChain voids every participant (final reward zero, no payouts).
// Expiring an already-terminal chain is success, not error: the sweep
// may run redundantly across instances.
func (c *Coordinator) ExpireChain(ctx context.Context, chainId string, at time.Time) error {
	chain, err := c.store.GetChain(ctx, chainId)
	if err != nil {
		return err
	}
	participants, err := c.store.GetParticipants(ctx, chainId)
	if err != nil {
		return err
	}

	finalRewards := make(map[string]decimal.Decimal, len(participants))
	for _, p := range participants {
		finalRewards[p.Id] = decimal.Zero
	}

	err = c.store.FinalizeChain(ctx, store.FinalizeParams{
		ChainId:         chainId,
		Status:          models.ChainStatusExpired,
		FinalizedAt:     at,
		FinalRewards:    finalRewards,
		ObservedVersion: chain.Version,
	})
	if errors.Is(err, store.ErrAlreadyCompleted) || errors.Is(err, store.ErrAlreadyTerminal) {
		return nil
	}
	if err != nil {
		return err
	}

	c.sink.ChainExpired(ctx, chainId, at)

	zap.L().Info("Chain expired",
		zap.String("chain_id", chainId),
		zap.Int("participants", len(participants)))
	return nil
}

// finalRewards computes each participant's live reward at the completion
// instant and, if their sum exceeds the chain's pool, scales every share
// down pro-rata. Shares are floored to payoutScale digits so the sum
// never exceeds the pool under decimal arithmetic.
func (c *Coordinator) finalRewards(participants []models.ChainParticipant, baseReward, pool decimal.Decimal, at time.Time) map[string]decimal.Decimal {
	rewards := make(map[string]decimal.Decimal, len(participants))
	sum := decimal.Zero
	for _, p := range participants {
		r := c.calc.CurrentReward(p, baseReward, at)
		rewards[p.Id] = r
		sum = sum.Add(r)
	}

	if sum.GreaterThan(pool) && sum.IsPositive() {
		scale := pool.Div(sum)
		zap.L().Warn("Reward pool cap reached; scaling final rewards pro-rata",
			zap.String("sum", sum.String()),
			zap.String("pool", pool.String()))
		for id, r := range rewards {
			rewards[id] = r.Mul(scale).RoundDown(payoutScale)
		}
	}
	return rewards
}

// deliverPayouts posts one instruction per participant. References are
// derived from the participant id so redelivery is harmless.
func (c *Coordinator) deliverPayouts(ctx context.Context, chainId string, payouts []models.Payout) error {
	for _, payout := range payouts {
		if payout.Amount.IsZero() {
			continue
		}
		err := c.ledger.PostPayout(ctx, store.PayoutParams{
			UserId:        payout.UserId,
			ChainId:       chainId,
			ParticipantId: payout.ParticipantId,
			Amount:        payout.Amount,
			Reference:     PayoutReference(chainId, payout.ParticipantId),
		})
		if err != nil {
			return fmt.Errorf("ledger rejected payout for participant %s: %w", payout.ParticipantId, err)
		}
	}
	return nil
}

// replayCompletion rebuilds the completion result from stored final
// rewards and re-delivers payouts idempotently.
func (c *Coordinator) replayCompletion(ctx context.Context, chain *models.Chain) (*models.CompletionResult, error) {
	participants, err := c.store.GetParticipants(ctx, chain.Id)
	if err != nil {
		return nil, err
	}

	result := &models.CompletionResult{
		ChainId:  chain.Id,
		Replayed: true,
	}
	if chain.CompletedAt != nil {
		result.CompletedAt = *chain.CompletedAt
	}
	for _, p := range participants {
		amount := decimal.Zero
		if p.FinalReward != nil {
			amount = *p.FinalReward
		}
		result.Payouts = append(result.Payouts, models.Payout{
			ParticipantId: p.Id,
			UserId:        p.UserId,
			Amount:        amount,
		})
	}

	if err := c.deliverPayouts(ctx, chain.Id, result.Payouts); err != nil {
		return nil, err
	}
	return result, nil
}

// PayoutReference is the idempotency key for a participant's completion
// payout.
func PayoutReference(chainId, participantId string) string {
	return fmt.Sprintf("payout:%s:%s", chainId, participantId)
}

// UnlockReference is the idempotency key for one user's unlock of one
// chain.
func UnlockReference(chainId, userId string) string {
	return fmt.Sprintf("unlock:%s:%s", chainId, userId)
}
