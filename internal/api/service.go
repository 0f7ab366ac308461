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

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/chain"
	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/notify"
	"github.com/augustdua/6degrees-sub006/internal/pricing"
	"github.com/augustdua/6degrees-sub006/internal/reward"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/shopspring/decimal"
)

// ErrNotCreator rejects completion attempts by anyone other than the
// connection request's creator.
var ErrNotCreator = errors.New("only the request creator can complete the chain")

// ErrInvalidInput marks boundary validation failures.
var ErrInvalidInput = errors.New("invalid request")

// defaultPoolMultiple sizes the reward pool when the creator does not
// specify one explicitly.
var defaultPoolMultiple = decimal.NewFromInt(10)

// ChainService provides the operations behind the HTTP handlers.
type ChainService struct {
	store       store.ChainStore
	ledger      store.PayoutLedger
	coordinator *chain.Coordinator
	sink        notify.Sink
	calc        reward.Calculator
	policy      models.RewardPolicy
}

func NewChainService(chainStore store.ChainStore, ledger store.PayoutLedger, coordinator *chain.Coordinator, sink notify.Sink, policy models.RewardPolicy) *ChainService {
	return &ChainService{
		store:       chainStore,
		ledger:      ledger,
		coordinator: coordinator,
		sink:        sink,
		calc:        reward.NewCalculator(policy),
		policy:      policy,
	}
}

func (s *ChainService) HealthCheck(ctx context.Context) error {
	_, err := s.store.ListChainsPastExpiry(ctx, time.Now().UTC(), 1)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// CreateConnectionRequest creates a request and its introduction chain
// in one go. One active chain per request.
func (s *ChainService) CreateConnectionRequest(ctx context.Context, creatorId string, body models.CreateRequestBody) (*models.ConnectionRequest, *models.Chain, error) {
	if !body.BaseReward.IsPositive() {
		return nil, nil, fmt.Errorf("%w: baseReward must be positive", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if !body.ExpiresAt.After(now) {
		return nil, nil, fmt.Errorf("%w: expiresAt must be in the future", ErrInvalidInput)
	}

	pool := body.RewardPool
	if pool.IsZero() {
		pool = body.BaseReward.Mul(defaultPoolMultiple)
	}
	if pool.IsNegative() {
		return nil, nil, fmt.Errorf("%w: rewardPool must not be negative", ErrInvalidInput)
	}

	req, err := s.store.CreateRequest(ctx, models.ConnectionRequest{
		CreatorId:  creatorId,
		Target:     body.Target,
		BaseReward: body.BaseReward,
		Status:     models.RequestStatusActive,
		CreatedAt:  now,
		ExpiresAt:  body.ExpiresAt.UTC(),
	})
	if err != nil {
		return nil, nil, err
	}

	c, err := s.store.CreateChain(ctx, req.Id, pool, now)
	if err != nil {
		return nil, nil, err
	}
	return req, c, nil
}

func (s *ChainService) GetConnectionRequest(ctx context.Context, requestId string) (*models.ConnectionRequest, *models.Chain, error) {
	req, err := s.store.GetRequest(ctx, requestId)
	if err != nil {
		return nil, nil, err
	}

	c, err := s.store.GetActiveChainForRequest(ctx, requestId)
	if err != nil && !errors.Is(err, store.ErrChainNotFound) {
		return nil, nil, err
	}
	return req, c, nil
}

// ParticipantRewards computes the reward panel for every participant of
// a chain. Active chains are priced live from stored timestamps; locked
// participants report their stored final reward. Reads never fail on
// anomalous timestamps, the calculator clamps and logs instead.
func (s *ChainService) ParticipantRewards(ctx context.Context, chainId string, now time.Time) ([]models.ParticipantReward, error) {
	c, err := s.store.GetChain(ctx, chainId)
	if err != nil {
		return nil, err
	}

	req, err := s.store.GetRequest(ctx, c.RequestId)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.GetParticipants(ctx, chainId)
	if err != nil {
		return nil, err
	}

	rewards := make([]models.ParticipantReward, len(participants))
	for i, p := range participants {
		rewards[i] = models.ParticipantReward{
			UserId:        p.UserId,
			CurrentReward: s.calc.CurrentReward(p, req.BaseReward, now),
			IsFrozen:      s.calc.IsFrozen(p, now),
			FreezeEndsAt:  p.FreezeEndsAt,
			GraceEndsAt:   p.GraceEndsAt,
			HoursOfDecay:  s.calc.HoursOfDecay(p, now),
		}
	}
	return rewards, nil
}

// JoinChain adds a participant. An empty referrer joins as the chain
// root; the store enforces every integrity rule in one transaction.
func (s *ChainService) JoinChain(ctx context.Context, chainId, userId string, body models.JoinChainRequest) (*models.ChainParticipant, error) {
	var parent *string
	if body.ReferrerParticipantId != "" {
		parent = &body.ReferrerParticipantId
	}

	p, err := s.store.AddParticipant(ctx, store.AddParticipantParams{
		ChainId:             chainId,
		UserId:              userId,
		ParentParticipantId: parent,
		JoinedAt:            time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if parent != nil {
		s.sink.ParticipantFrozen(ctx, chainId, *parent, p.JoinedAt.Add(s.policy.FreezeDuration))
	}
	return p, nil
}

// CompleteChain finalizes a chain on behalf of the request creator.
func (s *ChainService) CompleteChain(ctx context.Context, chainId, callerId string, now time.Time) (*models.CompletionResult, error) {
	c, err := s.store.GetChain(ctx, chainId)
	if err != nil {
		return nil, err
	}

	req, err := s.store.GetRequest(ctx, c.RequestId)
	if err != nil {
		return nil, err
	}
	if req.CreatorId != callerId {
		return nil, ErrNotCreator
	}

	return s.coordinator.CompleteChain(ctx, chainId, now)
}

// UnlockCost prices viewing the contact details of a completed chain.
func (s *ChainService) UnlockCost(ctx context.Context, chainId string) (*models.UnlockCostResponse, error) {
	c, err := s.store.GetChain(ctx, chainId)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.GetParticipants(ctx, chainId)
	if err != nil {
		return nil, err
	}

	credits, err := pricing.UnlockCost(*c, len(participants), s.policy)
	if err != nil {
		return nil, err
	}

	return &models.UnlockCostResponse{
		ChainId:          chainId,
		ParticipantCount: len(participants),
		Credits:          credits,
	}, nil
}

// Unlock charges the viewer for a completed chain. The ledger reference
// makes the charge idempotent per (user, chain): paying twice costs once.
func (s *ChainService) Unlock(ctx context.Context, chainId, userId string) (*models.UnlockResult, error) {
	cost, err := s.UnlockCost(ctx, chainId)
	if err != nil {
		return nil, err
	}

	err = s.ledger.PostUnlockCharge(ctx, store.UnlockChargeParams{
		UserId:    userId,
		ChainId:   chainId,
		Credits:   cost.Credits,
		Reference: chain.UnlockReference(chainId, userId),
	})
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetUserCredits(ctx, userId)
	if err != nil {
		return nil, err
	}

	return &models.UnlockResult{
		ChainId:        chainId,
		CreditsCharged: cost.Credits,
		Balance:        balance,
	}, nil
}
