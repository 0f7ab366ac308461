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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParticipantReward is one row of the participant-rewards endpoint.
// For active chains every field is computed live from stored timestamps;
// for completed chains CurrentReward is the stored final reward and the
// freeze/decay fields describe the locked state.
type ParticipantReward struct {
	UserId        string          `json:"userId"`
	CurrentReward decimal.Decimal `json:"currentReward"`
	IsFrozen      bool            `json:"isFrozen"`
	FreezeEndsAt  *time.Time      `json:"freezeEndsAt,omitempty"`
	GraceEndsAt   time.Time       `json:"graceEndsAt"`
	HoursOfDecay  decimal.Decimal `json:"hoursOfDecay"`
}

// JoinChainRequest is the validated boundary struct for adding a
// participant. The core never sees an untyped payload.
type JoinChainRequest struct {
	ReferrerParticipantId string `json:"referrerParticipantId"`
}

// CreateRequestBody creates a connection request. RewardPool caps the
// sum of final rewards for the request's chain; when omitted it
// defaults to ten times the base reward.
type CreateRequestBody struct {
	Target     string          `json:"target" binding:"required"`
	BaseReward decimal.Decimal `json:"baseReward" binding:"required"`
	ExpiresAt  time.Time       `json:"expiresAt" binding:"required"`
	RewardPool decimal.Decimal `json:"rewardPool"`
}

// UnlockCostResponse reports the credit price of a completed chain.
type UnlockCostResponse struct {
	ChainId          string `json:"chainId"`
	ParticipantCount int    `json:"participantCount"`
	Credits          int    `json:"credits"`
}

// UnlockResult reports the outcome of paying to view contact details.
type UnlockResult struct {
	ChainId        string          `json:"chainId"`
	CreditsCharged int             `json:"creditsCharged"`
	Balance        decimal.Decimal `json:"balance"`
}

// CompletionResult is the payout set produced by completing a chain.
// Replaying the completion returns the identical stored result.
type CompletionResult struct {
	ChainId     string    `json:"chainId"`
	CompletedAt time.Time `json:"completedAt"`
	Payouts     []Payout  `json:"payouts"`
	Replayed    bool      `json:"replayed"`
}

// Payout is a single ledger instruction emitted at chain completion.
type Payout struct {
	ParticipantId string          `json:"participantId"`
	UserId        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
}
