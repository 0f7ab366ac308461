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

package reward

import (
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const secondsPerHour = 3600

// Calculator computes the currently-owed reward for a participant from
// its stored timestamps and a caller-supplied clock. It is stateless and
// never returns an error: timestamp anomalies (clock skew, out-of-order
// windows) are clamped and logged so a read path can never fail here.
type Calculator struct {
	policy models.RewardPolicy
}

func NewCalculator(policy models.RewardPolicy) Calculator {
	return Calculator{policy: policy}
}

func (c Calculator) Policy() models.RewardPolicy {
	return c.policy
}

// CurrentReward returns the reward owed to the participant at `now`,
// always within [0, baseReward].
//
// Priority order:
//  1. locked (final reward stored) -- time-invariant, `now` is ignored
//  2. grace -- full base reward, decay has not started
//  3. frozen -- held at the baseline snapshotted when freezing began
//  4. decaying -- linear decay from the last checkpoint
func (c Calculator) CurrentReward(p models.ChainParticipant, baseReward decimal.Decimal, now time.Time) decimal.Decimal {
	if p.FinalReward != nil {
		return clamp(*p.FinalReward, baseReward)
	}

	c.checkTimestamps(p, now)

	if now.Before(p.GraceEndsAt) {
		return clamp(baseReward, baseReward)
	}

	if c.IsFrozen(p, now) {
		return clamp(frozenBaseline(p, baseReward), baseReward)
	}

	checkpoint, checkpointReward := c.decayCheckpoint(p, baseReward)
	decayed := c.policy.DecayRatePerHour.Mul(hoursBetween(checkpoint, now))
	return clamp(checkpointReward.Sub(decayed), baseReward)
}

// IsFrozen is derived, not stored: a freeze window exists and has not
// yet elapsed.
func (c Calculator) IsFrozen(p models.ChainParticipant, now time.Time) bool {
	if p.FinalReward != nil {
		return false
	}
	return p.FreezeEndsAt != nil && now.Before(*p.FreezeEndsAt)
}

// RemainingFreeze returns how much of the current freeze window is left,
// zero when not frozen.
func (c Calculator) RemainingFreeze(p models.ChainParticipant, now time.Time) time.Duration {
	if !c.IsFrozen(p, now) {
		return 0
	}
	return p.FreezeEndsAt.Sub(now)
}

// HoursOfDecay returns how many hours the participant has currently been
// decaying since its last checkpoint. Zero while in grace, frozen, or
// locked.
func (c Calculator) HoursOfDecay(p models.ChainParticipant, now time.Time) decimal.Decimal {
	if p.FinalReward != nil || now.Before(p.GraceEndsAt) || c.IsFrozen(p, now) {
		return decimal.Zero
	}
	checkpoint, _ := c.decayCheckpoint(p, decimal.Zero)
	return hoursBetween(checkpoint, now)
}

// decayCheckpoint returns the instant decay (re)started and the reward
// value it started from: the grace end for a never-frozen participant,
// otherwise the end of the most recent freeze anchored at its baseline.
func (c Calculator) decayCheckpoint(p models.ChainParticipant, baseReward decimal.Decimal) (time.Time, decimal.Decimal) {
	checkpoint := p.GraceEndsAt
	checkpointReward := baseReward
	if p.FreezeEndsAt != nil {
		if p.FreezeEndsAt.After(checkpoint) {
			checkpoint = *p.FreezeEndsAt
		}
		checkpointReward = frozenBaseline(p, baseReward)
	}
	return checkpoint, checkpointReward
}

// checkTimestamps logs stored-timestamp anomalies (the usual cause is
// clock skew between writers). The computation itself clamps, so this
// never affects the returned value's bounds.
func (c Calculator) checkTimestamps(p models.ChainParticipant, now time.Time) {
	if p.GraceEndsAt.Before(p.JoinedAt) {
		zap.L().Warn("Participant grace window ends before join",
			zap.String("participant_id", p.Id),
			zap.Time("joined_at", p.JoinedAt),
			zap.Time("grace_ends_at", p.GraceEndsAt))
	}
	if p.FreezeEndsAt != nil && p.FrozenBaselineReward == nil {
		zap.L().Warn("Participant has freeze window without baseline",
			zap.String("participant_id", p.Id),
			zap.Time("freeze_ends_at", *p.FreezeEndsAt))
	}
	if now.Before(p.JoinedAt) {
		zap.L().Warn("Reward queried before participant join time",
			zap.String("participant_id", p.Id),
			zap.Time("joined_at", p.JoinedAt),
			zap.Time("now", now))
	}
}

// frozenBaseline falls back to the base reward when the stored baseline
// is missing (anomaly already logged by checkTimestamps).
func frozenBaseline(p models.ChainParticipant, baseReward decimal.Decimal) decimal.Decimal {
	if p.FrozenBaselineReward == nil {
		return baseReward
	}
	return *p.FrozenBaselineReward
}

// hoursBetween returns the elapsed hours from a to b as an exact decimal
// (negative elapsed time clamps to zero).
func hoursBetween(a, b time.Time) decimal.Decimal {
	seconds := b.Unix() - a.Unix()
	if seconds <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(seconds).Div(decimal.NewFromInt(secondsPerHour))
}

// clamp bounds v to [0, max].
func clamp(v, max decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}
