package reward

import (
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"

	"github.com/shopspring/decimal"
)

// State is the logical lifecycle position of a participant, derived
// lazily from stored timestamps. Only Join and a successful referral
// write anything; grace expiry and freeze expiry are pure functions of
// time and are never scheduled.
//
//	Grace -> Decaying <-> Frozen -> LockedComplete
//	                           \-> Void (chain expired/cancelled)
type State int

const (
	StateGrace State = iota
	StateDecaying
	StateFrozen
	StateLockedComplete
	StateVoid
)

func (s State) String() string {
	switch s {
	case StateGrace:
		return "grace"
	case StateDecaying:
		return "decaying"
	case StateFrozen:
		return "frozen"
	case StateLockedComplete:
		return "locked_complete"
	case StateVoid:
		return "void"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateLockedComplete || s == StateVoid
}

// StateOf derives the participant's current state at `now`.
func (c Calculator) StateOf(p models.ChainParticipant, now time.Time) State {
	if p.Voided {
		return StateVoid
	}
	if p.FinalReward != nil {
		return StateLockedComplete
	}
	if now.Before(p.GraceEndsAt) {
		return StateGrace
	}
	if c.IsFrozen(p, now) {
		return StateFrozen
	}
	return StateDecaying
}

// JoinWindows returns the grace window stamped on a new participant.
func (c Calculator) JoinWindows(joinedAt time.Time) (graceEndsAt time.Time) {
	return joinedAt.Add(c.policy.GraceDuration)
}

// ReferralFreeze is the mutation a successful referral applies to the
// referrer: the reward is snapshotted and held for the freeze window.
type ReferralFreeze struct {
	FrozenBaselineReward decimal.Decimal
	FreezeEndsAt         time.Time
	ChildAddedAt         time.Time
}

// ApplyReferral computes the freeze triggered by this participant's link
// bringing in a new member. A referral landing while already frozen
// resets both the baseline and the window: it is an independent fresh
// contribution, not an extension of the previous one.
func (c Calculator) ApplyReferral(p models.ChainParticipant, baseReward decimal.Decimal, now time.Time) ReferralFreeze {
	return ReferralFreeze{
		FrozenBaselineReward: c.CurrentReward(p, baseReward, now),
		FreezeEndsAt:         now.Add(c.policy.FreezeDuration),
		ChildAddedAt:         now,
	}
}
