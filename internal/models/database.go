package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConnectionRequest statuses.
const (
	RequestStatusPending   = "pending"
	RequestStatusActive    = "active"
	RequestStatusCompleted = "completed"
	RequestStatusCancelled = "cancelled"
	RequestStatusExpired   = "expired"
)

// Chain statuses. A chain is created active and ends in exactly one of
// the terminal states; there is no way back to active.
const (
	ChainStatusActive    = "active"
	ChainStatusCompleted = "completed"
	ChainStatusExpired   = "expired"
	ChainStatusCancelled = "cancelled"
)

// ConnectionRequest is an introduction request posted by a requester.
// Rows are never deleted; cancellation and expiry are status transitions.
type ConnectionRequest struct {
	Id         string          `db:"id"`
	CreatorId  string          `db:"creator_id"`
	Target     string          `db:"target"`
	BaseReward decimal.Decimal `db:"base_reward"`
	Status     string          `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
	ExpiresAt  time.Time       `db:"expires_at"`
	DeletedAt  *time.Time      `db:"deleted_at"`
}

// Chain is the referral tree working toward one connection request.
// Version backs the per-chain optimistic write lock: every mutation of
// the participant set bumps it inside the same transaction.
type Chain struct {
	Id              string          `db:"id"`
	RequestId       string          `db:"request_id"`
	Status          string          `db:"status"`
	TotalRewardPool decimal.Decimal `db:"total_reward_pool"`
	Version         int64           `db:"version"`
	CreatedAt       time.Time       `db:"created_at"`
	CompletedAt     *time.Time      `db:"completed_at"`
}

// ChainParticipant is one user's membership in a chain, carrying its own
// decay/freeze timeline. All reward state is derivable from the stored
// timestamps plus FrozenBaselineReward; no scheduled job is needed.
type ChainParticipant struct {
	Id                   string           `db:"id"`
	ChainId              string           `db:"chain_id"`
	UserId               string           `db:"user_id"`
	ParentParticipantId  *string          `db:"parent_participant_id"` // nil only for the root
	Depth                int              `db:"depth"`
	JoinedAt             time.Time        `db:"joined_at"`
	GraceEndsAt          time.Time        `db:"grace_ends_at"`
	ChildAddedAt         *time.Time       `db:"child_added_at"`
	FreezeEndsAt         *time.Time       `db:"freeze_ends_at"`
	FrozenBaselineReward *decimal.Decimal `db:"frozen_baseline_reward"`
	FinalReward          *decimal.Decimal `db:"final_reward"` // set exactly once, at completion
	Voided               bool             `db:"voided"`
}

// Locked reports whether the participant has been locked by chain
// completion or expiry. Once true, FinalReward is authoritative and any
// live computation must be ignored.
func (p ChainParticipant) Locked() bool {
	return p.FinalReward != nil
}

// CreditBalance is the current credit position for a user (hot data).
type CreditBalance struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	Balance           decimal.Decimal `db:"balance"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// CreditTransaction is the immutable credit ledger trail (cold data).
type CreditTransaction struct {
	Id            string          `db:"id"`
	UserId        string          `db:"user_id"`
	Type          string          `db:"transaction_type"` // "payout", "unlock", "topup"
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	Reference     string          `db:"reference"`
	ChainId       string          `db:"chain_id"`
	CreatedAt     time.Time       `db:"created_at"`
}
