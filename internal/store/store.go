package store

import (
	"context"
	"errors"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	// Chain integrity violations: the write is rejected and chain state
	// is unchanged.
	ErrChainNotFound           = errors.New("chain not found")
	ErrChainNotActive          = errors.New("chain is not active")
	ErrParentNotFound          = errors.New("parent participant not found")
	ErrParticipantOutsideChain = errors.New("participant belongs to a different chain")
	ErrParentTerminal          = errors.New("parent participant is terminal")
	ErrDuplicateParticipant    = errors.New("user already participates in chain")

	ErrRequestNotFound        = errors.New("connection request not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Idempotent replays: callers treat these as success, not failure.
	ErrAlreadyCompleted = errors.New("chain already completed")
	ErrAlreadyTerminal  = errors.New("chain already terminal")

	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicateReference  = errors.New("duplicate ledger reference")
)

// AddParticipantParams contains the validated inputs for a chain join.
type AddParticipantParams struct {
	ChainId             string
	UserId              string
	ParentParticipantId *string // nil for the chain root
	JoinedAt            time.Time
}

// FinalizeParams locks a whole chain in one transaction: every
// participant gets its final reward and the chain moves to a terminal
// status. No partial application is ever visible.
type FinalizeParams struct {
	ChainId      string
	Status       string // ChainStatusCompleted / ChainStatusExpired / ChainStatusCancelled
	FinalizedAt  time.Time
	FinalRewards map[string]decimal.Decimal // participant id -> final reward

	// ObservedVersion is the chain version FinalRewards was computed
	// against. A join committing after that snapshot bumps the version
	// and the finalize fails with ErrConcurrentModification instead of
	// locking a participant set that is missing the late joiner. Zero
	// skips the check (the finalize validates against the live row).
	ObservedVersion int64
}

// ChainStore is the registry contract: append-only chains and
// participants plus the two serialized per-chain mutations.
type ChainStore interface {
	// --- Connection requests ---
	CreateRequest(ctx context.Context, req models.ConnectionRequest) (*models.ConnectionRequest, error)
	GetRequest(ctx context.Context, requestId string) (*models.ConnectionRequest, error)
	UpdateRequestStatus(ctx context.Context, requestId, status string) error

	// --- Chains ---
	CreateChain(ctx context.Context, requestId string, pool decimal.Decimal, createdAt time.Time) (*models.Chain, error)
	GetChain(ctx context.Context, chainId string) (*models.Chain, error)
	GetActiveChainForRequest(ctx context.Context, requestId string) (*models.Chain, error)
	ListChainsPastExpiry(ctx context.Context, now time.Time, limit int) ([]models.Chain, error)

	// --- Participants ---
	AddParticipant(ctx context.Context, params AddParticipantParams) (*models.ChainParticipant, error)
	GetParticipants(ctx context.Context, chainId string) ([]models.ChainParticipant, error)
	FindParticipant(ctx context.Context, chainId, userId string) (*models.ChainParticipant, error)

	// --- Finalization ---
	FinalizeChain(ctx context.Context, params FinalizeParams) error

	// --- Lifecycle ---
	Close()
}

// PayoutParams is one payout instruction handed to the external credit
// ledger at completion. Reference doubles as the idempotency key.
type PayoutParams struct {
	UserId        string
	ChainId       string
	ParticipantId string
	Amount        decimal.Decimal
	Reference     string
}

// UnlockChargeParams debits a viewer for unlocking a completed chain.
type UnlockChargeParams struct {
	UserId    string
	ChainId   string
	Credits   int
	Reference string
}

// PayoutLedger is the credit/wallet ledger collaborator. The engine only
// posts instructions; balance semantics live behind this interface.
// Posting the same Reference twice must succeed without double-crediting.
type PayoutLedger interface {
	PostPayout(ctx context.Context, params PayoutParams) error
	PostUnlockCharge(ctx context.Context, params UnlockChargeParams) error
	GetUserCredits(ctx context.Context, userId string) (decimal.Decimal, error)
	Close()
}
