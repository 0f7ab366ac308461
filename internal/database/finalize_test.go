package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/shopspring/decimal"
)

func TestFinalizeChain_Completed(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, chain := createTestChain(t, service, decimal.NewFromInt(100))
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	root, err := service.AddParticipant(ctx, store.AddParticipantParams{
		ChainId: chain.Id, UserId: "u-root", JoinedAt: joined,
	})
	if err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}
	child, err := service.AddParticipant(ctx, store.AddParticipantParams{
		ChainId: chain.Id, UserId: "u-child", ParentParticipantId: &root.Id, JoinedAt: joined.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	finalizedAt := joined.Add(100 * time.Hour)
	err = service.FinalizeChain(ctx, store.FinalizeParams{
		ChainId:     chain.Id,
		Status:      models.ChainStatusCompleted,
		FinalizedAt: finalizedAt,
		FinalRewards: map[string]decimal.Decimal{
			root.Id:  decimal.NewFromFloat(99.94),
			child.Id: decimal.NewFromInt(100),
		},
	})
	if err != nil {
		t.Fatalf("FinalizeChain failed: %v", err)
	}

	got, err := service.GetChain(ctx, chain.Id)
	if err != nil {
		t.Fatalf("GetChain failed: %v", err)
	}
	if got.Status != models.ChainStatusCompleted {
		t.Errorf("chain status = %s, want completed", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(finalizedAt) {
		t.Errorf("completed_at = %v, want %s", got.CompletedAt, finalizedAt)
	}

	participants, err := service.GetParticipants(ctx, chain.Id)
	if err != nil {
		t.Fatalf("GetParticipants failed: %v", err)
	}
	for _, p := range participants {
		if p.FinalReward == nil {
			t.Errorf("participant %s has no final reward after completion", p.Id)
		}
		if p.Voided {
			t.Errorf("participant %s voided on completion", p.Id)
		}
	}

	// The request follows the chain.
	req, err := service.GetRequest(ctx, chain.RequestId)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if req.Status != models.RequestStatusCompleted {
		t.Errorf("request status = %s, want completed", req.Status)
	}
}

func TestFinalizeChain_ReplayReturnsSentinel(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, chain := createTestChain(t, service, decimal.NewFromInt(100))
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	root, err := service.AddParticipant(ctx, store.AddParticipantParams{
		ChainId: chain.Id, UserId: "u-root", JoinedAt: joined,
	})
	if err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	params := store.FinalizeParams{
		ChainId:      chain.Id,
		Status:       models.ChainStatusCompleted,
		FinalizedAt:  joined.Add(50 * time.Hour),
		FinalRewards: map[string]decimal.Decimal{root.Id: decimal.NewFromInt(80)},
	}
	if err := service.FinalizeChain(ctx, params); err != nil {
		t.Fatalf("FinalizeChain failed: %v", err)
	}

	// Replay with a different value must not overwrite anything.
	params.FinalRewards[root.Id] = decimal.NewFromInt(1)
	err = service.FinalizeChain(ctx, params)
	if !errors.Is(err, store.ErrAlreadyCompleted) {
		t.Fatalf("replay: got %v, want ErrAlreadyCompleted", err)
	}

	p, err := service.FindParticipant(ctx, chain.Id, "u-root")
	if err != nil {
		t.Fatalf("FindParticipant failed: %v", err)
	}
	if !p.FinalReward.Equal(decimal.NewFromInt(80)) {
		t.Errorf("final reward mutated on replay: %s", p.FinalReward)
	}
}

func TestFinalizeChain_ExpiryVoidsParticipants(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, chain := createTestChain(t, service, decimal.NewFromInt(100))
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	root, err := service.AddParticipant(ctx, store.AddParticipantParams{
		ChainId: chain.Id, UserId: "u-root", JoinedAt: joined,
	})
	if err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	err = service.FinalizeChain(ctx, store.FinalizeParams{
		ChainId:      chain.Id,
		Status:       models.ChainStatusExpired,
		FinalizedAt:  joined.Add(1000 * time.Hour),
		FinalRewards: map[string]decimal.Decimal{root.Id: decimal.Zero},
	})
	if err != nil {
		t.Fatalf("FinalizeChain(expired) failed: %v", err)
	}

	p, err := service.FindParticipant(ctx, chain.Id, "u-root")
	if err != nil {
		t.Fatalf("FindParticipant failed: %v", err)
	}
	if !p.Voided {
		t.Error("participant not voided on expiry")
	}
	if !p.FinalReward.IsZero() {
		t.Errorf("voided final reward = %s, want 0", p.FinalReward)
	}

	// Expiring again is the terminal-replay sentinel.
	err = service.FinalizeChain(ctx, store.FinalizeParams{
		ChainId:      chain.Id,
		Status:       models.ChainStatusExpired,
		FinalizedAt:  joined.Add(1001 * time.Hour),
		FinalRewards: map[string]decimal.Decimal{root.Id: decimal.Zero},
	})
	if !errors.Is(err, store.ErrAlreadyTerminal) {
		t.Errorf("re-expiry: got %v, want ErrAlreadyTerminal", err)
	}
}

func TestFinalizeChain_StaleObservedVersionRejected(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, chain := createTestChain(t, service, decimal.NewFromInt(100))
	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	root, err := service.AddParticipant(ctx, store.AddParticipantParams{
		ChainId: chain.Id, UserId: "u-root", JoinedAt: joined,
	})
	if err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	// Snapshot the chain version, then let another join land before the
	// finalize commits.
	snapshot, err := service.GetChain(ctx, chain.Id)
	if err != nil {
		t.Fatalf("GetChain failed: %v", err)
	}
	late, err := service.AddParticipant(ctx, store.AddParticipantParams{
		ChainId: chain.Id, UserId: "u-late", ParentParticipantId: &root.Id,
		JoinedAt: joined.Add(10 * time.Hour),
	})
	if err != nil {
		t.Fatalf("AddParticipant(late) failed: %v", err)
	}

	err = service.FinalizeChain(ctx, store.FinalizeParams{
		ChainId:         chain.Id,
		Status:          models.ChainStatusCompleted,
		FinalizedAt:     joined.Add(48 * time.Hour),
		FinalRewards:    map[string]decimal.Decimal{root.Id: decimal.NewFromInt(80)},
		ObservedVersion: snapshot.Version,
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("got %v, want ErrConcurrentModification", err)
	}

	// The rejected finalize left nothing behind: chain still active,
	// no participant locked.
	current, err := service.GetChain(ctx, chain.Id)
	if err != nil {
		t.Fatalf("GetChain failed: %v", err)
	}
	if current.Status != models.ChainStatusActive {
		t.Fatalf("chain status = %s after rejected finalize, want active", current.Status)
	}
	for _, userId := range []string{"u-root", "u-late"} {
		p, err := service.FindParticipant(ctx, chain.Id, userId)
		if err != nil {
			t.Fatalf("FindParticipant(%s) failed: %v", userId, err)
		}
		if p.FinalReward != nil {
			t.Errorf("participant %s locked at %s by a rejected finalize", userId, p.FinalReward)
		}
	}

	// A fresh snapshot covering every participant commits.
	err = service.FinalizeChain(ctx, store.FinalizeParams{
		ChainId:     chain.Id,
		Status:      models.ChainStatusCompleted,
		FinalizedAt: joined.Add(48 * time.Hour),
		FinalRewards: map[string]decimal.Decimal{
			root.Id: decimal.NewFromInt(80),
			late.Id: decimal.NewFromInt(100),
		},
		ObservedVersion: current.Version,
	})
	if err != nil {
		t.Fatalf("FinalizeChain with fresh snapshot failed: %v", err)
	}
}
