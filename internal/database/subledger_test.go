package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/shopspring/decimal"
)

func TestPostPayout_CreditsAndIdempotence(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	ledger := service.Credits()

	params := store.PayoutParams{
		UserId:        "user-1",
		ChainId:       "chain-1",
		ParticipantId: "p-1",
		Amount:        decimal.NewFromFloat(99.94),
		Reference:     "payout:chain-1:p-1",
	}
	if err := ledger.PostPayout(ctx, params); err != nil {
		t.Fatalf("PostPayout failed: %v", err)
	}

	balance, err := ledger.GetUserCredits(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserCredits failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(99.94)) {
		t.Errorf("balance = %s, want 99.94", balance)
	}

	// Same reference again: success, no double credit.
	if err := ledger.PostPayout(ctx, params); err != nil {
		t.Fatalf("PostPayout replay failed: %v", err)
	}
	balance, err = ledger.GetUserCredits(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserCredits failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(99.94)) {
		t.Errorf("balance after replay = %s, want 99.94", balance)
	}
}

func TestPostUnlockCharge(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	ledger := service.Credits()

	if err := ledger.Topup(ctx, "viewer-1", decimal.NewFromInt(10), "topup-1"); err != nil {
		t.Fatalf("Topup failed: %v", err)
	}

	charge := store.UnlockChargeParams{
		UserId:    "viewer-1",
		ChainId:   "chain-1",
		Credits:   4,
		Reference: "unlock:chain-1:viewer-1",
	}
	if err := ledger.PostUnlockCharge(ctx, charge); err != nil {
		t.Fatalf("PostUnlockCharge failed: %v", err)
	}

	balance, err := ledger.GetUserCredits(ctx, "viewer-1")
	if err != nil {
		t.Fatalf("GetUserCredits failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(6)) {
		t.Errorf("balance = %s, want 6", balance)
	}

	// Paying twice for the same unlock is absorbed.
	if err := ledger.PostUnlockCharge(ctx, charge); err != nil {
		t.Fatalf("PostUnlockCharge replay failed: %v", err)
	}
	balance, _ = ledger.GetUserCredits(ctx, "viewer-1")
	if !balance.Equal(decimal.NewFromInt(6)) {
		t.Errorf("balance after replay = %s, want 6", balance)
	}
}

func TestPostUnlockCharge_InsufficientCredits(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	ledger := service.Credits()

	err := ledger.PostUnlockCharge(ctx, store.UnlockChargeParams{
		UserId:    "broke-user",
		ChainId:   "chain-1",
		Credits:   3,
		Reference: "unlock:chain-1:broke-user",
	})
	if !errors.Is(err, store.ErrInsufficientCredits) {
		t.Fatalf("got %v, want ErrInsufficientCredits", err)
	}

	balance, err := ledger.GetUserCredits(ctx, "broke-user")
	if err != nil {
		t.Fatalf("GetUserCredits failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("balance = %s, want 0", balance)
	}
}

func TestPostUnlockCharge_ConcurrentChargesNeverOverdraw(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	ledger := service.Credits()

	// The balance covers one unlock, not two. Different references, so
	// duplicate absorption does not apply; sufficiency is decided on
	// the balance read inside each debit's own transaction.
	if err := ledger.Topup(ctx, "viewer-1", decimal.NewFromInt(4), "topup-1"); err != nil {
		t.Fatalf("Topup failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.PostUnlockCharge(ctx, store.UnlockChargeParams{
				UserId:    "viewer-1",
				ChainId:   fmt.Sprintf("chain-%d", i),
				Credits:   4,
				Reference: fmt.Sprintf("unlock:chain-%d:viewer-1", i),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientCredits):
		default:
			t.Fatalf("unexpected charge error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("charges succeeded = %d, want exactly 1", succeeded)
	}

	balance, err := ledger.GetUserCredits(ctx, "viewer-1")
	if err != nil {
		t.Fatalf("GetUserCredits failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("balance = %s after racing charges, want 0", balance)
	}
}

func TestGetUserCredits_NoAccount(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	balance, err := service.Credits().GetUserCredits(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetUserCredits failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("expected zero balance for unknown user, got %s", balance)
	}
}
