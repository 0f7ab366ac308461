package formance

import (
	"math/big"
	"testing"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestCreditAsset(t *testing.T) {
	if got := creditAsset(); got != "CREDIT/8" {
		t.Errorf("creditAsset() = %q, want %q", got, "CREDIT/8")
	}
}

func TestBigIntToDecimal(t *testing.T) {
	// 100_000_000 smallest units of CREDIT (precision 8) = 1.0
	d := decimal.NewFromInt(100_000_000)
	result := bigIntToDecimal(d.BigInt())
	if !result.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", result.String())
	}

	// The canonical frozen-baseline amount survives the round trip.
	reward := decimal.RequireFromString("99.94")
	small := reward.Shift(creditPrecision).BigInt()
	if got := bigIntToDecimal(small); !got.Equal(reward) {
		t.Errorf("expected 99.94, got %s", got.String())
	}

	// nil should return zero
	if got := bigIntToDecimal(nil); !got.IsZero() {
		t.Errorf("expected 0, got %s", got.String())
	}
}

func TestVolumeBalance(t *testing.T) {
	asset := creditAsset()

	// Prefer the precomputed balance when present.
	vols := map[string]shared.V2Volume{
		asset: {Balance: big.NewInt(42)},
	}
	if got := volumeBalance(vols, asset); got == nil || got.Int64() != 42 {
		t.Errorf("expected 42, got %v", got)
	}

	// Fall back to input - output.
	vols = map[string]shared.V2Volume{
		asset: {Input: big.NewInt(100), Output: big.NewInt(30)},
	}
	if got := volumeBalance(vols, asset); got == nil || got.Int64() != 70 {
		t.Errorf("expected 70, got %v", got)
	}

	// Missing asset returns nil.
	if got := volumeBalance(vols, "USDC/6"); got != nil {
		t.Errorf("expected nil for missing asset, got %v", got)
	}
}

func TestIsConflictError(t *testing.T) {
	// nil error should not be a conflict
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isInsufficientFundError(nil) {
		t.Error("nil should not be an insufficient fund error")
	}
}
