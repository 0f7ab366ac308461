package pricing

import (
	"testing"

	"github.com/augustdua/6degrees-sub006/internal/models"
)

func TestUnlockCost(t *testing.T) {
	policy := models.DefaultRewardPolicy()
	chain := models.Chain{Id: "c1", Status: models.ChainStatusCompleted}

	tests := []struct {
		participants int
		want         int
	}{
		{0, 3},
		{1, 3},
		{2, 4},
		{3, 4},
		{4, 5},
		{10, 8},
		{-1, 3}, // defensive clamp
	}
	for _, tt := range tests {
		got, err := UnlockCost(chain, tt.participants, policy)
		if err != nil {
			t.Fatalf("UnlockCost(%d) error: %v", tt.participants, err)
		}
		if got != tt.want {
			t.Errorf("UnlockCost(%d) = %d, want %d", tt.participants, got, tt.want)
		}
	}
}

func TestUnlockCost_Monotonic(t *testing.T) {
	policy := models.DefaultRewardPolicy()
	chain := models.Chain{Id: "c1", Status: models.ChainStatusCompleted}

	prev := 0
	for n := 0; n <= 50; n++ {
		cost, err := UnlockCost(chain, n, policy)
		if err != nil {
			t.Fatalf("UnlockCost(%d) error: %v", n, err)
		}
		if cost < prev {
			t.Fatalf("cost decreased from %d to %d at %d participants", prev, cost, n)
		}
		prev = cost
	}
}

func TestUnlockCost_ActiveChainRejected(t *testing.T) {
	policy := models.DefaultRewardPolicy()
	for _, status := range []string{models.ChainStatusActive, models.ChainStatusExpired, models.ChainStatusCancelled} {
		chain := models.Chain{Id: "c1", Status: status}
		if _, err := UnlockCost(chain, 4, policy); err == nil {
			t.Errorf("expected error for %s chain", status)
		}
	}
}
