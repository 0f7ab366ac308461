package pricing

import (
	"errors"
	"fmt"

	"github.com/augustdua/6degrees-sub006/internal/models"
)

// ErrChainNotCompleted rejects unlock pricing for chains that have not
// finished: active chains are free to preview, voided chains have
// nothing to unlock.
var ErrChainNotCompleted = errors.New("unlock pricing applies to completed chains only")

// UnlockCost returns the credit price a non-contributor pays to view a
// completed chain's contact details: a flat base plus one credit for
// every two participants, so larger chains (bigger aggregate payout)
// cost more. Active chains are free to preview and are rejected here.
func UnlockCost(chain models.Chain, participantCount int, policy models.RewardPolicy) (int, error) {
	if chain.Status != models.ChainStatusCompleted {
		return 0, fmt.Errorf("chain %s is %s: %w", chain.Id, chain.Status, ErrChainNotCompleted)
	}
	if participantCount < 0 {
		participantCount = 0
	}
	return policy.UnlockBaseCredits + participantCount/2, nil
}
