package formance

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/augustdua/6degrees-sub006/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptChainPayout = `vars {
  asset $asset
  number $amount
  account $user_id
  account $chain_id
  string $participant_id
  string $amount_human
}

send [$asset $amount] (
  source = @chains:$chain_id:pool allowing unbounded overdraft
  destination = @users:$user_id
)

set_tx_meta("event_type", "chain_payout")
set_tx_meta("chain_id", $chain_id)
set_tx_meta("participant_id", $participant_id)
set_tx_meta("amount_human", $amount_human)
`

const numscriptUnlockCharge = `vars {
  asset $asset
  number $amount
  account $user_id
  account $chain_id
  string $credits
}

send [$asset $amount] (
  source = @users:$user_id
  destination = @platform:unlocks
)

set_tx_meta("event_type", "unlock_charge")
set_tx_meta("chain_id", $chain_id)
set_tx_meta("credits", $credits)
`

// PostPayout credits a participant's credit account from the chain's
// reward pool. Duplicate references are idempotent successes.
func (s *Service) PostPayout(ctx context.Context, params store.PayoutParams) error {
	smallAmt := params.Amount.Shift(creditPrecision).BigInt().String()

	postTx := shared.V2PostTransaction{
		Reference: strPtr(params.Reference),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptChainPayout,
			Vars: map[string]string{
				"asset":          creditAsset(),
				"amount":         smallAmt,
				"user_id":        params.UserId,
				"chain_id":       params.ChainId,
				"participant_id": params.ParticipantId,
				"amount_human":   params.Amount.String(),
			},
		},
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Info("Payout already posted",
				zap.String("reference", params.Reference))
			return nil
		}
		return fmt.Errorf("error posting payout %s: %w", params.Reference, err)
	}

	zap.L().Info("Payout posted to Formance",
		zap.String("user_id", params.UserId),
		zap.String("chain_id", params.ChainId),
		zap.String("amount", params.Amount.String()))
	return nil
}

// PostUnlockCharge debits a viewer for unlocking a completed chain. The
// user account has no overdraft, so the ledger enforces the balance
// check. Duplicate references are idempotent successes.
func (s *Service) PostUnlockCharge(ctx context.Context, params store.UnlockChargeParams) error {
	amount := decimal.NewFromInt(int64(params.Credits))
	smallAmt := amount.Shift(creditPrecision).BigInt().String()

	postTx := shared.V2PostTransaction{
		Reference: strPtr(params.Reference),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptUnlockCharge,
			Vars: map[string]string{
				"asset":    creditAsset(),
				"amount":   smallAmt,
				"user_id":  params.UserId,
				"chain_id": params.ChainId,
				"credits":  strconv.Itoa(params.Credits),
			},
		},
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Info("Unlock charge already posted",
				zap.String("reference", params.Reference))
			return nil
		}
		if isInsufficientFundError(err) {
			return fmt.Errorf("%w: user %s needs %d credits", store.ErrInsufficientCredits, params.UserId, params.Credits)
		}
		return fmt.Errorf("error posting unlock charge %s: %w", params.Reference, err)
	}

	zap.L().Info("Unlock charge posted to Formance",
		zap.String("user_id", params.UserId),
		zap.String("chain_id", params.ChainId),
		zap.Int("credits", params.Credits))
	return nil
}

// GetUserCredits returns the current credit balance for a user.
// Queries the single users:{userId} account directly.
func (s *Service) GetUserCredits(ctx context.Context, userId string) (decimal.Decimal, error) {
	zap.L().Debug("Getting user credits from Formance", zap.String("user_id", userId))

	vols := s.getAccountVolumes(ctx, "users:"+userId)
	if bal := volumeBalance(vols, creditAsset()); bal != nil {
		return bigIntToDecimal(bal), nil
	}
	return decimal.Zero, nil
}

// getAccountVolumes fetches volumes for a single account via GetAccount (clean GET).
func (s *Service) getAccountVolumes(ctx context.Context, address string) map[string]shared.V2Volume {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		zap.L().Warn("Failed to get account volumes", zap.String("address", address), zap.Error(err))
		return nil
	}
	return resp.V2AccountResponse.Data.Volumes
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// creditAsset returns the Formance UMN notation for the credit asset, e.g. "CREDIT/8".
func creditAsset() string {
	return fmt.Sprintf("CREDIT/%d", creditPrecision)
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -creditPrecision)
}
