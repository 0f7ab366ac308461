package database

import (
	"context"
	"fmt"

	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"go.uber.org/zap"
)

// FinalizeChain locks every participant's final reward and moves the
// chain (and its request) to a terminal status in a single transaction.
// A replay against an already-terminal chain returns ErrAlreadyCompleted
// or ErrAlreadyTerminal so callers can serve the stored result; freezing
// some participants while others stay live is never observable.
func (s *Service) FinalizeChain(ctx context.Context, params store.FinalizeParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	chain, err := scanChain(tx.QueryRowContext(ctx, queryGetChain, params.ChainId))
	if err != nil {
		return err
	}
	if chain.Status != models.ChainStatusActive {
		if chain.Status == models.ChainStatusCompleted {
			return store.ErrAlreadyCompleted
		}
		return store.ErrAlreadyTerminal
	}

	voided := 0
	if params.Status != models.ChainStatusCompleted {
		voided = 1
	}

	for participantId, finalReward := range params.FinalRewards {
		result, err := tx.ExecContext(ctx, queryLockParticipant,
			finalReward.String(), voided, participantId, params.ChainId)
		if err != nil {
			return fmt.Errorf("failed to lock participant %s: %w", participantId, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 0 {
			// Final rewards are written exactly once; a missing or
			// already-locked row means the snapshot we computed from is
			// stale.
			return fmt.Errorf("participant %s not lockable in chain %s - %w",
				participantId, params.ChainId, store.ErrConcurrentModification)
		}
	}

	// Finalize against the version the reward snapshot was computed
	// from, not the version re-read above: a join that committed in
	// between bumped it, and its participant row is absent from
	// params.FinalRewards.
	version := chain.Version
	if params.ObservedVersion != 0 {
		version = params.ObservedVersion
	}
	result, err := tx.ExecContext(ctx, queryFinalizeChain,
		params.Status, params.FinalizedAt, params.ChainId, version)
	if err != nil {
		return fmt.Errorf("failed to finalize chain: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("chain finalize failed - %w", store.ErrConcurrentModification)
	}

	requestStatus := models.RequestStatusCompleted
	switch params.Status {
	case models.ChainStatusExpired:
		requestStatus = models.RequestStatusExpired
	case models.ChainStatusCancelled:
		requestStatus = models.RequestStatusCancelled
	}
	if _, err := tx.ExecContext(ctx, queryUpdateRequestStatus, requestStatus, chain.RequestId); err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Chain finalized",
		zap.String("chain_id", params.ChainId),
		zap.String("status", params.Status),
		zap.Int("participants", len(params.FinalRewards)))
	return nil
}
