package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreateChain(ctx context.Context, requestId string, pool decimal.Decimal, createdAt time.Time) (*models.Chain, error) {
	if existing, err := s.GetActiveChainForRequest(ctx, requestId); err == nil && existing != nil {
		return nil, fmt.Errorf("request %s already has active chain %s", requestId, existing.Id)
	} else if err != nil && !errors.Is(err, store.ErrChainNotFound) {
		return nil, err
	}

	chain := &models.Chain{
		Id:              uuid.New().String(),
		RequestId:       requestId,
		Status:          models.ChainStatusActive,
		TotalRewardPool: pool,
		Version:         1,
		CreatedAt:       createdAt,
	}
	_, err := s.db.ExecContext(ctx, queryInsertChain,
		chain.Id, chain.RequestId, chain.Status, chain.TotalRewardPool.String(), chain.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chain: %w", err)
	}

	zap.L().Info("Chain created",
		zap.String("chain_id", chain.Id),
		zap.String("request_id", requestId),
		zap.String("reward_pool", pool.String()))
	return chain, nil
}

func (s *Service) GetChain(ctx context.Context, chainId string) (*models.Chain, error) {
	return scanChain(s.db.QueryRowContext(ctx, queryGetChain, chainId))
}

func (s *Service) GetActiveChainForRequest(ctx context.Context, requestId string) (*models.Chain, error) {
	return scanChain(s.db.QueryRowContext(ctx, queryGetActiveChainForRequest, requestId))
}

func (s *Service) ListChainsPastExpiry(ctx context.Context, now time.Time, limit int) ([]models.Chain, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, queryListChainsPastExpiry, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains past expiry: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var chains []models.Chain
	for rows.Next() {
		chain, err := scanChainRow(rows)
		if err != nil {
			return nil, err
		}
		chains = append(chains, *chain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chain rows: %w", err)
	}
	return chains, nil
}

// AddParticipant appends a participant and freezes its referrer in one
// transaction, serialized per chain by the optimistic version check.
// Structural violations (inactive chain, bad parent) reject the join
// with chain state unchanged.
func (s *Service) AddParticipant(ctx context.Context, params store.AddParticipantParams) (*models.ChainParticipant, error) {
	if params.JoinedAt.IsZero() {
		params.JoinedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	chain, err := scanChain(tx.QueryRowContext(ctx, queryGetChain, params.ChainId))
	if err != nil {
		return nil, err
	}
	if chain.Status != models.ChainStatusActive {
		return nil, fmt.Errorf("%w: chain %s is %s", store.ErrChainNotActive, chain.Id, chain.Status)
	}

	// The request read must stay on the transaction's connection; a pool
	// read here starves itself when the pool is capped at one connection.
	request, err := scanRequest(tx.QueryRowContext(ctx, queryGetRequest, chain.RequestId))
	if err != nil {
		return nil, err
	}

	if _, err := scanParticipant(tx.QueryRowContext(ctx, queryFindParticipant, params.ChainId, params.UserId)); err == nil {
		return nil, fmt.Errorf("%w: user %s in chain %s", store.ErrDuplicateParticipant, params.UserId, params.ChainId)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, queryCountParticipants, params.ChainId).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	depth := 0
	var parent *models.ChainParticipant
	if params.ParentParticipantId == nil {
		if count > 0 {
			return nil, fmt.Errorf("%w: chain %s already has a root", store.ErrParentNotFound, params.ChainId)
		}
	} else {
		parent, err = scanParticipant(tx.QueryRowContext(ctx, queryGetParticipantById, *params.ParentParticipantId))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrParentNotFound, *params.ParentParticipantId)
		}
		if err != nil {
			return nil, err
		}
		if parent.ChainId != params.ChainId {
			return nil, fmt.Errorf("%w: parent %s belongs to chain %s", store.ErrParticipantOutsideChain, parent.Id, parent.ChainId)
		}
		if parent.Locked() || parent.Voided {
			return nil, fmt.Errorf("%w: parent %s", store.ErrParentTerminal, parent.Id)
		}
		depth = parent.Depth + 1
	}

	participant := &models.ChainParticipant{
		Id:                  uuid.New().String(),
		ChainId:             params.ChainId,
		UserId:              params.UserId,
		ParentParticipantId: params.ParentParticipantId,
		Depth:               depth,
		JoinedAt:            params.JoinedAt,
		GraceEndsAt:         s.calc.JoinWindows(params.JoinedAt),
	}
	_, err = tx.ExecContext(ctx, queryInsertParticipant,
		participant.Id, participant.ChainId, participant.UserId,
		participant.ParentParticipantId, participant.Depth,
		participant.JoinedAt, participant.GraceEndsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert participant: %w", err)
	}

	// The referrer's link was just used: snapshot its reward and open
	// (or reset) its freeze window.
	if parent != nil {
		freeze := s.calc.ApplyReferral(*parent, request.BaseReward, params.JoinedAt)
		result, err := tx.ExecContext(ctx, queryFreezeParticipant,
			freeze.FrozenBaselineReward.String(), freeze.FreezeEndsAt, freeze.ChildAddedAt, parent.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to freeze referrer: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 0 {
			return nil, fmt.Errorf("%w: parent %s", store.ErrParentTerminal, parent.Id)
		}

		zap.L().Info("Referrer frozen",
			zap.String("chain_id", params.ChainId),
			zap.String("participant_id", parent.Id),
			zap.String("baseline", freeze.FrozenBaselineReward.String()),
			zap.Time("freeze_ends_at", freeze.FreezeEndsAt))
	}

	// Bump the chain version last: two concurrent joins race here and
	// exactly one commits.
	result, err := tx.ExecContext(ctx, queryBumpChainVersion, params.ChainId, chain.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to bump chain version: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("chain version bump failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Participant joined chain",
		zap.String("chain_id", params.ChainId),
		zap.String("participant_id", participant.Id),
		zap.String("user_id", params.UserId),
		zap.Int("depth", depth))
	return participant, nil
}

func scanChain(row *sql.Row) (*models.Chain, error) {
	var chain models.Chain
	var poolStr string
	err := row.Scan(&chain.Id, &chain.RequestId, &chain.Status, &poolStr,
		&chain.Version, &chain.CreatedAt, &chain.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrChainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chain: %w", err)
	}
	chain.TotalRewardPool, err = decimal.NewFromString(poolStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reward pool '%s': %w", poolStr, err)
	}
	return &chain, nil
}

func scanChainRow(rows *sql.Rows) (*models.Chain, error) {
	var chain models.Chain
	var poolStr string
	err := rows.Scan(&chain.Id, &chain.RequestId, &chain.Status, &poolStr,
		&chain.Version, &chain.CreatedAt, &chain.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chain: %w", err)
	}
	chain.TotalRewardPool, err = decimal.NewFromString(poolStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reward pool '%s': %w", poolStr, err)
	}
	return &chain, nil
}
