package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetParticipants returns the chain's participants totally ordered by
// join time (id break ties for identical timestamps).
func (s *Service) GetParticipants(ctx context.Context, chainId string) ([]models.ChainParticipant, error) {
	rows, err := s.db.QueryContext(ctx, queryGetParticipants, chainId)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var participants []models.ChainParticipant
	for rows.Next() {
		p, err := scanParticipantRow(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

// FindParticipant looks up a user's membership in a chain, used to
// attribute a new join to its referrer.
func (s *Service) FindParticipant(ctx context.Context, chainId, userId string) (*models.ChainParticipant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx, queryFindParticipant, chainId, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s has no membership in chain %s", store.ErrParentNotFound, userId, chainId)
	}
	return p, err
}

func scanParticipant(row *sql.Row) (*models.ChainParticipant, error) {
	var p models.ChainParticipant
	var baselineStr, finalStr sql.NullString
	err := row.Scan(
		&p.Id, &p.ChainId, &p.UserId, &p.ParentParticipantId, &p.Depth,
		&p.JoinedAt, &p.GraceEndsAt, &p.ChildAddedAt, &p.FreezeEndsAt,
		&baselineStr, &finalStr, &p.Voided)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	return fillParticipantDecimals(&p, baselineStr, finalStr)
}

func scanParticipantRow(rows *sql.Rows) (*models.ChainParticipant, error) {
	var p models.ChainParticipant
	var baselineStr, finalStr sql.NullString
	err := rows.Scan(
		&p.Id, &p.ChainId, &p.UserId, &p.ParentParticipantId, &p.Depth,
		&p.JoinedAt, &p.GraceEndsAt, &p.ChildAddedAt, &p.FreezeEndsAt,
		&baselineStr, &finalStr, &p.Voided)
	if err != nil {
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	return fillParticipantDecimals(&p, baselineStr, finalStr)
}

func fillParticipantDecimals(p *models.ChainParticipant, baselineStr, finalStr sql.NullString) (*models.ChainParticipant, error) {
	if baselineStr.Valid {
		baseline, err := decimal.NewFromString(baselineStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse frozen baseline '%s': %w", baselineStr.String, err)
		}
		p.FrozenBaselineReward = &baseline
	}
	if finalStr.Valid {
		final, err := decimal.NewFromString(finalStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse final reward '%s': %w", finalStr.String, err)
		}
		p.FinalReward = &final
	}
	return p, nil
}
