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

func (s *Service) CreateRequest(ctx context.Context, req models.ConnectionRequest) (*models.ConnectionRequest, error) {
	if req.Id == "" {
		req.Id = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, queryInsertRequest,
		req.Id, req.CreatorId, req.Target, req.BaseReward.String(),
		req.Status, req.CreatedAt, req.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert connection request: %w", err)
	}

	zap.L().Info("Connection request created",
		zap.String("request_id", req.Id),
		zap.String("creator_id", req.CreatorId),
		zap.String("base_reward", req.BaseReward.String()))
	return &req, nil
}

func (s *Service) GetRequest(ctx context.Context, requestId string) (*models.ConnectionRequest, error) {
	return scanRequest(s.db.QueryRowContext(ctx, queryGetRequest, requestId))
}

func scanRequest(row *sql.Row) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	var baseRewardStr string
	err := row.Scan(
		&req.Id, &req.CreatorId, &req.Target, &baseRewardStr,
		&req.Status, &req.CreatedAt, &req.ExpiresAt, &req.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection request: %w", err)
	}

	req.BaseReward, err = decimal.NewFromString(baseRewardStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base reward '%s': %w", baseRewardStr, err)
	}
	return &req, nil
}

func (s *Service) UpdateRequestStatus(ctx context.Context, requestId, status string) error {
	result, err := s.db.ExecContext(ctx, queryUpdateRequestStatus, status, requestId)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrRequestNotFound
	}
	return nil
}
