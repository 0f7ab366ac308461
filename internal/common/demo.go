/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"context"
	"fmt"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/database"
	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateDemoData seeds one introduction chain with a root and a child
// so the rewards endpoint has something to show. The child joined six
// hours after the root's grace window ended, which freezes the root at
// a visibly decayed reward. Safe to re-run: an existing active chain
// means the data is already there.
func CreateDemoData(ctx context.Context, dbService *database.Service) error {
	now := time.Now().UTC()

	req, err := dbService.CreateRequest(ctx, models.ConnectionRequest{
		CreatorId:  "demo-creator",
		Target:     "VP of Engineering at Hooli",
		BaseReward: decimal.NewFromInt(100),
		Status:     models.RequestStatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("failed to create demo request: %w", err)
	}

	chain, err := dbService.CreateChain(ctx, req.Id, decimal.NewFromInt(1000), now.Add(-31*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to create demo chain: %w", err)
	}

	root, err := dbService.AddParticipant(ctx, store.AddParticipantParams{
		ChainId:  chain.Id,
		UserId:   "demo-alice",
		JoinedAt: now.Add(-31 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("failed to add demo root: %w", err)
	}

	if _, err := dbService.AddParticipant(ctx, store.AddParticipantParams{
		ChainId:             chain.Id,
		UserId:              "demo-bob",
		ParentParticipantId: &root.Id,
		JoinedAt:            now.Add(-time.Hour),
	}); err != nil {
		return fmt.Errorf("failed to add demo child: %w", err)
	}

	if err := dbService.Credits().Topup(ctx, "demo-viewer", decimal.NewFromInt(25), "topup:demo-viewer:seed"); err != nil {
		return fmt.Errorf("failed to top up demo viewer: %w", err)
	}

	zap.L().Info("Demo data created",
		zap.String("request_id", req.Id),
		zap.String("chain_id", chain.Id))
	return nil
}
