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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/reward"
	"github.com/augustdua/6degrees-sub006/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.ChainStore.
var _ store.ChainStore = (*Service)(nil)

type Service struct {
	db      *sql.DB
	calc    reward.Calculator
	credits *CreditLedger
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, policy models.RewardPolicy) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// Immediate transactions take the write lock up front so racing
	// writers queue on the busy timeout instead of failing mid-upgrade.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	credits := NewCreditLedger(db)
	service := &Service{db: db, calc: reward.NewCalculator(policy), credits: credits}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if err := credits.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize credit ledger schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Credits exposes the built-in credit subledger, which doubles as the
// default PayoutLedger backend when no Formance stack is configured.
func (s *Service) Credits() *CreditLedger {
	return s.credits
}

func (s *Service) initSchema() error {
	schema := `
	-- Connection requests posted by requesters. Soft-deleted only.
	CREATE TABLE IF NOT EXISTS connection_requests (
		id TEXT PRIMARY KEY,
		creator_id TEXT NOT NULL,
		target TEXT NOT NULL,
		base_reward TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL,
		deleted_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_requests_creator ON connection_requests(creator_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON connection_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_expires_at ON connection_requests(expires_at);

	-- One active chain per request. Version serializes per-chain writes.
	CREATE TABLE IF NOT EXISTS chains (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES connection_requests(id),
		status TEXT NOT NULL DEFAULT 'active',
		total_reward_pool TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chains_request ON chains(request_id);
	CREATE INDEX IF NOT EXISTS idx_chains_status ON chains(status);

	-- Append-only audit trail of chain membership. Never deleted.
	CREATE TABLE IF NOT EXISTS chain_participants (
		id TEXT PRIMARY KEY,
		chain_id TEXT NOT NULL REFERENCES chains(id),
		user_id TEXT NOT NULL,
		parent_participant_id TEXT REFERENCES chain_participants(id),
		depth INTEGER NOT NULL,
		joined_at TIMESTAMP NOT NULL,
		grace_ends_at TIMESTAMP NOT NULL,
		child_added_at TIMESTAMP,
		freeze_ends_at TIMESTAMP,
		frozen_baseline_reward TEXT,
		final_reward TEXT,
		voided INTEGER NOT NULL DEFAULT 0,
		UNIQUE(chain_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_participants_chain ON chain_participants(chain_id);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON chain_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_participants_joined_at ON chain_participants(joined_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
