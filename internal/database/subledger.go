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
	"errors"
	"fmt"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *CreditLedger must satisfy store.PayoutLedger.
var _ store.PayoutLedger = (*CreditLedger)(nil)

// CreditLedger is the built-in credit ledger: a balance row per user
// (hot data, optimistically locked) plus an immutable transaction trail
// (cold data). It is the default PayoutLedger backend.
type CreditLedger struct {
	db *sql.DB
}

func NewCreditLedger(db *sql.DB) *CreditLedger {
	return &CreditLedger{db: db}
}

func (l *CreditLedger) InitSchema() error {
	schema := `
	-- Credit Balances Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS credit_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		balance TEXT NOT NULL DEFAULT '0',
		last_transaction_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Credit Transactions Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS credit_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference TEXT,
		chain_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_credit_balances_user ON credit_balances(user_id);
	CREATE INDEX IF NOT EXISTS idx_credit_tx_user ON credit_transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_credit_tx_reference ON credit_transactions(reference);
	CREATE INDEX IF NOT EXISTS idx_credit_tx_chain ON credit_transactions(chain_id);
	`

	_, err := l.db.Exec(schema)
	return err
}

func (l *CreditLedger) Close() {}

// PostPayout credits a participant's final reward. Replaying the same
// reference is a no-op success: the coordinator may retry completion
// delivery after a crash.
func (l *CreditLedger) PostPayout(ctx context.Context, params store.PayoutParams) error {
	_, err := l.processCredit(ctx, creditParams{
		UserId:    params.UserId,
		Type:      "payout",
		Amount:    params.Amount,
		Reference: params.Reference,
		ChainId:   params.ChainId,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateReference) {
		return fmt.Errorf("failed to post payout: %w", err)
	}
	return nil
}

// PostUnlockCharge debits a viewer for unlocking a completed chain.
// Insufficient balance rejects the charge; a duplicate reference means
// the user already paid and is treated as success.
func (l *CreditLedger) PostUnlockCharge(ctx context.Context, params store.UnlockChargeParams) error {
	_, err := l.processCredit(ctx, creditParams{
		UserId:      params.UserId,
		Type:        "unlock",
		Amount:      decimal.NewFromInt(int64(params.Credits)).Neg(),
		Reference:   params.Reference,
		ChainId:     params.ChainId,
		NoOverdraft: true,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateReference) {
		return fmt.Errorf("failed to post unlock charge: %w", err)
	}
	return nil
}

// GetUserCredits returns the current credit balance (O(1) lookup).
func (l *CreditLedger) GetUserCredits(ctx context.Context, userId string) (decimal.Decimal, error) {
	var balanceStr string
	err := l.db.QueryRowContext(ctx, queryGetCreditBalanceValue, userId).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get credit balance: %w", err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse credit balance '%s': %w", balanceStr, err)
	}
	return balance, nil
}

// Topup credits purchased platform credits onto a user's balance.
func (l *CreditLedger) Topup(ctx context.Context, userId string, amount decimal.Decimal, reference string) error {
	_, err := l.processCredit(ctx, creditParams{
		UserId:    userId,
		Type:      "topup",
		Amount:    amount,
		Reference: reference,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateReference) {
		return fmt.Errorf("failed to post topup: %w", err)
	}
	return nil
}

type creditParams struct {
	UserId      string
	Type        string
	Amount      decimal.Decimal
	Reference   string
	ChainId     string
	NoOverdraft bool // reject instead of letting the balance go negative
}

// processCredit atomically updates the balance and records the
// transaction, guarded by a duplicate-reference check and an optimistic
// version check on the balance row.
func (l *CreditLedger) processCredit(ctx context.Context, params creditParams) (string, error) {
	if params.Reference != "" {
		var existingTxId string
		err := l.db.QueryRowContext(ctx, queryCheckDuplicateCredit, params.Reference).Scan(&existingTxId)
		if err == nil {
			zap.L().Warn("Duplicate ledger reference detected, skipping",
				zap.String("reference", params.Reference),
				zap.String("existing_tx_id", existingTxId))
			return existingTxId, fmt.Errorf("%w: %s", store.ErrDuplicateReference, params.Reference)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("failed to check for duplicate reference: %w", err)
		}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accountId, currentBalanceStr string
	var version int64
	err = tx.QueryRowContext(ctx, queryGetCreditBalance, params.UserId).Scan(&accountId, &currentBalanceStr, &version)

	var currentBalance decimal.Decimal
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1
		if _, err := tx.ExecContext(ctx, queryInsertCreditBalance, accountId, params.UserId, "0", 1); err != nil {
			return "", fmt.Errorf("failed to create credit balance: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to get current balance: %w", err)
	} else {
		currentBalance, err = decimal.NewFromString(currentBalanceStr)
		if err != nil {
			return "", fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
		}
	}

	newBalance := currentBalance.Add(params.Amount)
	// Sufficiency is decided on the balance read inside this
	// transaction; a check against an earlier pool read would let two
	// racing debits both pass on the same stale balance.
	if params.NoOverdraft && newBalance.IsNegative() {
		return "", fmt.Errorf("%w: balance %s, debit %s",
			store.ErrInsufficientCredits, currentBalance.String(), params.Amount.Neg().String())
	}
	transactionId := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, queryInsertCreditTransaction,
		transactionId, params.UserId, params.Type,
		params.Amount.String(), currentBalance.String(), newBalance.String(),
		params.Reference, params.ChainId, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert credit transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateCreditBalance,
		newBalance.String(), transactionId, params.UserId, version)
	if err != nil {
		return "", fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return "", fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Credit transaction processed",
		zap.String("transaction_id", transactionId),
		zap.String("user_id", params.UserId),
		zap.String("type", params.Type),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))
	return transactionId, nil
}
