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

const (
	// Connection request queries
	queryInsertRequest = `
		INSERT INTO connection_requests (id, creator_id, target, base_reward, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetRequest = `
		SELECT id, creator_id, target, base_reward, status, created_at, expires_at, deleted_at
		FROM connection_requests
		WHERE id = ? AND deleted_at IS NULL`

	queryUpdateRequestStatus = `
		UPDATE connection_requests SET status = ? WHERE id = ? AND deleted_at IS NULL`

	// Chain queries
	queryInsertChain = `
		INSERT INTO chains (id, request_id, status, total_reward_pool, version, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`

	queryGetChain = `
		SELECT id, request_id, status, total_reward_pool, version, created_at, completed_at
		FROM chains
		WHERE id = ?`

	queryGetActiveChainForRequest = `
		SELECT id, request_id, status, total_reward_pool, version, created_at, completed_at
		FROM chains
		WHERE request_id = ? AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`

	queryListChainsPastExpiry = `
		SELECT c.id, c.request_id, c.status, c.total_reward_pool, c.version, c.created_at, c.completed_at
		FROM chains c
		JOIN connection_requests r ON r.id = c.request_id
		WHERE c.status = 'active' AND r.expires_at <= ?
		ORDER BY r.expires_at
		LIMIT ?`

	queryBumpChainVersion = `
		UPDATE chains SET version = version + 1 WHERE id = ? AND version = ?`

	queryFinalizeChain = `
		UPDATE chains
		SET status = ?, completed_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND status = 'active'`

	// Participant queries
	queryInsertParticipant = `
		INSERT INTO chain_participants (
			id, chain_id, user_id, parent_participant_id, depth,
			joined_at, grace_ends_at, voided
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`

	participantColumns = `
		id, chain_id, user_id, parent_participant_id, depth,
		joined_at, grace_ends_at, child_added_at, freeze_ends_at,
		frozen_baseline_reward, final_reward, voided`

	queryGetParticipants = `
		SELECT ` + participantColumns + `
		FROM chain_participants
		WHERE chain_id = ?
		ORDER BY joined_at, id`

	queryGetParticipantById = `
		SELECT ` + participantColumns + `
		FROM chain_participants
		WHERE id = ?`

	queryFindParticipant = `
		SELECT ` + participantColumns + `
		FROM chain_participants
		WHERE chain_id = ? AND user_id = ?`

	queryCountParticipants = `
		SELECT COUNT(*) FROM chain_participants WHERE chain_id = ?`

	queryFreezeParticipant = `
		UPDATE chain_participants
		SET frozen_baseline_reward = ?,
		    freeze_ends_at = ?,
		    child_added_at = COALESCE(child_added_at, ?)
		WHERE id = ? AND final_reward IS NULL`

	queryLockParticipant = `
		UPDATE chain_participants
		SET final_reward = ?, voided = ?
		WHERE id = ? AND chain_id = ? AND final_reward IS NULL`

	// Credit ledger queries
	queryCheckDuplicateCredit = `
		SELECT id FROM credit_transactions WHERE reference = ? LIMIT 1`

	queryGetCreditBalance = `
		SELECT id, balance, version
		FROM credit_balances
		WHERE user_id = ?`

	queryGetCreditBalanceValue = `
		SELECT balance FROM credit_balances WHERE user_id = ?`

	queryInsertCreditBalance = `
		INSERT INTO credit_balances (id, user_id, balance, version)
		VALUES (?, ?, ?, ?)`

	queryUpdateCreditBalance = `
		UPDATE credit_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND version = ?`

	queryInsertCreditTransaction = `
		INSERT INTO credit_transactions (
			id, user_id, transaction_type, amount, balance_before, balance_after,
			reference, chain_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)
