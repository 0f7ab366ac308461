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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	sweepInterval, err := getEnvDuration("SWEEP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	policy, err := loadPolicy()
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "chains.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			CreateDemoData:  getEnvBool("CREATE_DEMO_DATA", false),
		},
		Server: models.ServerConfig{
			ListenAddr:      getEnvString("SERVER_LISTEN_ADDR", ":8080"),
			JWTSecret:       getEnvString("JWT_SECRET", ""),
			ShutdownTimeout: shutdownTimeout,
		},
		Sweeper: models.SweeperConfig{
			Enabled:       getEnvBool("SWEEP_ENABLED", true),
			SweepInterval: sweepInterval,
			BatchSize:     getEnvInt("SWEEP_BATCH_SIZE", 100),
		},
		Formance: models.FormanceConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER_NAME", "sixdegrees-chain-rewards"),
		},
		Policy: policy,
	}, nil
}

// loadPolicy starts from the production defaults and applies env
// overrides. A rewards.yaml file (see common.LoadRewardPolicy) takes
// precedence over both when the caller loads one.
func loadPolicy() (models.RewardPolicy, error) {
	policy := models.DefaultRewardPolicy()

	graceDuration, err := getEnvDuration("REWARD_GRACE_DURATION", policy.GraceDuration)
	if err != nil {
		return policy, err
	}
	policy.GraceDuration = graceDuration

	freezeDuration, err := getEnvDuration("REWARD_FREEZE_DURATION", policy.FreezeDuration)
	if err != nil {
		return policy, err
	}
	policy.FreezeDuration = freezeDuration

	if value := os.Getenv("REWARD_DECAY_RATE_PER_HOUR"); value != "" {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return policy, fmt.Errorf("invalid decimal for REWARD_DECAY_RATE_PER_HOUR: %q (%w)", value, err)
		}
		policy.DecayRatePerHour = rate
	}

	policy.UnlockBaseCredits = getEnvInt("UNLOCK_BASE_CREDITS", policy.UnlockBaseCredits)
	return policy, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
