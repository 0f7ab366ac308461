package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Sweeper  SweeperConfig
	Formance FormanceConfig
	Policy   RewardPolicy
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	CreateDemoData  bool
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr      string
	JWTSecret       string
	ShutdownTimeout time.Duration
}

// SweeperConfig holds chain expiry sweep settings
type SweeperConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	BatchSize     int
}

// FormanceConfig holds Formance Stack connection settings. When StackURL
// is empty the engine falls back to the built-in SQLite credit ledger.
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// RewardPolicy is the fixed decay/freeze/pricing policy applied to every
// chain. Values come from rewards.yaml with env overrides; the defaults
// match production.
type RewardPolicy struct {
	GraceDuration     time.Duration
	FreezeDuration    time.Duration
	DecayRatePerHour  decimal.Decimal // flat amount per hour, not proportional to base
	UnlockBaseCredits int
}

// DefaultRewardPolicy returns the production policy: 24h grace, 48h
// freeze on a successful referral, 0.01 credits of decay per hour, 3
// base unlock credits.
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		GraceDuration:     24 * time.Hour,
		FreezeDuration:    48 * time.Hour,
		DecayRatePerHour:  decimal.NewFromFloat(0.01),
		UnlockBaseCredits: 3,
	}
}
