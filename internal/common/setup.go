package common

import (
	"context"
	"log"
	"strings"

	"github.com/augustdua/6degrees-sub006/internal/database"
	"github.com/augustdua/6degrees-sub006/internal/formance"
	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	DbService *database.Service
	Ledger    store.PayoutLedger

	// ledgerOwned is true when Ledger has its own lifecycle separate
	// from DbService (the Formance backend). The embedded credit
	// ledger shares DbService's connection pool and must not be
	// closed twice.
	ledgerOwned bool
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Policy)
	if err != nil {
		return nil, err
	}

	if cfg.Formance.StackURL == "" {
		zap.L().Info("Using embedded credit ledger for payouts")
		return &Services{
			DbService: dbService,
			Ledger:    dbService.Credits(),
		}, nil
	}

	zap.L().Info("Connecting to Formance ledger",
		zap.String("stackUrl", cfg.Formance.StackURL),
		zap.String("ledger", cfg.Formance.LedgerName))

	ledger, err := formance.NewService(ctx, cfg.Formance)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	return &Services{
		DbService:   dbService,
		Ledger:      ledger,
		ledgerOwned: true,
	}, nil
}

// InitializeDatabaseOnly initializes just the chain store without a
// payout ledger. Useful for read-only utilities.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Policy)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.ledgerOwned && cs.Ledger != nil {
		cs.Ledger.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
