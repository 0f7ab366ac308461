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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/augustdua/6degrees-sub006/internal/api"
	"github.com/augustdua/6degrees-sub006/internal/chain"
	"github.com/augustdua/6degrees-sub006/internal/common"
	"github.com/augustdua/6degrees-sub006/internal/config"
	"github.com/augustdua/6degrees-sub006/internal/notify"
	"github.com/augustdua/6degrees-sub006/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	policyFile := flag.String("policy", "", "Optional path to rewards.yaml overriding the decay policy")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *policyFile != "" {
		policy, err := common.LoadRewardPolicy(*policyFile, cfg.Policy)
		if err != nil {
			zap.L().Fatal("Failed to load reward policy", zap.Error(err))
		}
		cfg.Policy = policy
		zap.L().Info("Loaded reward policy overrides", zap.String("file", *policyFile))
	}

	if cfg.Server.JWTSecret == "" {
		zap.L().Fatal("JWT_SECRET must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting chain reward server",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.Duration("grace", cfg.Policy.GraceDuration),
		zap.Duration("freeze", cfg.Policy.FreezeDuration),
		zap.String("decay_rate_per_hour", cfg.Policy.DecayRatePerHour.String()))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	coordinator := chain.NewCoordinator(services.DbService, services.Ledger, notify.LogSink{}, cfg.Policy)
	chainService := api.NewChainService(services.DbService, services.Ledger, coordinator, notify.LogSink{}, cfg.Policy)
	router := api.NewRouter(chainService, cfg.Server.JWTSecret)

	var sw *sweeper.Sweeper
	if cfg.Sweeper.Enabled {
		sw = sweeper.New(services.DbService, coordinator, cfg.Sweeper)
		sw.Start(ctx)
	} else {
		zap.L().Info("Expiry sweeper disabled; chains expire lazily on read")
	}

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced HTTP shutdown after timeout", zap.Error(err))
	}

	if sw != nil {
		sw.Stop()
	}

	zap.L().Info("Server stopped gracefully")
}
