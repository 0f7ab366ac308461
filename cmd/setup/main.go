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
	"flag"

	"github.com/augustdua/6degrees-sub006/internal/common"
	"github.com/augustdua/6degrees-sub006/internal/config"

	"go.uber.org/zap"
)

// Initializes the sqlite schema (and the embedded credit ledger) so the
// server starts against a ready database. With --demo, also seeds a
// small introduction chain to poke at.
func main() {
	demo := flag.Bool("demo", false, "Seed demo data after creating the schema")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	zap.L().Info("Database schema ready", zap.String("path", cfg.Database.Path))

	if *demo || cfg.Database.CreateDemoData {
		if err := common.CreateDemoData(ctx, dbService); err != nil {
			zap.L().Fatal("Failed to create demo data", zap.Error(err))
		}
	}
}
