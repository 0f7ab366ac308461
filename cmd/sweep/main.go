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
	"fmt"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/chain"
	"github.com/augustdua/6degrees-sub006/internal/common"
	"github.com/augustdua/6degrees-sub006/internal/config"
	"github.com/augustdua/6degrees-sub006/internal/models"
	"github.com/augustdua/6degrees-sub006/internal/notify"

	"go.uber.org/zap"
)

func printChain(c models.Chain, outcome string, isLast bool) {
	fmt.Printf("%s%-36s  -> %s\n", common.BoxPrefix(isLast), c.Id, outcome)
	fmt.Printf("%spool %s, created %s\n",
		common.BoxDetailPrefix(isLast),
		c.TotalRewardPool.String(),
		c.CreatedAt.Format("2006-01-02 15:04:05"))
}

func main() {
	batchSize := flag.Int("batch", 100, "Maximum number of chains to expire in one pass")
	dryRun := flag.Bool("dry-run", false, "List overdue chains without expiring them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	coordinator := chain.NewCoordinator(services.DbService, services.Ledger, notify.LogSink{}, cfg.Policy)

	now := time.Now().UTC()
	chains, err := services.DbService.ListChainsPastExpiry(ctx, now, *batchSize)
	if err != nil {
		zap.L().Fatal("Failed to list overdue chains", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Expiry Sweep - %s", now.Format("2006-01-02 15:04:05 UTC")), common.WideWidth)

	if len(chains) == 0 {
		fmt.Println("No overdue chains.")
		common.PrintFooter("Nothing to do", common.WideWidth)
		return
	}

	fmt.Printf("\n┌─ Overdue chains: %d (batch limit %d, dry-run: %v)\n", len(chains), *batchSize, *dryRun)
	common.PrintBoxSeparator(common.WideWidth - 2)

	expired := 0
	for i, c := range chains {
		isLast := i == len(chains)-1
		if *dryRun {
			printChain(c, "would expire", isLast)
			continue
		}

		if err := coordinator.ExpireChain(ctx, c.Id, now); err != nil {
			printChain(c, fmt.Sprintf("FAILED: %v", err), isLast)
			continue
		}
		printChain(c, "expired", isLast)
		expired++
	}

	common.PrintFooter(fmt.Sprintf("Sweep complete: %d of %d chains expired", expired, len(chains)), common.WideWidth)
}
