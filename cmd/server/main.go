package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/christian-spooner/trading-server/params"
	"github.com/christian-spooner/trading-server/pkg/api"
	"github.com/christian-spooner/trading-server/pkg/core/client"
	"github.com/christian-spooner/trading-server/pkg/core/engine"
	"github.com/christian-spooner/trading-server/pkg/core/ledger"
	"github.com/christian-spooner/trading-server/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Core: registry, ledger, matching engine ----
	registry := client.NewRegistry()
	for _, c := range cfg.Clients {
		if err := registry.Register(c.ID, c.Cash, c.Assets); err != nil {
			sugar.Fatalw("seed_client_failed", "id", c.ID, "err", err)
		}
		sugar.Infow("seed_client", "id", c.ID, "cash", c.Cash, "assets", c.Assets)
	}
	ldg := ledger.New(util.RealClock{})
	eng := engine.New(registry, ldg, sugar)

	// ---- Ingestion: HTTP/WebSocket API + match loop ----
	server := api.NewServer(eng, registry, cfg.API.AllowedOrigins, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go server.RunMatchLoop(ctx, cfg.Matching.Interval)
	sugar.Infow("match_loop_started", "interval", cfg.Matching.Interval)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.API.Addr) }()

	select {
	case err := <-errCh:
		sugar.Fatalw("api_server_failed", "err", err)
	case <-ctx.Done():
		sugar.Infow("shutting_down")
	}
}
