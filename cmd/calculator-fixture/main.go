// Calculator fixture server
//
// Serves a local replica of the revenue calculator: a homepage with a
// "Revenue Calculator" link, and a calculator page with a patients slider,
// its number field, CPT code cards and the monthly total. Run the journey
// against it with:
//
//	go run ./cmd/calculator-fixture
//	go run ./cmd/revcalc run --scenario fixture
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/thesyncim/revcalc/cmd/calculator-fixture/server"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	start := flag.Int("start", 200, "initial slider value")
	verbose := flag.Bool("v", false, "log every request")
	flag.Parse()

	zcfg := zap.NewProductionConfig()
	if *verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := server.DefaultConfig()
	cfg.Addr = *addr
	cfg.Calculator.Start = *start
	cfg.Logger = logger

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("create server", zap.Error(err))
	}
	if _, err := srv.Start(); err != nil {
		logger.Fatal("start server", zap.Error(err))
	}
	logger.Info("calculator fixture ready", zap.String("url", srv.URL()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
