// Command kvstored is the bundled server binary: it resolves
// configuration (defaults, then an optional YAML file, then flags),
// wires the server's dependency graph with go.uber.org/fx, and runs
// until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/nmxmxh/kvstored/internal/app"
	"github.com/nmxmxh/kvstored/internal/config"
	"github.com/nmxmxh/kvstored/internal/logging"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code, per spec.md §6: 0 on clean
// shutdown, non-zero on fatal startup error.
func run() int {
	cfg := config.Default()

	fs := flag.NewFlagSet("kvstored", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML config file")
	config.BindFlags(fs, &cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}
	if *configPath != "" {
		loaded, err := config.LoadFile(cfg, *configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = loaded
		// Flags win over the config file: re-apply them on top.
		fs2 := flag.NewFlagSet("kvstored", flag.ContinueOnError)
		config.BindFlags(fs2, &cfg)
		_ = fs2.Parse(os.Args[1:])
	}

	bootLog, err := logging.New(logging.Config{Level: logging.Info, Production: cfg.LogProduction})
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvstored: build logger:", err)
		return 1
	}
	defer func() { _ = bootLog.Sync() }()

	fxApp := app.New(cfg, fxevent.NewZapLogger(bootLog))

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		bootLog.Error("startup failed", zap.Error(err))
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	bootLog.Info("shutting down")

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		bootLog.Error("shutdown error", zap.Error(err))
		return 1
	}
	return 0
}
