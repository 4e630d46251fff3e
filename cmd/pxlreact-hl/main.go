// pxlreact-hl runs the reactor without a window until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/engine"
	"github.com/ConserveLee/pxlreact/internal/engine/input"
	"github.com/ConserveLee/pxlreact/internal/logger"
)

func main() {
	cfgPath := flag.String("config", config.Path(), "configuration file")
	dryRun := flag.Bool("dry-run", false, "log key events instead of sending them")
	debug := flag.Bool("debug", false, "verbose console output")
	report := flag.Duration("report", time.Minute, "interval between trigger summaries (0 disables)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.New(os.Stdout, nil, cfg.Debug || *debug)

	providers := engine.LiveProviders()
	if *dryRun {
		providers.Keyboard = &input.DryRun{Log: appLogger}
	}

	eng, err := engine.New(cfg, providers, appLogger)
	if err != nil {
		appLogger.Error("Startup Error: %v", err)
		os.Exit(1)
	}
	if err := eng.Start(); err != nil {
		appLogger.Error("Start: %v", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var tick <-chan time.Time
	if *report > 0 {
		ticker := time.NewTicker(*report)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case sig := <-sigCh:
			appLogger.Info("Received %s, shutting down", sig)
			if err := eng.Close(); err != nil {
				appLogger.Error("Close: %v", err)
			}
			summarize(eng, appLogger)
			return
		case <-tick:
			summarize(eng, appLogger)
		}
	}
}

func summarize(eng *engine.Engine, appLogger *logger.AppLogger) {
	if s, ok := eng.DispatchStats(); ok {
		appLogger.Slog().Info("dispatch",
			"submitted", s.Submitted, "executed", s.Executed, "failed", s.Failed,
			"dropped", s.Dropped, "cancelled", s.Cancelled)
	}
	stats := eng.History().Stats()
	if len(stats) == 0 {
		appLogger.Info("No reactions triggered yet")
		return
	}
	for _, rec := range stats {
		appLogger.Info("%s triggered %s times, last %s", rec.Name, humanize.Comma(int64(rec.Count)), humanize.Time(rec.LastSeen))
	}
}
