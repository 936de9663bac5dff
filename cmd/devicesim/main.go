// Command devicesim emulates room sensor boards, or bridges a serial port's
// newline-delimited JSON output, against a running backend.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"home-sensor-backend/internal/devicesim"
)

func main() {
	var (
		baseURL  = flag.String("backend", "http://localhost:5000", "backend base URL")
		rooms    = flag.String("rooms", "1,2,3,4,5", "comma-separated room ids to simulate")
		interval = flag.Duration("interval", 2*time.Second, "reporting interval per device")
		chance   = flag.Float64("incident-chance", 0.02, "per-tick probability that a device starts an incident")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
		proxy    = flag.String("proxy", "", "optional HTTP proxy URL")
		serial   = flag.Bool("serial", false, "relay newline-delimited JSON readings from stdin instead of simulating")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.TimeOnly})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := strings.TrimRight(*baseURL, "/")

	if *serial {
		stats, err := devicesim.NewBridge(backend).Relay(ctx, os.Stdin)
		slog.Info("serial bridge finished", "forwarded", stats.Forwarded, "skipped", stats.Skipped, "failed", stats.Failed)
		if err != nil && ctx.Err() == nil {
			slog.Error("serial bridge stopped", "err", err)
			os.Exit(1)
		}
		return
	}

	var ids []string
	for _, id := range strings.Split(*rooms, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		slog.Error("no rooms to simulate")
		os.Exit(2)
	}

	devicesim.NewService(devicesim.Config{
		BaseURL:        backend,
		Rooms:          ids,
		Interval:       *interval,
		IncidentChance: *chance,
		Seed:           *seed,
		HTTPProxy:      *proxy,
	}).Run(ctx)
}
