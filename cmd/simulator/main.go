package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/signalsfoundry/building-sim/internal/config"
	"github.com/signalsfoundry/building-sim/internal/logging"
	"github.com/signalsfoundry/building-sim/internal/observability"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the simulator and returns the process exit code: 2 for usage
// and config errors, 1 for failures after start-up. Deferred shutdowns run
// before it returns.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a TOML simulator config")
	building := fs.String("building", "", "path to the building YAML")
	behaviors := fs.String("behaviors", "", "path to the behavior library YAML")
	scenario := fs.String("scenario", "", "path to a scenario YAML")
	storePath := fs.String("store", "", "SQLite file archiving scenarios and runs")
	duration := fs.Duration("duration", 0, "total simulated duration (0 keeps the config value)")
	tick := fs.Duration("tick", 0, "simulation step (0 keeps the config value)")
	accelerated := fs.Bool("accelerated", false, "run in accelerated mode (vs real-time)")
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus /metrics")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["building"] {
		cfg.Simulation.Building = *building
	}
	if set["behaviors"] {
		cfg.Simulation.Behaviors = *behaviors
	}
	if set["scenario"] {
		cfg.Simulation.Scenario = *scenario
	}
	if set["store"] {
		cfg.Store.Path = *storePath
	}
	if set["duration"] && *duration > 0 {
		cfg.Simulation.Duration = config.Duration{Duration: *duration}
	}
	if set["tick"] && *tick > 0 {
		cfg.Simulation.Tick = config.Duration{Duration: *tick}
	}
	if set["accelerated"] {
		cfg.Simulation.Accelerated = *accelerated
	}
	if set["metrics-addr"] {
		cfg.Metrics.Addr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx, log := logging.WithRunLogger(ctx, logging.New(cfg.LoggingConfig()))

	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		return 1
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewBehaviorCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return 1
	}
	if srv := serveMetrics(cfg.Metrics.Addr, collector, log); srv != nil {
		defer shutdownMetrics(srv)
	}

	sum, err := runSimulation(ctx, cfg, collector, log)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		return 1
	}
	log.Info(ctx, "simulation complete",
		logging.Int("ticks", sum.Ticks),
		logging.Int("agents", len(sum.Agents)),
		logging.String("run_id", sum.RunID),
	)
	return 0
}
