// Command gridlock runs the traffic microsimulation kernel: load a config,
// build (or demo) a road network, and drive the tick loop until the
// configured end tick or a signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"gridlock/dashboard"
	"gridlock/report"
	"gridlock/sim"
	"gridlock/simconfig"
)

func main() {
	app := &cli.App{
		Name:  "gridlock",
		Usage: "discrete-time agent-based traffic microsimulation kernel",
		Commands: []*cli.Command{
			runCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the simulation kernel",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a simconfig YAML file", Required: true},
			&cli.IntFlag{Name: "workers", Usage: "override every work group's worker count (0 = use config)"},
			&cli.StringFlag{Name: "dashboard-addr", Usage: "address to serve the live dashboard on", Value: "localhost:8080"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("gridlock: constructing logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := simconfig.FromYaml(c.String("config"))
	if err != nil {
		return fmt.Errorf("gridlock: loading config: %w", err)
	}
	if n := c.Int("workers"); n > 0 {
		for i := range cfg.WorkGroups {
			cfg.WorkGroups[i].NumWorkers = n
		}
	}

	dashboardAddr := c.String("dashboard-addr")
	if !c.IsSet("dashboard-addr") && cfg.DashboardAddr != "" {
		dashboardAddr = cfg.DashboardAddr
	}

	if dump, err := cfg.DumpYAML(); err != nil {
		logger.Warn("failed dumping effective config", zap.Error(err))
	} else {
		logger.Debug("effective config", zap.String("yaml", dump))
	}

	strategy, err := cfg.CellStrategy()
	if err != nil {
		return fmt.Errorf("gridlock: resolving cell strategy: %w", err)
	}
	network, confluxes := sim.DemoNetwork(strategy)

	sink, err := report.NewSink(os.Stdout, 1024)
	if err != nil {
		return fmt.Errorf("gridlock: constructing report sink: %w", err)
	}

	hub := dashboard.NewHub(16)
	dashSrv := dashboard.NewServer(hub)
	httpSrv := &http.Server{Addr: dashboardAddr, Handler: dashSrv}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("dashboard server stopped", zap.Error(err))
		}
	}()
	defer httpSrv.Close()

	reg := prometheus.NewRegistry()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: "localhost:9090", Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	defer metricsSrv.Close()

	kernel, err := sim.New(cfg, network, confluxes, sink, hub, reg, logger)
	if err != nil {
		return fmt.Errorf("gridlock: constructing kernel: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting simulation",
		zap.Int64("endTick", cfg.EndTick),
		zap.Int64("baseGranMS", cfg.BaseGranMS),
		zap.String("dashboardAddr", dashboardAddr))

	return kernel.Run(ctx)
}
