package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/hfn/bootstrap"
	"github.com/artpar/hfn/config"
	"github.com/spf13/cobra"
)

var (
	hotReload     bool
	serveDev      bool
	serveTopology string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the example handler package",
	Long: `Run the example homeView package against the runtime.

The server will:
  - Load configuration from hfn.yaml (or --config)
  - Or load configuration from HFN_* environment variables
  - Start the loopback transport from the topology fixture (dev mode)
  - Serve health, topology, metrics and POST /dev/invoke
  - Dispatch invocations until SIGINT or SIGTERM

Environment variables:
  HFN_DEV             - Use the loopback transport (true/false)
  HFN_TOPOLOGY        - Topology fixture for dev mode
  HFN_WORKERS         - Concurrent handler limit (default: GOMAXPROCS)
  HFN_LOG_LEVEL       - Log level: debug, info, warn, error
  HFN_METRICS_ADDR    - Listen address for the operational endpoints

Examples:
  hfn serve --config cmd/hfn/testdata/hfn.yaml
  hfn serve --dev --topology topology.yaml
  curl -d '{"handler": "homeView.mount", "data": {"name": "ada"}}' localhost:9090/dev/invoke`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "use the loopback transport")
	serveCmd.Flags().StringVar(&serveTopology, "topology", "", "topology fixture for dev mode")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if serveDev {
		cfg.Runtime.Dev = true
	}
	if serveTopology != "" {
		cfg.Topology = serveTopology
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	packages, err := examplePackages()
	if err != nil {
		return fmt.Errorf("build packages: %w", err)
	}

	app, err := bootstrap.New(bootstrap.Options{
		Config:   cfg,
		Packages: packages,
		Version:  version,
	})
	if errors.Is(err, bootstrap.ErrNoTransport) {
		fmt.Fprintln(cmd.ErrOrStderr(), "No transport engine is linked into this build.")
		fmt.Fprintln(cmd.ErrOrStderr(), "Run with --dev --topology <file>, or set runtime.dev in", cfgFile)
		return err
	}
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	if hasConfigFile && hotReload {
		holder, err := config.NewHolder(cfgFile, app.Logger.With().Str("component", "config").Logger())
		if err != nil {
			return fmt.Errorf("config holder: %w", err)
		}
		defer holder.Stop()

		app.WatchConfig(holder)
		if err := holder.WatchFile(); err != nil {
			app.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run (blocks until shutdown)
	return app.Run(ctx)
}
