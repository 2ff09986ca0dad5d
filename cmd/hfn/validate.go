package main

import (
	"fmt"
	"os"

	"github.com/artpar/hfn/config"
	"github.com/artpar/hfn/core/runtime"
	"github.com/artpar/hfn/core/topology"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the hfn configuration file.

Checks:
  - YAML syntax is valid
  - Values are in range
  - The dev topology fixture parses (dev mode)
  - Every handler of the example package is bound (dev mode)

Examples:
  hfn validate
  hfn validate --config /etc/hfn/hfn.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	workers := "GOMAXPROCS"
	if cfg.Runtime.Workers > 0 {
		workers = fmt.Sprint(cfg.Runtime.Workers)
	}
	fmt.Fprintf(out, "  %s Engine address: %s\n", checkMark, cfg.Runtime.Addr)
	fmt.Fprintf(out, "  %s Workers: %s\n", checkMark, workers)
	fmt.Fprintf(out, "  %s Logging: %s (%s)\n", checkMark, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "  %s Metrics: %s%s\n", checkMark, cfg.Metrics.Addr, cfg.Metrics.Path)
	}

	if cfg.Runtime.Dev {
		topo, err := topology.LoadFile(cfg.Topology)
		if err != nil {
			fmt.Fprintf(out, "  %s Topology %s\n", crossMark, cfg.Topology)
			return err
		}
		fmt.Fprintf(out, "  %s Topology %s\n", checkMark, cfg.Topology)

		unbound, err := unboundHandlers(topo)
		if err != nil {
			return err
		}
		if len(unbound) > 0 {
			fmt.Fprintf(out, "  %s Unbound handlers: %v\n", crossMark, unbound)
		} else {
			fmt.Fprintf(out, "  %s All handlers bound\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

// unboundHandlers lists topology handlers the example package does not
// implement.
func unboundHandlers(topo topology.Topology) ([]string, error) {
	packages, err := examplePackages()
	if err != nil {
		return nil, err
	}
	handlers := runtime.BuildHandlers(topo, packages, zerolog.Nop())

	var unbound []string
	for _, h := range topo.Hfns {
		key := topology.HandlerKey{Package: h.PackageID, Module: h.ModuleID, Handler: h.ID}
		if _, ok := handlers.Lookup(key); ok {
			continue
		}
		name := h.Name
		if pkg, ok := topo.Package(h.PackageID); ok {
			if mod, ok := topo.Module(h.PackageID, h.ModuleID); ok {
				name = topology.QualifiedName(pkg, mod, h.Name)
			}
		}
		unbound = append(unbound, name)
	}
	return unbound, nil
}
