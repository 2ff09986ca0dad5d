package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hfn",
	Short: "Handler runtime for hfn topologies",
	Long: `hfn binds Go handler packages to the topology resolved by the
transport engine and dispatches invocations to them.

Quick start:
  hfn validate      # Check the configuration
  hfn inspect       # Show schemas and handler bindings of a topology
  hfn serve         # Run the example package (dev mode)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "hfn.yaml", "config file path")
}
