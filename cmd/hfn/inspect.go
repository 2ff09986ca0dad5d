package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/artpar/hfn/core/runtime"
	"github.com/artpar/hfn/core/schema"
	"github.com/artpar/hfn/core/topology"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	inspectTopology string
	inspectLookup   string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the schemas and handler bindings of a topology",
	Long: `Index a topology fixture the way the runtime does at startup and
print every schema, every registry key and every handler binding of the
example package.

Examples:
  hfn inspect --topology topology.yaml
  hfn inspect --topology topology.yaml --lookup homeView.State`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectTopology, "topology", "t", "topology.yaml", "topology fixture")
	inspectCmd.Flags().StringVar(&inspectLookup, "lookup", "", "resolve one registry key and show its fields")
}

func runInspect(cmd *cobra.Command, args []string) error {
	topo, err := topology.LoadFile(inspectTopology)
	if err != nil {
		return err
	}
	reg := schema.Build(topo, zerolog.Nop())
	out := cmd.OutOrStdout()

	if inspectLookup != "" {
		return lookup(out, reg, inspectLookup)
	}

	packages, err := examplePackages()
	if err != nil {
		return err
	}
	handlers := runtime.BuildHandlers(topo, packages, zerolog.Nop())

	fmt.Fprintf(out, "%s %s\n", headingStyle.Render("Topology"), topo.UpstreamID)
	fmt.Fprintf(out, "  packages %d, modules %d, handlers %d, schemas %d\n\n",
		len(topo.Packages), len(topo.Modules), len(topo.Hfns), reg.Len())

	fmt.Fprintln(out, headingStyle.Render("Schemas"))
	for _, s := range reg.Schemas() {
		fmt.Fprintf(out, "  %-8s %s\n", s.Key(), describeFields(s))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, headingStyle.Render("Registry keys"))
	for _, k := range reg.Keys() {
		fmt.Fprintf(out, "  %s\n", k)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, headingStyle.Render("Handlers"))
	unbound, err := unboundHandlers(topo)
	if err != nil {
		return err
	}
	for _, b := range handlers.Bindings() {
		fmt.Fprintf(out, "  %s %-10s %s\n", checkMark, b.Key, b.Name)
	}
	for _, name := range unbound {
		fmt.Fprintf(out, "  %s %-10s %s\n", crossMark, "", name+mutedStyle.Render(" (unbound)"))
	}
	return nil
}

func lookup(out io.Writer, reg *schema.Registry, key string) error {
	s, ok := reg.Lookup(key)
	if !ok {
		fmt.Fprintf(out, "%s no schema for %q\n", crossMark, key)
		if suggestions := reg.Suggest(key, 3); len(suggestions) > 0 {
			fmt.Fprintf(out, "  did you mean: %s\n", strings.Join(suggestions, ", "))
		}
		return fmt.Errorf("unknown key %q", key)
	}

	fmt.Fprintf(out, "%s %s\n", headingStyle.Render(key), mutedStyle.Render(s.Key().String()))
	for _, f := range s.Fields() {
		typ := string(f.Type)
		if f.IsArray {
			typ += "[]"
		}
		fmt.Fprintf(out, "  %-3d %-16s %s\n", f.ID, f.Name, typ)
	}
	return nil
}

func describeFields(s *schema.Schema) string {
	fields := s.Fields()
	if len(fields) == 0 {
		return mutedStyle.Render("(no fields)")
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		p := f.Name + ":" + string(f.Type)
		if f.IsArray {
			p += "[]"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}
