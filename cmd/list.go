package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/hcm/internal/model"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List modules in merge order",
	Long: `List every module in the order its definitions are merged, with its
group, project, dependencies and number of sources.

Examples:
  hcm list             # Table
  hcm list -f json     # JSON
  hcm list -f yaml     # YAML`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, json, yaml)")
	AddFlagValidation(listCmd.Flags(), "format", enumValidator([]string{"table", "json", "yaml"}))
}

// moduleInfo is the listed view of a module.
type moduleInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Group   string   `json:"group" yaml:"group"`
	Project string   `json:"project" yaml:"project"`
	After   []string `json:"after,omitempty" yaml:"after,omitempty"`
	Root    string   `json:"root" yaml:"root"`
	Sources int      `json:"sources" yaml:"sources"`
}

func runList(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	m, err := ws.loadModel(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return writeModules(cmd.OutOrStdout(), listModules(m), listFormat)
}

func listModules(m *model.ConfigurationModel) []moduleInfo {
	modules := m.Modules()
	out := make([]moduleInfo, 0, len(modules))
	for _, mod := range modules {
		out = append(out, moduleInfo{
			Name:    mod.Name(),
			Group:   mod.Project().Group().Name(),
			Project: mod.Project().Name(),
			After:   mod.After(),
			Root:    mod.Root,
			Sources: len(mod.Sources),
		})
	}
	return out
}

func writeModules(w io.Writer, modules []moduleInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(modules)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(modules); err != nil {
			return fmt.Errorf("failed to encode modules: %w", err)
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, headerColor.Sprint("#\tGROUP\tPROJECT\tMODULE\tSOURCES\tROOT"))
		for i, mod := range modules {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", i+1, mod.Group, mod.Project, mod.Name, mod.Sources, mod.Root)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
