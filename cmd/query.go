package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/hcm/internal/renderer"
)

var queryCmd = &cobra.Command{
	Use:   "query <jq-expression>",
	Short: "Run a jq expression over the merged configuration tree",
	Long: `Build the configuration model and run a jq expression over the JSON form
of the tree (or of the subtree at --path). Each node is an object with
name, path, primaryType, properties and nodes.

Examples:
  hcm query '.nodes[].name'
  hcm query --path /hst:hst '.. | objects | select(.primaryType == "hst:mount") | .path' -r
  hcm query '[.. | objects | select(has("path"))] | length'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var (
	queryPath string
	queryRaw  bool
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryPath, "path", "p", "/", "node to query from")
	queryCmd.Flags().BoolVarP(&queryRaw, "raw", "r", false, "print string results without quotes")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := validateNodePath(queryPath); err != nil {
		return err
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	m, err := ws.loadModel(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	node := m.ResolveNode(queryPath)
	if node == nil {
		return fmt.Errorf("node '%s' not found", queryPath)
	}

	results, err := renderer.Query(cmd.Context(), node, args[0])
	if err != nil {
		return err
	}
	return writeResults(cmd.OutOrStdout(), results, queryRaw)
}

func writeResults(w io.Writer, results []interface{}, raw bool) error {
	for _, r := range results {
		if s, ok := r.(string); ok && raw {
			fmt.Fprintln(w, s)
			continue
		}
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
	return nil
}
